package table

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

// Operation is the kind of statement a mutation executes.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// TagChange is the association delta of one tags field.
type TagChange struct {
	Field   *TagsField
	Added   []any
	Removed []any
}

// Mutation is a prepared write. Nothing has touched the store yet.
type Mutation struct {
	Table     *Table
	Operation Operation
	// Key is the primary key of the row, nil for inserts relying on a generated key.
	Key any
	// Statement is the insert, update or delete. It is empty when only associations change.
	Statement  sqlq.Fragment
	TagChanges []TagChange
	Diff       *DiffResult
	// Stripped lists changed members removed by column authorization.
	Stripped []string
	// Before and After are store rows.
	Before internal.Row
	After  internal.Row

	dialect sqlq.Dialect
}

// OK returns true if validation succeeded.
func (m *Mutation) OK() bool {
	return m.Diff == nil || m.Diff.Success
}

// IsNoop returns true if there is nothing to execute.
func (m *Mutation) IsNoop() bool {
	return m.Statement.IsEmpty() && len(m.TagChanges) == 0
}

// AssociationStatements returns the bridge table statements for key, which is the
// generated key for inserts.
func (m *Mutation) AssociationStatements(key any) []sqlq.Fragment {
	var res []sqlq.Fragment
	for _, tc := range m.TagChanges {
		res = append(res, tc.Field.AssociationStatements(key, tc.Added, tc.Removed, m.dialect)...)
	}
	return res
}

// MutationInput is the input to PrepareMutation.
type MutationInput struct {
	// Prior is the current client model, nil for inserts.
	Prior    internal.Row
	Incoming internal.Row
	Mode     internal.RowMode
	UC       *internal.UsageContext
	Dialect  sqlq.Dialect
	// FallbackOwner is the owner assumed when the row has none.
	FallbackOwner int64
}

func unauthorized(op Operation, t *Table) error {
	return errors.WithStackDepth(errors.Mark(errors.Newf("not authorized to %s %s", strings.ToLower(string(op)), t.id), internal.ErrUnauthorized), 1)
}

// PrepareMutation validates, authorizes and builds the statement for a write. A model which fails
// validation returns a mutation whose OK is false and a nil error. Row authorization failures
// return an error marked internal.ErrUnauthorized. Changed columns the user may not write are stripped.
func (t *Table) PrepareMutation(in MutationInput) (*Mutation, error) {
	if in.Mode == internal.RowModeView {
		return nil, internal.ConfigErrorf("cannot mutate %s in view mode", t.id)
	}
	op := OpUpdate
	if in.Mode == internal.RowModeNew {
		op = OpInsert
	}
	diff := t.Diff(in.Prior, in.Incoming, in.Mode, in.UC)
	m := &Mutation{Table: t, Operation: op, Diff: diff, dialect: in.Dialect}
	if !diff.Success {
		return m, nil
	}
	var before internal.Row
	ownerRow := t.ClientToStore(diff.Model, in.Mode)
	if in.Mode == internal.RowModeUpdate {
		before = t.ClientToStore(in.Prior, in.Mode)
		ownerRow = before
	}
	ok, err := t.AuthorizeRow(in.Mode, ownerRow, in.UC, in.FallbackOwner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, unauthorized(op, t)
	}
	ctx := t.authContext(in.Mode, ownerRow, in.UC, in.FallbackOwner)
	after := diff.Model.Clone()
	var changes []Change
	for _, c := range diff.Changes {
		f := t.members[c.Member]
		if f != t.pk {
			allowed, err := f.Authorize(AuthorizeInput{Context: ctx, UC: in.UC, Row: before, Model: in.Incoming})
			if err != nil {
				return nil, err
			}
			if !allowed {
				m.Stripped = append(m.Stripped, c.Member)
				if in.Mode == internal.RowModeUpdate {
					after[f.StoreMember()] = in.Prior[f.StoreMember()]
					if f.Member() != f.StoreMember() {
						after[f.Member()] = in.Prior[f.Member()]
					}
				} else {
					delete(after, f.StoreMember())
					delete(after, f.Member())
				}
				continue
			}
		}
		changes = append(changes, c)
	}
	if len(m.Stripped) > 0 {
		internal.StrippedColumns.WithLabelValues(t.id).Add(float64(len(m.Stripped)))
	}
	store := t.ClientToStore(after, in.Mode)
	m.Before = before
	m.After = store
	if in.Mode == internal.RowModeUpdate {
		m.Key = normalizeKey(in.Prior[t.PKMember()])
	} else {
		m.Key = normalizeKey(store[t.PKMember()])
	}
	var cols []string
	var vals []any
	for _, c := range changes {
		f := t.members[c.Member]
		if tf, ok := f.(*TagsField); ok {
			var prior any
			if in.Mode == internal.RowModeUpdate {
				prior = in.Prior[tf.Member()]
			}
			added, removed := tf.AssociationChanges(prior, after[tf.Member()])
			if len(added) > 0 || len(removed) > 0 {
				m.TagChanges = append(m.TagChanges, TagChange{Field: tf, Added: added, Removed: removed})
			}
			continue
		}
		if !f.HasColumn() {
			continue
		}
		if f == t.pk && isNil(store[f.StoreMember()]) {
			continue
		}
		cols = append(cols, f.StoreMember())
		vals = append(vals, store[f.StoreMember()])
	}
	if in.Mode == internal.RowModeNew {
		m.Statement = t.insertStatement(in.Dialect, cols, vals)
	} else {
		m.Statement = t.updateStatement(in.Dialect, cols, vals, m.Key)
	}
	internal.QueryCompositions.WithLabelValues(t.id, strings.ToLower(string(op))).Inc()
	return m, nil
}

func (t *Table) insertStatement(d sqlq.Dialect, cols []string, vals []any) sqlq.Fragment {
	if len(cols) == 0 {
		return sqlq.Raw("INSERT INTO " + d.QuoteIdentifier(t.name) + " DEFAULT VALUES")
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	var b sqlq.Builder
	b.WriteString("INSERT INTO " + d.QuoteIdentifier(t.name) + " (" + strings.Join(quoted, ", ") + ") VALUES ")
	b.Write(sqlq.Expr("("+strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")+")", vals...))
	return b.Fragment()
}

func (t *Table) updateStatement(d sqlq.Dialect, cols []string, vals []any, key any) sqlq.Fragment {
	if len(cols) == 0 {
		return sqlq.Empty
	}
	sets := make([]sqlq.Fragment, 0, len(cols)+1)
	for i, c := range cols {
		sets = append(sets, sqlq.Expr(d.QuoteIdentifier(c)+" = ?", vals[i]))
	}
	if rev := t.specials[SpecialRevision]; rev != nil {
		col := d.QuoteIdentifier(rev.StoreMember())
		sets = append(sets, sqlq.Raw(fmt.Sprintf("%s = %s + 1", col, col)))
	}
	var b sqlq.Builder
	b.WriteString("UPDATE " + d.QuoteIdentifier(t.name) + " SET ")
	b.Write(sqlq.Join(", ", sets...))
	b.WriteString(" WHERE ").Write(sqlq.Expr(d.QuoteIdentifier(t.PKMember())+" = ?", key))
	return b.Fragment()
}

// PrepareDelete builds the delete of a row given its client model. Tables with a soft-delete
// flag set it instead of removing the row.
func (t *Table) PrepareDelete(row internal.Row, uc *internal.UsageContext, d sqlq.Dialect, fallbackOwner int64) (*Mutation, error) {
	store := t.ClientToStore(row, internal.RowModeUpdate)
	ok, err := t.AuthorizeRow(internal.RowModeUpdate, store, uc, fallbackOwner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, unauthorized(OpDelete, t)
	}
	ctx := auth.ResolveContext(internal.RowModeUpdate, auth.IsOwner(uc.ActingUserID(), t.OwnerID(store, fallbackOwner)))
	key := normalizeKey(row[t.PKMember()])
	if key == nil {
		return nil, errors.Wrapf(internal.ErrNotFound, "%s row has no key", t.id)
	}
	m := &Mutation{Table: t, Operation: OpDelete, Key: key, Before: store, dialect: d}
	pk := sqlq.Expr(d.QuoteIdentifier(t.PKMember())+" = ?", key)
	if del := t.specials[SpecialIsDeleted]; del != nil {
		allowed, err := del.Authorize(AuthorizeInput{Context: ctx, UC: uc, Row: store, Model: row})
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, unauthorized(OpDelete, t)
		}
		after := store.Clone()
		after[del.StoreMember()] = true
		m.After = after
		var b sqlq.Builder
		b.WriteString("UPDATE " + d.QuoteIdentifier(t.name) + " SET ").Write(sqlq.Expr(d.QuoteIdentifier(del.StoreMember())+" = ?", true))
		if f := t.specials[SpecialUpdatedAt]; f != nil {
			b.WriteString(", ").Write(sqlq.Expr(d.QuoteIdentifier(f.StoreMember())+" = ?", uc.Clock()))
		}
		b.WriteString(" WHERE ").Write(pk)
		m.Statement = b.Fragment()
	} else {
		var b sqlq.Builder
		b.WriteString("DELETE FROM " + d.QuoteIdentifier(t.name) + " WHERE ").Write(pk)
		m.Statement = b.Fragment()
	}
	internal.QueryCompositions.WithLabelValues(t.id, "delete").Inc()
	return m, nil
}
