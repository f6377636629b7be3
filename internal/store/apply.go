package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
	"github.com/shopmonkeyus/tablekit/internal/table"
)

// ErrInvalid is returned when applying a mutation which failed validation.
var ErrInvalid = errors.New("invalid mutation")

// ApplyResult describes an executed mutation.
type ApplyResult struct {
	// Key is the primary key of the row, generated by the store for inserts without one.
	Key          any
	RowsAffected int64
}

// Apply executes a prepared mutation and its association statements in one transaction.
// Updates and deletes which touch no row return an error marked internal.ErrNotFound.
func (e *Executor) Apply(ctx context.Context, m *table.Mutation) (*ApplyResult, error) {
	if !m.OK() {
		var msgs []string
		for member, msg := range m.Diff.Errors {
			msgs = append(msgs, member+": "+msg)
		}
		return nil, errors.Wrapf(ErrInvalid, "%s: %s", m.Table.ID(), strings.Join(msgs, ", "))
	}
	res := &ApplyResult{Key: m.Key}
	if m.IsNoop() {
		e.logger.Trace("nothing to apply to %s %v", m.Table.ID(), m.Key)
		return res, nil
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to start transaction: %w", err)
	}
	var success bool
	defer func() {
		if !success {
			tx.Rollback()
		}
	}()
	if !m.Statement.IsEmpty() {
		if m.Operation == table.OpInsert && m.Key == nil && e.dialect.Name() == "postgres" {
			// lib/pq has no LastInsertId
			var b sqlq.Builder
			b.Write(m.Statement).WriteString(" RETURNING " + e.dialect.QuoteIdentifier(m.Table.PKMember()))
			rows, err := e.rows(ctx, tx, b.Fragment())
			if err != nil {
				return nil, err
			}
			if len(rows) == 1 {
				res.Key = rows[0][m.Table.PKMember()]
			}
			res.RowsAffected = int64(len(rows))
		} else {
			r, err := e.exec(ctx, tx, m.Statement)
			if err != nil {
				return nil, err
			}
			if res.RowsAffected, err = r.RowsAffected(); err != nil {
				return nil, fmt.Errorf("unable to read rows affected: %w", err)
			}
			if m.Operation == table.OpInsert && m.Key == nil {
				id, err := r.LastInsertId()
				if err != nil {
					return nil, fmt.Errorf("unable to read generated key of %s: %w", m.Table.ID(), err)
				}
				res.Key = id
			}
		}
		if m.Operation != table.OpInsert && res.RowsAffected == 0 {
			return nil, errors.Wrapf(internal.ErrNotFound, "%s %v", m.Table.ID(), m.Key)
		}
	}
	for _, stmt := range m.AssociationStatements(res.Key) {
		if _, err := e.exec(ctx, tx, stmt); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("unable to commit transaction: %w", err)
	}
	success = true
	e.logger.Debug("applied %s to %s %v", m.Operation, m.Table.ID(), res.Key)
	return res, nil
}
