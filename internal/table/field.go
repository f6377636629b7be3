package table

import (
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

// Field is one column's validation, mapping, authorization and query-fragment behavior.
// A Field belongs to exactly one Table.
type Field interface {
	// Kind identifies the implementation.
	Kind() Kind

	// Member is the client-facing key.
	Member() string

	// StoreMember is the key holding the stored value: the fk member when set, otherwise the member.
	StoreMember() string

	// HasColumn is false for fields without a column of their own in the table.
	HasColumn() bool

	Label() string
	Special() Special
	Nullable() bool
	AuthSpec() auth.Spec

	// ConnectToTable binds the field to its owner. It is called once, at table construction.
	ConnectToTable(t *Table) error

	// Table returns the owner.
	Table() *Table

	// ValidateAndParse extracts, coerces and validates this field's value from row without mutating it.
	ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result

	// ApplyToNewRow populates the default for a freshly created row.
	ApplyToNewRow(row internal.Row, uc *internal.UsageContext)

	// IsEqual is the kind-specific equality of two values.
	IsEqual(a, b any) bool

	// StoreToClient maps the stored representation into the client model.
	StoreToClient(store, client internal.Row, uc *internal.UsageContext)

	// ClientToStore maps the client representation into the store row.
	ClientToStore(client, store internal.Row, mode internal.RowMode)

	// QuickFilterWhereClause matches the whole quick-filter query, or returns sqlq.Empty to opt out.
	QuickFilterWhereClause(query string, s Scope) sqlq.Fragment

	// CustomFilterWhereClause applies the filter's parameters for this field, or returns sqlq.Empty.
	CustomFilterWhereClause(filter *Filter, s Scope) (sqlq.Fragment, error)

	// OverallWhereClause is applied to every query of the table, or sqlq.Empty.
	OverallWhereClause(filter *Filter, s Scope) sqlq.Fragment

	// QuickFilterFragmentForToken matches one search token, or returns sqlq.Empty to opt out.
	QuickFilterFragmentForToken(token string, tokens []string, s Scope) sqlq.Fragment

	// DiscreteCriterionFragment returns the filter for a criterion, sqlq.Empty to opt out, or a
	// configuration error when the behavior is impossible for this kind.
	DiscreteCriterionFragment(c Criterion, s Scope) (sqlq.Fragment, error)

	// SupportsBehavior reports whether DiscreteCriterionFragment can serve b.
	SupportsBehavior(b Behavior) bool

	// FacetQuery returns the bucket query over the filtered set, or nil to opt out.
	FacetQuery(in FacetInput) *FacetQuery

	// SortFragment returns ordering expressions, most significant first, or nil to opt out.
	SortFragment(dir Direction, s Scope) []string

	// ApplyIncludeFiltering pushes visibility and soft-delete filtering into a nested include.
	ApplyIncludeFiltering(include *Include, uc *internal.UsageContext)

	// Authorize checks the field's authorization spec.
	Authorize(in AuthorizeInput) (bool, error)
}

// base implements the opt-out defaults shared by every kind.
type base struct {
	opts  Options
	table *Table
}

func newBase(opts Options) base {
	if opts.Label == "" {
		opts.Label = opts.Member
	}
	return base{opts: opts}
}

func (b *base) Member() string      { return b.opts.Member }
func (b *base) Label() string       { return b.opts.Label }
func (b *base) Special() Special    { return b.opts.Special }
func (b *base) Nullable() bool      { return b.opts.Nullable }
func (b *base) AuthSpec() auth.Spec { return b.opts.Auth }
func (b *base) HasColumn() bool     { return true }
func (b *base) Table() *Table       { return b.table }

func (b *base) StoreMember() string {
	if b.opts.FKMember != "" {
		return b.opts.FKMember
	}
	return b.opts.Member
}

func (b *base) ConnectToTable(t *Table) error {
	if b.table != nil && b.table != t {
		return internal.ConfigErrorf("field %s already belongs to table %s", b.opts.Member, b.table.id)
	}
	b.table = t
	return nil
}

// raw returns the member's value and whether it is present.
func (b *base) raw(row internal.Row) (any, bool) {
	val, ok := row[b.opts.Member]
	return val, ok
}

// nullResult handles a present nil value.
func (b *base) nullResult() Result {
	if b.opts.Nullable {
		return Success(internal.Row{b.opts.Member: nil})
	}
	return Failure(nil, "field is required")
}

func (b *base) ApplyToNewRow(row internal.Row, uc *internal.UsageContext) {
	if b.opts.Default != nil {
		row[b.opts.Member] = b.opts.Default
	} else if b.opts.Nullable {
		row[b.opts.Member] = nil
	}
}

func (b *base) StoreToClient(store, client internal.Row, uc *internal.UsageContext) {
	if val, ok := store[b.StoreMember()]; ok {
		client[b.StoreMember()] = val
	}
}

func (b *base) ClientToStore(client, store internal.Row, mode internal.RowMode) {
	if val, ok := client[b.StoreMember()]; ok {
		store[b.StoreMember()] = val
	}
}

func (b *base) QuickFilterWhereClause(query string, s Scope) sqlq.Fragment {
	return sqlq.Empty
}

func (b *base) CustomFilterWhereClause(filter *Filter, s Scope) (sqlq.Fragment, error) {
	return sqlq.Empty, nil
}

func (b *base) OverallWhereClause(filter *Filter, s Scope) sqlq.Fragment {
	return sqlq.Empty
}

func (b *base) QuickFilterFragmentForToken(token string, tokens []string, s Scope) sqlq.Fragment {
	return sqlq.Empty
}

func (b *base) DiscreteCriterionFragment(c Criterion, s Scope) (sqlq.Fragment, error) {
	return sqlq.Empty, nil
}

func (b *base) SupportsBehavior(behavior Behavior) bool {
	return false
}

func (b *base) FacetQuery(in FacetInput) *FacetQuery {
	return nil
}

func (b *base) SortFragment(dir Direction, s Scope) []string {
	return nil
}

func (b *base) ApplyIncludeFiltering(include *Include, uc *internal.UsageContext) {
}

func (b *base) Authorize(in AuthorizeInput) (bool, error) {
	return auth.Check(b.opts.Auth, auth.Request{
		Context: in.Context,
		UC:      in.UC,
		Row:     in.Row,
		Model:   in.Model,
		Member:  b.opts.Member,
		Exempt:  b.opts.Special.AuthExempt(),
	})
}

// nullsLast orders nulls after values in either direction.
func nullsLast(col string, dir Direction) []string {
	return []string{
		"CASE WHEN " + col + " IS NULL THEN 1 ELSE 0 END",
		col + " " + dir.sql(),
	}
}

// paramFragment applies equality and range parameters to a column.
func paramFragment(col string, p Param, coerce func(any) (any, bool)) sqlq.Fragment {
	var parts []sqlq.Fragment
	if p.Equals != nil {
		if v, ok := coerce(p.Equals); ok {
			parts = append(parts, sqlq.Expr(col+" = ?", v))
		} else {
			parts = append(parts, sqlq.Problem("invalid filter value"))
		}
	}
	if p.Min != nil {
		if v, ok := coerce(p.Min); ok {
			parts = append(parts, sqlq.Expr(col+" >= ?", v))
		} else {
			parts = append(parts, sqlq.Problem("invalid filter value"))
		}
	}
	if p.Max != nil {
		if v, ok := coerce(p.Max); ok {
			parts = append(parts, sqlq.Expr(col+" <= ?", v))
		} else {
			parts = append(parts, sqlq.Problem("invalid filter value"))
		}
	}
	return sqlq.And(parts...)
}
