package table

import (
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

// IntField is an integer column.
type IntField struct {
	base
	searchable bool
}

var _ Field = (*IntField)(nil)

// IntOptions configure an IntField.
type IntOptions struct {
	Options
	// Searchable matches numeric quick-filter tokens exactly.
	Searchable bool
}

func NewIntField(opts IntOptions) *IntField {
	return &IntField{base: newBase(opts.Options), searchable: opts.Searchable}
}

func (f *IntField) Kind() Kind { return KindInt }

func (f *IntField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	val, ok := f.raw(row)
	if !ok {
		return Undefined()
	}
	if isNil(val) {
		return f.nullResult()
	}
	i, numeric, integral := toInt64(val)
	if !numeric {
		return Failure(val, "must be a number")
	}
	if !integral {
		return Failure(val, "must be an integer")
	}
	return Success(internal.Row{f.opts.Member: i})
}

func (f *IntField) ApplyToNewRow(row internal.Row, uc *internal.UsageContext) {
	if f.opts.Default == nil && !f.opts.Nullable {
		row[f.opts.Member] = int64(0)
		return
	}
	f.base.ApplyToNewRow(row, uc)
}

func (f *IntField) IsEqual(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	x, xok, _ := toInt64(a)
	y, yok, _ := toInt64(b)
	return xok && yok && x == y
}

func coerceInt(v any) (any, bool) {
	i, ok, integral := toInt64(v)
	return i, ok && integral
}

func (f *IntField) CustomFilterWhereClause(filter *Filter, s Scope) (sqlq.Fragment, error) {
	if p, ok := filter.Params[f.opts.Member]; ok {
		return paramFragment(s.Column(f.opts.Member), p, coerceInt), nil
	}
	return sqlq.Empty, nil
}

func (f *IntField) QuickFilterFragmentForToken(token string, tokens []string, s Scope) sqlq.Fragment {
	if !f.searchable {
		return sqlq.Empty
	}
	if i, ok := coerceInt(token); ok {
		return sqlq.Expr(s.Column(f.opts.Member)+" = ?", i)
	}
	return sqlq.Empty
}

func (f *IntField) SortFragment(dir Direction, s Scope) []string {
	return nullsLast(s.Column(f.opts.Member), dir)
}
