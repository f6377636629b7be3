package table

import (
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

// DateTimeField is a timestamp column accepting time values or ISO-like strings.
type DateTimeField struct {
	base
}

var _ Field = (*DateTimeField)(nil)

func NewDateTimeField(opts Options) *DateTimeField {
	return &DateTimeField{base: newBase(opts)}
}

func (f *DateTimeField) Kind() Kind { return KindDateTime }

func (f *DateTimeField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	val, ok := f.raw(row)
	if !ok {
		return Undefined()
	}
	if isNil(val) {
		return f.nullResult()
	}
	if str, ok := val.(string); ok && str == "" {
		return f.nullResult()
	}
	t, ok := toTime(val)
	if !ok {
		return Failure(val, "invalid date")
	}
	return Success(internal.Row{f.opts.Member: t})
}

func (f *DateTimeField) IsEqual(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	x, xok := toTime(a)
	y, yok := toTime(b)
	return xok && yok && x.Equal(y)
}

func coerceTime(v any) (any, bool) {
	t, ok := toTime(v)
	return t, ok
}

func (f *DateTimeField) CustomFilterWhereClause(filter *Filter, s Scope) (sqlq.Fragment, error) {
	if p, ok := filter.Params[f.opts.Member]; ok {
		return paramFragment(s.Column(f.opts.Member), p, coerceTime), nil
	}
	return sqlq.Empty, nil
}

func (f *DateTimeField) SortFragment(dir Direction, s Scope) []string {
	return nullsLast(s.Column(f.opts.Member), dir)
}
