package table

import (
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

// BoolField is a boolean column. With the isDeleted special it is the table's soft-delete flag.
type BoolField struct {
	base
}

var _ Field = (*BoolField)(nil)

func NewBoolField(opts Options) *BoolField {
	return &BoolField{base: newBase(opts)}
}

func (f *BoolField) Kind() Kind { return KindBool }

func (f *BoolField) defaultValue() bool {
	if v, ok := toBool(f.opts.Default); ok {
		return v
	}
	return false
}

func (f *BoolField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	val, ok := f.raw(row)
	if !ok {
		return Undefined()
	}
	if isNil(val) {
		return f.nullResult()
	}
	v, ok := toBool(val)
	if !ok {
		return Failure(val, "must be a boolean")
	}
	return Success(internal.Row{f.opts.Member: v})
}

func (f *BoolField) ApplyToNewRow(row internal.Row, uc *internal.UsageContext) {
	if f.opts.Nullable && f.opts.Default == nil {
		row[f.opts.Member] = nil
		return
	}
	row[f.opts.Member] = f.defaultValue()
}

func (f *BoolField) IsEqual(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	x, xok := toBool(a)
	y, yok := toBool(b)
	return xok && yok && x == y
}

// StoreToClient coalesces null and integer store values.
func (f *BoolField) StoreToClient(store, client internal.Row, uc *internal.UsageContext) {
	val, ok := store[f.opts.Member]
	if !ok {
		return
	}
	if v, ok := toBool(val); ok {
		client[f.opts.Member] = v
	} else if f.opts.Nullable {
		client[f.opts.Member] = nil
	} else {
		client[f.opts.Member] = f.defaultValue()
	}
}

func (f *BoolField) CustomFilterWhereClause(filter *Filter, s Scope) (sqlq.Fragment, error) {
	if p, ok := filter.Params[f.opts.Member]; ok && p.Equals != nil {
		v, ok := toBool(p.Equals)
		if !ok {
			return sqlq.Problem("invalid filter value"), nil
		}
		return f.matches(s.Column(f.opts.Member), v), nil
	}
	return sqlq.Empty, nil
}

// matches treats a null column as the default value.
func (f *BoolField) matches(col string, v bool) sqlq.Fragment {
	if v == f.defaultValue() {
		return sqlq.Or(sqlq.IsNull(col), sqlq.Expr(col+" = ?", v))
	}
	return sqlq.Expr(col+" = ?", v)
}

// OverallWhereClause hides soft-deleted rows unless the filter asks for them.
func (f *BoolField) OverallWhereClause(filter *Filter, s Scope) sqlq.Fragment {
	if f.opts.Special != SpecialIsDeleted || (filter != nil && filter.IncludeDeleted) {
		return sqlq.Empty
	}
	return sqlq.Or(sqlq.IsNull(s.Column(f.opts.Member)), sqlq.Expr(s.Column(f.opts.Member)+" = ?", false))
}

func (f *BoolField) SortFragment(dir Direction, s Scope) []string {
	return nullsLast(s.Column(f.opts.Member), dir)
}
