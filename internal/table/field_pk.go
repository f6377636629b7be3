package table

import (
	"strings"

	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

// PKField is the primary key. Keys are plumbing rather than content: the field never fails
// validation and is never stripped by column authorization.
type PKField struct {
	base
}

var _ Field = (*PKField)(nil)

// NewPKField returns a primary key field. Without an auth spec the key is public.
func NewPKField(opts Options) *PKField {
	if opts.Member == "" {
		opts.Member = "id"
	}
	opts.Special = SpecialPK
	if opts.Auth.IsZero() {
		opts.Auth = auth.Uniform(auth.Public)
	}
	return &PKField{base: newBase(opts)}
}

func (f *PKField) Kind() Kind { return KindPK }

func (f *PKField) ConnectToTable(t *Table) error {
	if err := f.base.ConnectToTable(t); err != nil {
		return err
	}
	return t.setPK(f)
}

func (f *PKField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	val, ok := f.raw(row)
	if !ok || isNil(val) {
		return Undefined()
	}
	if i, numeric, integral := toInt64(val); numeric && integral {
		return Success(internal.Row{f.opts.Member: i})
	}
	return Success(internal.Row{f.opts.Member: val})
}

func (f *PKField) IsEqual(a, b any) bool {
	return keysEqual(a, b)
}

// QuickFilterWhereClause matches "123" or "#123" against the key.
func (f *PKField) QuickFilterWhereClause(query string, s Scope) sqlq.Fragment {
	q := strings.TrimPrefix(strings.TrimSpace(query), "#")
	if i, numeric, integral := toInt64(q); numeric && integral {
		return sqlq.Expr(s.Column(f.opts.Member)+" = ?", i)
	}
	return sqlq.Empty
}

func (f *PKField) CustomFilterWhereClause(filter *Filter, s Scope) (sqlq.Fragment, error) {
	if p, ok := filter.Params[f.opts.Member]; ok {
		return paramFragment(s.Column(f.opts.Member), p, func(v any) (any, bool) { return normalizeKey(v), !isNil(v) }), nil
	}
	return sqlq.Empty, nil
}

func (f *PKField) SortFragment(dir Direction, s Scope) []string {
	return []string{s.Column(f.opts.Member) + " " + dir.sql()}
}
