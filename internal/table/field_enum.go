package table

import (
	"fmt"
	"strings"

	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

// EnumValue is one option of an EnumField.
type EnumValue struct {
	Key   string `json:"key" mapstructure:"key"`
	Label string `json:"label,omitempty" mapstructure:"label"`
	Color string `json:"color,omitempty" mapstructure:"color"`
	Icon  string `json:"icon,omitempty" mapstructure:"icon"`
}

// EnumOptions configure an EnumField.
type EnumOptions struct {
	Options
	Values []EnumValue
}

// EnumField is a string column restricted to a fixed option set. Matching is case-sensitive after trimming.
type EnumField struct {
	base
	values []EnumValue
	index  map[string]int
}

var _ Field = (*EnumField)(nil)

func NewEnumField(opts EnumOptions) *EnumField {
	f := &EnumField{base: newBase(opts.Options), index: make(map[string]int)}
	for _, v := range opts.Values {
		if v.Label == "" {
			v.Label = v.Key
		}
		if _, dup := f.index[v.Key]; dup {
			continue
		}
		f.index[v.Key] = len(f.values)
		f.values = append(f.values, v)
	}
	return f
}

func (f *EnumField) Kind() Kind { return KindEnum }

// Values returns the options in display order.
func (f *EnumField) Values() []EnumValue { return f.values }

// Value returns the option for key.
func (f *EnumField) Value(key string) (EnumValue, bool) {
	if i, ok := f.index[key]; ok {
		return f.values[i], true
	}
	return EnumValue{}, false
}

func (f *EnumField) ConnectToTable(t *Table) error {
	if len(f.values) == 0 {
		return internal.ConfigErrorf("enum field %s has no options", f.opts.Member)
	}
	if f.opts.Default != nil {
		if _, ok := f.Value(fmt.Sprint(f.opts.Default)); !ok {
			return internal.ConfigErrorf("enum field %s has a default which is not an option", f.opts.Member)
		}
	}
	return f.base.ConnectToTable(t)
}

func (f *EnumField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	val, ok := f.raw(row)
	if !ok {
		return Undefined()
	}
	if isNil(val) {
		return f.nullResult()
	}
	str, ok := val.(string)
	if !ok {
		return Failure(val, fmt.Sprintf("unrecognized option '%v'", val))
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return f.nullResult()
	}
	if _, ok := f.index[str]; !ok {
		return Failure(val, fmt.Sprintf("unrecognized option '%s'", str))
	}
	return Success(internal.Row{f.opts.Member: str})
}

func (f *EnumField) IsEqual(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	x, xok := a.(string)
	y, yok := b.(string)
	return xok && yok && strings.TrimSpace(x) == strings.TrimSpace(y)
}

func (f *EnumField) CustomFilterWhereClause(filter *Filter, s Scope) (sqlq.Fragment, error) {
	if p, ok := filter.Params[f.opts.Member]; ok && p.Equals != nil {
		return sqlq.Expr(s.Column(f.opts.Member)+" = ?", fmt.Sprint(p.Equals)), nil
	}
	return sqlq.Empty, nil
}

// QuickFilterFragmentForToken matches the options whose label contains the token.
func (f *EnumField) QuickFilterFragmentForToken(token string, tokens []string, s Scope) sqlq.Fragment {
	needle := strings.ToLower(token)
	var keys []any
	for _, v := range f.values {
		if strings.Contains(strings.ToLower(v.Label), needle) {
			keys = append(keys, v.Key)
		}
	}
	if len(keys) == 0 {
		return sqlq.Empty
	}
	return sqlq.In(s.Column(f.opts.Member), keys)
}

func (f *EnumField) SupportsBehavior(b Behavior) bool {
	return singleValuedSupports(b)
}

func (f *EnumField) DiscreteCriterionFragment(c Criterion, s Scope) (sqlq.Fragment, error) {
	return singleValuedCriterion(f.opts.Member, s.Column(f.opts.Member), c, func(v any) any { return fmt.Sprint(v) })
}

func (f *EnumField) FacetQuery(in FacetInput) *FacetQuery {
	return &FacetQuery{
		Member: f.opts.Member,
		Query:  scalarFacetQuery(in.Scope, in.Scope.Column(f.opts.Member), "", ""),
		Transform: func(rows []FacetRow) []Facet {
			facets := make([]Facet, 0, len(rows))
			for _, r := range rows {
				facet := Facet{Key: r.Key, Count: r.Count}
				if isNil(r.Key) {
					facet.Label = NoneLabel
					facet.Position = sortFirst
				} else if i, ok := f.index[labelString(r.Key)]; ok {
					v := f.values[i]
					facet.Key = v.Key
					facet.Label = v.Label
					facet.Color = v.Color
					facet.Icon = v.Icon
					facet.Position = i
				} else {
					facet.Label = labelString(r.Key)
					facet.Tooltip = "unrecognized option"
					facet.Position = len(f.values)
				}
				facets = append(facets, facet)
			}
			return finishFacets(facets)
		},
	}
}

// SortFragment orders by option position. Option keys are configuration, so they are inlined.
func (f *EnumField) SortFragment(dir Direction, s Scope) []string {
	col := s.Column(f.opts.Member)
	var sb strings.Builder
	sb.WriteString("CASE " + col)
	for i, v := range f.values {
		fmt.Fprintf(&sb, " WHEN %s THEN %d", s.Dialect.QuoteValue(v.Key), i)
	}
	fmt.Fprintf(&sb, " ELSE %d END", len(f.values))
	return []string{"CASE WHEN " + col + " IS NULL THEN 1 ELSE 0 END", sb.String() + " " + dir.sql()}
}
