package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

// Scope returns the rendering scope of the table's own alias.
func (t *Table) Scope(uc *internal.UsageContext, d sqlq.Dialect) Scope {
	return Scope{Dialect: d, Alias: t.alias, UC: uc}
}

func (t *Table) from(s Scope) string {
	return s.Ident(t.name) + " AS " + s.Ident(s.Alias)
}

// overallWhere ANDs the clauses every query of the table carries, such as soft-delete and visibility.
func (t *Table) overallWhere(filter *Filter, s Scope) sqlq.Fragment {
	parts := make([]sqlq.Fragment, 0, 2)
	for _, f := range t.fields {
		parts = append(parts, f.OverallWhereClause(filter, s))
	}
	return sqlq.And(parts...)
}

// QuickFilterWhereClause matches the free-text query. Whole-query matches (such as "#123" against the
// key) are OR'd with the token match, in which every token must match at least one field.
func (t *Table) QuickFilterWhereClause(query string, s Scope) sqlq.Fragment {
	query = strings.TrimSpace(query)
	if query == "" {
		return sqlq.Empty
	}
	var whole []sqlq.Fragment
	for _, f := range t.fields {
		whole = append(whole, f.QuickFilterWhereClause(query, s))
	}
	tokens := strings.Fields(query)
	perToken := make([]sqlq.Fragment, 0, len(tokens))
	for _, token := range tokens {
		var matches []sqlq.Fragment
		for _, f := range t.fields {
			matches = append(matches, f.QuickFilterFragmentForToken(token, tokens, s))
		}
		m := sqlq.Or(matches...)
		if m.IsEmpty() {
			m = sqlq.False
		}
		perToken = append(perToken, m)
	}
	return sqlq.Or(append(whole, sqlq.And(perToken...))...)
}

func sortedMembers[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WhereClause assembles the full filter: quick filter, discrete criteria, parameters and the overall
// clauses. Filters which cannot be applied become problems on the fragment. A criterion whose behavior
// the field cannot serve returns a configuration error.
func (t *Table) WhereClause(filter *Filter, s Scope) (sqlq.Fragment, error) {
	if filter == nil {
		filter = &Filter{}
	}
	parts := []sqlq.Fragment{t.QuickFilterWhereClause(filter.Query, s)}
	for _, member := range sortedMembers(filter.Criteria) {
		f := t.Field(member)
		if f == nil {
			parts = append(parts, sqlq.Problem(fmt.Sprintf("unknown filter '%s'", member)))
			continue
		}
		frag, err := f.DiscreteCriterionFragment(filter.Criteria[member], s)
		if err != nil {
			return sqlq.Empty, err
		}
		parts = append(parts, frag)
	}
	for _, member := range sortedMembers(filter.Params) {
		if t.Field(member) == nil {
			parts = append(parts, sqlq.Problem(fmt.Sprintf("unknown filter '%s'", member)))
		}
	}
	for _, f := range t.fields {
		frag, err := f.CustomFilterWhereClause(filter, s)
		if err != nil {
			return sqlq.Empty, err
		}
		parts = append(parts, frag)
	}
	parts = append(parts, t.overallWhere(filter, s))
	return sqlq.And(parts...), nil
}

// OrderBy returns the ordering expressions for sorts, falling back to the default sort. The key is
// always the final tie-break so that paging is stable.
func (t *Table) OrderBy(sorts []Sort, s Scope) []string {
	if len(sorts) == 0 {
		sorts = t.defaultSort
	}
	var res []string
	pkSorted := false
	for _, srt := range sorts {
		f := t.Field(srt.Member)
		if f == nil {
			continue
		}
		res = append(res, f.SortFragment(srt.Direction, s)...)
		if f == t.pk {
			pkSorted = true
		}
	}
	if !pkSorted {
		res = append(res, s.Column(t.pk.StoreMember())+" ASC")
	}
	return res
}

func (t *Table) selectColumns(s Scope) string {
	cols := t.Columns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = s.Column(c)
	}
	return strings.Join(quoted, ", ")
}

// SelectQuery composes the filtered, sorted and paged select of the table's columns.
func (t *Table) SelectQuery(filter *Filter, uc *internal.UsageContext, d sqlq.Dialect) (sqlq.Fragment, error) {
	if filter == nil {
		filter = &Filter{}
	}
	s := t.Scope(uc, d)
	where, err := t.WhereClause(filter, s)
	if err != nil {
		return sqlq.Empty, err
	}
	var b sqlq.Builder
	b.WriteString("SELECT " + t.selectColumns(s) + " FROM " + t.from(s))
	if !where.IsEmpty() {
		b.WriteString(" WHERE ").Write(where)
	}
	b.WriteString(" ORDER BY " + strings.Join(t.OrderBy(filter.Sort, s), ", "))
	if filter.Limit > 0 {
		b.WriteString(" " + d.Limit(filter.Limit, filter.Offset))
	}
	internal.QueryCompositions.WithLabelValues(t.id, "select").Inc()
	return b.Fragment(), nil
}

// CountQuery composes the count of rows matching the filter, ignoring paging.
func (t *Table) CountQuery(filter *Filter, uc *internal.UsageContext, d sqlq.Dialect) (sqlq.Fragment, error) {
	s := t.Scope(uc, d)
	where, err := t.WhereClause(filter, s)
	if err != nil {
		return sqlq.Empty, err
	}
	var b sqlq.Builder
	b.WriteString("SELECT COUNT(*) FROM " + t.from(s))
	if !where.IsEmpty() {
		b.WriteString(" WHERE ").Write(where)
	}
	internal.QueryCompositions.WithLabelValues(t.id, "count").Inc()
	return b.Fragment(), nil
}

// SelectByKeys selects the visible rows with the given keys. It is used to resolve relations.
func (t *Table) SelectByKeys(keys []any, uc *internal.UsageContext, d sqlq.Dialect) sqlq.Fragment {
	s := t.Scope(uc, d)
	var b sqlq.Builder
	b.WriteString("SELECT " + t.selectColumns(s) + " FROM " + t.from(s) + " WHERE ")
	b.Write(sqlq.And(sqlq.In(s.Column(t.pk.StoreMember()), keys), t.overallWhere(&Filter{}, s)))
	internal.QueryCompositions.WithLabelValues(t.id, "keys").Inc()
	return b.Fragment()
}

// FacetQueries returns one query per faceted field, each bucketing the rows matching filter.
// The filtered rows are a common table expression so every facet sees the same set.
func (t *Table) FacetQueries(filter *Filter, uc *internal.UsageContext, d sqlq.Dialect) ([]*FacetQuery, error) {
	s := t.Scope(uc, d)
	where, err := t.WhereClause(filter, s)
	if err != nil {
		return nil, err
	}
	var cte sqlq.Builder
	cte.WriteString("WITH " + FacetSource + " AS (SELECT " + s.Ident(s.Alias) + ".* FROM " + t.from(s))
	if !where.IsEmpty() {
		cte.WriteString(" WHERE ").Write(where)
	}
	cte.WriteString(") ")
	prefix := cte.Fragment()
	in := FacetInput{Scope: s.WithAlias(FacetAlias)}
	var res []*FacetQuery
	for _, f := range t.fields {
		fq := f.FacetQuery(in)
		if fq == nil {
			continue
		}
		var b sqlq.Builder
		b.Write(prefix).Write(fq.Query)
		fq.Query = b.Fragment()
		res = append(res, fq)
		internal.QueryCompositions.WithLabelValues(t.id, "facet").Inc()
	}
	return res, nil
}

// Include returns the nested load of a relation member with visibility and soft-delete filtering pushed down.
func (t *Table) Include(member string, uc *internal.UsageContext, d sqlq.Dialect) (*Include, error) {
	f := t.Field(member)
	var foreign *Table
	switch rf := f.(type) {
	case *ForeignField:
		foreign = rf.ForeignTable()
	case *TagsField:
		foreign = rf.ForeignTable()
	default:
		return nil, internal.ConfigErrorf("%s.%s is not a relation", t.id, member)
	}
	if foreign == nil {
		return nil, internal.ConfigErrorf("%s.%s is not resolved", t.id, member)
	}
	ruc := uc.WithRelation(member)
	include := &Include{
		Member: member,
		Table:  foreign,
		Scope:  Scope{Dialect: d, Alias: foreign.alias, UC: ruc},
	}
	f.ApplyIncludeFiltering(include, ruc)
	return include, nil
}

// Query composes the select of an include for the given keys.
func (in *Include) Query(keys []any) sqlq.Fragment {
	s := in.Scope
	var b sqlq.Builder
	b.WriteString("SELECT " + in.Table.selectColumns(s) + " FROM " + in.Table.from(s) + " WHERE ")
	parts := append([]sqlq.Fragment{sqlq.In(s.Column(in.Table.pk.StoreMember()), keys)}, in.Where...)
	b.Write(sqlq.And(parts...))
	return b.Fragment()
}
