package table

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

const (
	// FacetSource is the name of the common table expression holding the filtered rows.
	FacetSource = "filtered"
	// FacetAlias is the alias facet queries give the filtered rows.
	FacetAlias = "f"

	FacetKeyColumn   = "facet_key"
	FacetLabelColumn = "facet_label"
	FacetCountColumn = "facet_count"

	// NoneLabel labels the empty bucket.
	NoneLabel = "(none)"
)

// sentinel sort positions outside normal value ordering
const (
	sortFirst = math.MinInt32
	sortLast  = math.MaxInt32
)

// FacetInput is what a field needs to build its facet query.
type FacetInput struct {
	Scope Scope
}

// FacetRow is one raw bucket returned by the store.
type FacetRow struct {
	Key   any
	Label any
	Count int64
}

// Facet is a display-ready bucket.
type Facet struct {
	Key     any    `json:"key"`
	Label   string `json:"label"`
	Color   string `json:"color,omitempty"`
	Icon    string `json:"icon,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
	Count   int64  `json:"count"`
	// Position is the domain sort position. Buckets with equal positions sort by label.
	Position int `json:"-"`
}

// FacetQuery buckets the filtered rows by one field.
type FacetQuery struct {
	Member    string
	Query     sqlq.Fragment
	Transform func(rows []FacetRow) []Facet
}

func facetFrom(s Scope) string {
	return FacetSource + " AS " + s.Ident(s.Alias)
}

func facetColumns(s Scope, key, label string) string {
	return key + " AS " + s.Ident(FacetKeyColumn) + ", " + label + " AS " + s.Ident(FacetLabelColumn) + ", COUNT(*) AS " + s.Ident(FacetCountColumn)
}

// scalarFacetQuery unions the empty bucket with one bucket per distinct value of keyExpr.
// labelExpr is aggregated with MAX and may reference joined tables, or be empty.
func scalarFacetQuery(s Scope, keyExpr, labelExpr, joins string) sqlq.Fragment {
	return facetUnion(s, keyExpr, keyExpr+" IS NULL", keyExpr+" IS NOT NULL", labelExpr, joins)
}

// textFacetQuery is scalarFacetQuery for text columns; blank strings count as empty.
func textFacetQuery(s Scope, keyExpr string) sqlq.Fragment {
	return facetUnion(s, keyExpr,
		"("+keyExpr+" IS NULL OR "+keyExpr+" = '')",
		keyExpr+" IS NOT NULL AND "+keyExpr+" <> ''",
		"", "")
}

func facetUnion(s Scope, keyExpr, emptyCond, valueCond, labelExpr, joins string) sqlq.Fragment {
	label := "NULL"
	if labelExpr != "" {
		label = "MAX(" + labelExpr + ")"
	}
	var b sqlq.Builder
	b.WriteString("SELECT ").WriteString(facetColumns(s, "NULL", "NULL"))
	b.WriteString(" FROM ").WriteString(facetFrom(s))
	b.WriteString(" WHERE ").WriteString(emptyCond)
	b.WriteString(" UNION ALL ")
	b.WriteString("SELECT ").WriteString(facetColumns(s, keyExpr, label))
	b.WriteString(" FROM ").WriteString(facetFrom(s))
	if joins != "" {
		b.WriteString(" ").WriteString(joins)
	}
	b.WriteString(" WHERE ").WriteString(valueCond)
	b.WriteString(" GROUP BY ").WriteString(keyExpr)
	return b.Fragment()
}

func labelString(val any) string {
	if isNil(val) {
		return ""
	}
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(val)
}

// finishFacets drops empty buckets and sorts by position then label.
func finishFacets(facets []Facet) []Facet {
	res := make([]Facet, 0, len(facets))
	for _, f := range facets {
		if f.Count > 0 {
			res = append(res, f)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Position != res[j].Position {
			return res[i].Position < res[j].Position
		}
		return res[i].Label < res[j].Label
	})
	return res
}

// simpleFacets labels buckets with their raw label, or key, and puts the empty bucket first.
func simpleFacets(rows []FacetRow) []Facet {
	facets := make([]Facet, 0, len(rows))
	for _, r := range rows {
		f := Facet{Key: r.Key, Count: r.Count}
		if isNil(r.Key) {
			f.Label = NoneLabel
			f.Position = sortFirst
		} else if label := labelString(r.Label); label != "" {
			f.Label = label
		} else {
			f.Label = labelString(r.Key)
		}
		facets = append(facets, f)
	}
	return finishFacets(facets)
}
