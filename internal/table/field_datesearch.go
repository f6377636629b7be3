package table

import (
	"fmt"

	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

// Date-search buckets. A row without a date is "tbd".
const (
	BucketPast   = "past"
	BucketFuture = "future"
	BucketTBD    = "tbd"
)

var dateBuckets = []string{BucketPast, BucketFuture, BucketTBD}

var dateBucketLabels = map[string]string{
	BucketPast:   "Past",
	BucketFuture: "Upcoming",
	BucketTBD:    "TBD",
}

// DateSearchField is a date column filtered and faceted by its position relative to the request time.
type DateSearchField struct {
	DateTimeField
}

var _ Field = (*DateSearchField)(nil)

func NewDateSearchField(opts Options) *DateSearchField {
	opts.Nullable = true
	return &DateSearchField{DateTimeField{base: newBase(opts)}}
}

func (f *DateSearchField) Kind() Kind { return KindDateSearch }

func (f *DateSearchField) bucket(name string, s Scope) sqlq.Fragment {
	col := s.Column(f.opts.Member)
	switch name {
	case BucketPast:
		return sqlq.Expr(col+" < ?", s.UC.Clock())
	case BucketFuture:
		return sqlq.Expr(col+" >= ?", s.UC.Clock())
	}
	return sqlq.IsNull(col)
}

func (f *DateSearchField) SupportsBehavior(b Behavior) bool {
	return singleValuedSupports(b)
}

// bucketOptions maps criterion options to bucket names. The nil option is tbd.
func bucketOptions(options []any) ([]string, string) {
	seen := make(map[string]bool)
	var res []string
	for _, o := range options {
		name := BucketTBD
		if !isNil(o) {
			name = fmt.Sprint(o)
		}
		if _, ok := dateBucketLabels[name]; !ok {
			return nil, fmt.Sprintf("unrecognized option '%s'", name)
		}
		if !seen[name] {
			seen[name] = true
			res = append(res, name)
		}
	}
	return res, ""
}

func (f *DateSearchField) DiscreteCriterionFragment(c Criterion, s Scope) (sqlq.Fragment, error) {
	col := s.Column(f.opts.Member)
	switch c.Behavior {
	case AlwaysMatch, "":
		return sqlq.Empty, nil
	case HasAny:
		return sqlq.IsNotNull(col), nil
	case HasNone:
		return sqlq.IsNull(col), nil
	case HasAllOf:
		return sqlq.Empty, impossibleBehavior(f.opts.Member, c.Behavior)
	case HasSomeOf, DoesntHaveAnyOf, DoesntHaveAllOf:
	default:
		return sqlq.Empty, unknownBehavior(f.opts.Member, c.Behavior)
	}
	if len(c.Options) == 0 {
		return sqlq.Problem(selectOptionsMessage), nil
	}
	chosen, problem := bucketOptions(c.Options)
	if problem != "" {
		return sqlq.Problem(problem), nil
	}
	if c.Behavior == DoesntHaveAllOf && len(chosen) > 1 {
		return sqlq.True, nil
	}
	if c.Behavior != HasSomeOf {
		// the buckets partition the rows, so not being in some is being in the others
		excluded := make(map[string]bool, len(chosen))
		for _, name := range chosen {
			excluded[name] = true
		}
		chosen = chosen[:0]
		for _, name := range dateBuckets {
			if !excluded[name] {
				chosen = append(chosen, name)
			}
		}
		if len(chosen) == 0 {
			return sqlq.False, nil
		}
	}
	parts := make([]sqlq.Fragment, 0, len(chosen))
	for _, name := range chosen {
		parts = append(parts, f.bucket(name, s))
	}
	return sqlq.Or(parts...), nil
}

// FacetQuery counts rows per bucket. tbd sorts last.
func (f *DateSearchField) FacetQuery(in FacetInput) *FacetQuery {
	s := in.Scope
	col := s.Column(f.opts.Member)
	var b sqlq.Builder
	b.WriteString("SELECT ").WriteString(facetColumns(s, sqlq.Ident(s.Dialect, "b", "bucket"), "NULL"))
	b.WriteString(" FROM (SELECT CASE WHEN " + col + " IS NULL THEN ")
	b.WriteString(s.Dialect.QuoteValue(BucketTBD))
	b.WriteString(" WHEN ").Write(sqlq.Expr(col+" < ?", s.UC.Clock()))
	b.WriteString(" THEN " + s.Dialect.QuoteValue(BucketPast) + " ELSE " + s.Dialect.QuoteValue(BucketFuture) + " END AS " + s.Ident("bucket"))
	b.WriteString(" FROM ").WriteString(facetFrom(s)).WriteString(") AS " + s.Ident("b"))
	b.WriteString(" GROUP BY " + sqlq.Ident(s.Dialect, "b", "bucket"))
	return &FacetQuery{
		Member: f.opts.Member,
		Query:  b.Fragment(),
		Transform: func(rows []FacetRow) []Facet {
			facets := make([]Facet, 0, len(rows))
			for _, r := range rows {
				name := labelString(r.Key)
				facet := Facet{Key: name, Label: dateBucketLabels[name], Count: r.Count}
				switch name {
				case BucketPast:
					facet.Position = 0
				case BucketFuture:
					facet.Position = 1
				default:
					facet.Key = nil
					facet.Label = dateBucketLabels[BucketTBD]
					facet.Position = sortLast
				}
				facets = append(facets, facet)
			}
			return finishFacets(facets)
		},
	}
}
