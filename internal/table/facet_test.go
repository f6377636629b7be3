package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func facetLabels(facets []Facet) []string {
	res := make([]string, 0, len(facets))
	for _, f := range facets {
		res = append(res, f.Label)
	}
	return res
}

func TestFacetQueries(t *testing.T) {
	tbl := eventsTable(t)
	queries, err := tbl.FacetQueries(&Filter{}, anonUC(), sqlite(t))
	assert.NoError(t, err)
	var members []string
	for _, q := range queries {
		members = append(members, q.Member)
		assert.True(t, strings.HasPrefix(q.Query.SQL, `WITH filtered AS (SELECT "t".* FROM "events" AS "t" WHERE (("t"."visibility" IS NULL)`), q.Member)
	}
	assert.Equal(t, []string{"status", "color", "artist", "genres", "startsAt"}, members)

	status := queries[0]
	assert.True(t, strings.HasSuffix(status.Query.SQL, `) SELECT NULL AS "facet_key", NULL AS "facet_label", COUNT(*) AS "facet_count" FROM filtered AS "f" WHERE "f"."status" IS NULL UNION ALL SELECT "f"."status" AS "facet_key", NULL AS "facet_label", COUNT(*) AS "facet_count" FROM filtered AS "f" WHERE "f"."status" IS NOT NULL GROUP BY "f"."status"`))

	artist := queries[2]
	assert.Contains(t, artist.Query.SQL, `LEFT JOIN "artists" AS "f_artist"`)
	assert.Contains(t, artist.Query.SQL, `MAX("f_artist"."name")`)

	// the bucket boundary is the request time
	startsAt := queries[4]
	assert.Equal(t, testNow, startsAt.Query.Args[len(startsAt.Query.Args)-1])
}

func TestFacetQueriesPropagateFilterErrors(t *testing.T) {
	tbl := eventsTable(t)
	_, err := tbl.FacetQueries(&Filter{Criteria: map[string]Criterion{"status": {Behavior: HasAllOf, Options: []any{"draft"}}}}, anonUC(), sqlite(t))
	assert.Error(t, err)
}

func TestEnumFacetTransform(t *testing.T) {
	tbl := eventsTable(t)
	fq := tbl.Field("status").FacetQuery(FacetInput{Scope: tbl.Scope(anonUC(), sqlite(t)).WithAlias(FacetAlias)})
	facets := fq.Transform([]FacetRow{
		{Key: nil, Count: 0},
		{Key: "published", Count: 3},
		{Key: []byte("draft"), Count: 2},
		{Key: "archived", Count: 1},
	})
	assert.Equal(t, []string{"Draft", "Published", "archived"}, facetLabels(facets))
	assert.Equal(t, "draft", facets[0].Key)
	assert.Equal(t, "green", facets[1].Color)
	assert.Equal(t, "unrecognized option", facets[2].Tooltip)
}

func TestDateSearchFacetTransform(t *testing.T) {
	tbl := eventsTable(t)
	fq := tbl.Field("startsAt").FacetQuery(FacetInput{Scope: tbl.Scope(anonUC(), sqlite(t)).WithAlias(FacetAlias)})
	facets := fq.Transform([]FacetRow{
		{Key: "tbd", Count: 2},
		{Key: "future", Count: 1},
		{Key: "past", Count: 4},
	})
	assert.Equal(t, []string{"Past", "Upcoming", "TBD"}, facetLabels(facets))
	assert.Nil(t, facets[2].Key)
	assert.Equal(t, int64(4), facets[0].Count)
}

func TestColorFacetTransform(t *testing.T) {
	tbl := eventsTable(t)
	fq := tbl.Field("color").FacetQuery(FacetInput{Scope: tbl.Scope(anonUC(), sqlite(t)).WithAlias(FacetAlias)})
	facets := fq.Transform([]FacetRow{
		{Key: nil, Count: 1},
		{Key: "blue", Count: 2},
		{Key: "red", Count: 3},
		{Key: "teal", Count: 1},
	})
	assert.Equal(t, []string{NoneLabel, "Blue", "Red", "teal"}, facetLabels(facets))
	assert.Equal(t, "drop", facets[1].Icon)
	assert.Equal(t, "#ff0000", facets[2].Color)
}

func TestStringFacetFoldsBlankIntoEmptyBucket(t *testing.T) {
	f := NewStringField(StringOptions{Options: Options{Member: "venue", Auth: readWrite}, Format: FormatRaw, Discrete: true})
	q := f.FacetQuery(FacetInput{Scope: Scope{Dialect: sqlite(t), Alias: "f", UC: anonUC()}})
	assert.Equal(t, `SELECT NULL AS "facet_key", NULL AS "facet_label", COUNT(*) AS "facet_count" FROM filtered AS "f" WHERE ("f"."venue" IS NULL OR "f"."venue" = '') UNION ALL SELECT "f"."venue" AS "facet_key", NULL AS "facet_label", COUNT(*) AS "facet_count" FROM filtered AS "f" WHERE "f"."venue" IS NOT NULL AND "f"."venue" <> '' GROUP BY "f"."venue"`, q.Query.SQL)

	plain := NewStringField(StringOptions{Options: Options{Member: "venue", Auth: readWrite}, Format: FormatRaw})
	assert.Nil(t, plain.FacetQuery(FacetInput{Scope: Scope{Dialect: sqlite(t), Alias: "f", UC: anonUC()}}))
}

func TestSimpleFacets(t *testing.T) {
	facets := simpleFacets([]FacetRow{
		{Key: int64(2), Label: "Zed", Count: 1},
		{Key: nil, Count: 1},
		{Key: int64(1), Label: []byte("Abba"), Count: 4},
		{Key: int64(3), Count: 1},
		{Key: int64(4), Label: "Empty", Count: 0},
	})
	assert.Equal(t, []string{NoneLabel, "3", "Abba", "Zed"}, facetLabels(facets))
}
