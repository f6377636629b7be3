package table

import (
	"strings"
	"testing"

	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
	"github.com/stretchr/testify/assert"
)

func notesTable(t *testing.T) *Table {
	tbl, err := NewTable(Definition{
		ID:   "notes",
		Auth: readWrite,
		Fields: []Field{
			NewPKField(Options{}),
			NewStringField(StringOptions{Options: Options{Member: "title", Auth: readWrite}}),
			NewIntField(IntOptions{Options: Options{Member: "attendance", Auth: readWrite}, Searchable: true}),
		},
	})
	assert.NoError(t, err)
	return tbl
}

func TestQuickFilterWholeQuery(t *testing.T) {
	tbl := notesTable(t)
	frag := tbl.QuickFilterWhereClause("#12", tbl.Scope(anonUC(), sqlite(t)))
	assert.Equal(t, `("t"."id" = ?) OR (LOWER("t"."title") LIKE ? ESCAPE '\')`, frag.SQL)
	assert.Equal(t, []any{int64(12), "%#12%"}, frag.Args)
}

func TestQuickFilterEveryTokenMustMatch(t *testing.T) {
	tbl := notesTable(t)
	frag := tbl.QuickFilterWhereClause("  gala 12 ", tbl.Scope(anonUC(), sqlite(t)))
	assert.Equal(t, `(LOWER("t"."title") LIKE ? ESCAPE '\') AND ((LOWER("t"."title") LIKE ? ESCAPE '\') OR ("t"."attendance" = ?))`, frag.SQL)
	assert.Equal(t, []any{"%gala%", "%12%", int64(12)}, frag.Args)

	assert.True(t, tbl.QuickFilterWhereClause("   ", tbl.Scope(anonUC(), sqlite(t))).IsEmpty())
}

func TestQuickFilterEscapesWildcards(t *testing.T) {
	tbl := notesTable(t)
	frag := tbl.QuickFilterWhereClause("50%_off", tbl.Scope(anonUC(), sqlite(t)))
	assert.Equal(t, []any{`%50\%\_off%`}, frag.Args)
	assert.NotContains(t, frag.SQL, "50")
}

func TestQuickFilterTokenWithoutMatchingField(t *testing.T) {
	tbl, err := NewTable(Definition{ID: "x", Auth: readWrite, Fields: []Field{NewPKField(Options{})}})
	assert.NoError(t, err)
	frag := tbl.QuickFilterWhereClause("anything", tbl.Scope(anonUC(), sqlite(t)))
	assert.Equal(t, sqlq.False.SQL, frag.SQL)
}

func TestQuickFilterRelations(t *testing.T) {
	tbl := eventsTable(t)
	frag := tbl.QuickFilterWhereClause("rock", tbl.Scope(anonUC(), sqlite(t)))
	assert.Contains(t, frag.SQL, `EXISTS (SELECT 1 FROM "artists" AS "t_artist" WHERE "t_artist"."id" = "t"."artistId" AND LOWER("t_artist"."name") LIKE ? ESCAPE '\')`)
	assert.Contains(t, frag.SQL, `EXISTS (SELECT 1 FROM "event_genres" AS "t_genres" WHERE "t_genres"."eventId" = "t"."id" AND EXISTS (SELECT 1 FROM "genres" AS "t_genres_f"`)
	assert.NotContains(t, frag.SQL, `"t"."visibility"`)
}

func TestCriterionHasAllOfOnTags(t *testing.T) {
	tbl := eventsTable(t)
	frag, err := tbl.Field("genres").DiscreteCriterionFragment(Criterion{Behavior: HasAllOf, Options: []any{1, "2"}}, tbl.Scope(anonUC(), sqlite(t)))
	assert.NoError(t, err)
	exists := `EXISTS (SELECT 1 FROM "event_genres" AS "t_genres" WHERE "t_genres"."eventId" = "t"."id" AND "t_genres"."genreId" = ?)`
	assert.Equal(t, "("+exists+") AND ("+exists+")", frag.SQL)
	assert.Equal(t, []any{int64(1), int64(2)}, frag.Args)
}

func TestCriterionTagsBehaviors(t *testing.T) {
	tbl := eventsTable(t)
	s := tbl.Scope(anonUC(), sqlite(t))
	genres := tbl.Field("genres")

	frag, err := genres.DiscreteCriterionFragment(Criterion{Behavior: HasNone}, s)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(frag.SQL, "NOT EXISTS ("))

	frag, err = genres.DiscreteCriterionFragment(Criterion{Behavior: HasSomeOf, Options: []any{3, nil}}, s)
	assert.NoError(t, err)
	assert.Contains(t, frag.SQL, `"t_genres"."genreId" IN (?)`)
	assert.Contains(t, frag.SQL, ") OR (NOT EXISTS (")

	frag, err = genres.DiscreteCriterionFragment(Criterion{Behavior: DoesntHaveAllOf, Options: []any{3, 4}}, s)
	assert.NoError(t, err)
	assert.Equal(t, 2, strings.Count(frag.SQL, "NOT EXISTS"))
	assert.Contains(t, frag.SQL, ") OR (")
}

func TestCriterionHasAllOfOnSingleValuedFields(t *testing.T) {
	tbl := eventsTable(t)
	s := tbl.Scope(anonUC(), sqlite(t))
	for _, member := range []string{"artist", "status", "startsAt"} {
		_, err := tbl.Field(member).DiscreteCriterionFragment(Criterion{Behavior: HasAllOf, Options: []any{1, 2}}, s)
		assert.True(t, internal.IsConfigError(err), member)
	}
}

func TestFilterBehaviorsCheckedAtConstruction(t *testing.T) {
	def := eventsDefinition()
	def.FilterBehaviors = map[string][]Behavior{"artist": {HasAllOf}}
	_, err := NewTable(def)
	assert.True(t, internal.IsConfigError(err))

	def = eventsDefinition()
	def.FilterBehaviors = map[string][]Behavior{"nope": {HasAny}}
	_, err = NewTable(def)
	assert.True(t, internal.IsConfigError(err))
}

func TestCriterionEmptyOptions(t *testing.T) {
	tbl := eventsTable(t)
	s := tbl.Scope(anonUC(), sqlite(t))
	for _, member := range []string{"artist", "status", "genres", "startsAt"} {
		for _, b := range []Behavior{HasSomeOf, DoesntHaveAnyOf} {
			frag, err := tbl.Field(member).DiscreteCriterionFragment(Criterion{Behavior: b}, s)
			assert.NoError(t, err)
			assert.Equal(t, []string{"select options to filter on"}, frag.Problems, "%s %s", member, b)
			assert.Equal(t, sqlq.True.SQL, frag.SQL)
		}
	}
}

func TestCriterionSingleValued(t *testing.T) {
	tbl := eventsTable(t)
	s := tbl.Scope(anonUC(), sqlite(t))
	status := tbl.Field("status")

	frag, err := status.DiscreteCriterionFragment(Criterion{Behavior: HasSomeOf, Options: []any{"draft", nil}}, s)
	assert.NoError(t, err)
	assert.Equal(t, `("t"."status" IS NULL) OR ("t"."status" IN (?))`, frag.SQL)
	assert.Equal(t, []any{"draft"}, frag.Args)

	frag, err = status.DiscreteCriterionFragment(Criterion{Behavior: DoesntHaveAnyOf, Options: []any{"draft"}}, s)
	assert.NoError(t, err)
	assert.Equal(t, `("t"."status" IS NULL) OR ("t"."status" NOT IN (?))`, frag.SQL)

	frag, err = status.DiscreteCriterionFragment(Criterion{Behavior: DoesntHaveAllOf, Options: []any{"draft", "published"}}, s)
	assert.NoError(t, err)
	assert.Equal(t, sqlq.True.SQL, frag.SQL)

	frag, err = status.DiscreteCriterionFragment(Criterion{Behavior: AlwaysMatch}, s)
	assert.NoError(t, err)
	assert.True(t, frag.IsEmpty())

	frag, err = tbl.Field("artist").DiscreteCriterionFragment(Criterion{Behavior: HasAny}, s)
	assert.NoError(t, err)
	assert.Equal(t, `"t"."artistId" IS NOT NULL`, frag.SQL)
}

func TestCriterionDateSearch(t *testing.T) {
	tbl := eventsTable(t)
	s := tbl.Scope(anonUC(), sqlite(t))
	starts := tbl.Field("startsAt")

	frag, err := starts.DiscreteCriterionFragment(Criterion{Behavior: DoesntHaveAnyOf, Options: []any{BucketPast}}, s)
	assert.NoError(t, err)
	assert.Equal(t, `("t"."startsAt" >= ?) OR ("t"."startsAt" IS NULL)`, frag.SQL)
	assert.Equal(t, []any{testNow}, frag.Args)

	frag, err = starts.DiscreteCriterionFragment(Criterion{Behavior: HasSomeOf, Options: []any{BucketPast, nil}}, s)
	assert.NoError(t, err)
	assert.Equal(t, `("t"."startsAt" < ?) OR ("t"."startsAt" IS NULL)`, frag.SQL)

	frag, err = starts.DiscreteCriterionFragment(Criterion{Behavior: HasSomeOf, Options: []any{"someday"}}, s)
	assert.NoError(t, err)
	assert.Equal(t, []string{"unrecognized option 'someday'"}, frag.Problems)
}

func TestWhereClauseOverallClauses(t *testing.T) {
	tbl := eventsTable(t)
	where, err := tbl.WhereClause(&Filter{}, tbl.Scope(anonUC(), sqlite(t)))
	assert.NoError(t, err)
	assert.Equal(t, `(("t"."visibility" IS NULL) OR ("t"."visibility" = ?) OR ("t"."visibility" IN (?))) AND (("t"."isDeleted" IS NULL) OR ("t"."isDeleted" = ?))`, where.SQL)
	assert.Equal(t, []any{"", auth.Public, false}, where.Args)

	where, err = tbl.WhereClause(&Filter{IncludeDeleted: true}, tbl.Scope(adminUC(), sqlite(t)))
	assert.NoError(t, err)
	assert.True(t, where.IsEmpty())

	where, err = tbl.WhereClause(&Filter{}, tbl.Scope(userUC(7, "staff"), sqlite(t)))
	assert.NoError(t, err)
	assert.Contains(t, where.SQL, `("t"."visibility" IN (?, ?, ?)) OR ("t"."createdBy" = ?)`)
	assert.Equal(t, []any{"", auth.Public, auth.LoggedIn, "staff", int64(7), false}, where.Args)
}

func TestWhereClauseCombinesFilters(t *testing.T) {
	tbl := eventsTable(t)
	where, err := tbl.WhereClause(&Filter{
		Query: "gala",
		Criteria: map[string]Criterion{
			"status": {Behavior: HasSomeOf, Options: []any{"published"}},
			"bogus":  {Behavior: HasAny},
		},
		Params: map[string]Param{
			"attendance": {Min: 10, Max: "20"},
		},
		IncludeDeleted: true,
	}, tbl.Scope(adminUC(), sqlite(t)))
	assert.NoError(t, err)
	assert.Contains(t, where.SQL, `("t"."status" IN (?))`)
	assert.Contains(t, where.SQL, `("t"."attendance" >= ?) AND ("t"."attendance" <= ?)`)
	assert.Equal(t, []string{"unknown filter 'bogus'"}, where.Problems)
	assert.Contains(t, where.Args, int64(20))
}

func TestWhereClauseImpossibleCriterion(t *testing.T) {
	tbl := eventsTable(t)
	_, err := tbl.WhereClause(&Filter{Criteria: map[string]Criterion{"artist": {Behavior: HasAllOf, Options: []any{1, 2}}}}, tbl.Scope(anonUC(), sqlite(t)))
	assert.True(t, internal.IsConfigError(err))
}

func TestSelectQuery(t *testing.T) {
	tbl := eventsTable(t)
	q, err := tbl.SelectQuery(&Filter{Limit: 10, IncludeDeleted: true}, adminUC(), sqlite(t))
	assert.NoError(t, err)
	assert.Equal(t, `SELECT "t"."id", "t"."title", "t"."attendance", "t"."status", "t"."color", "t"."artistId", "t"."startsAt", "t"."visibility", "t"."createdBy", "t"."createdAt", "t"."updatedAt", "t"."revision", "t"."isDeleted" FROM "events" AS "t" ORDER BY CASE WHEN "t"."startsAt" IS NULL THEN 1 ELSE 0 END, "t"."startsAt" DESC, "t"."id" ASC LIMIT 10 OFFSET 0`, q.SQL)
	assert.Empty(t, q.Args)
}

func TestOrderBy(t *testing.T) {
	tbl := eventsTable(t)
	s := tbl.Scope(anonUC(), sqlite(t))
	order := tbl.OrderBy([]Sort{{Member: "status"}, {Member: "id", Direction: Desc}}, s)
	assert.Equal(t, []string{
		`CASE WHEN "t"."status" IS NULL THEN 1 ELSE 0 END`,
		`CASE "t"."status" WHEN 'draft' THEN 0 WHEN 'published' THEN 1 ELSE 2 END ASC`,
		`"t"."id" DESC`,
	}, order)

	order = tbl.OrderBy([]Sort{{Member: "artist"}}, s)
	assert.Equal(t, `(SELECT "t_artist"."name" FROM "artists" AS "t_artist" WHERE "t_artist"."id" = "t"."artistId") ASC`, order[1])
	assert.Equal(t, `"t"."id" ASC`, order[2])

	order = tbl.OrderBy([]Sort{{Member: "genres"}, {Member: "missing"}}, s)
	assert.Equal(t, []string{`"t"."id" ASC`}, order)
}

func TestPostgresBinding(t *testing.T) {
	tbl := eventsTable(t)
	q, err := tbl.SelectQuery(&Filter{Query: "o'neil", Limit: 5, Offset: 10}, anonUC(), postgres(t))
	assert.NoError(t, err)
	sql, args := sqlq.Bind(postgres(t), q)
	assert.NotContains(t, sql, "o'neil")
	assert.NotContains(t, sql, "?")
	assert.Contains(t, sql, `"artistId"`)
	assert.Contains(t, sql, "ILIKE $1")
	assert.True(t, strings.HasSuffix(sql, "LIMIT 5 OFFSET 10"))
	assert.Equal(t, "%o'neil%", args[0])
}

func TestSelectByKeysAndInclude(t *testing.T) {
	r := testRegistry(t)
	events := r.MustTable("events")
	genres := r.MustTable("genres")

	q := genres.SelectByKeys([]any{int64(1), int64(2)}, anonUC(), sqlite(t))
	assert.Equal(t, `SELECT "g"."id", "g"."name", "g"."isDeleted" FROM "genres" AS "g" WHERE ("g"."id" IN (?, ?)) AND (("g"."isDeleted" IS NULL) OR ("g"."isDeleted" = ?))`, q.SQL)

	include, err := events.Include("genres", anonUC(), sqlite(t))
	assert.NoError(t, err)
	assert.Equal(t, genres, include.Table)
	assert.Equal(t, internal.ModeRelation, include.Scope.UC.Mode)
	assert.Equal(t, []string{"genres"}, include.Scope.UC.RelationPath)
	assert.Len(t, include.Where, 1)
	assert.Equal(t, q.SQL, include.Query([]any{1, 2}).SQL)

	_, err = events.Include("title", anonUC(), sqlite(t))
	assert.True(t, internal.IsConfigError(err))
}

func TestTagsLoadQuery(t *testing.T) {
	genres := eventsTable(t).Field("genres").(*TagsField)
	q := genres.LoadQuery([]any{int64(5)}, anonUC(), sqlite(t))
	assert.Equal(t, `SELECT "a"."id", "a"."eventId", "a"."genreId" FROM "event_genres" AS "a" WHERE ("a"."eventId" IN (?)) AND (EXISTS (SELECT 1 FROM "genres" AS "a_f" WHERE ("a_f"."id" = "a"."genreId") AND (("a_f"."isDeleted" IS NULL) OR ("a_f"."isDeleted" = ?)))) ORDER BY "a"."eventId", "a"."id"`, q.SQL)
	assert.Equal(t, []any{int64(5), false}, q.Args)
}
