package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/table"
	"github.com/stretchr/testify/assert"
)

var sqliteSchema = []string{
	`CREATE TABLE artists (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)`,
	`CREATE TABLE genres (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, isDeleted BOOLEAN)`,
	`CREATE TABLE event (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT,
		attendance INTEGER,
		status TEXT,
		color TEXT,
		artistId INTEGER,
		startsAt DATETIME,
		createdBy INTEGER,
		createdAt DATETIME,
		updatedAt DATETIME,
		revision INTEGER,
		isDeleted BOOLEAN
	)`,
	`CREATE TABLE event_genres (id INTEGER PRIMARY KEY AUTOINCREMENT, eventId INTEGER, genreId INTEGER)`,
	`INSERT INTO artists (name) VALUES ('Abba')`,
	`INSERT INTO genres (name, isDeleted) VALUES ('Jazz', 0), ('Rock', 0), ('Gone', 1)`,
}

func sqliteExecutor(t *testing.T) *Executor {
	u := "sqlite://" + filepath.ToSlash(filepath.Join(t.TempDir(), "tablekit.db"))
	e, err := Open(context.Background(), logger.NewTestLogger(), u)
	if err != nil {
		t.Fatalf("error opening sqlite: %s", err)
	}
	t.Cleanup(func() { e.Close() })
	for _, stmt := range sqliteSchema {
		if _, err := e.db.Exec(stmt); err != nil {
			t.Fatalf("error creating schema: %s", err)
		}
	}
	return e
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := sqliteExecutor(t)
	events := testRegistry(t).MustTable("events")
	owner := userUC(5)

	m, err := events.PrepareMutation(table.MutationInput{
		Incoming: internal.Row{
			"title":      "Gala",
			"attendance": 10,
			"status":     "published",
			"color":      "red",
			"artistId":   1,
			"genres":     []any{1, 2, 3},
		},
		Mode:    internal.RowModeNew,
		UC:      owner,
		Dialect: e.Dialect(),
	})
	assert.NoError(t, err)
	assert.True(t, m.OK(), "%v", m.Diff.Errors)
	res, err := e.Apply(ctx, m)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), res.Key)

	list, err := e.List(ctx, events, nil, owner, ListOptions{Facets: true})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
	assert.Len(t, list.Rows, 1)
	row := list.Rows[0]
	assert.Equal(t, "Gala", row["title"])
	assert.Equal(t, int64(10), row["attendance"])
	assert.Equal(t, "published", row["status"])
	artist, ok := row["artist"].(internal.Row)
	assert.True(t, ok)
	assert.Equal(t, "Abba", artist["name"])

	// the deleted genre is filtered out of the association load
	genres, ok := row["genres"].([]internal.Row)
	assert.True(t, ok)
	assert.Len(t, genres, 2)
	var names []string
	for _, g := range genres {
		obj, ok := g["genre"].(internal.Row)
		assert.True(t, ok)
		names = append(names, obj["name"].(string))
	}
	assert.ElementsMatch(t, []string{"Jazz", "Rock"}, names)

	status := list.Facets["status"]
	assert.Len(t, status, 1)
	assert.Equal(t, "Published", status[0].Label)
	assert.Equal(t, int64(1), status[0].Count)
	assert.Len(t, list.Facets["genres"], 2)

	anon, err := e.List(ctx, events, nil, anonUC())
	assert.NoError(t, err)
	assert.Len(t, anon.Rows, 1)
	assert.NotContains(t, anon.Rows[0], "attendance")
	assert.Equal(t, []string{"attendance"}, anon.Stripped)

	prior, err := e.Get(ctx, events, res.Key, owner)
	assert.NoError(t, err)
	update, err := events.PrepareMutation(table.MutationInput{
		Prior:    prior,
		Incoming: internal.Row{"status": "draft", "genres": []any{2}},
		Mode:     internal.RowModeUpdate,
		UC:       owner,
		Dialect:  e.Dialect(),
	})
	assert.NoError(t, err)
	_, err = e.Apply(ctx, update)
	assert.NoError(t, err)

	after, err := e.Get(ctx, events, res.Key, owner)
	assert.NoError(t, err)
	assert.Equal(t, "draft", after["status"])
	assert.Equal(t, int64(1), after["revision"])
	assert.Len(t, after["genres"], 1)

	del, err := events.PrepareDelete(after, owner, e.Dialect(), 0)
	assert.NoError(t, err)
	_, err = e.Apply(ctx, del)
	assert.NoError(t, err)
	gone, err := e.List(ctx, events, nil, owner)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), gone.Total)
	assert.Empty(t, gone.Rows)
}
