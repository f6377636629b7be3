package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	nats "github.com/nats-io/nats.go"
	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/shopmonkeyus/tablekit/internal/changefeed"
	"github.com/shopmonkeyus/tablekit/internal/util"
	"github.com/stretchr/testify/assert"
	_ "modernc.org/sqlite"
)

const tokenKey = "secret"

var testCatalog = filepath.Join("..", "internal", "catalog", "testdata", "catalog.json")

func userToken(t *testing.T, id int64) string {
	token, err := auth.NewToken(internal.User{ID: id}, []byte(tokenKey), time.Hour)
	assert.NoError(t, err)
	return token
}

func sqliteURL(t *testing.T) string {
	fn := filepath.ToSlash(filepath.Join(t.TempDir(), "cmd.db"))
	db, err := sql.Open("sqlite", fn)
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a database", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE artists (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)`); err != nil {
		t.Fatalf("error creating schema: %s", err)
	}
	return "sqlite://" + fn
}

func TestResolveMode(t *testing.T) {
	mode, err := resolveMode("", false)
	assert.NoError(t, err)
	assert.Equal(t, "new", mode)
	mode, err = resolveMode("", true)
	assert.NoError(t, err)
	assert.Equal(t, "update", mode)
	mode, err = resolveMode("delete", true)
	assert.NoError(t, err)
	assert.Equal(t, "delete", mode)
	_, err = resolveMode("view", true)
	assert.Error(t, err)
}

func TestReadFilter(t *testing.T) {
	f, err := readFilter("", nil)
	assert.NoError(t, err)
	assert.Empty(t, f.Query)
	f, err = readFilter(`{"query":"abba","limit":5,"sort":[{"member":"name","direction":"desc"}]}`, nil)
	assert.NoError(t, err)
	assert.Equal(t, "abba", f.Query)
	assert.Equal(t, 5, f.Limit)
	assert.Len(t, f.Sort, 1)
	_, err = readFilter("-", strings.NewReader(`{"limit":"x"}`))
	assert.Error(t, err)
}

func TestUsageContext(t *testing.T) {
	uc, err := settings{}.usageContext()
	assert.NoError(t, err)
	assert.Equal(t, internal.IntentionPublic, uc.Intention)
	assert.Nil(t, uc.User)

	uc, err = settings{UserToken: userToken(t, 7), TokenKey: tokenKey}.usageContext()
	assert.NoError(t, err)
	assert.Equal(t, internal.IntentionUser, uc.Intention)
	assert.Equal(t, int64(7), uc.ActingUserID())

	_, err = settings{UserToken: userToken(t, 7)}.usageContext()
	assert.Error(t, err)
	_, err = settings{UserToken: userToken(t, 7), TokenKey: "wrong"}.usageContext()
	assert.Error(t, err)
	_, err = settings{Intention: "root"}.usageContext()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	var out bytes.Buffer
	err := runValidate(context.Background(), logger.NewTestLogger(), &out, settings{Catalog: testCatalog})
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "artists")
	assert.Contains(t, out.String(), "3 tables")

	err = runValidate(context.Background(), logger.NewTestLogger(), &out, settings{})
	assert.Error(t, err)
}

func TestQueryDryRun(t *testing.T) {
	var out bytes.Buffer
	s := settings{Catalog: testCatalog, Dialect: "sqlite"}
	err := runQuery(context.Background(), logger.NewTestLogger(), &out, s, queryOptions{Table: "artists"})
	assert.NoError(t, err)
	assert.Contains(t, out.String(), `SELECT "a"."id", "a"."name" FROM "artists" AS "a"`)
	assert.Contains(t, out.String(), `SELECT COUNT(*) FROM "artists" AS "a"`)

	err = runQuery(context.Background(), logger.NewTestLogger(), &out, s, queryOptions{Table: "nope"})
	assert.Error(t, err)
	err = runQuery(context.Background(), logger.NewTestLogger(), &out, s, queryOptions{Table: "artists", Execute: true})
	assert.Error(t, err, "execute without url")
}

func TestDiffDryRun(t *testing.T) {
	var out bytes.Buffer
	s := settings{Catalog: testCatalog, Dialect: "sqlite", UserToken: userToken(t, 5), TokenKey: tokenKey}
	err := runDiff(context.Background(), logger.NewTestLogger(), &out, s, diffOptions{Table: "artists", Incoming: `{"name":"Abba"}`})
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "INSERT artists")
	assert.Contains(t, out.String(), `INSERT INTO "artists" ("name") VALUES ('Abba')`)

	out.Reset()
	err = runDiff(context.Background(), logger.NewTestLogger(), &out, s, diffOptions{Table: "artists", Prior: `{"id":12,"name":"Abba"}`, Mode: "delete"})
	assert.NoError(t, err)
	assert.Contains(t, out.String(), `DELETE FROM "artists"`)

	s.Publish = "nats://localhost:4222"
	err = runDiff(context.Background(), logger.NewTestLogger(), &out, s, diffOptions{Table: "artists", Incoming: `{"name":"Abba"}`})
	assert.Error(t, err, "publish requires execute")
}

func TestDiffForeignKeyAndTagsFromJSON(t *testing.T) {
	var out bytes.Buffer
	s := settings{Catalog: testCatalog, Dialect: "sqlite", UserToken: userToken(t, 5), TokenKey: tokenKey}
	o := diffOptions{
		Table:    "events",
		Prior:    `{"id":12,"title":"Gala","artistId":3,"genres":[1]}`,
		Incoming: `{"artistId":4,"genres":[1,2]}`,
	}
	err := runDiff(context.Background(), logger.NewTestLogger(), &out, s, o)
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "UPDATE events")
	assert.Contains(t, out.String(), `"artistId" = 4`)
	assert.Contains(t, out.String(), `INSERT INTO "event_genres" ("eventId", "genreId") VALUES (12, 2)`)
	assert.NotContains(t, out.String(), "expected")
}

func TestDiffExecuteAndPublish(t *testing.T) {
	port, err := util.GetFreePort()
	assert.NoError(t, err)
	opts := natsserver.DefaultTestOptions
	opts.Port = port
	opts.Cluster.Name = "testing"
	srv := natsserver.RunServer(&opts)
	defer srv.Shutdown()
	natsURL := fmt.Sprintf("nats://localhost:%d", port)

	nc, err := nats.Connect(natsURL)
	assert.NoError(t, err)
	defer nc.Close()
	sub, err := nc.SubscribeSync("dbchange.artists.>")
	assert.NoError(t, err)
	assert.NoError(t, nc.Flush())

	ctx := context.Background()
	s := settings{
		Catalog:   testCatalog,
		URL:       sqliteURL(t),
		Publish:   natsURL,
		UserToken: userToken(t, 5),
		TokenKey:  tokenKey,
	}
	var out bytes.Buffer
	err = runDiff(ctx, logger.NewTestLogger(), &out, s, diffOptions{Table: "artists", Incoming: `{"name":"Abba"}`, Execute: true})
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "applied INSERT 1")

	msg, err := sub.NextMsg(2 * time.Second)
	assert.NoError(t, err)
	assert.Equal(t, "dbchange.artists.INSERT", msg.Subject)
	event, err := changefeed.DecodeMsg(msg)
	assert.NoError(t, err)
	assert.Equal(t, []string{"1"}, event.Key)
	assert.Equal(t, "Abba", event.After["name"])
	assert.Equal(t, int64(5), *event.UserID)

	out.Reset()
	err = runQuery(ctx, logger.NewTestLogger(), &out, s, queryOptions{Table: "artists", Execute: true})
	assert.NoError(t, err)
	var res struct {
		Total int64            `json:"total"`
		Rows  []map[string]any `json:"rows"`
	}
	assert.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, "Abba", res.Rows[0]["name"])
}

func TestPublishFallsBackToOutbox(t *testing.T) {
	port, err := util.GetFreePort()
	assert.NoError(t, err)
	natsURL := fmt.Sprintf("nats://localhost:%d", port)
	ctx := context.Background()
	s := settings{Publish: natsURL, Outbox: t.TempDir()}
	event := &changefeed.ChangeEvent{ID: "e1", Operation: "INSERT", Table: "artists", Key: []string{"1"}, Timestamp: 1}

	assert.NoError(t, publish(ctx, logger.NewTestLogger(), s, event), "kept in the outbox")
	assert.Error(t, publish(ctx, logger.NewTestLogger(), settings{Publish: natsURL}, event), "no outbox")

	opts := natsserver.DefaultTestOptions
	opts.Port = port
	opts.Cluster.Name = "testing"
	srv := natsserver.RunServer(&opts)
	defer srv.Shutdown()

	nc, err := nats.Connect(natsURL)
	assert.NoError(t, err)
	defer nc.Close()
	sub, err := nc.SubscribeSync("dbchange.>")
	assert.NoError(t, err)
	assert.NoError(t, nc.Flush())

	var out bytes.Buffer
	assert.NoError(t, runFlush(ctx, logger.NewTestLogger(), &out, s))
	assert.Contains(t, out.String(), "published 1 events")
	msg, err := sub.NextMsg(2 * time.Second)
	assert.NoError(t, err)
	assert.Equal(t, "dbchange.artists.INSERT", msg.Subject)

	assert.Error(t, runFlush(ctx, logger.NewTestLogger(), &out, settings{}))
}
