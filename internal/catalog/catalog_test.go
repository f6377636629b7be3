package catalog

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/shopmonkeyus/tablekit/internal/table"
	"github.com/shopmonkeyus/tablekit/internal/util"
	"github.com/stretchr/testify/assert"
)

func load(t *testing.T, name string) *table.Registry {
	r, err := Load(context.Background(), logger.NewTestLogger(), filepath.Join("testdata", name))
	assert.NoError(t, err)
	return r
}

func TestLoadEveryFormat(t *testing.T) {
	var fingerprints []string
	for _, name := range []string{"catalog.json", "catalog.yaml", "catalog.toml"} {
		t.Run(name, func(t *testing.T) {
			r := load(t, name)
			var ids []string
			for _, tbl := range r.Tables() {
				ids = append(ids, tbl.ID())
			}
			assert.Equal(t, []string{"artists", "events", "genres"}, ids)

			events := r.MustTable("events")
			assert.Equal(t, "event", events.Name())
			assert.Equal(t, "t", events.Alias())
			assert.Len(t, events.Fields(), 15)
			assert.Equal(t, "createdBy", events.OwnerField().Member())
			assert.Equal(t, []table.Behavior{table.HasSomeOf, table.HasAllOf, table.HasNone}, events.FilterBehaviors("genres"))

			artist, ok := events.Field("artist").(*table.ForeignField)
			assert.True(t, ok)
			assert.Equal(t, "artistId", artist.StoreMember())
			assert.Equal(t, r.MustTable("artists"), artist.ForeignTable())

			perm, ok := events.Field("attendance").AuthSpec().Permission(auth.PreMutate)
			assert.True(t, ok)
			assert.Equal(t, "edit_attendance", perm)

			row := events.CreateNew(internal.NewUsageContext(internal.IntentionUser, nil))
			assert.Equal(t, int64(0), row["attendance"])
			assert.Equal(t, "draft", row["status"])

			p, ok := r.Palette("basic")
			assert.True(t, ok)
			assert.Len(t, p.Entries, 2)

			fingerprints = append(fingerprints, util.Hash(events.Fingerprint(), r.MustTable("genres").Fingerprint(), r.MustTable("artists").Fingerprint()))
		})
	}
	assert.Len(t, fingerprints, 3)
	assert.Equal(t, fingerprints[0], fingerprints[1])
	assert.Equal(t, fingerprints[0], fingerprints[2])
}

func TestLoadFileURL(t *testing.T) {
	abs, err := filepath.Abs(filepath.Join("testdata", "catalog.json"))
	assert.NoError(t, err)
	r, err := Load(context.Background(), logger.NewTestLogger(), "file://"+filepath.ToSlash(abs))
	assert.NoError(t, err)
	_, ok := r.Table("events")
	assert.True(t, ok)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(context.Background(), logger.NewTestLogger(), filepath.Join("testdata", "missing.json"))
	assert.Error(t, err)
	_, err = Load(context.Background(), logger.NewTestLogger(), "catalog.xml")
	assert.Error(t, err)
	_, err = Load(context.Background(), logger.NewTestLogger(), "ftp://host/catalog.json")
	assert.Error(t, err)
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no tables", `{"tables": []}`},
		{"unknown kind", `{"tables": [{"id": "x", "auth": {"all": "public"}, "fields": [{"kind": "money", "member": "m"}]}]}`},
		{"missing member", `{"tables": [{"id": "x", "auth": {"all": "public"}, "fields": [{"kind": "int"}]}]}`},
		{"enum without values", `{"tables": [{"id": "x", "auth": {"all": "public"}, "fields": [{"kind": "enum", "member": "s"}]}]}`},
		{"unknown property", `{"tables": [{"id": "x", "auth": {"all": "public"}, "fields": [{"kind": "pk", "colour": "red"}]}]}`},
		{"unknown context", `{"tables": [{"id": "x", "auth": {"permissions": {"always": "public"}}, "fields": [{"kind": "pk"}]}]}`},
		{"bad behavior", `{"tables": [{"id": "x", "auth": {"all": "public"}, "fields": [{"kind": "pk"}], "filters": {"id": ["sometimes"]}}]}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.doc), FormatJSON)
			assert.Error(t, err)
			assert.True(t, internal.IsConfigError(err), "%v", err)
		})
	}
}

func TestBuildReportsTableErrors(t *testing.T) {
	doc, err := Parse([]byte(`{"tables": [{"id": "x", "auth": {"all": "public"}, "fields": [
		{"kind": "pk"},
		{"kind": "int", "member": "n"}
	]}]}`), FormatJSON)
	assert.NoError(t, err)
	_, err = doc.Build(logger.NewTestLogger())
	assert.True(t, internal.IsConfigError(err))
}

func TestAuthDocumentSpec(t *testing.T) {
	var none *AuthDocument
	spec, err := none.Spec()
	assert.NoError(t, err)
	assert.True(t, spec.IsZero())

	spec, err = (&AuthDocument{Read: auth.Public}).Spec()
	assert.NoError(t, err)
	p, _ := spec.Permission(auth.PreInsert)
	assert.Equal(t, "", p)
	p, _ = spec.Permission(auth.PostQueryAsOwner)
	assert.Equal(t, auth.Public, p)

	spec, err = (&AuthDocument{All: auth.LoggedIn, Permissions: map[string]string{"preInsert": auth.Never}}).Spec()
	assert.NoError(t, err)
	_, ok := spec.Permission(auth.PostQuery)
	assert.False(t, ok)
}

func TestParseS3Location(t *testing.T) {
	u, _ := url.Parse("s3://schemas/prod/catalog.yaml?region=us-west-2&endpoint=localhost:9000")
	loc, err := parseS3Location(u)
	assert.NoError(t, err)
	assert.Equal(t, "schemas", loc.Bucket)
	assert.Equal(t, "prod/catalog.yaml", loc.Key)
	assert.Equal(t, "us-west-2", loc.Region)
	assert.Equal(t, "http://localhost:9000", loc.Endpoint)

	u, _ = url.Parse("s3://schemas")
	_, err = parseS3Location(u)
	assert.Error(t, err)
}

func TestKinds(t *testing.T) {
	assert.Contains(t, Kinds(), "tags")
	assert.Len(t, Kinds(), 16)
}
