package table

import (
	"testing"

	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestRegistryBuild(t *testing.T) {
	r := testRegistry(t)
	var ids []string
	for _, tbl := range r.Tables() {
		ids = append(ids, tbl.ID())
		assert.Equal(t, r, tbl.Registry())
	}
	assert.Equal(t, []string{"artists", "events", "genres"}, ids)

	events := r.MustTable("events")
	artist := events.Field("artist").(*ForeignField)
	assert.Equal(t, r.MustTable("artists"), artist.ForeignTable())
	genres := events.Field("genres").(*TagsField)
	assert.Equal(t, r.MustTable("genres"), genres.ForeignTable())
	assert.Equal(t, "event_genres", genres.AssociationTable())

	_, ok := r.Palette("basic")
	assert.True(t, ok)
	assert.Panics(t, func() { r.MustTable("nope") })
}

func TestRegistryPalettesFixedAtBuild(t *testing.T) {
	b := NewRegistryBuilder(logger.NewTestLogger()).AddPalette(basicPalette()).Add(genresDefinition())
	r, err := b.Build()
	assert.NoError(t, err)
	b.AddPalette(Palette{ID: "late"})
	b.AddPalette(Palette{ID: "basic"})
	_, ok := r.Palette("late")
	assert.False(t, ok)
	p, ok := r.Palette("basic")
	assert.True(t, ok)
	assert.Len(t, p.Entries, 2)
}

func TestRegistryBuildOnce(t *testing.T) {
	b := NewRegistryBuilder(logger.NewTestLogger()).Add(genresDefinition())
	_, err := b.Build()
	assert.NoError(t, err)
	_, err = b.Build()
	assert.True(t, internal.IsConfigError(err))
}

func TestRegistryConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *RegistryBuilder
	}{
		{"duplicate table", func() *RegistryBuilder {
			return NewRegistryBuilder(logger.NewTestLogger()).Add(genresDefinition()).Add(genresDefinition())
		}},
		{"unknown foreign table", func() *RegistryBuilder {
			return NewRegistryBuilder(logger.NewTestLogger()).AddPalette(basicPalette()).Add(genresDefinition()).Add(eventsDefinition())
		}},
		{"unknown palette", func() *RegistryBuilder {
			return NewRegistryBuilder(logger.NewTestLogger()).Add(genresDefinition()).Add(artistsDefinition()).Add(eventsDefinition())
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := test.build().Build()
			assert.Error(t, err)
			assert.True(t, internal.IsConfigError(err))
		})
	}
}

func TestNewTableConfigErrors(t *testing.T) {
	pk := func() Field { return NewPKField(Options{}) }
	tests := []struct {
		name string
		def  Definition
	}{
		{"missing id", Definition{Auth: readWrite, Fields: []Field{pk()}}},
		{"missing row auth", Definition{ID: "x", Fields: []Field{pk()}}},
		{"bad alias", Definition{ID: "x", Alias: "1 x", Auth: readWrite, Fields: []Field{pk()}}},
		{"no primary key", Definition{ID: "x", Auth: readWrite, Fields: []Field{NewStringField(StringOptions{Options: Options{Member: "name", Auth: readWrite}})}}},
		{"two primary keys", Definition{ID: "x", Auth: readWrite, Fields: []Field{pk(), NewPKField(Options{Member: "key"})}}},
		{"duplicate member", Definition{ID: "x", Auth: readWrite, Fields: []Field{pk(), NewIntField(IntOptions{Options: Options{Member: "id", Auth: readWrite}})}}},
		{"field without auth", Definition{ID: "x", Auth: readWrite, Fields: []Field{pk(), NewIntField(IntOptions{Options: Options{Member: "n"}})}}},
		{"visibility without owner", Definition{ID: "x", Auth: readWrite, Fields: []Field{
			pk(),
			NewStringField(StringOptions{Options: Options{Member: "visibility", Special: SpecialVisiblePermission, Auth: readWrite}, Format: FormatRaw}),
		}}},
		{"soft delete not a bool", Definition{ID: "x", Auth: readWrite, Fields: []Field{
			pk(),
			NewIntField(IntOptions{Options: Options{Member: "isDeleted", Special: SpecialIsDeleted, Auth: readWrite}}),
		}}},
		{"sort by unknown member", Definition{ID: "x", Auth: readWrite, Fields: []Field{pk()}, DefaultSort: []Sort{{Member: "nope"}}}},
		{"tags without association", Definition{ID: "x", Auth: readWrite, Fields: []Field{pk(), NewTagsField(TagsOptions{Options: Options{Member: "tags", Auth: readWrite}})}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewTable(test.def)
			assert.True(t, internal.IsConfigError(err), "%v", err)
		})
	}
}

func TestFieldBelongsToOneTable(t *testing.T) {
	f := NewStringField(StringOptions{Options: Options{Member: "name", Auth: readWrite}})
	_, err := NewTable(Definition{ID: "a", Auth: readWrite, Fields: []Field{NewPKField(Options{}), f}})
	assert.NoError(t, err)
	_, err = NewTable(Definition{ID: "b", Auth: readWrite, Fields: []Field{NewPKField(Options{}), f}})
	assert.True(t, internal.IsConfigError(err))
}

func TestTableAccessors(t *testing.T) {
	tbl := eventsTable(t)
	assert.Equal(t, "id", tbl.PKMember())
	assert.Equal(t, "title", tbl.LabelField().Member())
	assert.Equal(t, "createdBy", tbl.OwnerField().Member())
	assert.Equal(t, tbl.Field("artist"), tbl.Field("artistId"))
	assert.Nil(t, tbl.Field("nope"))
	assert.NotContains(t, tbl.Columns(), "genres")
	assert.NotContains(t, tbl.Columns(), "notes")
	assert.Contains(t, tbl.Columns(), "artistId")
	assert.Equal(t, int64(5), tbl.OwnerID(internal.Row{"createdBy": int64(5)}, 9))
	assert.Equal(t, int64(9), tbl.OwnerID(internal.Row{}, 9))
	assert.Equal(t, []Behavior{HasSomeOf, DoesntHaveAnyOf}, tbl.FilterBehaviors("status"))

	assert.Equal(t, tbl.Fingerprint(), eventsTable(t).Fingerprint())
	other, err := NewTable(Definition{ID: "events", Auth: auth.Uniform(auth.Public), Fields: []Field{NewPKField(Options{})}})
	assert.NoError(t, err)
	assert.NotEqual(t, tbl.Fingerprint(), other.Fingerprint())
}

func TestCreateNewAndClientMapping(t *testing.T) {
	tbl := eventsTable(t)
	row := tbl.CreateNew(userUC(3))
	assert.Equal(t, "draft", row["status"])
	assert.Equal(t, int64(3), row["createdBy"])
	assert.Equal(t, testNow, row["updatedAt"])

	store := internal.Row{"id": int64(1), "title": "Gala", "color": "red", "artistId": int64(2), "artist": internal.Row{"id": int64(2), "name": "Nina"}}
	client := tbl.StoreToClient(store, anonUC())
	assert.Equal(t, "Red", client["color"].(internal.Row)["label"])
	assert.Equal(t, int64(2), client["artistId"])
	back := tbl.ClientToStore(client, internal.RowModeUpdate)
	assert.Equal(t, "red", back["color"])
	assert.Equal(t, int64(2), back["artistId"])
	assert.Equal(t, "Gala", back["title"])
}
