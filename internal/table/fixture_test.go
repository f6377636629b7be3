package table

import (
	"testing"
	"time"

	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
	"github.com/stretchr/testify/assert"
)

var readWrite = auth.ReadWrite(auth.Public, auth.LoggedIn)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testUC(user *internal.User) *internal.UsageContext {
	uc := internal.NewUsageContext(internal.IntentionUser, user)
	uc.Now = testNow
	return uc
}

func anonUC() *internal.UsageContext {
	return testUC(nil)
}

func userUC(id int64, permissions ...string) *internal.UsageContext {
	return testUC(&internal.User{ID: id, Permissions: permissions})
}

func adminUC() *internal.UsageContext {
	return testUC(&internal.User{ID: 1, IsSysAdmin: true})
}

func sqlite(t *testing.T) sqlq.Dialect {
	d, err := sqlq.GetDialect("sqlite")
	assert.NoError(t, err)
	return d
}

func postgres(t *testing.T) sqlq.Dialect {
	d, err := sqlq.GetDialect("postgres")
	assert.NoError(t, err)
	return d
}

func genresDefinition() Definition {
	return Definition{
		ID:    "genres",
		Alias: "g",
		Auth:  readWrite,
		Fields: []Field{
			NewPKField(Options{}),
			NewStringField(StringOptions{Options: Options{Member: "name", Auth: readWrite}, Format: FormatTitle}),
			NewBoolField(Options{Member: "isDeleted", Special: SpecialIsDeleted, Auth: readWrite}),
		},
	}
}

func artistsDefinition() Definition {
	return Definition{
		ID:    "artists",
		Alias: "a",
		Auth:  readWrite,
		Fields: []Field{
			NewPKField(Options{}),
			NewStringField(StringOptions{Options: Options{Member: "name", Auth: readWrite}, Format: FormatTitle}),
			NewStringField(StringOptions{Options: Options{Member: "email", Auth: auth.ReadWrite(auth.LoggedIn, auth.LoggedIn), Nullable: true}, Format: FormatEmail}),
		},
	}
}

func eventsDefinition() Definition {
	attendance := auth.Permissions(auth.PermissionMap{
		auth.PostQuery:        "view_attendance",
		auth.PostQueryAsOwner: auth.Public,
		auth.PreInsert:        auth.LoggedIn,
		auth.PreMutate:        "edit_attendance",
		auth.PreMutateAsOwner: auth.LoggedIn,
	})
	return Definition{
		ID:    "events",
		Alias: "t",
		Auth:  readWrite,
		Fields: []Field{
			NewPKField(Options{}),
			NewStringField(StringOptions{Options: Options{Member: "title", Auth: readWrite}, Format: FormatTitle, MaxLength: 40}),
			NewIntField(IntOptions{Options: Options{Member: "attendance", Auth: attendance}, Searchable: true}),
			NewEnumField(EnumOptions{Options: Options{Member: "status", Auth: readWrite, Default: "draft"}, Values: []EnumValue{
				{Key: "draft", Label: "Draft"},
				{Key: "published", Label: "Published", Color: "green"},
			}}),
			NewColorField(ColorOptions{Options: Options{Member: "color", Auth: readWrite, Nullable: true}, Palette: "basic"}),
			NewForeignField(ForeignOptions{Options: Options{Member: "artist", Auth: readWrite, Nullable: true}, ForeignTable: "artists"}),
			NewTagsField(TagsOptions{
				Options:          Options{Member: "genres", Auth: readWrite},
				AssociationTable: "event_genres",
				LocalMember:      "eventId",
				ForeignMember:    "genreId",
				ForeignTable:     "genres",
			}),
			NewDateSearchField(Options{Member: "startsAt", Auth: readWrite}),
			NewStringField(StringOptions{Options: Options{Member: "visibility", Special: SpecialVisiblePermission, Auth: readWrite, Nullable: true}, Format: FormatRaw}),
			NewGhostField(Options{Member: "notes"}, false),
			NewCreatedByField(Options{}),
			NewCreatedAtField(Options{}),
			NewUpdatedAtField(Options{}),
			NewRevisionField(Options{}),
			NewBoolField(Options{Member: "isDeleted", Special: SpecialIsDeleted, Auth: readWrite}),
		},
		FilterBehaviors: map[string][]Behavior{
			"status":   {HasSomeOf, DoesntHaveAnyOf},
			"genres":   {HasSomeOf, HasAllOf, HasNone},
			"startsAt": {HasSomeOf},
		},
		DefaultSort: []Sort{{Member: "startsAt", Direction: Desc}},
	}
}

func basicPalette() Palette {
	return Palette{ID: "basic", Entries: []PaletteEntry{
		{ID: "red", Label: "Red", Color: "#ff0000"},
		{ID: "blue", Label: "Blue", Color: "#0000ff", Icon: "drop"},
	}}
}

func testRegistry(t *testing.T) *Registry {
	r, err := NewRegistryBuilder(logger.NewTestLogger()).
		AddPalette(basicPalette()).
		Add(genresDefinition()).
		Add(artistsDefinition()).
		Add(eventsDefinition()).
		Build()
	assert.NoError(t, err)
	return r
}

func eventsTable(t *testing.T) *Table {
	return testRegistry(t).MustTable("events")
}
