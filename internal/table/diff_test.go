package table

import (
	"strings"
	"testing"
	"time"

	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/stretchr/testify/assert"
)

var earlier = testNow.Add(-48 * time.Hour)

func priorEvent() internal.Row {
	return internal.Row{
		"id":         int64(7),
		"title":      "Gala",
		"attendance": int64(10),
		"status":     "draft",
		"color":      nil,
		"artistId":   nil,
		"genres":     []internal.Row{{"id": int64(1), "eventId": int64(7), "genreId": int64(1)}},
		"startsAt":   nil,
		"createdBy":  int64(5),
		"createdAt":  earlier,
		"updatedAt":  earlier,
		"revision":   int64(3),
		"isDeleted":  false,
	}
}

func TestDiffNewRow(t *testing.T) {
	tbl := eventsTable(t)
	res := tbl.Diff(nil, internal.Row{"title": "  Gala  ", "attendance": "10"}, internal.RowModeNew, userUC(5))
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "Gala", res.Model["title"])
	assert.Equal(t, int64(10), res.Model["attendance"])
	assert.Equal(t, "draft", res.Model["status"])
	assert.Equal(t, int64(5), res.Model["createdBy"])
	assert.Equal(t, testNow, res.Model["createdAt"])
	assert.Equal(t, int64(0), res.Model["revision"])
	assert.Equal(t, []internal.Row{}, res.Model["genres"])

	members := res.ChangedMembers()
	assert.Contains(t, members, "title")
	assert.Contains(t, members, "status")
	assert.NotContains(t, members, "id")
}

func TestDiffCollectsEveryError(t *testing.T) {
	tbl := eventsTable(t)
	before := internal.MetricValue(internal.ValidationErrors)
	res := tbl.Diff(priorEvent(), internal.Row{
		"title":      strings.Repeat("x", 41),
		"attendance": "lots",
		"status":     "C",
		"color":      "red",
	}, internal.RowModeUpdate, userUC(5))
	assert.False(t, res.Success)
	assert.Equal(t, map[string]string{
		"title":      "must be at most 40 characters",
		"attendance": "must be a number",
		"status":     "unrecognized option 'C'",
	}, res.Errors)
	assert.Equal(t, before+3, internal.MetricValue(internal.ValidationErrors))
	// valid values still merge into the candidate
	color, ok := res.Model["color"].(internal.Row)
	assert.True(t, ok)
	assert.Equal(t, "red", color["id"])
}

func TestDiffUpdateStampsUpdatedAt(t *testing.T) {
	tbl := eventsTable(t)
	prior := priorEvent()
	res := tbl.Diff(prior, internal.Row{"id": int64(7), "title": "Gala ", "status": "published", "createdAt": testNow}, internal.RowModeUpdate, userUC(5))
	assert.True(t, res.Success)
	assert.Equal(t, []string{"status", "updatedAt"}, res.ChangedMembers())

	c, ok := res.Changed("status")
	assert.True(t, ok)
	assert.Equal(t, "draft", c.Old)
	assert.Equal(t, "published", c.New)

	c, ok = res.Changed("updatedAt")
	assert.True(t, ok)
	assert.Equal(t, earlier, c.Old)
	assert.Equal(t, testNow, c.New)
	assert.Equal(t, earlier, res.Model["createdAt"])

	// inputs are untouched
	assert.Equal(t, "draft", prior["status"])
}

func TestDiffUpdateWithoutChanges(t *testing.T) {
	tbl := eventsTable(t)
	res := tbl.Diff(priorEvent(), internal.Row{
		"id":     int64(7),
		"title":  "Gala",
		"genres": []any{map[string]any{"genreId": 1}},
	}, internal.RowModeUpdate, userUC(5))
	assert.True(t, res.Success)
	assert.Empty(t, res.Changes)
	assert.Equal(t, earlier, res.Model["updatedAt"])
}

func TestDiffUnknownMembers(t *testing.T) {
	tbl := eventsTable(t)
	res := tbl.Diff(priorEvent(), internal.Row{"zzz": 1, "artistId": 2}, internal.RowModeUpdate, userUC(5))
	assert.True(t, res.Success)
	assert.Equal(t, internal.Row{"zzz": 1}, res.Unknown)
	assert.NotContains(t, res.Model, "zzz")
	assert.Equal(t, []string{"artist", "updatedAt"}, res.ChangedMembers())
}
