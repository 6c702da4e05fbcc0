package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calfeed/internal/model"
)

func strPtr(s string) *string { return &s }

func fixture() []model.Occurrence {
	return []model.Occurrence{
		{
			SourceID: "team",
			Event: model.Event{
				Title:    "Team Sync",
				Start:    strPtr("2024-03-01T10:00:00Z"),
				End:      strPtr("2024-03-01T11:00:00Z"),
				Location: "Room 4, 2nd floor",
			},
		},
		{
			SourceID: "team",
			Event: model.Event{
				Title:       "Holiday",
				Start:       strPtr("2024-07-04"),
				End:         strPtr("2024-07-04"),
				AllDay:      true,
				Description: "No meetings; office closed",
			},
		},
	}
}

func fixedNow() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

func TestByName(t *testing.T) {
	for name, want := range map[string]any{
		"":     JSONEncoder{},
		"JSON": JSONEncoder{},
		"ics":  ICSEncoder{},
		"xcal": XCalEncoder{},
	} {
		enc, err := ByName(name)
		require.NoError(t, err, name)
		assert.IsType(t, want, enc, name)
	}

	_, err := ByName("csv")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestJSONEncoder_RecordShape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONEncoder{}.Encode(&buf, []model.Occurrence{{Event: fixture()[1].Event}}))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{
		"title":       "Holiday",
		"start":       "2024-07-04",
		"end":         "2024-07-04",
		"allDay":      true,
		"description": "No meetings; office closed",
		"location":    "",
	}, got[0])
}

func TestJSONEncoder_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONEncoder{}.Encode(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestICSEncoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ICSEncoder{Now: fixedNow}.Encode(&buf, fixture()))

	out := buf.String()
	assert.Contains(t, out, "DTSTART:20240301T100000Z")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20240704")
	assert.Contains(t, out, "PRODID:"+ProductID)

	cal, err := ical.NewDecoder(strings.NewReader(out)).Decode()
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)

	summary, err := events[0].Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Team Sync", summary)

	location, err := events[0].Props.Text(ical.PropLocation)
	require.NoError(t, err)
	assert.Equal(t, "Room 4, 2nd floor", location)

	uid, err := events[1].Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, EventUID(fixture()[1]), uid)
}

func TestICSEncoder_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, ICSEncoder{}.Encode(&buf, nil), ErrNothingToEncode)
}

func TestEventUID_Stable(t *testing.T) {
	a, b := fixture()[0], fixture()[0]
	assert.Equal(t, EventUID(a), EventUID(b))

	b.Title = "Other"
	assert.NotEqual(t, EventUID(a), EventUID(b))
	assert.True(t, strings.HasSuffix(EventUID(a), "@calfeed"))
}

func TestXCalEncoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XCalEncoder{}.Encode(&buf, fixture()))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))

	root := doc.SelectElement("icalendar")
	require.NotNil(t, root)
	assert.Equal(t, xcalNamespace, root.SelectAttrValue("xmlns", ""))

	vevents := doc.FindElements("//vevent")
	require.Len(t, vevents, 2)

	first := vevents[0]
	assert.Equal(t, "Team Sync", first.FindElement("properties/summary/text").Text())
	assert.Equal(t, "2024-03-01T10:00:00Z", first.FindElement("properties/dtstart/date-time").Text())

	second := vevents[1]
	assert.Equal(t, "2024-07-04", second.FindElement("properties/dtstart/date").Text())
	assert.Nil(t, second.FindElement("properties/location"))
	assert.Equal(t, "No meetings; office closed", second.FindElement("properties/description/text").Text())
}

func TestXCalEncoder_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, XCalEncoder{}.Encode(&buf, []model.Occurrence{}), ErrNothingToEncode)
}
