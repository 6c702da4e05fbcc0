package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calfeed/internal/config"
	"calfeed/internal/ics"
)

type fakeFetcher map[string]ics.FetchResult

func (f fakeFetcher) FetchOne(_ context.Context, src ics.Source) (ics.FetchResult, error) {
	res, ok := f[src.ID]
	if !ok {
		return ics.FetchResult{}, errors.New("connection refused")
	}
	res.Source = src
	return res, nil
}

const teamCalendar = "BEGIN:VCALENDAR\r\n" +
	"BEGIN:VEVENT\r\nSUMMARY:Team Sync\r\nDTSTART:20240301T100000Z\r\nEND:VEVENT\r\n" +
	"BEGIN:VEVENT\r\nSUMMARY:Broken\r\nDTSTART:notadate\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestPipelineRefresh(t *testing.T) {
	fetcher := fakeFetcher{
		"team":  {Body: []byte(teamCalendar), FromCache: true},
		"login": {Body: []byte("<html>please sign in</html>")},
	}
	sources := []ics.Source{{ID: "team", URL: "https://example.com/t.ics"}, {ID: "login", URL: "https://example.com/l.ics"}, {ID: "down", URL: "https://example.com/d.ics"}}

	p := NewPipeline(sources, fetcher, nil)
	p.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

	snap := p.Refresh(context.Background())
	require.Len(t, snap.Occurrences, 1)
	assert.Equal(t, "team", snap.Occurrences[0].SourceID)
	assert.Equal(t, "Team Sync", snap.Occurrences[0].Title)
	assert.Equal(t, "2024-03-01T10:00:00Z", snap.Occurrences[0].EndValue())
	assert.Equal(t, p.now(), snap.UpdatedAt)

	require.Len(t, snap.Sources, 3)
	assert.True(t, snap.Sources[0].OK)
	assert.True(t, snap.Sources[0].FromCache)
	assert.Equal(t, 1, snap.Sources[0].EventCount)
	assert.Equal(t, 1, snap.Sources[0].Stats.MissingStart)

	assert.False(t, snap.Sources[1].OK)
	assert.Contains(t, snap.Sources[1].Error, "not a calendar")

	assert.False(t, snap.Sources[2].OK)
	assert.Equal(t, "connection refused", snap.Sources[2].Error)
}

func TestParseBody(t *testing.T) {
	events, _, err := ParseBody(ics.NativeEngine{}, []byte(teamCalendar))
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, _, err = ParseBody(ics.NativeEngine{}, []byte("X-WR-CALNAME:Team\r\n"))
	assert.ErrorIs(t, err, ErrNotCalendar)
}

func TestSourcesFromConfig(t *testing.T) {
	got := SourcesFromConfig([]config.FeedConfig{
		{ID: "a", URL: "https://example.com/a.ics"},
		{ID: "empty"},
	})
	assert.Equal(t, []ics.Source{{ID: "a", URL: "https://example.com/a.ics"}}, got)
}

func TestRefresherUpdatesStore(t *testing.T) {
	store := NewStore()
	assert.Empty(t, store.Get().Occurrences)

	r := &Refresher{
		Pipeline: NewPipeline([]ics.Source{{ID: "team"}}, fakeFetcher{"team": {Body: []byte(teamCalendar)}}, ics.NativeEngine{}),
		Store:    store,
	}
	snap := r.Refresh(context.Background())
	assert.Len(t, snap.Occurrences, 1)
	assert.Equal(t, snap, store.Get())
}
