package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calfeed/internal/config"
	"calfeed/internal/feed"
	"calfeed/internal/model"
)

func strPtr(s string) *string { return &s }

func testSnapshot() feed.Snapshot {
	return feed.Snapshot{
		Occurrences: []model.Occurrence{
			{SourceID: "team", Event: model.Event{Title: "Team Sync", Start: strPtr("2024-03-01T10:00:00Z"), End: strPtr("2024-03-01T11:00:00Z")}},
			{SourceID: "holidays", Event: model.Event{Title: "Holiday", Start: strPtr("2024-07-04"), End: strPtr("2024-07-04"), AllDay: true}},
		},
		Sources:   []feed.SourceStatus{{ID: "team", OK: true, EventCount: 1}, {ID: "holidays", OK: true, EventCount: 1}},
		UpdatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

type stubRefresher struct {
	calls int
	snap  feed.Snapshot
	ctx   context.Context
}

func (s *stubRefresher) Refresh(ctx context.Context) feed.Snapshot {
	s.calls++
	s.ctx = ctx
	return s.snap
}

func newTestServer(t *testing.T, cfg *config.Config, refresher Refresher) *httptest.Server {
	store := feed.NewStore()
	store.Set(testSnapshot())
	srv := httptest.NewServer(NewServer(cfg, store, refresher).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, config.DefaultConfig(), nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEvents(t *testing.T) {
	srv := newTestServer(t, config.DefaultConfig(), nil)

	resp, err := http.Get(srv.URL + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Events []map[string]any `json:"events"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Events, 2)
	assert.Equal(t, "Team Sync", body.Events[0]["title"])
	assert.Equal(t, "team", body.Events[0]["source_id"])
	assert.Equal(t, true, body.Events[1]["allDay"])
}

func TestEvents_FilterBySource(t *testing.T) {
	srv := newTestServer(t, config.DefaultConfig(), nil)

	resp, err := http.Get(srv.URL + "/api/events?source=holidays")
	require.NoError(t, err)
	defer resp.Body.Close()

	var snap feed.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Len(t, snap.Occurrences, 1)
	assert.Equal(t, "Holiday", snap.Occurrences[0].Title)
}

func TestExportEndpoints(t *testing.T) {
	srv := newTestServer(t, config.DefaultConfig(), nil)

	resp, err := http.Get(srv.URL + "/api/events.ics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/calendar"))

	resp2, err := http.Get(srv.URL + "/api/events.xcal?source=team")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3, err := http.Get(srv.URL + "/api/events.ics?source=nobody")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp3.StatusCode)
}

func TestRefresh(t *testing.T) {
	stub := &stubRefresher{snap: feed.Snapshot{Occurrences: []model.Occurrence{}, Sources: []feed.SourceStatus{}}}
	srv := newTestServer(t, config.DefaultConfig(), stub)

	resp, err := http.Post(srv.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, stub.calls)

	resp2, err := http.Get(srv.URL + "/api/refresh")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}

func TestRefresh_Unavailable(t *testing.T) {
	srv := newTestServer(t, config.DefaultConfig(), nil)

	resp, err := http.Post(srv.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	srv := newTestServer(t, cfg, nil)

	resp, err := http.Get(srv.URL + "/api/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRefresh_SurvivesClientDisconnect(t *testing.T) {
	refresher := &stubRefresher{snap: testSnapshot()}
	handler := NewServer(config.DefaultConfig(), feed.NewStore(), refresher).Handler()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, refresher.calls)
	assert.NoError(t, refresher.ctx.Err())
}
