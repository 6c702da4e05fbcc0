// Package feed aggregates configured calendar feeds into one snapshot of
// event occurrences.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"calfeed/internal/config"
	"calfeed/internal/ics"
	appLog "calfeed/internal/log"
	"calfeed/internal/model"
)

// ErrNotCalendar marks a fetched body that does not start with
// BEGIN:VCALENDAR, e.g. an HTML login page served instead of the feed.
var ErrNotCalendar = errors.New("feed: response is not a calendar document")

// Fetcher is the transport collaborator; *ics.Fetcher satisfies it.
type Fetcher interface {
	FetchOne(ctx context.Context, src ics.Source) (ics.FetchResult, error)
}

// SourceStatus reports how one feed fared in the last refresh.
type SourceStatus struct {
	ID         string    `json:"id"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	FromCache  bool      `json:"from_cache"`
	EventCount int       `json:"event_count"`
	Stats      ics.Stats `json:"-"`
}

// Snapshot is the result of one refresh across all feeds.
type Snapshot struct {
	Occurrences []model.Occurrence `json:"events"`
	Sources     []SourceStatus     `json:"sources"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Pipeline fetches, validates and parses every configured feed.
type Pipeline struct {
	sources []ics.Source
	fetcher Fetcher
	engine  ics.Engine
	now     func() time.Time
}

// NewPipeline builds a pipeline over the given sources.
func NewPipeline(sources []ics.Source, fetcher Fetcher, engine ics.Engine) *Pipeline {
	if engine == nil {
		engine = ics.NativeEngine{}
	}
	return &Pipeline{
		sources: sources,
		fetcher: fetcher,
		engine:  engine,
		now:     time.Now,
	}
}

// SourcesFromConfig converts feed config entries, skipping those without a URL.
func SourcesFromConfig(feeds []config.FeedConfig) []ics.Source {
	out := make([]ics.Source, 0, len(feeds))
	for _, f := range feeds {
		if f.URL == "" {
			continue
		}
		out = append(out, ics.Source{ID: f.ID, URL: f.URL})
	}
	return out
}

// Refresh runs every source through fetch, the calendar gate and the parser.
// Per-source failures are recorded in the snapshot rather than returned.
func (p *Pipeline) Refresh(ctx context.Context) Snapshot {
	snap := Snapshot{
		Occurrences: make([]model.Occurrence, 0),
		Sources:     make([]SourceStatus, 0, len(p.sources)),
	}

	for _, src := range p.sources {
		status, events := p.refreshOne(ctx, src)
		snap.Sources = append(snap.Sources, status)
		for _, ev := range events {
			snap.Occurrences = append(snap.Occurrences, model.Occurrence{SourceID: src.ID, Event: ev})
		}
	}

	snap.UpdatedAt = p.now().UTC()
	appLog.Info("feed refresh completed", "sources", len(snap.Sources), "event_count", len(snap.Occurrences))
	return snap
}

func (p *Pipeline) refreshOne(ctx context.Context, src ics.Source) (SourceStatus, []model.Event) {
	status := SourceStatus{ID: src.ID}

	res, err := p.fetcher.FetchOne(ctx, src)
	if err != nil {
		appLog.Error("feed fetch failed", err, "id", src.ID)
		status.Error = err.Error()
		return status, nil
	}
	status.FromCache = res.FromCache

	events, stats, err := ParseBody(p.engine, res.Body)
	if err != nil {
		appLog.Error("feed rejected", err, "id", src.ID)
		status.Error = err.Error()
		return status, nil
	}

	status.OK = true
	status.EventCount = len(events)
	status.Stats = stats
	appLog.Info("feed parsed", "id", src.ID, "event_count", len(events),
		"missing_start", stats.MissingStart, "unterminated", stats.Unterminated, "malformed_dates", stats.MalformedDates)
	return status, events
}

// ParseBody gates body on the calendar check and parses it with engine.
func ParseBody(engine ics.Engine, body []byte) ([]model.Event, ics.Stats, error) {
	out := engine.Parse(string(body))
	if !out.LooksLikeCalendar {
		return nil, ics.Stats{}, fmt.Errorf("%w (%d bytes)", ErrNotCalendar, len(body))
	}
	return out.Events, out.Stats, nil
}

// Store holds the latest snapshot for concurrent readers.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewStore() *Store {
	return &Store{snap: Snapshot{
		Occurrences: []model.Occurrence{},
		Sources:     []SourceStatus{},
	}}
}

func (s *Store) Set(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Refresher refreshes a pipeline into a store and returns the new snapshot.
type Refresher struct {
	Pipeline *Pipeline
	Store    *Store

	mu sync.Mutex
}

// Refresh serializes concurrent refreshes so a scheduled run and a manual
// trigger never interleave.
func (r *Refresher) Refresh(ctx context.Context) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.Pipeline.Refresh(ctx)
	r.Store.Set(snap)
	return snap
}
