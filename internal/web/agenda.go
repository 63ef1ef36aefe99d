package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"calshell/internal/config"
	"calshell/internal/ics"
	appLog "calshell/internal/log"
)

// Agenda keeps the parsed events of all configured feeds in memory and
// refetches them when they are older than ttl or on Refresh.
type Agenda struct {
	sources   []ics.Source
	fetcher   *ics.Fetcher
	loc       *time.Location
	highlight []string
	ttl       time.Duration
	now       func() time.Time

	refreshMu sync.Mutex // serializes fetches

	mu        sync.Mutex
	events    []ics.Event
	fetchedAt time.Time
}

// NewAgenda builds an Agenda from cfg. client may be nil.
func NewAgenda(cfg *config.Config, client *http.Client, ttl time.Duration) *Agenda {
	return &Agenda{
		sources:   sourcesFromConfig(cfg.ICS),
		fetcher:   ics.NewFetcher(cfg.ICSCacheDir(), client),
		loc:       cfg.Location(),
		highlight: cfg.HighlightRed,
		ttl:       ttl,
		now:       time.Now,
	}
}

// sourcesFromConfig drops sources without URL and derives missing IDs.
func sourcesFromConfig(list []config.ICSConfig) []ics.Source {
	out := make([]ics.Source, 0, len(list))
	for _, c := range list {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			id = c.Name
		}
		if id == "" {
			id = c.URL
		}
		out = append(out, ics.Source{ID: id, Name: c.Name, URL: c.URL})
	}
	return out
}

// Refresh fetches and parses every feed now. Sources that fail are
// reported in the returned error; the others still replace the cache.
// Readers keep seeing the previous events until the new set is swapped in.
func (a *Agenda) Refresh(ctx context.Context) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()
	return a.refresh(ctx)
}

// refresh requires refreshMu. mu is only held for the swap.
func (a *Agenda) refresh(ctx context.Context) error {
	feeds, errs := a.fetcher.FetchAll(ctx, a.sources)
	var events []ics.Event
	for _, feed := range feeds {
		parsed, err := ics.Parse(feed.Source, feed.Body)
		if err != nil {
			appLog.Error("agenda parse failed", err, "id", feed.Source.ID)
			errs = append(errs, err)
			continue
		}
		events = append(events, parsed...)
	}

	a.mu.Lock()
	a.events = events
	a.fetchedAt = a.now()
	a.mu.Unlock()

	appLog.Info("agenda refreshed", "sources", len(a.sources), "events", len(events), "errors", len(errs))
	return errors.Join(errs...)
}

func (a *Agenda) snapshot() ([]ics.Event, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.events, a.fetchedAt
}

// current returns the cached events, refreshing them when stale. While
// another refresh is in flight the previous set is returned; only the very
// first load waits for it.
func (a *Agenda) current(ctx context.Context) []ics.Event {
	events, fetchedAt := a.snapshot()
	if !fetchedAt.IsZero() && a.now().Sub(fetchedAt) < a.ttl {
		return events
	}
	if !a.refreshMu.TryLock() {
		if !fetchedAt.IsZero() {
			return events
		}
		a.refreshMu.Lock()
		if events, fetchedAt = a.snapshot(); !fetchedAt.IsZero() {
			a.refreshMu.Unlock()
			return events
		}
	}
	defer a.refreshMu.Unlock()
	if err := a.refresh(ctx); err != nil {
		appLog.Warn("agenda refresh incomplete", "reason", err)
	}
	events, _ = a.snapshot()
	return events
}

// Window expands the cached events into occurrences overlapping [start, end).
func (a *Agenda) Window(ctx context.Context, start, end time.Time) (ics.Expansion, error) {
	return ics.Expand(a.current(ctx), ics.Window{
		Location:  a.loc,
		Start:     start,
		End:       end,
		Highlight: a.highlight,
	})
}

// LastRefresh is the time of the last completed fetch, zero before the first.
func (a *Agenda) LastRefresh() time.Time {
	_, fetchedAt := a.snapshot()
	return fetchedAt
}
