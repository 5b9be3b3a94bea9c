package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/77zv/EconomicNewsBot-acme/internal/database"
	"github.com/77zv/EconomicNewsBot-acme/internal/provider"
)

// fakeFetcher returns a canned event list per market and records the
// requested day range.
type fakeFetcher struct {
	byMarket map[string][]provider.RawEvent
	err      error
	calls    int
	gotFrom  time.Time
	gotTo    time.Time
}

func (f *fakeFetcher) FetchRange(_ context.Context, market string, from, to time.Time) ([]provider.RawEvent, error) {
	f.calls++
	f.gotFrom, f.gotTo = from, to
	if f.err != nil {
		return nil, f.err
	}
	return f.byMarket[market], nil
}

// fakeStore records upserts and can fail for selected titles.
type fakeStore struct {
	upserted   []*database.CalendarEvent
	existing   map[string]bool // identity titles treated as already stored
	failTitles map[string]bool
}

func (s *fakeStore) UpsertEvent(_ context.Context, ev *database.CalendarEvent) (bool, error) {
	if s.failTitles[ev.Title] {
		return false, fmt.Errorf("store unavailable")
	}
	s.upserted = append(s.upserted, ev)
	return !s.existing[ev.Title], nil
}
