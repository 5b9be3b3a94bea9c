package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/77zv/EconomicNewsBot-acme/internal/config"
	"github.com/77zv/EconomicNewsBot-acme/internal/events"
	"github.com/77zv/EconomicNewsBot-acme/internal/provider"
)

var usMarket = []config.Market{{Name: "us", Timezone: "America/New_York"}}

func TestJob_Run_SkipDontAbort(t *testing.T) {
	fetcher := &fakeFetcher{byMarket: map[string][]provider.RawEvent{
		"us": {
			{Title: "Non-Farm Payrolls", Country: "USD", Date: "2025-03-14T08:30:00-04:00", Impact: "High", Forecast: "200K", Previous: "180K"},
			{Title: "Martian GDP", Country: "MRS", Date: "2025-03-14T09:00:00-04:00", Impact: "High"},
			{Title: "CPI m/m", Country: "USD", Date: "2025-03-15T08:30:00-04:00", Impact: "Medium", Forecast: "0.3%"},
			{Title: "Bank Holiday", Country: "USD", Date: "2025-03-17T00:00:00-04:00", Impact: "Holiday"},
			{Title: "Broken Date", Country: "USD", Date: "not-a-date", Impact: "Low"},
		},
	}}
	store := &fakeStore{}

	job := NewJob(fetcher, store, usMarket, 14, "forexfactory")
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Unknown currency, unknown impact and malformed date are each skipped;
	// the two valid items land in the store.
	if len(store.upserted) != 2 {
		t.Fatalf("upserted %d events, want 2", len(store.upserted))
	}
	if store.upserted[0].Title != "Non-Farm Payrolls" || store.upserted[1].Title != "CPI m/m" {
		t.Errorf("unexpected upserted events: %v, %v", store.upserted[0].Title, store.upserted[1].Title)
	}
}

func TestJob_Run_StoreFailureSkipsItem(t *testing.T) {
	fetcher := &fakeFetcher{byMarket: map[string][]provider.RawEvent{
		"us": {
			{Title: "First", Country: "USD", Date: "2025-03-14T08:30:00-04:00", Impact: "High"},
			{Title: "Poisoned", Country: "USD", Date: "2025-03-14T09:00:00-04:00", Impact: "High"},
			{Title: "Third", Country: "USD", Date: "2025-03-14T10:00:00-04:00", Impact: "Low"},
		},
	}}
	store := &fakeStore{failTitles: map[string]bool{"Poisoned": true}}

	job := NewJob(fetcher, store, usMarket, 14, "forexfactory")
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.upserted) != 2 {
		t.Errorf("upserted %d events, want 2 (store failure must not abort the batch)", len(store.upserted))
	}
}

func TestJob_Run_FetchFailureDoesNotFailOtherMarkets(t *testing.T) {
	markets := []config.Market{
		{Name: "down", Timezone: "America/New_York"},
		{Name: "us", Timezone: "America/New_York"},
	}
	fetcher := &marketAwareFetcher{
		failMarket: "down",
		events: []provider.RawEvent{
			{Title: "CPI m/m", Country: "USD", Date: "2025-03-15T08:30:00-04:00", Impact: "Medium"},
		},
	}
	store := &fakeStore{}

	job := NewJob(fetcher, store, markets, 7, "forexfactory")
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v (market fetch failures are cycle-local)", err)
	}
	if len(store.upserted) != 1 {
		t.Errorf("upserted %d events, want 1 from the healthy market", len(store.upserted))
	}
}

type marketAwareFetcher struct {
	failMarket string
	events     []provider.RawEvent
}

func (f *marketAwareFetcher) FetchRange(_ context.Context, market string, _, _ time.Time) ([]provider.RawEvent, error) {
	if market == f.failMarket {
		return nil, fmt.Errorf("provider unreachable")
	}
	return f.events, nil
}

func TestMapRawEvent(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}

	raw := provider.RawEvent{
		Title:    "FOMC Statement",
		Country:  "USD",
		Date:     "2025-11-16T16:45:00-05:00",
		Impact:   "High",
		Forecast: "5.50%",
		Previous: "5.25%",
	}

	ev, err := mapRawEvent(raw, newYork, "forexfactory")
	if err != nil {
		t.Fatalf("mapRawEvent() error = %v", err)
	}
	if ev.Currency != events.CurrencyUSD {
		t.Errorf("currency = %v, want USD", ev.Currency)
	}
	if ev.Impact != events.ImpactHigh {
		t.Errorf("impact = %v, want HIGH", ev.Impact)
	}
	if got := ev.EventTime.Format(events.NaiveLayout); got != "2025-11-16T16:45:00" {
		t.Errorf("event time = %s, want naive wall clock 2025-11-16T16:45:00", got)
	}
	if ev.Source != "forexfactory" {
		t.Errorf("source = %s, want forexfactory", ev.Source)
	}
}

func TestMapRawEvent_TruncatesSeconds(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}

	// Some provider items carry nonzero seconds. The scanner only queries
	// minute boundaries, so the stored timestamp must land on one or the
	// event would never fire.
	raw := provider.RawEvent{
		Title:   "Crude Oil Inventories",
		Country: "USD",
		Date:    "2025-03-14T08:30:30-04:00",
		Impact:  "Medium",
	}

	ev, err := mapRawEvent(raw, newYork, "forexfactory")
	if err != nil {
		t.Fatalf("mapRawEvent() error = %v", err)
	}
	if got := ev.EventTime.Format(events.NaiveLayout); got != "2025-03-14T08:30:00" {
		t.Errorf("event time = %s, want minute boundary 2025-03-14T08:30:00", got)
	}
}

func TestJob_Run_LookaheadWindow(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := &fakeStore{}

	job := NewJob(fetcher, store, usMarket, 14, "forexfactory")
	job.now = func() time.Time {
		return time.Date(2025, 3, 14, 10, 27, 3, 0, time.UTC)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantFrom := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	if !fetcher.gotFrom.Equal(wantFrom) {
		t.Errorf("fetch from = %v, want start of day %v", fetcher.gotFrom, wantFrom)
	}
	if want := wantFrom.AddDate(0, 0, 14); !fetcher.gotTo.Equal(want) {
		t.Errorf("fetch to = %v, want %v", fetcher.gotTo, want)
	}
}

func TestJob_Run_ReingestionUpdatesExisting(t *testing.T) {
	fetcher := &fakeFetcher{byMarket: map[string][]provider.RawEvent{
		"us": {
			{Title: "Non-Farm Payrolls", Country: "USD", Date: "2025-03-14T08:30:00-04:00", Impact: "High", Forecast: "210K"},
		},
	}}
	store := &fakeStore{existing: map[string]bool{"Non-Farm Payrolls": true}}

	job := NewJob(fetcher, store, usMarket, 14, "forexfactory")
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.upserted) != 1 {
		t.Fatalf("upserted %d events, want 1", len(store.upserted))
	}
	if store.upserted[0].Forecast != "210K" {
		t.Errorf("forecast = %s, want refreshed 210K", store.upserted[0].Forecast)
	}
}
