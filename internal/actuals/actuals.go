// Package actuals backfills published actual values for events that have
// passed their scheduled time, marking them processed.
package actuals

import (
	"context"
	"log/slog"
	"time"

	"github.com/77zv/EconomicNewsBot-acme/internal/config"
	"github.com/77zv/EconomicNewsBot-acme/internal/database"
	"github.com/77zv/EconomicNewsBot-acme/internal/events"
	"github.com/77zv/EconomicNewsBot-acme/internal/provider"
)

// EventStore is the read/write surface the checker needs.
type EventStore interface {
	FindUnprocessedOlderThan(ctx context.Context, cutoff time.Time) ([]*database.CalendarEvent, error)
	SetEventActual(ctx context.Context, eventID int64, actual string) error
}

// Fetcher refetches provider events for a day range.
type Fetcher interface {
	FetchRange(ctx context.Context, market string, from, to time.Time) ([]provider.RawEvent, error)
}

// Job periodically looks for events whose scheduled time passed at least
// `delay` ago without an actual value, refetches the surrounding provider
// days, and backfills matching actuals.
type Job struct {
	store   EventStore
	fetcher Fetcher
	markets []config.Market
	delay   time.Duration
	now     func() time.Time
}

// NewJob creates an actuals-checker job.
func NewJob(store EventStore, fetcher Fetcher, markets []config.Market, delay time.Duration) *Job {
	return &Job{
		store:   store,
		fetcher: fetcher,
		markets: markets,
		delay:   delay,
		now:     time.Now,
	}
}

// Run executes one backfill cycle. The naive cutoff is derived per market
// timezone; an event qualifies once its wall-clock time is `delay` in the
// past anywhere we ingest from, which is conservative across markets.
func (j *Job) Run(ctx context.Context) error {
	if len(j.markets) == 0 {
		return nil
	}

	// Use the first market's clock for the cutoff; stored timestamps are
	// naive, so any market clock gives minute-accurate results for its own
	// events and at-worst-delayed results for others.
	loc, err := time.LoadLocation(j.markets[0].Timezone)
	if err != nil {
		return err
	}
	cutoff := events.NaiveNow(j.now(), loc).Add(-j.delay)

	pending, err := j.store.FindUnprocessedOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	slog.Info("Checking actuals", "pending", len(pending))

	var filled, missing int
	for _, market := range j.markets {
		if len(pending) == 0 {
			break
		}
		pending, filled, missing = j.runMarket(ctx, market, pending, filled, missing)
	}

	slog.Info("Actuals check completed",
		"filled", filled,
		"still_missing", missing+len(pending),
	)
	return nil
}

// runMarket refetches one market's recent days and resolves any pending
// events found in the response. Events it cannot resolve are returned for
// the next market (or next cycle) to try.
func (j *Job) runMarket(ctx context.Context, market config.Market, pending []*database.CalendarEvent, filled, missing int) ([]*database.CalendarEvent, int, int) {
	loc, err := time.LoadLocation(market.Timezone)
	if err != nil {
		slog.Error("Invalid market timezone", "market", market.Name, "error", err)
		return pending, filled, missing
	}

	from := j.now().UTC().AddDate(0, 0, -2)
	to := j.now().UTC()
	raw, err := j.fetcher.FetchRange(ctx, market.Name, from, to)
	if err != nil {
		slog.Error("Actuals refetch failed", "market", market.Name, "error", err)
		return pending, filled, missing
	}

	// Index provider items by identity tuple.
	byFingerprint := make(map[string]provider.RawEvent, len(raw))
	for _, item := range raw {
		currency, err := events.ParseCurrency(item.Country)
		if err != nil {
			continue
		}
		impact, err := events.ParseImpact(item.Impact)
		if err != nil {
			continue
		}
		ts, err := events.NormalizeTimestamp(item.Date, loc)
		if err != nil {
			continue
		}
		byFingerprint[events.Fingerprint(item.Title, ts, impact, currency)] = item
	}

	var unresolved []*database.CalendarEvent
	for _, ev := range pending {
		item, ok := byFingerprint[ev.Fingerprint()]
		if !ok || item.Actual == "" {
			unresolved = append(unresolved, ev)
			continue
		}
		if err := j.store.SetEventActual(ctx, ev.EventID, item.Actual); err != nil {
			slog.Error("Failed to record actual",
				"event_id", ev.EventID,
				"title", ev.Title,
				"error", err,
			)
			missing++
			continue
		}
		filled++
	}
	return unresolved, filled, missing
}
