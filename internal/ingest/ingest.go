// Package ingest pulls calendar events from the external provider and
// upserts them into the event store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/77zv/EconomicNewsBot-acme/internal/config"
	"github.com/77zv/EconomicNewsBot-acme/internal/database"
	"github.com/77zv/EconomicNewsBot-acme/internal/events"
	"github.com/77zv/EconomicNewsBot-acme/internal/metrics"
	"github.com/77zv/EconomicNewsBot-acme/internal/provider"
)

// Fetcher pulls raw provider events for a market and day range.
type Fetcher interface {
	FetchRange(ctx context.Context, market string, from, to time.Time) ([]provider.RawEvent, error)
}

// EventUpserter persists calendar events idempotently.
type EventUpserter interface {
	UpsertEvent(ctx context.Context, ev *database.CalendarEvent) (bool, error)
}

// Job fetches a multi-day look-ahead window per configured market,
// normalizes each item, and upserts it. It runs on a daily cadence; the
// look-ahead overlap means a missed run does not cause permanently missing
// events.
type Job struct {
	fetcher   Fetcher
	store     EventUpserter
	markets   []config.Market
	lookahead int // days
	source    string
	now       func() time.Time
}

// NewJob creates an ingestion job over the given markets.
func NewJob(fetcher Fetcher, store EventUpserter, markets []config.Market, lookaheadDays int, source string) *Job {
	return &Job{
		fetcher:   fetcher,
		store:     store,
		markets:   markets,
		lookahead: lookaheadDays,
		source:    source,
		now:       time.Now,
	}
}

// Run ingests every configured market once. A market whose fetch fails is
// logged and skipped for this cycle; the next scheduled cycle retries it.
// Per-item failures never abort a batch.
func (j *Job) Run(ctx context.Context) error {
	from := j.now().UTC().Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, j.lookahead)

	for _, market := range j.markets {
		if err := j.runMarket(ctx, market, from, to); err != nil {
			metrics.FetchFailures.WithLabelValues(market.Name).Inc()
			slog.Error("Ingestion failed for market",
				"market", market.Name,
				"error", err,
			)
		}
	}
	return nil
}

func (j *Job) runMarket(ctx context.Context, market config.Market, from, to time.Time) error {
	loc, err := time.LoadLocation(market.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q for market %s: %w", market.Timezone, market.Name, err)
	}

	slog.Info("Starting calendar ingestion",
		"market", market.Name,
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
	)

	raw, err := j.fetcher.FetchRange(ctx, market.Name, from, to)
	if err != nil {
		return err
	}

	var created, updated, skipped int
	for _, item := range raw {
		ev, err := mapRawEvent(item, loc, j.source)
		if err != nil {
			skipped++
			metrics.EventsIngested.WithLabelValues(market.Name, "skipped").Inc()
			slog.Warn("Skipping unmappable provider item",
				"market", market.Name,
				"title", item.Title,
				"error", err,
			)
			continue
		}

		wasCreated, err := j.store.UpsertEvent(ctx, ev)
		if err != nil {
			skipped++
			metrics.EventsIngested.WithLabelValues(market.Name, "skipped").Inc()
			slog.Warn("Skipping event after store failure",
				"market", market.Name,
				"title", ev.Title,
				"error", err,
			)
			continue
		}
		if wasCreated {
			created++
			metrics.EventsIngested.WithLabelValues(market.Name, "created").Inc()
		} else {
			updated++
			metrics.EventsIngested.WithLabelValues(market.Name, "updated").Inc()
		}
	}

	slog.Info("Calendar ingestion completed",
		"market", market.Name,
		"fetched", len(raw),
		"created", created,
		"updated", updated,
		"skipped", skipped,
	)
	return nil
}

// mapRawEvent converts a provider item into a store record. Currency and
// impact are parsed with validation, never cast, and the timestamp goes
// through the naive normalization.
func mapRawEvent(item provider.RawEvent, loc *time.Location, source string) (*database.CalendarEvent, error) {
	currency, err := events.ParseCurrency(item.Country)
	if err != nil {
		return nil, err
	}
	impact, err := events.ParseImpact(item.Impact)
	if err != nil {
		return nil, err
	}
	eventTime, err := events.NormalizeTimestamp(item.Date, loc)
	if err != nil {
		return nil, err
	}

	return &database.CalendarEvent{
		Title:     item.Title,
		Currency:  currency,
		EventTime: eventTime,
		Impact:    impact,
		Forecast:  item.Forecast,
		Previous:  item.Previous,
		Source:    source,
	}, nil
}
