// Package retention bounds calendar-event storage by sweeping old rows.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/77zv/EconomicNewsBot-acme/internal/events"
	"github.com/77zv/EconomicNewsBot-acme/internal/metrics"
)

// Deleter is the store primitive the sweep runs on.
type Deleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time, processedOnly bool) (int64, error)
}

// Job removes processed events past one age threshold and unprocessed
// events past a longer one, so rows whose actuals never arrive cannot
// accumulate forever.
type Job struct {
	store       Deleter
	loc         *time.Location
	processed   time.Duration
	unprocessed time.Duration
	now         func() time.Time
}

// NewJob creates a retention sweep with the given age thresholds.
func NewJob(store Deleter, loc *time.Location, processed, unprocessed time.Duration) *Job {
	return &Job{
		store:       store,
		loc:         loc,
		processed:   processed,
		unprocessed: unprocessed,
		now:         time.Now,
	}
}

// Run executes one sweep. Cutoffs are computed in the naive representation
// stored timestamps use.
func (j *Job) Run(ctx context.Context) error {
	naiveNow := events.NaiveNow(j.now(), j.loc)

	processedDeleted, err := j.store.DeleteOlderThan(ctx, naiveNow.Add(-j.processed), true)
	if err != nil {
		return err
	}
	metrics.EventsSwept.WithLabelValues("processed").Add(float64(processedDeleted))

	// Longer threshold, regardless of processed state.
	staleDeleted, err := j.store.DeleteOlderThan(ctx, naiveNow.Add(-j.unprocessed), false)
	if err != nil {
		return err
	}
	metrics.EventsSwept.WithLabelValues("stale").Add(float64(staleDeleted))

	slog.Info("Retention sweep completed",
		"processed_deleted", processedDeleted,
		"stale_deleted", staleDeleted,
	)
	return nil
}
