package retention

import (
	"context"
	"testing"
	"time"
)

type deleteCall struct {
	cutoff        time.Time
	processedOnly bool
}

type fakeDeleter struct {
	calls []deleteCall
}

func (d *fakeDeleter) DeleteOlderThan(_ context.Context, cutoff time.Time, processedOnly bool) (int64, error) {
	d.calls = append(d.calls, deleteCall{cutoff: cutoff, processedOnly: processedOnly})
	return 1, nil
}

func TestJob_Run_Cutoffs(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}

	store := &fakeDeleter{}
	job := NewJob(store, newYork, 7*24*time.Hour, 30*24*time.Hour)
	// 2025-03-20 12:00 New York wall clock.
	job.now = func() time.Time {
		return time.Date(2025, 3, 20, 16, 0, 0, 0, time.UTC)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.calls) != 2 {
		t.Fatalf("DeleteOlderThan called %d times, want 2", len(store.calls))
	}

	// First pass: processed rows older than 7 days against the naive clock
	// (16:00 UTC on 2025-03-20 is 12:00 in New York during EDT).
	first := store.calls[0]
	if !first.processedOnly {
		t.Error("first sweep should target processed rows only")
	}
	wantFirst := time.Date(2025, 3, 13, 12, 0, 0, 0, time.UTC)
	if !first.cutoff.Equal(wantFirst) {
		t.Errorf("processed cutoff = %v, want %v", first.cutoff, wantFirst)
	}

	// Second pass: any row older than 30 days.
	second := store.calls[1]
	if second.processedOnly {
		t.Error("second sweep should cover unprocessed rows too")
	}
	wantSecond := time.Date(2025, 2, 18, 12, 0, 0, 0, time.UTC)
	if !second.cutoff.Equal(wantSecond) {
		t.Errorf("stale cutoff = %v, want %v", second.cutoff, wantSecond)
	}
}
