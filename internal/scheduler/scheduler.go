// Package scheduler runs the pipeline's recurring jobs on independent
// fixed-interval timers with single-flight execution per job.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is a named recurring task.
type Job struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Start launches every job on its own goroutine and blocks until the
// context is cancelled and all in-flight runs have finished.
//
// Each job's runs are serialized by its own loop: a run that outlasts the
// interval causes ticker ticks to coalesce, so the next run starts only
// after the previous one finished (skipped cycles, never overlap).
// Different jobs run concurrently with each other.
func Start(ctx context.Context, jobs []Job) {
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			runLoop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func runLoop(ctx context.Context, job Job) {
	slog.Info("Starting job",
		"job", job.Name,
		"interval", job.Interval,
		"run_on_start", job.RunOnStart,
	)

	if job.RunOnStart {
		runOnce(ctx, job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Job stopped", "job", job.Name)
			return
		case <-ticker.C:
			runOnce(ctx, job)
		}
	}
}

// runOnce executes a single run. Failures are logged at the job boundary
// with enough context to diagnose and never propagate; a panicking run must
// not take down the scheduler.
func runOnce(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Job panicked", "job", job.Name, "panic", r)
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Job run failed",
			"job", job.Name,
			"duration", time.Since(start),
			"error", err,
		)
		return
	}
	slog.Debug("Job run completed",
		"job", job.Name,
		"duration", time.Since(start),
	)
}
