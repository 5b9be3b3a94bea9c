// Package scanner implements the recurring temporal scan that classifies
// the current minute against stored event timestamps and fans matching
// alerts out to the queue.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/77zv/EconomicNewsBot-acme/internal/database"
	"github.com/77zv/EconomicNewsBot-acme/internal/dispatch"
	"github.com/77zv/EconomicNewsBot-acme/internal/events"
	"github.com/77zv/EconomicNewsBot-acme/internal/matcher"
	"github.com/77zv/EconomicNewsBot-acme/internal/metrics"
)

// EventSource reads events by exact naive timestamp.
type EventSource interface {
	FindByTimestamp(ctx context.Context, ts time.Time) ([]*database.CalendarEvent, error)
}

// SubscriptionSource reads subscriptions wanting a given alert class.
type SubscriptionSource interface {
	GetSubscriptionsByAlertClass(ctx context.Context, alertClass string) ([]*database.Subscription, error)
}

// Publisher writes alert messages to the queue.
type Publisher interface {
	Publish(ctx context.Context, alert *events.EventAlert) error
}

// Scanner re-evaluates the temporal windows every run. It keeps no state
// between runs except through the dispatch gate, so a restarted process
// converges on its own.
type Scanner struct {
	store     EventSource
	subs      SubscriptionSource
	gate      *dispatch.Gate
	publisher Publisher
	loc       *time.Location
	now       func() time.Time
}

// NewScanner creates a scanner whose naive clock is derived from the given
// exchange timezone.
func NewScanner(store EventSource, subs SubscriptionSource, gate *dispatch.Gate, publisher Publisher, loc *time.Location) *Scanner {
	return &Scanner{
		store:     store,
		subs:      subs,
		gate:      gate,
		publisher: publisher,
		loc:       loc,
		now:       time.Now,
	}
}

// window pairs a query timestamp with the alert class it classifies.
// New alert classes extend this table; nothing below switches on the class.
type window struct {
	target time.Time
	class  events.AlertClass
}

// Run executes one scan cycle. Store and subscription read failures abort
// the cycle with an error for the job boundary to log; publish failures are
// counted per alert and do not.
func (s *Scanner) Run(ctx context.Context) error {
	// The comparison values are built with the same two-step normalization
	// as stored timestamps, never from a direct UTC now.
	naiveNow := events.NaiveNow(s.now(), s.loc)

	windows := []window{
		{target: naiveNow.Add(5 * time.Minute), class: events.AlertFiveMinutesBefore},
		{target: naiveNow, class: events.AlertOnNewsDrop},
	}

	for _, w := range windows {
		if err := s.scanWindow(ctx, w); err != nil {
			return fmt.Errorf("scan window %s failed: %w", w.class, err)
		}
	}
	return nil
}

func (s *Scanner) scanWindow(ctx context.Context, w window) error {
	evs, err := s.store.FindByTimestamp(ctx, w.target)
	if err != nil {
		return err
	}
	if len(evs) == 0 {
		return nil
	}

	subs, err := s.subs.GetSubscriptionsByAlertClass(ctx, string(w.class))
	if err != nil {
		return err
	}

	var published, suppressed, lost int
	for _, ev := range evs {
		metrics.AlertsFired.WithLabelValues(string(w.class)).Inc()
		fingerprint := ev.Fingerprint()

		if !s.gate.ShouldDispatch(fingerprint, w.class) {
			suppressed++
			metrics.AlertsSuppressed.WithLabelValues(string(w.class)).Inc()
			continue
		}

		// One message per matched subscription, fanned out independently.
		for _, sub := range matcher.Match(ev, w.class, subs) {
			alert := newEventAlert(ev, w.class, sub)
			if err := s.publisher.Publish(ctx, alert); err != nil {
				// No in-cycle retry: the window will not match on the next
				// minute, so this alert is lost for this firing.
				lost++
				metrics.AlertsLost.WithLabelValues(string(w.class)).Inc()
				slog.Error("Failed to publish alert",
					"alert_id", alert.AlertID,
					"class", w.class,
					"title", ev.Title,
					"channel_id", sub.ChannelID,
					"error", err,
				)
				continue
			}
			published++
			metrics.AlertsPublished.WithLabelValues(string(w.class)).Inc()
		}

		s.gate.MarkDispatched(fingerprint, w.class)
	}

	slog.Info("Scan window completed",
		"class", w.class,
		"target", w.target.Format(events.NaiveLayout),
		"events", len(evs),
		"subscriptions", len(subs),
		"published", published,
		"suppressed", suppressed,
		"lost", lost,
	)
	return nil
}

func newEventAlert(ev *database.CalendarEvent, class events.AlertClass, sub *database.Subscription) *events.EventAlert {
	return &events.EventAlert{
		AlertID:       uuid.NewString(),
		SchemaVersion: events.SchemaVersion,
		Title:         ev.Title,
		Currency:      string(ev.Currency),
		Impact:        string(ev.Impact),
		Timestamp:     ev.EventTime.Format(events.NaiveLayout),
		Forecast:      ev.Forecast,
		Previous:      ev.Previous,
		AlertClass:    string(class),
		ChannelID:     sub.ChannelID,
		ServerID:      sub.ServerID,
	}
}
