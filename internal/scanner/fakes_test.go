package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/77zv/EconomicNewsBot-acme/internal/database"
	"github.com/77zv/EconomicNewsBot-acme/internal/events"
)

// fakeEventSource serves events keyed by their naive timestamp.
type fakeEventSource struct {
	byTimestamp map[string][]*database.CalendarEvent
	err         error
}

func (f *fakeEventSource) FindByTimestamp(_ context.Context, ts time.Time) ([]*database.CalendarEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byTimestamp[ts.Format(events.NaiveLayout)], nil
}

// fakeSubscriptionSource returns all subscriptions whose class filter
// contains the requested class, like the real registry query.
type fakeSubscriptionSource struct {
	subs []*database.Subscription
	err  error
}

func (f *fakeSubscriptionSource) GetSubscriptionsByAlertClass(_ context.Context, class string) ([]*database.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*database.Subscription
	for _, sub := range f.subs {
		for _, c := range sub.AlertClasses {
			if c == class {
				out = append(out, sub)
				break
			}
		}
	}
	return out, nil
}

// fakePublisher records published alerts and can fail on demand.
type fakePublisher struct {
	published []*events.EventAlert
	failAll   bool
}

func (f *fakePublisher) Publish(_ context.Context, alert *events.EventAlert) error {
	if f.failAll {
		return fmt.Errorf("broker unavailable")
	}
	f.published = append(f.published, alert)
	return nil
}
