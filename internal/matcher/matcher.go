// Package matcher filters subscriptions against a fired calendar event.
package matcher

import (
	"github.com/77zv/EconomicNewsBot-acme/internal/database"
	"github.com/77zv/EconomicNewsBot-acme/internal/events"
)

// Match returns the subset of subscriptions interested in the given event
// firing as the given alert class. A subscription matches iff its alert-class
// filter contains the class, its currency filter is empty or contains the
// event's currency, and its impact filter is empty or contains the event's
// impact. An empty currency or impact filter means match-all; the
// alert-class filter is required, so an empty one never matches.
func Match(ev *database.CalendarEvent, class events.AlertClass, subs []*database.Subscription) []*database.Subscription {
	var matched []*database.Subscription
	for _, sub := range subs {
		if !contains(sub.AlertClasses, string(class)) {
			continue
		}
		if len(sub.Currencies) > 0 && !contains(sub.Currencies, string(ev.Currency)) {
			continue
		}
		if len(sub.Impacts) > 0 && !contains(sub.Impacts, string(ev.Impact)) {
			continue
		}
		matched = append(matched, sub)
	}
	return matched
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
