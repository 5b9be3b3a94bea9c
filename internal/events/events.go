// Package events defines the calendar-event domain model shared across the
// pipeline: the currency/impact/alert-class enums with validating parsers,
// the naive-timestamp normalization rules, and the alert payload published
// to the queue.
package events

import (
	"fmt"
	"time"
)

// SchemaVersion is the current version of the EventAlert wire format.
const SchemaVersion = 1

// NaiveLayout is the serialization format for naive timestamps: literal
// wall-clock digits with no offset.
const NaiveLayout = "2006-01-02T15:04:05"

// Currency identifies the currency an economic event relates to.
type Currency string

// Known currencies. Provider items quoting anything else are skipped at
// ingestion time.
const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
	CurrencyAUD Currency = "AUD"
	CurrencyCAD Currency = "CAD"
	CurrencyCHF Currency = "CHF"
	CurrencyNZD Currency = "NZD"
	CurrencyCNY Currency = "CNY"
)

var knownCurrencies = map[Currency]bool{
	CurrencyUSD: true,
	CurrencyEUR: true,
	CurrencyGBP: true,
	CurrencyJPY: true,
	CurrencyAUD: true,
	CurrencyCAD: true,
	CurrencyCHF: true,
	CurrencyNZD: true,
	CurrencyCNY: true,
}

// ParseCurrency validates a provider currency string against the known set.
// Returns an error for unknown values rather than trusting the raw string.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	if !knownCurrencies[c] {
		return "", fmt.Errorf("unknown currency: %q", s)
	}
	return c, nil
}

// Impact is the severity classification of a calendar event.
type Impact string

const (
	ImpactHigh   Impact = "HIGH"
	ImpactMedium Impact = "MEDIUM"
	ImpactLow    Impact = "LOW"
)

// ParseImpact maps a provider impact string to the internal enum.
// Returns an error for unknown values.
func ParseImpact(s string) (Impact, error) {
	switch s {
	case "High", "HIGH", "high":
		return ImpactHigh, nil
	case "Medium", "MEDIUM", "medium":
		return ImpactMedium, nil
	case "Low", "LOW", "low":
		return ImpactLow, nil
	default:
		return "", fmt.Errorf("unknown impact: %q", s)
	}
}

// AlertClass is the temporal condition that triggers a notification.
type AlertClass string

const (
	// AlertFiveMinutesBefore fires when an event is five minutes away.
	AlertFiveMinutesBefore AlertClass = "FIVE_MINUTES_BEFORE"
	// AlertOnNewsDrop fires at the event's scheduled minute.
	AlertOnNewsDrop AlertClass = "ON_NEWS_DROP"
)

var knownAlertClasses = map[AlertClass]bool{
	AlertFiveMinutesBefore: true,
	AlertOnNewsDrop:        true,
}

// ParseAlertClass validates an alert-class string.
func ParseAlertClass(s string) (AlertClass, error) {
	c := AlertClass(s)
	if !knownAlertClasses[c] {
		return "", fmt.Errorf("unknown alert class: %q", s)
	}
	return c, nil
}

// NormalizeTimestamp converts an offset-aware provider timestamp into the
// naive representation used everywhere in the pipeline: the instant is
// resolved in the exchange's local timezone, then its wall-clock components
// are reinterpreted as if they were UTC. "16:45 New-York-local" is stored as
// the literal value 16:45 regardless of daylight-saving state. Skipping the
// timezone resolution step breaks matching by the DST offset for part of
// the year.
//
// Seconds are truncated. The scanner only ever queries minute boundaries,
// so a stored timestamp with nonzero seconds could never match a window.
func NormalizeTimestamp(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", raw, err)
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), 0, 0, time.UTC), nil
}

// NaiveNow converts a clock reading into the same naive representation as
// stored event timestamps, truncated to the minute. The scanner must build
// its comparison values with this, never with a direct UTC now.
func NaiveNow(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), 0, 0, time.UTC)
}

// EventAlert is the message published to the alert queue: one message per
// (fired event x matching subscription). The payload is self-contained so
// the consumer can deliver without further lookups, which keeps redelivery
// idempotent.
type EventAlert struct {
	AlertID       string `json:"alertId"`
	SchemaVersion int    `json:"schemaVersion"`
	Title         string `json:"title"`
	Currency      string `json:"currency"`
	Impact        string `json:"impact"`
	Timestamp     string `json:"timestamp"` // naive, NaiveLayout
	Forecast      string `json:"forecast,omitempty"`
	Previous      string `json:"previous,omitempty"`
	AlertClass    string `json:"alertClass"`
	ChannelID     string `json:"channelId"`
	ServerID      string `json:"serverId"`
}
