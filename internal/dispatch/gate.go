// Package dispatch provides session-scoped publish suppression so a given
// (event, alert-class) pair is published at most once per process lifetime.
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/77zv/EconomicNewsBot-acme/internal/events"
)

// DefaultMaxEntries is the tracked-key threshold past which the gate clears
// itself wholesale.
const DefaultMaxEntries = 1000

type gateKey struct {
	fingerprint string
	class       events.AlertClass
}

// Gate tracks dispatched (event fingerprint, alert class) keys in memory.
// When the tracked-key count exceeds the threshold the whole map is cleared:
// a deliberate bounded-memory tradeoff that can cause a rare duplicate
// publish, never a missed one. State is local to one process; concurrently
// running scanner instances each have their own gate and can
// duplicate-dispatch.
type Gate struct {
	mu         sync.Mutex
	seen       map[gateKey]struct{}
	maxEntries int
}

// NewGate creates a gate with the given tracked-key threshold.
// A threshold <= 0 falls back to DefaultMaxEntries.
func NewGate(maxEntries int) *Gate {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Gate{
		seen:       make(map[gateKey]struct{}),
		maxEntries: maxEntries,
	}
}

// ShouldDispatch reports whether the key has not been dispatched yet this
// session.
func (g *Gate) ShouldDispatch(fingerprint string, class events.AlertClass) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, dispatched := g.seen[gateKey{fingerprint: fingerprint, class: class}]
	return !dispatched
}

// MarkDispatched records the key as handled. Crossing the size threshold
// clears all tracked keys.
func (g *Gate) MarkDispatched(fingerprint string, class events.AlertClass) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen[gateKey{fingerprint: fingerprint, class: class}] = struct{}{}
	if len(g.seen) > g.maxEntries {
		slog.Info("Dispatch gate threshold exceeded, clearing",
			"tracked_keys", len(g.seen),
			"max_entries", g.maxEntries,
		)
		g.seen = make(map[gateKey]struct{})
	}
}

// Size returns the number of tracked keys.
func (g *Gate) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
