package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/77zv/EconomicNewsBot-acme/internal/events"
)

type fakeMarker struct {
	marked  map[string]bool
	seenErr error
}

func newFakeMarker() *fakeMarker {
	return &fakeMarker{marked: make(map[string]bool)}
}

func (m *fakeMarker) Seen(_ context.Context, key string) (bool, error) {
	if m.seenErr != nil {
		return false, m.seenErr
	}
	return m.marked[key], nil
}

func (m *fakeMarker) Mark(_ context.Context, key string) error {
	m.marked[key] = true
	return nil
}

func testAlert() *events.EventAlert {
	return &events.EventAlert{
		AlertID:       "a-1",
		SchemaVersion: 1,
		Title:         "Non-Farm Payrolls",
		Currency:      "USD",
		Impact:        "HIGH",
		Timestamp:     "2025-03-10T13:30:00",
		Forecast:      "200K",
		Previous:      "180K",
		AlertClass:    "ON_NEWS_DROP",
		ChannelID:     "chan-1",
		ServerID:      "guild-1",
	}
}

func TestNotifier_Deliver(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	marker := newFakeMarker()
	n := NewNotifier(marker, server.URL)

	if err := n.Deliver(context.Background(), testAlert()); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if gotPath != "/servers/guild-1/channels/chan-1/messages" {
		t.Errorf("webhook path = %s", gotPath)
	}
	if len(marker.marked) != 1 {
		t.Errorf("marked %d keys after delivery, want 1", len(marker.marked))
	}
}

func TestNotifier_Deliver_Redelivery(t *testing.T) {
	deliveries := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deliveries++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	marker := newFakeMarker()
	n := NewNotifier(marker, server.URL)

	if err := n.Deliver(context.Background(), testAlert()); err != nil {
		t.Fatalf("first Deliver() error = %v", err)
	}

	// A redelivered copy carries a fresh alert ID but identical content.
	redelivered := testAlert()
	redelivered.AlertID = "a-2"
	err := n.Deliver(context.Background(), redelivered)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second Deliver() error = %v, want ErrDuplicate", err)
	}
	if deliveries != 1 {
		t.Errorf("webhook received %d deliveries, want 1", deliveries)
	}
}

func TestNotifier_Deliver_FailureLeavesUnmarked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "channel not found", http.StatusNotFound)
	}))
	defer server.Close()

	marker := newFakeMarker()
	n := NewNotifier(marker, server.URL)

	if err := n.Deliver(context.Background(), testAlert()); err == nil {
		t.Fatal("Deliver() = nil, want error on webhook failure")
	}
	if len(marker.marked) != 0 {
		t.Errorf("marked %d keys after failed delivery, want 0", len(marker.marked))
	}
}

func TestFormatContent(t *testing.T) {
	content := FormatContent(testAlert())
	for _, want := range []string{"USD", "HIGH", "Non-Farm Payrolls", "due now", "200K", "180K"} {
		if !strings.Contains(content, want) {
			t.Errorf("FormatContent() = %q, missing %q", content, want)
		}
	}

	headsUp := testAlert()
	headsUp.AlertClass = "FIVE_MINUTES_BEFORE"
	if !strings.Contains(FormatContent(headsUp), "5 minutes") {
		t.Errorf("FormatContent() for FIVE_MINUTES_BEFORE should mention the lead time")
	}
}

func TestDedupKey_IgnoresAlertID(t *testing.T) {
	a := testAlert()
	b := testAlert()
	b.AlertID = "different"
	if dedupKey(a) != dedupKey(b) {
		t.Error("dedupKey should not depend on the alert ID")
	}

	c := testAlert()
	c.ChannelID = "chan-2"
	if dedupKey(a) == dedupKey(c) {
		t.Error("dedupKey should differ per channel")
	}

	d := testAlert()
	d.Currency = "EUR"
	if dedupKey(a) == dedupKey(d) {
		t.Error("dedupKey should differ per currency")
	}
}
