// Package notify delivers consumed calendar alerts to subscriber channels
// over the chat service's webhook API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/77zv/EconomicNewsBot-acme/internal/events"
	"github.com/77zv/EconomicNewsBot-acme/internal/metrics"
	"github.com/77zv/EconomicNewsBot-acme/internal/retry"
)

// ErrDuplicate reports that an alert was already delivered and the incoming
// message is a queue redelivery.
var ErrDuplicate = fmt.Errorf("alert already delivered")

// DeliveryMarker tracks which alerts were already delivered, surviving
// consumer restarts so queue redeliveries are absorbed.
type DeliveryMarker interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// RedisMarker implements DeliveryMarker on a Redis key with TTL.
type RedisMarker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMarker creates a marker store with the given expiry per key.
func NewRedisMarker(client *redis.Client, ttl time.Duration) *RedisMarker {
	return &RedisMarker{client: client, ttl: ttl}
}

// Seen reports whether the key was already marked.
func (m *RedisMarker) Seen(ctx context.Context, key string) (bool, error) {
	n, err := m.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check delivery marker: %w", err)
	}
	return n > 0, nil
}

// Mark records the key with the configured TTL.
func (m *RedisMarker) Mark(ctx context.Context, key string) error {
	return m.client.Set(ctx, key, 1, m.ttl).Err()
}

// Notifier posts alert messages to channel webhooks. Redeliveries from the
// at-least-once queue are absorbed with a delivery marker per alert, keyed
// on the alert's content rather than its ID so a duplicate publish from a
// cleared dispatch gate is absorbed too.
type Notifier struct {
	httpClient *http.Client
	marker     DeliveryMarker
	baseURL    string
	retryCfg   retry.Config
}

// NewNotifier creates a notifier delivering through the given webhook base
// URL.
func NewNotifier(marker DeliveryMarker, baseURL string) *Notifier {
	return &Notifier{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		marker:     marker,
		baseURL:    baseURL,
		retryCfg:   retry.DefaultConfig(),
	}
}

// dedupKey identifies one delivered alert per channel. AlertID is excluded
// on purpose: a re-published firing carries a fresh ID but the same content.
func dedupKey(alert *events.EventAlert) string {
	return fmt.Sprintf("econalerts:delivered:%s:%s:%s:%s:%s:%s:%s",
		alert.AlertClass, alert.ServerID, alert.ChannelID,
		alert.Title, alert.Timestamp, alert.Impact, alert.Currency)
}

// Deliver posts the alert to its subscriber channel. Returns ErrDuplicate
// when the alert was already delivered this TTL window; any other error
// means delivery failed and the message should stay unacknowledged.
func (n *Notifier) Deliver(ctx context.Context, alert *events.EventAlert) error {
	key := dedupKey(alert)
	seen, err := n.marker.Seen(ctx, key)
	if err != nil {
		return err
	}
	if seen {
		metrics.Deliveries.WithLabelValues("duplicate").Inc()
		return ErrDuplicate
	}

	err = retry.WithRetry(ctx, n.retryCfg, "webhook delivery", func() error {
		return n.post(ctx, alert)
	})
	if err != nil {
		metrics.Deliveries.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to deliver alert %s: %w", alert.AlertID, err)
	}

	// Marker is set after delivery: a crash between POST and mark causes a
	// duplicate message, never a missed one.
	if err := n.marker.Mark(ctx, key); err != nil {
		slog.Warn("Failed to set delivery marker",
			"alert_id", alert.AlertID,
			"error", err,
		)
	}

	metrics.Deliveries.WithLabelValues("delivered").Inc()
	return nil
}

// webhookMessage is the body posted to the channel webhook.
type webhookMessage struct {
	Content string             `json:"content"`
	Alert   *events.EventAlert `json:"alert"`
}

// FormatContent renders the human-readable alert line.
func FormatContent(alert *events.EventAlert) string {
	lead := "\U0001F4E2" // megaphone
	verb := "is due now"
	if alert.AlertClass == string(events.AlertFiveMinutesBefore) {
		lead = "⏰" // alarm clock
		verb = "fires in 5 minutes"
	}

	content := fmt.Sprintf("%s [%s/%s] %s %s (%s)",
		lead, alert.Currency, alert.Impact, alert.Title, verb, alert.Timestamp)
	if alert.Forecast != "" {
		content += fmt.Sprintf(" forecast %s", alert.Forecast)
	}
	if alert.Previous != "" {
		content += fmt.Sprintf(" previous %s", alert.Previous)
	}
	return content
}

func (n *Notifier) post(ctx context.Context, alert *events.EventAlert) error {
	url := fmt.Sprintf("%s/servers/%s/channels/%s/messages",
		n.baseURL, alert.ServerID, alert.ChannelID)

	body, err := json.Marshal(webhookMessage{
		Content: FormatContent(alert),
		Alert:   alert,
	})
	if err != nil {
		return fmt.Errorf("invalid webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
