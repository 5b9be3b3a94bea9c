package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Subscription represents an alert subscription record in the database.
// A channel has at most one subscription: (server_id, channel_id) is unique.
// Empty currency/impact filters mean match-all; the alert-class filter is
// never empty.
type Subscription struct {
	SubscriptionID int64
	ServerID       string
	ChannelID      string
	Currencies     []string
	Impacts        []string
	AlertClasses   []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const subscriptionColumns = `subscription_id, server_id, channel_id, currencies, impacts, alert_classes, created_at, updated_at`

func scanSubscription(scan func(dest ...any) error) (*Subscription, error) {
	var sub Subscription
	if err := scan(
		&sub.SubscriptionID,
		&sub.ServerID,
		&sub.ChannelID,
		pq.Array(&sub.Currencies),
		pq.Array(&sub.Impacts),
		pq.Array(&sub.AlertClasses),
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription creates a new subscription. A subscription with no
// alert classes is meaningless and is rejected here rather than stored.
func (db *DB) CreateSubscription(ctx context.Context, sub *Subscription) error {
	if len(sub.AlertClasses) == 0 {
		return fmt.Errorf("subscription must request at least one alert class")
	}

	query := `
		INSERT INTO subscriptions (server_id, channel_id, currencies, impacts, alert_classes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING subscription_id
	`
	err := db.conn.QueryRowContext(ctx, query,
		sub.ServerID,
		sub.ChannelID,
		pq.Array(sub.Currencies),
		pq.Array(sub.Impacts),
		pq.Array(sub.AlertClasses),
	).Scan(&sub.SubscriptionID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("subscription already exists for channel %s/%s", sub.ServerID, sub.ChannelID)
			}
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetSubscriptionsByAlertClass returns all subscriptions whose alert-class
// filter contains the given class.
func (db *DB) GetSubscriptionsByAlertClass(ctx context.Context, alertClass string) ([]*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE $1 = ANY(alert_classes)
	`
	rows, err := db.conn.QueryContext(ctx, query, alertClass)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions by alert class: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ListSubscriptions retrieves all subscriptions.
func (db *DB) ListSubscriptions(ctx context.Context) ([]*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		ORDER BY created_at ASC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// GetSubscription retrieves the subscription for a channel.
func (db *DB) GetSubscription(ctx context.Context, serverID, channelID string) (*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE server_id = $1 AND channel_id = $2
	`
	sub, err := scanSubscription(db.conn.QueryRowContext(ctx, query, serverID, channelID).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subscription not found for channel %s/%s", serverID, channelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// DeleteSubscription removes the subscription for a channel.
func (db *DB) DeleteSubscription(ctx context.Context, serverID, channelID string) error {
	query := `DELETE FROM subscriptions WHERE server_id = $1 AND channel_id = $2`
	result, err := db.conn.ExecContext(ctx, query, serverID, channelID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("subscription not found for channel %s/%s", serverID, channelID)
	}
	return nil
}
