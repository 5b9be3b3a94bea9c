// Package config provides configuration parsing and validation for the
// scheduler and notifier binaries.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GetEnvOrDefault returns the environment variable value or a default if
// not set.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Market identifies a provider market and the exchange timezone whose wall
// clock its event timestamps are normalized against.
type Market struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

type marketsFile struct {
	Markets []Market `yaml:"markets"`
}

// LoadMarkets reads the markets YAML file.
func LoadMarkets(path string) ([]Market, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read markets file: %w", err)
	}

	var f marketsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse markets file: %w", err)
	}
	if len(f.Markets) == 0 {
		return nil, fmt.Errorf("markets file %s declares no markets", path)
	}
	for i, m := range f.Markets {
		if m.Name == "" {
			return nil, fmt.Errorf("market %d has no name", i)
		}
		if m.Timezone == "" {
			return nil, fmt.Errorf("market %q has no timezone", m.Name)
		}
		if _, err := time.LoadLocation(m.Timezone); err != nil {
			return nil, fmt.Errorf("market %q has invalid timezone %q: %w", m.Name, m.Timezone, err)
		}
	}
	return f.Markets, nil
}

// SchedulerConfig holds all configuration parameters for the scheduler
// worker.
type SchedulerConfig struct {
	DatabaseDSN     string
	KafkaBrokers    string
	AlertsTopic     string
	ProviderBaseURL string
	MarketsFile     string
	MetricsAddr     string

	ScanInterval      time.Duration
	IngestInterval    time.Duration
	ActualsInterval   time.Duration
	RetentionInterval time.Duration

	LookaheadDays        int
	ActualsDelay         time.Duration
	ProcessedRetention   time.Duration
	UnprocessedRetention time.Duration
	GateMaxEntries       int
}

// Validate checks that all required configuration fields are set and have
// valid values.
func (c *SchedulerConfig) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database-dsn cannot be empty")
	}
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.AlertsTopic == "" {
		return fmt.Errorf("alerts-topic cannot be empty")
	}
	if c.ProviderBaseURL == "" {
		return fmt.Errorf("provider-base-url cannot be empty")
	}
	if c.MarketsFile == "" {
		return fmt.Errorf("markets-file cannot be empty")
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan-interval must be > 0")
	}
	if c.IngestInterval <= 0 {
		return fmt.Errorf("ingest-interval must be > 0")
	}
	if c.ActualsInterval <= 0 {
		return fmt.Errorf("actuals-interval must be > 0")
	}
	if c.RetentionInterval <= 0 {
		return fmt.Errorf("retention-interval must be > 0")
	}
	if c.LookaheadDays < 1 {
		return fmt.Errorf("lookahead-days must be >= 1")
	}
	if c.ProcessedRetention <= 0 {
		return fmt.Errorf("processed-retention must be > 0")
	}
	if c.UnprocessedRetention < c.ProcessedRetention {
		return fmt.Errorf("unprocessed-retention must be >= processed-retention")
	}
	return nil
}

// NotifierConfig holds all configuration parameters for the notifier
// consumer.
type NotifierConfig struct {
	KafkaBrokers   string
	AlertsTopic    string
	GroupID        string
	RedisAddr      string
	WebhookBaseURL string
	MetricsAddr    string
	DedupTTL       time.Duration
}

// Validate checks that all required configuration fields are set and have
// valid values.
func (c *NotifierConfig) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.AlertsTopic == "" {
		return fmt.Errorf("alerts-topic cannot be empty")
	}
	if c.GroupID == "" {
		return fmt.Errorf("group-id cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty")
	}
	if c.WebhookBaseURL == "" {
		return fmt.Errorf("webhook-base-url cannot be empty")
	}
	if c.DedupTTL <= 0 {
		return fmt.Errorf("dedup-ttl must be > 0")
	}
	return nil
}
