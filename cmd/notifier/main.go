package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/77zv/EconomicNewsBot-acme/internal/config"
	"github.com/77zv/EconomicNewsBot-acme/internal/consumer"
	"github.com/77zv/EconomicNewsBot-acme/internal/metrics"
	"github.com/77zv/EconomicNewsBot-acme/internal/notify"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found")
	}

	cfg := &config.NotifierConfig{}
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", config.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
	flag.StringVar(&cfg.AlertsTopic, "alerts-topic", config.GetEnvOrDefault("ALERTS_TOPIC", "alerts.calendar"), "Kafka topic for calendar alerts")
	flag.StringVar(&cfg.GroupID, "group-id", config.GetEnvOrDefault("CONSUMER_GROUP_ID", "calendar-notifier"), "Kafka consumer group ID")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", config.GetEnvOrDefault("REDIS_ADDR", "localhost:6379"), "Redis address for delivery markers")
	flag.StringVar(&cfg.WebhookBaseURL, "webhook-base-url", config.GetEnvOrDefault("WEBHOOK_BASE_URL", ""), "Chat service webhook base URL")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", config.GetEnvOrDefault("METRICS_ADDR", ""), "Prometheus listen address (empty disables)")
	flag.DurationVar(&cfg.DedupTTL, "dedup-ttl", 24*time.Hour, "How long delivery markers are kept")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting notifier",
		"kafka_brokers", cfg.KafkaBrokers,
		"alerts_topic", cfg.AlertsTopic,
		"group_id", cfg.GroupID,
		"redis_addr", cfg.RedisAddr,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	kafkaConsumer, err := consumer.NewConsumer(cfg.KafkaBrokers, cfg.AlertsTopic, cfg.GroupID)
	if err != nil {
		slog.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer kafkaConsumer.Close()

	marker := notify.NewRedisMarker(redisClient, cfg.DedupTTL)
	notifier := notify.NewNotifier(marker, cfg.WebhookBaseURL)

	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr)
	}

	run(ctx, kafkaConsumer, notifier)

	slog.Info("Notifier stopped")
}

// run consumes alerts until the context is cancelled. A message is committed
// only after the alert reaches the webhook (or is recognized as a
// redelivery); anything else stays unacknowledged and comes back on the next
// rebalance or restart.
func run(ctx context.Context, kafkaConsumer *consumer.Consumer, notifier *notify.Notifier) {
	for {
		alert, msg, err := kafkaConsumer.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if msg != nil {
				// Malformed payload. Redelivering it cannot help, so
				// acknowledge and move on.
				slog.Error("Dropping undecodable message",
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
				if err := kafkaConsumer.CommitMessage(ctx, msg); err != nil {
					slog.Error("Failed to commit message", "error", err)
				}
				continue
			}
			slog.Error("Failed to fetch message", "error", err)
			continue
		}

		err = notifier.Deliver(ctx, alert)
		switch {
		case err == nil:
			slog.Info("Alert delivered",
				"alert_id", alert.AlertID,
				"alert_class", alert.AlertClass,
				"title", alert.Title,
				"channel_id", alert.ChannelID,
			)
		case errors.Is(err, notify.ErrDuplicate):
			slog.Info("Skipping already-delivered alert",
				"alert_id", alert.AlertID,
				"title", alert.Title,
				"channel_id", alert.ChannelID,
			)
		default:
			slog.Error("Failed to deliver alert",
				"alert_id", alert.AlertID,
				"error", err,
			)
			continue
		}

		if err := kafkaConsumer.CommitMessage(ctx, msg); err != nil {
			slog.Error("Failed to commit message",
				"alert_id", alert.AlertID,
				"error", err,
			)
		}
	}
}
