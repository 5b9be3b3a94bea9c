package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/77zv/EconomicNewsBot-acme/internal/actuals"
	"github.com/77zv/EconomicNewsBot-acme/internal/config"
	"github.com/77zv/EconomicNewsBot-acme/internal/database"
	"github.com/77zv/EconomicNewsBot-acme/internal/dispatch"
	"github.com/77zv/EconomicNewsBot-acme/internal/ingest"
	"github.com/77zv/EconomicNewsBot-acme/internal/metrics"
	"github.com/77zv/EconomicNewsBot-acme/internal/producer"
	"github.com/77zv/EconomicNewsBot-acme/internal/provider"
	"github.com/77zv/EconomicNewsBot-acme/internal/retention"
	"github.com/77zv/EconomicNewsBot-acme/internal/scanner"
	"github.com/77zv/EconomicNewsBot-acme/internal/scheduler"
)

const eventSource = "forexfactory"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found")
	}

	cfg := &config.SchedulerConfig{}
	flag.StringVar(&cfg.DatabaseDSN, "database-dsn", config.GetEnvOrDefault("DATABASE_DSN", ""), "PostgreSQL connection string")
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", config.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
	flag.StringVar(&cfg.AlertsTopic, "alerts-topic", config.GetEnvOrDefault("ALERTS_TOPIC", "alerts.calendar"), "Kafka topic for calendar alerts")
	flag.StringVar(&cfg.ProviderBaseURL, "provider-base-url", config.GetEnvOrDefault("PROVIDER_BASE_URL", ""), "Calendar provider base URL")
	flag.StringVar(&cfg.MarketsFile, "markets-file", config.GetEnvOrDefault("MARKETS_FILE", "markets.yaml"), "Path to the markets YAML file")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", config.GetEnvOrDefault("METRICS_ADDR", ""), "Prometheus listen address (empty disables)")
	flag.DurationVar(&cfg.ScanInterval, "scan-interval", time.Minute, "Temporal scan cadence")
	flag.DurationVar(&cfg.IngestInterval, "ingest-interval", 24*time.Hour, "Calendar ingestion cadence")
	flag.DurationVar(&cfg.ActualsInterval, "actuals-interval", 5*time.Minute, "Actuals check cadence")
	flag.DurationVar(&cfg.RetentionInterval, "retention-interval", 24*time.Hour, "Retention sweep cadence")
	flag.IntVar(&cfg.LookaheadDays, "lookahead-days", 14, "Ingestion look-ahead window in days")
	flag.DurationVar(&cfg.ActualsDelay, "actuals-delay", 10*time.Minute, "How long past an event's time before checking actuals")
	flag.DurationVar(&cfg.ProcessedRetention, "processed-retention", 7*24*time.Hour, "Age threshold for deleting processed events")
	flag.DurationVar(&cfg.UnprocessedRetention, "unprocessed-retention", 30*24*time.Hour, "Age threshold for deleting never-processed events")
	flag.IntVar(&cfg.GateMaxEntries, "gate-max-entries", dispatch.DefaultMaxEntries, "Dispatch gate tracked-key threshold")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting scheduler",
		"kafka_brokers", cfg.KafkaBrokers,
		"alerts_topic", cfg.AlertsTopic,
		"markets_file", cfg.MarketsFile,
		"scan_interval", cfg.ScanInterval,
		"ingest_interval", cfg.IngestInterval,
		"lookahead_days", cfg.LookaheadDays,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	markets, err := config.LoadMarkets(cfg.MarketsFile)
	if err != nil {
		slog.Error("Failed to load markets", "error", err)
		os.Exit(1)
	}

	// Stored timestamps are naive wall-clock values in the primary market's
	// exchange timezone; the scanner's clock must use the same one.
	scanLoc, err := time.LoadLocation(markets[0].Timezone)
	if err != nil {
		slog.Error("Invalid market timezone", "timezone", markets[0].Timezone, "error", err)
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

	db, err := database.NewDB(cfg.DatabaseDSN)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	kafkaProducer, err := producer.NewProducer(cfg.KafkaBrokers, cfg.AlertsTopic)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer kafkaProducer.Close()

	providerClient := provider.NewClient(cfg.ProviderBaseURL, 30*time.Second)
	gate := dispatch.NewGate(cfg.GateMaxEntries)

	ingestJob := ingest.NewJob(providerClient, db, markets, cfg.LookaheadDays, eventSource)
	scanJob := scanner.NewScanner(db, db, gate, kafkaProducer, scanLoc)
	actualsJob := actuals.NewJob(db, providerClient, markets, cfg.ActualsDelay)
	retentionJob := retention.NewJob(db, scanLoc, cfg.ProcessedRetention, cfg.UnprocessedRetention)

	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr)
	}

	scheduler.Start(ctx, []scheduler.Job{
		{Name: "ingestion", Interval: cfg.IngestInterval, RunOnStart: true, Run: ingestJob.Run},
		{Name: "temporal-scan", Interval: cfg.ScanInterval, Run: scanJob.Run},
		{Name: "actuals-check", Interval: cfg.ActualsInterval, Run: actualsJob.Run},
		{Name: "retention-sweep", Interval: cfg.RetentionInterval, RunOnStart: true, Run: retentionJob.Run},
	})

	slog.Info("Scheduler stopped")
}
