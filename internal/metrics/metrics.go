// Package metrics defines Prometheus counters for the pipeline jobs.
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsIngested counts upserted provider items per market,
	// partitioned by result: created, updated or skipped.
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econalerts_events_ingested_total",
		Help: "Calendar events processed by the ingestion job.",
	}, []string{"market", "result"})

	// FetchFailures counts whole-market fetch failures per ingestion cycle.
	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econalerts_fetch_failures_total",
		Help: "Provider fetch failures per market.",
	}, []string{"market"})

	// AlertsFired counts (event, alert class) firings detected by the scanner.
	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econalerts_alerts_fired_total",
		Help: "Temporal alert firings detected by the scanner.",
	}, []string{"class"})

	// AlertsSuppressed counts firings gated off as already dispatched.
	AlertsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econalerts_alerts_suppressed_total",
		Help: "Firings suppressed by the dispatch gate.",
	}, []string{"class"})

	// AlertsPublished counts alert messages written to the queue.
	AlertsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econalerts_alerts_published_total",
		Help: "Alert messages published to the queue.",
	}, []string{"class"})

	// AlertsLost counts publish failures. These alerts are not retried.
	AlertsLost = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econalerts_alerts_lost_total",
		Help: "Alert messages lost to publish failures.",
	}, []string{"class"})

	// Deliveries counts notifier delivery outcomes: delivered, duplicate
	// or failed.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econalerts_deliveries_total",
		Help: "Notifier delivery outcomes.",
	}, []string{"result"})

	// EventsSwept counts rows removed by the retention sweep.
	EventsSwept = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econalerts_events_swept_total",
		Help: "Calendar events removed by the retention sweep.",
	}, []string{"kind"})
)

// Serve exposes /metrics on the given address. A failure to serve is logged,
// not fatal: metrics are an ops surface, not part of the pipeline contract.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		slog.Info("Serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("Metrics listener stopped", "error", err)
		}
	}()
}
