// Package metrics holds the Prometheus collectors shared by the indexer,
// search, and router, and the optional /metrics endpoint.
package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IndexFiles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_index_files_total",
		Help: "Files seen by the indexer, by outcome.",
	}, []string{"outcome"})

	ChunksWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nexus_index_chunks_written_total",
		Help: "Chunks written to the index store.",
	})

	ParseErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_parse_errors_total",
		Help: "Parse failures, by kind (recoverable or fatal).",
	}, []string{"kind"})

	ProviderAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_provider_attempts_total",
		Help: "Provider call attempts, by provider and outcome.",
	}, []string{"provider", "outcome"})

	SearchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nexus_search_duration_seconds",
		Help:    "Similarity search latency, by mode (exact or approximate).",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"mode"})
)

// Registry holds every nexus collector. It is separate from the default
// registry so tests can gather it without process noise.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(IndexFiles, ChunksWritten, ParseErrors, ProviderAttempts, SearchDuration)
}

// Serve exposes /metrics on addr until the server fails. It is meant to be
// run in its own goroutine.
func Serve(addr string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics.http.error", "err", err)
	}
}
