// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stackscout",
		Name:      "passes_total",
		Help:      "Completed scrape passes by status.",
	}, []string{"status"})

	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stackscout",
		Name:      "pass_duration_seconds",
		Help:      "Wall-clock duration of scrape passes.",
		Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
	})

	PostingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stackscout",
		Name:      "postings_total",
		Help:      "Processed postings by outcome: saved, skipped, or the failing stage.",
	}, []string{"outcome"})

	StoredJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stackscout",
		Name:      "stored_jobs",
		Help:      "Jobs currently in the store.",
	})
)

// Serve exposes /metrics and /health on addr until ctx is cancelled. It
// blocks; run it on its own goroutine.
func Serve(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}
