// Package metrics exposes Prometheus collectors for the embed pipeline.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds every collector the bot records into.
type Metrics struct {
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	DeliveriesTotal *prometheus.CounterVec
	TranscodesTotal *prometheus.CounterVec
}

// Get returns the process-wide metrics, registering them on first use.
//
// Metrics:
//   - embedbot_cache_hits_total{kind}
//   - embedbot_cache_misses_total{kind}
//   - embedbot_fetches_total{integration,status}
//   - embedbot_fetch_duration_seconds{integration}
//   - embedbot_deliveries_total{status}
//   - embedbot_transcodes_total{status}
func Get() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			CacheHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "embedbot_cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"kind"},
			),
			CacheMissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "embedbot_cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"kind"},
			),
			FetchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "embedbot_fetches_total",
					Help: "Total number of platform fetches",
				},
				[]string{"integration", "status"},
			),
			FetchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "embedbot_fetch_duration_seconds",
					Help:    "Duration of platform fetches in seconds",
					Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
				},
				[]string{"integration"},
			),
			DeliveriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "embedbot_deliveries_total",
					Help: "Total number of delivery attempts by outcome",
				},
				[]string{"status"},
			),
			TranscodesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "embedbot_transcodes_total",
					Help: "Total number of transcode passes by outcome",
				},
				[]string{"status"},
			),
		}
	})
	return globalMetrics
}

// ObserveFetch records one platform fetch.
func (m *Metrics) ObserveFetch(integration string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.FetchesTotal.WithLabelValues(integration, status).Inc()
	m.FetchDuration.WithLabelValues(integration).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}()

	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
