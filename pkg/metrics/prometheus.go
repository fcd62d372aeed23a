package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsCollector struct {
	registry          *prometheus.Registry
	verdicts          *prometheus.CounterVec
	failures          *prometheus.CounterVec
	scoringDuration   *prometheus.HistogramVec
	scoreDistribution *prometheus.HistogramVec
	alertsDropped     prometheus.Counter
	logger            *slog.Logger
}

func NewMetricsCollector(logger *slog.Logger) *MetricsCollector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	collector := &MetricsCollector{
		registry: registry,
		verdicts: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_verdicts_total",
			Help: "Total number of verdicts by source and outcome",
		}, []string{"model", "source", "is_fraud"}),
		failures: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_scoring_failures_total",
			Help: "Total number of rejected or failed scoring requests",
		}, []string{"reason"}),
		scoringDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fraud_scoring_duration_seconds",
			Help:    "Time taken to classify a transaction",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"source"}),
		scoreDistribution: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fraud_score_distribution",
			Help:    "Distribution of fraud scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}, []string{"source"}),
		alertsDropped: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "fraud_alerts_dropped_total",
			Help: "Fraud alerts that could not be queued",
		}),
		logger: logger,
	}

	return collector
}

func (m *MetricsCollector) RecordVerdict(modelName, source string, isFraud bool, score float64, duration time.Duration) {
	fraud := "false"
	if isFraud {
		fraud = "true"
	}

	m.verdicts.WithLabelValues(modelName, source, fraud).Inc()
	m.scoringDuration.WithLabelValues(source).Observe(duration.Seconds())
	m.scoreDistribution.WithLabelValues(source).Observe(score)
}

func (m *MetricsCollector) RecordFailure(reason string) {
	m.failures.WithLabelValues(reason).Inc()
}

func (m *MetricsCollector) RecordAlertDropped() {
	m.alertsDropped.Inc()
}

func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MetricsCollector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	m.logger.Info("Metrics collector shutdown complete")
	return nil
}
