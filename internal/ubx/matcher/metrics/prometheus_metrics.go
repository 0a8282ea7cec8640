// Package metrics exposes matcher-pipeline instrumentation as Prometheus
// collectors, grounded on the cache-daemon metrics package's
// NewPrometheusMetrics/NewMetricsCollector split.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

type PrometheusMetrics struct {
	httpHandler func(*fasthttp.RequestCtx)
	logger      *zap.Logger

	decisionsTotal      *prometheus.CounterVec
	cacheLookupsTotal   *prometheus.CounterVec
	candidateGatherTime prometheus.Histogram
	snapshotSwapsTotal  prometheus.Counter
	snapshotAgeSeconds  prometheus.Gauge
	compileDuration     prometheus.Histogram
	rulesSkippedTotal   *prometheus.CounterVec
	cacheHitRatio       prometheus.Gauge
}

func NewPrometheusMetrics(namespace string, logger *zap.Logger) *PrometheusMetrics {
	if namespace == "" {
		namespace = "ubx"
	}

	pm := &PrometheusMetrics{logger: logger}

	pm.decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "decisions_total",
			Help:      "Total number of match_request decisions by kind",
		},
		[]string{"kind"},
	)

	pm.cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "decision_cache_lookups_total",
			Help:      "Total decision-cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	pm.candidateGatherTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "candidate_gather_seconds",
			Help:      "Duration of token-posting candidate gathering",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pm.snapshotSwapsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "snapshot_swaps_total",
			Help:      "Total number of snapshot swaps installed",
		},
	)

	pm.snapshotAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "snapshot_age_seconds",
			Help:      "Seconds since the currently installed snapshot was swapped in",
		},
	)

	pm.compileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compiler",
			Name:      "compile_duration_seconds",
			Help:      "Duration of compile_filter_lists runs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	pm.rulesSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compiler",
			Name:      "rules_skipped_total",
			Help:      "Total rules skipped during compilation by reason",
		},
		[]string{"reason"},
	)

	pm.cacheHitRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "decision_cache_hit_ratio",
			Help:      "Decision-cache hit ratio since process start",
		},
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		pm.decisionsTotal,
		pm.cacheLookupsTotal,
		pm.candidateGatherTime,
		pm.snapshotSwapsTotal,
		pm.snapshotAgeSeconds,
		pm.compileDuration,
		pm.rulesSkippedTotal,
		pm.cacheHitRatio,
	)

	gatherer := prometheus.Gatherer(registry)
	handler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
	pm.httpHandler = fasthttpadaptor.NewFastHTTPHandler(handler)

	logger.Info("Prometheus metrics initialized for matcher", zap.String("namespace", namespace))
	return pm
}

func (pm *PrometheusMetrics) RecordDecision(kind string) {
	pm.decisionsTotal.WithLabelValues(kind).Inc()
}

func (pm *PrometheusMetrics) RecordCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	pm.cacheLookupsTotal.WithLabelValues(outcome).Inc()
	pm.updateCacheHitRatio()
}

// updateCacheHitRatio recomputes the hit-ratio gauge from the hit/miss
// counters' current values, read back via a metric DTO since
// prometheus.Counter exposes no direct getter.
func (pm *PrometheusMetrics) updateCacheHitRatio() {
	hits := pm.readCounter(pm.cacheLookupsTotal.WithLabelValues("hit"))
	misses := pm.readCounter(pm.cacheLookupsTotal.WithLabelValues("miss"))
	total := hits + misses
	if total > 0 {
		pm.cacheHitRatio.Set(hits / total)
	}
}

func (pm *PrometheusMetrics) readCounter(counter prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		pm.logger.Warn("failed to read counter value", zap.Error(err))
		return 0
	}
	return metric.GetCounter().GetValue()
}

func (pm *PrometheusMetrics) ObserveCandidateGather(seconds float64) {
	pm.candidateGatherTime.Observe(seconds)
}

func (pm *PrometheusMetrics) RecordSnapshotSwap() {
	pm.snapshotSwapsTotal.Inc()
	pm.snapshotAgeSeconds.Set(0)
}

func (pm *PrometheusMetrics) SetSnapshotAge(seconds float64) {
	pm.snapshotAgeSeconds.Set(seconds)
}

func (pm *PrometheusMetrics) ObserveCompileDuration(seconds float64) {
	pm.compileDuration.Observe(seconds)
}

func (pm *PrometheusMetrics) RecordRulesSkipped(reason string, n int) {
	pm.rulesSkippedTotal.WithLabelValues(reason).Add(float64(n))
}

func (pm *PrometheusMetrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	pm.httpHandler(ctx)
}
