package metrics

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// MetricsCollector wraps PrometheusMetrics, mirroring the cache-daemon
// collector's shape. Decisions and compile durations are also logged at
// debug level and snapshot swaps at info level; the other methods only
// record.
type MetricsCollector struct {
	prometheus *PrometheusMetrics
	logger     *zap.Logger
}

func NewMetricsCollector(namespace string, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		prometheus: NewPrometheusMetrics(namespace, logger),
		logger:     logger,
	}
}

func (mc *MetricsCollector) RecordDecision(kind string) {
	mc.prometheus.RecordDecision(kind)
	mc.logger.Debug("recorded decision", zap.String("kind", kind))
}

func (mc *MetricsCollector) RecordCacheLookup(hit bool) {
	mc.prometheus.RecordCacheLookup(hit)
}

func (mc *MetricsCollector) ObserveCandidateGather(d time.Duration) {
	mc.prometheus.ObserveCandidateGather(d.Seconds())
}

func (mc *MetricsCollector) RecordSnapshotSwap() {
	mc.prometheus.RecordSnapshotSwap()
	mc.logger.Info("snapshot swap recorded")
}

func (mc *MetricsCollector) SetSnapshotAge(d time.Duration) {
	mc.prometheus.SetSnapshotAge(d.Seconds())
}

func (mc *MetricsCollector) ObserveCompileDuration(d time.Duration) {
	mc.prometheus.ObserveCompileDuration(d.Seconds())
	mc.logger.Debug("recorded compile duration", zap.Duration("duration", d))
}

func (mc *MetricsCollector) RecordRulesSkipped(reason string, n int) {
	if n == 0 {
		return
	}
	mc.prometheus.RecordRulesSkipped(reason, n)
}

func (mc *MetricsCollector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	mc.prometheus.ServeHTTP(ctx)
}
