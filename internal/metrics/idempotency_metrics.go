package metrics

import "github.com/prometheus/client_golang/prometheus"

// IdempotencyMetrics — метрики idempotency-key оформления заказа и очистки ключей.
type IdempotencyMetrics struct {
	cleanupRuns        *prometheus.CounterVec
	cleanupDeleted     prometheus.Counter
	cleanupLastDeleted prometheus.Gauge
	requests           *prometheus.CounterVec
}

// NewIdempotencyMetricsWithRegisterer создаёт метрики idempotency в указанном registerer.
func NewIdempotencyMetricsWithRegisterer(registerer prometheus.Registerer) *IdempotencyMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &IdempotencyMetrics{
		cleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"}),
		cleanupDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency records.",
		}),
		cleanupLastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_idempotency_cleanup_last_deleted",
			Help: "Number of deleted records during the last cleanup run.",
		}),
		requests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_requests_total",
			Help: "Requests carrying an Idempotency-Key grouped by outcome.",
		}, []string{"outcome"}),
	}
}

// RecordCleanup фиксирует результат одного цикла очистки.
func (m *IdempotencyMetrics) RecordCleanup(deleted int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.cleanupRuns.WithLabelValues("error").Inc()
		return
	}
	m.cleanupRuns.WithLabelValues("ok").Inc()
	m.cleanupLastDeleted.Set(float64(deleted))
}

// RecordDeleted увеличивает счётчик удалённых записей.
func (m *IdempotencyMetrics) RecordDeleted(deleted int) {
	if m == nil || deleted <= 0 {
		return
	}
	m.cleanupDeleted.Add(float64(deleted))
}

// RecordRequest фиксирует исход запроса с idempotency-key
// (executed, replayed, in_progress, mismatch, error).
func (m *IdempotencyMetrics) RecordRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}
