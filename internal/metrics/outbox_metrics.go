package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics — метрики публикации событий витрины из outbox.
type OutboxMetrics struct {
	publishAttempts  *prometheus.CounterVec
	pendingRecords   prometheus.Gauge
	oldestPendingAge prometheus.Gauge
	drainDuration    prometheus.Histogram
}

// NewOutboxMetricsWithRegisterer создаёт метрики outbox в указанном registerer.
func NewOutboxMetricsWithRegisterer(registerer prometheus.Registerer) *OutboxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OutboxMetrics{
		publishAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"}),
		pendingRecords: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_outbox_pending_records",
			Help: "Current number of pending records in the storefront outbox.",
		}),
		oldestPendingAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record.",
		}),
		drainDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_outbox_drain_duration_seconds",
			Help:    "Duration of outbox drains performed on shutdown.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic("collector " + opts.Name + " already registered with unexpected type")
			}
			return existing
		}
		panic("register histogram " + opts.Name + ": " + err.Error())
	}
	return collector
}

// RecordPublish увеличивает счётчик попыток публикации с результатом result
// (sent, retry_error, failed, dlq_failed).
func (m *OutboxMetrics) RecordPublish(result string) {
	if m == nil {
		return
	}
	m.publishAttempts.WithLabelValues(result).Inc()
}

// SetBacklog обновляет размер backlog и возраст самой старой записи.
func (m *OutboxMetrics) SetBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	m.pendingRecords.Set(float64(pending))
	m.oldestPendingAge.Set(oldestAge.Seconds())
}

// ObserveDrain записывает длительность выгрузки outbox при остановке.
func (m *OutboxMetrics) ObserveDrain(duration time.Duration) {
	if m == nil {
		return
	}
	m.drainDuration.Observe(duration.Seconds())
}
