package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты, которыми размечаются счётчики.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// StorefrontMetrics содержит метрики витрины: вызовы бэкенда, кэш запроса,
// разрешение регионов, операции корзины и события outbox.
//
// Все методы безопасны для nil-получателя: сервисы, собранные без метрик
// (например, в тестах), просто ничего не записывают.
type StorefrontMetrics struct {
	// Вызовы коммерческого бэкенда
	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec

	// Кэш в рамках запроса
	cacheLookups *prometheus.CounterVec

	// Каталог и регионы
	regionResolutions       *prometheus.CounterVec
	collectionFetchFailures prometheus.Counter

	// Корзина
	cartOperations *prometheus.CounterVec
	ordersPlaced   prometheus.Counter
	inFlightOrders prometheus.Gauge

	// Outbox
	outboxEvents *prometheus.CounterVec

	// HTTP API
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewStorefrontMetrics создаёт метрики в DefaultRegisterer.
func NewStorefrontMetrics() *StorefrontMetrics {
	return NewStorefrontMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStorefrontMetricsWithRegisterer создаёт метрики в указанном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewStorefrontMetricsWithRegisterer(registerer prometheus.Registerer) *StorefrontMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StorefrontMetrics{
		backendCalls: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_backend_calls_total",
			Help: "Total number of commerce backend calls by operation and result",
		}, []string{"operation", "result"}),
		backendDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_backend_call_duration_seconds",
			Help:    "Duration of commerce backend calls in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"operation"}),
		cacheLookups: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_request_cache_lookups_total",
			Help: "Request-scoped cache lookups by result (hit, miss, shared)",
		}, []string{"result"}),
		regionResolutions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_region_resolutions_total",
			Help: "Region resolutions by the strategy that produced the region",
		}, []string{"strategy"}),
		collectionFetchFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_collection_product_fetch_failures_total",
			Help: "Collections whose products could not be fetched and were rendered empty",
		}),
		cartOperations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_operations_total",
			Help: "Cart operations by operation and result",
		}, []string{"operation", "result"}),
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Total number of carts completed into orders",
		}),
		inFlightOrders: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_orders_in_flight",
			Help: "Number of cart completions currently waiting for the backend",
		}),
		outboxEvents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Total number of storefront events written to the outbox",
		}, []string{"event_type"}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "HTTP API requests by route pattern, method and status code",
		}, []string{"route", "method", "code"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP API request duration in seconds by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// ObserveBackendCall записывает длительность и результат вызова бэкенда.
func (m *StorefrontMetrics) ObserveBackendCall(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.backendCalls.WithLabelValues(operation, result(err)).Inc()
	m.backendDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheLookup увеличивает счётчик обращений к кэшу запроса.
func (m *StorefrontMetrics) RecordCacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// RecordRegionResolved отмечает стратегию, которая вернула регион ("none" — регион не найден).
func (m *StorefrontMetrics) RecordRegionResolved(strategy string) {
	if m == nil {
		return
	}
	m.regionResolutions.WithLabelValues(strategy).Inc()
}

// RecordCollectionFetchFailed увеличивает счётчик коллекций, отрисованных без товаров.
func (m *StorefrontMetrics) RecordCollectionFetchFailed() {
	if m == nil {
		return
	}
	m.collectionFetchFailures.Inc()
}

// RecordCartOperation записывает результат операции с корзиной.
func (m *StorefrontMetrics) RecordCartOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.cartOperations.WithLabelValues(operation, result(err)).Inc()
}

// RecordOrderPlaced увеличивает счётчик оформленных заказов.
func (m *StorefrontMetrics) RecordOrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// RecordOrderInFlightStarted увеличивает количество завершаемых корзин.
func (m *StorefrontMetrics) RecordOrderInFlightStarted() {
	if m == nil {
		return
	}
	m.inFlightOrders.Inc()
}

// RecordOrderInFlightFinished уменьшает количество завершаемых корзин.
func (m *StorefrontMetrics) RecordOrderInFlightFinished() {
	if m == nil {
		return
	}
	m.inFlightOrders.Dec()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *StorefrontMetrics) RecordOutboxEvent(eventType string) {
	if m == nil {
		return
	}
	m.outboxEvents.WithLabelValues(eventType).Inc()
}

// ObserveHTTPRequest записывает запрос к HTTP API. route — шаблон маршрута
// chi, чтобы не раздувать кардинальность конкретными handle и id.
func (m *StorefrontMetrics) ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}
