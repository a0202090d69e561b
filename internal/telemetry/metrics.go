package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventDuration — длительность обработчиков, выполненных через PerformEvent.
	EventDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "backbeat",
		Name:      "event_duration_seconds",
		Help:      "Duration of inline event handler executions.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event", "result"})

	// EventErrors — ошибки обработчиков по классу ошибки.
	EventErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backbeat",
		Name:      "event_errors_total",
		Help:      "Event handler errors by error class.",
	}, []string{"event", "error_class"})

	// StatusTransitions — применённые переходы статусов.
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backbeat",
		Name:      "status_transitions_total",
		Help:      "Committed node status transitions.",
	}, []string{"status_type", "to_status"})

	// StaleStatusChanges — проигранные гонки compare-and-swap.
	StaleStatusChanges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "backbeat",
		Name:      "stale_status_changes_total",
		Help:      "Status transitions rejected because the node changed concurrently.",
	})

	// DeferredCallsEnqueued — отложенные вызовы по способу доставки (publish или store).
	DeferredCallsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backbeat",
		Name:      "deferred_calls_enqueued_total",
		Help:      "Deferred handler calls enqueued, by handler and route.",
	}, []string{"handler", "route"})

	// DeferredCallsRelayed — вызовы, переданные планировщиком из БД в очередь.
	DeferredCallsRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "backbeat",
		Name:      "deferred_calls_relayed_total",
		Help:      "Deferred calls moved from the database to the message queue.",
	})

	// ClientRequests — запросы к endpoint'ам клиента.
	ClientRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backbeat",
		Name:      "client_requests_total",
		Help:      "Outbound client gateway requests by endpoint and result.",
	}, []string{"endpoint", "result"})

	// HTTPRequests — входящие запросы HTTP API.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backbeat",
		Name:      "http_requests_total",
		Help:      "Inbound HTTP API requests by route and status code.",
	}, []string{"method", "route", "status"})
)
