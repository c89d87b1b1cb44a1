package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the monitor
	Registry = prometheus.NewRegistry()

	// Polls counts refresh cycles by outcome (applied, stale, network_error, ...)
	Polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "opsmonitor_polls_total", Help: "Order list polls by result."},
		[]string{"result"},
	)
	// PollDuration records how long the backend took to answer an order list poll
	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "opsmonitor_poll_duration_seconds", Help: "Order list poll duration in seconds.", Buckets: prometheus.DefBuckets},
	)
	// TrackedOrders is the size of the snapshot store
	TrackedOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "opsmonitor_tracked_orders", Help: "Orders held in the snapshot store."},
	)
	// ParseErrors counts order fields that could not be parsed
	ParseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "opsmonitor_parse_errors_total", Help: "Unparseable order fields."},
		[]string{"field"},
	)
	// MonitorEvents counts detected events by kind
	MonitorEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "opsmonitor_events_total", Help: "Detected monitor events by kind."},
		[]string{"kind"},
	)
	// NotificationDeliveries counts notification deliveries by sink and status
	NotificationDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "opsmonitor_notification_deliveries_total", Help: "Notification deliveries by sink and status."},
		[]string{"sink", "status"},
	)
	// Reconciliations counts tax reconciliations by method
	Reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "opsmonitor_reconciliations_total", Help: "Tax reconciliations by method."},
		[]string{"method"},
	)
	// HTTPRequests counts requests by method, route, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "opsmonitor_http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(Polls)
		Registry.MustRegister(PollDuration)
		Registry.MustRegister(TrackedOrders)
		Registry.MustRegister(ParseErrors)
		Registry.MustRegister(MonitorEvents)
		Registry.MustRegister(NotificationDeliveries)
		Registry.MustRegister(Reconciliations)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
