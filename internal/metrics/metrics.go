package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gitjobs/notifier/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	NotificationsEnqueued *prometheus.CounterVec
	NotificationsSent     *prometheus.CounterVec
	NotificationsFailed   *prometheus.CounterVec
	DeliveryLatency       *prometheus.HistogramVec
	LeasesReaped          prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct. openLeases backs the
// notification_leases_open gauge and is read at scrape time.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer, openLeases func() float64) *Metrics {
	m := &Metrics{
		NotificationsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_enqueued_total",
			Help: "Total number of notification records written to the queue.",
		}, []string{"kind"}),

		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Total number of notifications accepted by the SMTP relay.",
		}, []string{"kind"}),

		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of notifications processed with a recorded error.",
		}, []string{"kind"}),

		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_delivery_seconds",
			Help:    "Latency from dequeue to SMTP acceptance.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),

		LeasesReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_leases_reaped_total",
			Help: "Total number of leases rolled back by the reaper.",
		}),
	}

	if openLeases == nil {
		openLeases = func() float64 { return 0 }
	}
	leasesOpen := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "notification_leases_open",
		Help: "Number of open queue leases.",
	}, openLeases)

	reg.MustRegister(
		m.NotificationsEnqueued,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.DeliveryLatency,
		m.LeasesReaped,
		leasesOpen,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by worker.MetricHooks.
// Centralises the prometheus observation calls so worker.go stays import-free.
func (m *Metrics) WorkerHooks() (
	onDelivered func(domain.Kind, time.Duration),
	onFailed func(domain.Kind),
) {
	onDelivered = func(k domain.Kind, latency time.Duration) {
		m.NotificationsSent.WithLabelValues(string(k)).Inc()
		m.DeliveryLatency.WithLabelValues(string(k)).Observe(latency.Seconds())
	}
	onFailed = func(k domain.Kind) {
		m.NotificationsFailed.WithLabelValues(string(k)).Inc()
	}
	return
}

// EnqueueHook counts records written by the service.
func (m *Metrics) EnqueueHook() func(domain.Kind, int) {
	return func(k domain.Kind, n int) {
		m.NotificationsEnqueued.WithLabelValues(string(k)).Add(float64(n))
	}
}

// ReapHook counts leases rolled back by the reaper.
func (m *Metrics) ReapHook() func(int) {
	return func(n int) {
		m.LeasesReaped.Add(float64(n))
	}
}
