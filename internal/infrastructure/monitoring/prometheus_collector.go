package monitoring

import (
	"time"

	"userhub/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "userhub"

// PrometheusCollector records user operations, batch ingestion, hub
// activity and RPC latency. It satisfies ports.MetricsRecorder and
// notification.Metrics.
type PrometheusCollector struct {
	userOperations *prometheus.CounterVec
	batchItems     *prometheus.CounterVec
	batchesTotal   prometheus.Counter

	subscribersActive   prometheus.Gauge
	subscriptionsClosed *prometheus.CounterVec
	notificationsSent   *prometheus.CounterVec
	notificationsDrop   *prometheus.CounterVec

	rpcDuration  *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
}

// NewPrometheusCollector registers every metric on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		userOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_operations_total",
			Help:      "User operations by kind and outcome",
		}, []string{"operation", "outcome"}),

		batchItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Batch ingestion items by result",
		}, []string{"result"}),

		batchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Completed batch ingestion calls",
		}),

		subscribersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers_active",
			Help:      "Currently registered notification subscribers",
		}),

		subscriptionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_closed_total",
			Help:      "Closed subscriptions by terminal state",
		}, []string{"state"}),

		notificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Notifications handed to subscriber buffers",
		}, []string{"type"}),

		notificationsDrop: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications lost to full or closed subscriber buffers",
		}, []string{"type"}),

		rpcDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "gRPC handler latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "code"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "REST requests by route and status",
		}, []string{"method", "route", "status"}),
	}
}

func (p *PrometheusCollector) RecordUserOperation(op, outcome string) {
	p.userOperations.WithLabelValues(op, outcome).Inc()
}

func (p *PrometheusCollector) RecordBatch(created, failed int) {
	p.batchesTotal.Inc()
	p.batchItems.WithLabelValues("created").Add(float64(created))
	p.batchItems.WithLabelValues("failed").Add(float64(failed))
}

func (p *PrometheusCollector) SubscriptionOpened() {
	p.subscribersActive.Inc()
}

func (p *PrometheusCollector) SubscriptionClosed(state string) {
	p.subscribersActive.Dec()
	p.subscriptionsClosed.WithLabelValues(state).Inc()
}

func (p *PrometheusCollector) NotificationDelivered(t domain.NotificationType) {
	p.notificationsSent.WithLabelValues(string(t)).Inc()
}

func (p *PrometheusCollector) NotificationDropped(t domain.NotificationType) {
	p.notificationsDrop.WithLabelValues(string(t)).Inc()
}

func (p *PrometheusCollector) RecordRPC(method, code string, duration time.Duration) {
	p.rpcDuration.WithLabelValues(method, code).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int) {
	p.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
