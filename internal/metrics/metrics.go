// Package metrics holds the process-wide Prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Push send outcome labels.
const (
	ResultSuccess   = "success"
	ResultTransient = "transient"
	ResultTerminal  = "terminal"
)

var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"path", "status", "method"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"path", "method"},
)

var RateLimitRejectionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "http_rate_limit_rejections_total",
		Help: "Total number of HTTP requests rejected due to rate limiting",
	},
)

var PushSendsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "push_sends_total",
		Help: "Total number of push send attempts by outcome",
	},
	[]string{"result"},
)

var PushSendDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "push_send_duration_seconds",
		Help:    "Time taken by individual push send attempts",
		Buckets: prometheus.DefBuckets,
	},
)

var DevicesRetiredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "devices_retired_total",
		Help: "Total number of devices retired after a terminal send failure",
	},
)

var ReconciliationFailuresTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "reconciliation_failures_total",
		Help: "Total number of failed dead-endpoint reconciliation writes",
	},
)

// Init registers every collector with the default registry. Call once at
// process start.
func Init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RateLimitRejectionsTotal,
		PushSendsTotal,
		PushSendDuration,
		DevicesRetiredTotal,
		ReconciliationFailuresTotal,
	)
}
