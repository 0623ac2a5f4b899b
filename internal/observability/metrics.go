package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatneto_http_requests_total",
			Help: "Total number of HTTP requests processed by the relay.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatneto_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatneto_ws_active_connections",
			Help: "Number of active realtime websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatneto_ws_events_total",
			Help: "Total number of realtime websocket events.",
		},
		[]string{"event"},
	)
	messagesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatneto_messages_sent_total",
			Help: "Total number of messages confirmed by the store.",
		},
	)
	sendFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatneto_send_failures_total",
			Help: "Total number of message sends that failed or timed out.",
		},
	)
	duplicateDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatneto_duplicate_drops_total",
			Help: "Total number of notification messages dropped as duplicates.",
		},
	)
	reconciliationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatneto_reconciliations_total",
			Help: "Total number of optimistic placeholders reconciled with server rows.",
		},
	)
	pollRefreshesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatneto_poll_refreshes_total",
			Help: "Total number of polling refreshes that replaced local state.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatneto_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		messagesSentTotal,
		sendFailuresTotal,
		duplicateDropsTotal,
		reconciliationsTotal,
		pollRefreshesTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncMessageSent() {
	messagesSentTotal.Inc()
}

func IncSendFailure() {
	sendFailuresTotal.Inc()
}

func IncDuplicateDrop() {
	duplicateDropsTotal.Inc()
}

func IncReconciliation() {
	reconciliationsTotal.Inc()
}

func IncPollRefresh() {
	pollRefreshesTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
