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
			Name: "dm_http_requests_total",
			Help: "Total number of HTTP requests processed by the relay.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dm_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dm_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	connectionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_connection_events_total",
			Help: "Client connection lifecycle events.",
		},
		[]string{"event"},
	)
	messagesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dm_messages_sent_total",
			Help: "Total number of outbound message transmissions.",
		},
	)
	messageAcksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_message_acks_total",
			Help: "Outbound message acknowledgment outcomes.",
		},
		[]string{"result"},
	)
	historyFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_history_fetches_total",
			Help: "History page fetch outcomes.",
		},
		[]string{"result"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dm_amqp_publish_errors_total",
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
		connectionEventsTotal,
		messagesSentTotal,
		messageAcksTotal,
		historyFetchesTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies per route.
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

func IncWSActive() { wsActiveConnections.Inc() }

func DecWSActive() { wsActiveConnections.Dec() }

func IncWSEvent(event string) { wsEventsTotal.WithLabelValues(event).Inc() }

func IncConnectionAttempt() { connectionEventsTotal.WithLabelValues("attempt").Inc() }

func IncConnectionEstablished() { connectionEventsTotal.WithLabelValues("established").Inc() }

func IncConnectionFailure() { connectionEventsTotal.WithLabelValues("dial_error").Inc() }

func IncConnectionLost() { connectionEventsTotal.WithLabelValues("lost").Inc() }

func IncMessageSent() { messagesSentTotal.Inc() }

func IncMessageAck(result string) { messageAcksTotal.WithLabelValues(result).Inc() }

func IncHistoryFetch(result string) { historyFetchesTotal.WithLabelValues(result).Inc() }

func IncAMQPPublishError() { amqpPublishErrorsTotal.Inc() }
