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
			Name: "conversation_http_requests_total",
			Help: "Total number of HTTP requests processed by the conversation service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conversation_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	conversationsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_created_total",
			Help: "Total number of conversations created.",
		},
		[]string{"kind"},
	)
	participantMatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_participant_match_total",
			Help: "Outcomes of participant set matching.",
		},
		[]string{"result"},
	)
	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_cache_requests_total",
			Help: "Cache lookups by cache kind and result.",
		},
		[]string{"kind", "result"},
	)
	cacheInvalidationErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "conversation_cache_invalidation_errors_total",
			Help: "Total number of failed cache invalidations.",
		},
	)
	messagesRecalledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_messages_recalled_total",
			Help: "Total number of message recalls by scope.",
		},
		[]string{"scope"},
	)
	messagesReadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "conversation_messages_read_total",
			Help: "Total number of messages marked read.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "conversation_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		conversationsCreatedTotal,
		participantMatchTotal,
		cacheRequestsTotal,
		cacheInvalidationErrorsTotal,
		messagesRecalledTotal,
		messagesReadTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncConversationCreated(kind string) {
	conversationsCreatedTotal.WithLabelValues(kind).Inc()
}

func IncParticipantMatch(result string) {
	participantMatchTotal.WithLabelValues(result).Inc()
}

func IncCacheRequest(kind, result string) {
	cacheRequestsTotal.WithLabelValues(kind, result).Inc()
}

func IncCacheInvalidationError() {
	cacheInvalidationErrorsTotal.Inc()
}

func IncMessageRecalled(scope string) {
	messagesRecalledTotal.WithLabelValues(scope).Inc()
}

func AddMessagesRead(n int64) {
	if n > 0 {
		messagesReadTotal.Add(float64(n))
	}
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
