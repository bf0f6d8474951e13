package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdict_decisions_total",
			Help: "Total number of control decisions rendered (count)",
		},
		[]string{"kind"},
	)

	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdict_rejections_total",
			Help: "Total number of messages rejected with violations, by first violation (count)",
		},
		[]string{"violation"},
	)

	FailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdict_failures_total",
			Help: "Total number of business failures collected (count)",
		},
		[]string{"taxonomy"},
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verdict_pipeline_duration_ms",
			Help:    "Decision pipeline duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"outcome"},
	)

	RouteSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdict_route_selections_total",
			Help: "Total number of route selections (count)",
		},
		[]string{"route"},
	)

	RouteRuleErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdict_route_rule_errors_total",
			Help: "Total number of routing expression evaluation errors (count)",
		},
		[]string{"rule"},
	)

	DedupChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdict_dedup_checks_total",
			Help: "Total number of deduplication checks (count)",
		},
		[]string{"status"},
	)

	LookupRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdict_lookup_requests_total",
			Help: "Total number of query spec lookups (count)",
		},
		[]string{"provider", "status"},
	)

	LookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verdict_lookup_duration_ms",
			Help:    "Query spec lookup duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"provider"},
	)

	LookupCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdict_lookup_cache_total",
			Help: "Lookup cache hits and misses (count)",
		},
		[]string{"result"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served (count)",
		},
		[]string{"path", "code"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Kafka write duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"topic"},
	)
)

var (
	decisionOnce sync.Once
	lookupOnce   sync.Once
	brokerOnce   sync.Once
	breakerOnce  sync.Once
	httpOnce     sync.Once
)

func RegisterDecisionMetrics() {
	decisionOnce.Do(func() {
		prometheus.MustRegister(DecisionsTotal)
		prometheus.MustRegister(RejectionsTotal)
		prometheus.MustRegister(FailuresTotal)
		prometheus.MustRegister(PipelineDuration)
		prometheus.MustRegister(RouteSelectionsTotal)
		prometheus.MustRegister(RouteRuleErrorsTotal)
		prometheus.MustRegister(DedupChecksTotal)
		prometheus.MustRegister(FallbackUsageTotal)
	})
}

func RegisterLookupMetrics() {
	lookupOnce.Do(func() {
		prometheus.MustRegister(LookupRequestsTotal)
		prometheus.MustRegister(LookupDuration)
		prometheus.MustRegister(LookupCacheTotal)
	})
}

func RegisterBrokerMetrics() {
	brokerOnce.Do(func() {
		prometheus.MustRegister(KafkaMessagesWrittenTotal)
		prometheus.MustRegister(KafkaWriteDuration)
	})
}

func RegisterCircuitBreakerMetrics() {
	breakerOnce.Do(func() {
		prometheus.MustRegister(CircuitBreakerState)
		prometheus.MustRegister(CircuitBreakerRequests)
		prometheus.MustRegister(CircuitBreakerFailures)
	})
}

func RegisterHTTPMetrics() {
	httpOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(RateLimitRequestsTotal)
	})
}

func IncDecision(kind string) {
	DecisionsTotal.WithLabelValues(kind).Inc()
}

func IncRejection(violation string) {
	RejectionsTotal.WithLabelValues(violation).Inc()
}

func IncFailure(taxonomy string) {
	FailuresTotal.WithLabelValues(taxonomy).Inc()
}

func ObservePipelineDuration(duration time.Duration, outcome string) {
	PipelineDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func IncRouteSelection(route string) {
	RouteSelectionsTotal.WithLabelValues(route).Inc()
}

func IncRouteRuleError(rule string) {
	RouteRuleErrorsTotal.WithLabelValues(rule).Inc()
}

func IncDedupCheck(status string) {
	DedupChecksTotal.WithLabelValues(status).Inc()
}

func IncLookupRequest(provider, status string) {
	LookupRequestsTotal.WithLabelValues(provider, status).Inc()
}

func ObserveLookupDuration(provider string, duration time.Duration) {
	LookupDuration.WithLabelValues(provider).Observe(float64(duration.Milliseconds()))
}

func IncLookupCache(hit bool) {
	if hit {
		LookupCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	LookupCacheTotal.WithLabelValues("miss").Inc()
}

func IncFallbackUsage(service, strategy, reason string) {
	FallbackUsageTotal.WithLabelValues(service, strategy, reason).Inc()
}

func IncRateLimit(status string) {
	RateLimitRequestsTotal.WithLabelValues(status).Inc()
}

func IncHTTPRequest(path, code string) {
	HTTPRequestsTotal.WithLabelValues(path, code).Inc()
}

func IncKafkaMessagesWritten(topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(topic).Inc()
}

func ObserveKafkaWriteDuration(topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(topic).Observe(float64(duration.Milliseconds()))
}
