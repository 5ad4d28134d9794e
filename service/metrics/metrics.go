package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is constructed once in main and passed to every component that
// records metrics. Components treat a nil *Metrics as "metrics disabled".
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHits *prometheus.CounterVec
	solanaRPCRetries       *prometheus.CounterVec

	// Update stream Metrics
	streamEventsTotal     *prometheus.CounterVec
	streamReconnectsTotal *prometheus.CounterVec

	// Pipeline Metrics
	pipelineEventsTotal     *prometheus.CounterVec
	pipelineDuration        *prometheus.HistogramVec
	pipelineInFlight        prometheus.Gauge
	activityClassifiedTotal *prometheus.CounterVec
	riskLevelTotal          *prometheus.CounterVec

	// Cache Metrics
	cacheLookupsTotal *prometheus.CounterVec
	cacheEntries      *prometheus.GaugeVec
	externalFetches   *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),

		streamEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_events_total",
				Help: "Total number of account update events received by kind",
			},
			[]string{"wallet_address", "kind"},
		),
		streamReconnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_reconnects_total",
				Help: "Total number of account subscription reconnects",
			},
			[]string{"wallet_address"},
		),

		pipelineEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_events_total",
				Help: "Total number of update events handled by outcome",
			},
			[]string{"outcome"},
		),
		pipelineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_duration_seconds",
				Help:    "Duration of a single decode-classify-enrich run in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		pipelineInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeline_in_flight",
				Help: "Number of pipeline runs currently in flight",
			},
		),
		activityClassifiedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_classified_total",
				Help: "Total number of classified transactions by activity type and protocol",
			},
			[]string{"activity_type", "protocol"},
		),
		riskLevelTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enriched_records_total",
				Help: "Total number of enriched records by transaction type and risk level",
			},
			[]string{"transaction_type", "risk_level"},
		),

		cacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_lookups_total",
				Help: "Total number of cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
		cacheEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cache_entries",
				Help: "Number of entries currently held per cache",
			},
			[]string{"cache"},
		),
		externalFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_fetches_total",
				Help: "Total number of off-chain fetches by source and status",
			},
			[]string{"source", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"wallet_address"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"wallet_address", "event_type"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	m.solanaRPCRetries.WithLabelValues(method, reason).Inc()
}

// Update stream metric helpers

// RecordStreamEvent records an account update received from the stream.
// kind is one of "ping", "update" or "error".
func (m *Metrics) RecordStreamEvent(walletAddress, kind string) {
	m.streamEventsTotal.WithLabelValues(walletAddress, kind).Inc()
}

// RecordStreamReconnect records a subscription reconnect for a wallet.
func (m *Metrics) RecordStreamReconnect(walletAddress string) {
	m.streamReconnectsTotal.WithLabelValues(walletAddress).Inc()
}

// Pipeline metric helpers

// RecordPipelineRun records the outcome and duration of one pipeline run.
func (m *Metrics) RecordPipelineRun(outcome string, duration float64) {
	m.pipelineEventsTotal.WithLabelValues(outcome).Inc()
	m.pipelineDuration.WithLabelValues(outcome).Observe(duration)
}

// AddPipelineInFlight adjusts the in-flight gauge by delta.
func (m *Metrics) AddPipelineInFlight(delta float64) {
	m.pipelineInFlight.Add(delta)
}

// RecordActivityClassified records the classifier outcome for a transaction.
func (m *Metrics) RecordActivityClassified(activityType, protocol string) {
	m.activityClassifiedTotal.WithLabelValues(activityType, protocol).Inc()
}

// RecordEnrichedRecord records the aggregate classification of an enriched record.
func (m *Metrics) RecordEnrichedRecord(transactionType, riskLevel string) {
	m.riskLevelTotal.WithLabelValues(transactionType, riskLevel).Inc()
}

// Cache metric helpers

// RecordCacheLookup records a cache hit or miss. result is "hit", "miss" or "stale".
func (m *Metrics) RecordCacheLookup(cache, result string) {
	m.cacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// SetCacheEntries records the current size of a cache.
func (m *Metrics) SetCacheEntries(cache string, n int) {
	m.cacheEntries.WithLabelValues(cache).Set(float64(n))
}

// RecordExternalFetch records an off-chain fetch (price quote, metadata JSON).
func (m *Metrics) RecordExternalFetch(source string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.externalFetches.WithLabelValues(source, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(walletAddress string, delta float64) {
	m.sseActiveConnections.WithLabelValues(walletAddress).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(walletAddress, eventType string) {
	m.sseEventsSent.WithLabelValues(walletAddress, eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
