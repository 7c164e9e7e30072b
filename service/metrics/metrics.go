package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Strategy Metrics
	operationsTotal    *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	rejectionsTotal    *prometheus.CounterVec
	mintedTotal        *prometheus.CounterVec
	treasuryCollateral *prometheus.GaugeVec

	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Workflow Metrics
	roundWorkflowsTotal  *prometheus.CounterVec
	roundActivityResults *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// Cache Metrics
	cacheLookupsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

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
		// Strategy Metrics
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solxr_operations_total",
				Help: "Total number of strategy operations by outcome",
			},
			[]string{"operation", "status"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solxr_operation_duration_seconds",
				Help:    "Duration of strategy operations in seconds, including the store transaction",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation"},
		),
		rejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solxr_rejections_total",
				Help: "Total number of operations rejected by a strategy rule",
			},
			[]string{"operation", "kind", "reason"},
		),
		mintedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solxr_minted_base_units_total",
				Help: "Synthetic base units minted, by operation",
			},
			[]string{"operation"},
		),
		treasuryCollateral: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "solxr_treasury_collateral_base_units",
				Help: "Collateral accumulators of the strategy after the last committed operation",
			},
			[]string{"source"},
		),

		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),

		// Workflow Metrics
		roundWorkflowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "round_lifecycle_workflows_total",
				Help: "Total number of round lifecycle workflows scheduled",
			},
			[]string{"status"},
		),
		roundActivityResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "round_expiry_activity_results_total",
				Help: "Results of the round expiry activity",
			},
			[]string{"result"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// Cache Metrics
		cacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_lookups_total",
				Help: "Snapshot cache lookups by result",
			},
			[]string{"result"},
		),

		// HTTP Metrics
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

		// NATS Metrics
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

// Strategy metric helpers

// RecordOperation records an engine operation with its status and duration.
func (m *Metrics) RecordOperation(operation, status string, duration float64) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRejection records a rule violation.
func (m *Metrics) RecordRejection(operation, kind, reason string) {
	m.rejectionsTotal.WithLabelValues(operation, kind, reason).Inc()
}

// RecordMinted adds to the minted counter. Zero amounts are ignored.
func (m *Metrics) RecordMinted(operation string, amount float64) {
	if amount <= 0 {
		return
	}
	m.mintedTotal.WithLabelValues(operation).Add(amount)
}

// RecordTreasury sets the collateral gauges.
func (m *Metrics) RecordTreasury(solInTreasury, solFromBond, solFromWhitelist float64) {
	m.treasuryCollateral.WithLabelValues("invest").Set(solInTreasury)
	m.treasuryCollateral.WithLabelValues("bond").Set(solFromBond)
	m.treasuryCollateral.WithLabelValues("whitelist").Set(solFromWhitelist)
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method).Observe(duration)
}

// Workflow metric helpers

// RecordRoundWorkflow records a round lifecycle workflow being scheduled.
func (m *Metrics) RecordRoundWorkflow(status string) {
	m.roundWorkflowsTotal.WithLabelValues(status).Inc()
}

// RecordRoundExpiry records the result of a round expiry activity.
func (m *Metrics) RecordRoundExpiry(result string) {
	m.roundActivityResults.WithLabelValues(result).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// Cache metric helpers

// RecordCacheLookup records a cache hit, miss or error.
func (m *Metrics) RecordCacheLookup(result string) {
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
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
