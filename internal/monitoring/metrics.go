package monitoring

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsService interface {
	// HTTP metrics
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)

	// Ledger metrics
	RecordTransaction(transactionType, status string, amount float64, duration time.Duration)
	IncrementTransactionErrors(transactionType, errorType string)

	// Chat metrics
	RecordChatMessage(direction string)

	// Realtime metrics
	IncrementConnections(channel string)
	DecrementConnections(channel string)
}

type prometheusMetrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	transactionsTotal      *prometheus.CounterVec
	transactionDuration    *prometheus.HistogramVec
	transactionErrorsTotal *prometheus.CounterVec
	transactionVolumeTotal *prometheus.CounterVec

	chatMessagesTotal *prometheus.CounterVec

	realtimeConnectionsGauge *prometheus.GaugeVec
}

func NewPrometheusMetrics() MetricsService {
	m := &prometheusMetrics{}

	m.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fidelity_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	m.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fidelity_api_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	m.transactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fidelity_api_transactions_total",
			Help: "Total number of ledger transactions",
		},
		[]string{"type", "status"},
	)

	m.transactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fidelity_api_transaction_duration_seconds",
			Help:    "Ledger operation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"type"},
	)

	m.transactionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fidelity_api_transaction_errors_total",
			Help: "Total number of failed ledger operations",
		},
		[]string{"type", "error_type"},
	)

	m.transactionVolumeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fidelity_api_transaction_volume_total",
			Help: "Total transaction volume",
		},
		[]string{"type"},
	)

	m.chatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fidelity_api_chat_messages_total",
			Help: "Total number of chat messages",
		},
		[]string{"direction"},
	)

	m.realtimeConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fidelity_api_realtime_connections",
			Help: "Current number of WebSocket sessions",
		},
		[]string{"channel"},
	)

	return m
}

func (m *prometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, fmt.Sprintf("%d", statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordTransaction(transactionType, status string, amount float64, duration time.Duration) {
	m.transactionsTotal.WithLabelValues(transactionType, status).Inc()
	m.transactionDuration.WithLabelValues(transactionType).Observe(duration.Seconds())
	m.transactionVolumeTotal.WithLabelValues(transactionType).Add(amount)
}

func (m *prometheusMetrics) IncrementTransactionErrors(transactionType, errorType string) {
	m.transactionErrorsTotal.WithLabelValues(transactionType, errorType).Inc()
}

func (m *prometheusMetrics) RecordChatMessage(direction string) {
	m.chatMessagesTotal.WithLabelValues(direction).Inc()
}

func (m *prometheusMetrics) IncrementConnections(channel string) {
	m.realtimeConnectionsGauge.WithLabelValues(channel).Inc()
}

func (m *prometheusMetrics) DecrementConnections(channel string) {
	m.realtimeConnectionsGauge.WithLabelValues(channel).Dec()
}

// NoopMetrics discards everything. Used in tests.
type NoopMetrics struct{}

func (NoopMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (NoopMetrics) RecordTransaction(transactionType, status string, amount float64, duration time.Duration) {
}
func (NoopMetrics) IncrementTransactionErrors(transactionType, errorType string) {}
func (NoopMetrics) RecordChatMessage(direction string)                           {}
func (NoopMetrics) IncrementConnections(channel string)                          {}
func (NoopMetrics) DecrementConnections(channel string)                          {}
