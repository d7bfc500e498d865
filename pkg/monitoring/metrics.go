package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	gatherer prometheus.Gatherer

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	fulfillmentsTotal prometheus.Counter
	paymentsAmount    prometheus.Counter
}

// NewMetricsCollector creates the ledger metrics and registers them on reg.
// A nil reg uses a fresh registry.
func NewMetricsCollector(reg *prometheus.Registry) (*MetricsCollector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &MetricsCollector{
		gatherer: reg,
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "careledger_operations_total",
				Help: "Total number of ledger operations",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "careledger_operation_duration_seconds",
				Help:    "Duration of ledger operations in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "careledger_errors_total",
				Help: "Total number of failed ledger operations by error code",
			},
			[]string{"operation", "code"},
		),
		fulfillmentsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "careledger_fulfillments_total",
				Help: "Total number of fulfilled medication orders",
			},
		),
		paymentsAmount: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "careledger_payments_amount_total",
				Help: "Sum of recorded payment amounts",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.errorsTotal,
		m.fulfillmentsTotal,
		m.paymentsAmount,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordOperation records one ledger operation. code is empty on success.
func (m *MetricsCollector) RecordOperation(operation, code string, duration time.Duration) {
	outcome := OutcomeSuccess
	if code != "" {
		outcome = OutcomeFailure
		m.errorsTotal.WithLabelValues(operation, code).Inc()
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFulfillment counts a fulfilled medication order
func (m *MetricsCollector) RecordFulfillment() {
	m.fulfillmentsTotal.Inc()
}

// RecordPayment adds a recorded payment amount
func (m *MetricsCollector) RecordPayment(amount uint64) {
	m.paymentsAmount.Add(float64(amount))
}

// Handler returns the Prometheus metrics HTTP handler for this collector
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
