package monitoring

import (
	"context"
	"time"

	"github.com/medrex/care-ledger/pkg/types"
)

// MonitoringMiddleware combines metrics and tracing around ledger operations.
// Either part may be nil.
type MonitoringMiddleware struct {
	metrics *MetricsCollector
	tracing *TracingManager
}

// NewMonitoringMiddleware creates a new monitoring middleware
func NewMonitoringMiddleware(metrics *MetricsCollector, tracing *TracingManager) *MonitoringMiddleware {
	return &MonitoringMiddleware{
		metrics: metrics,
		tracing: tracing,
	}
}

// Metrics returns the metrics collector, which may be nil
func (mm *MonitoringMiddleware) Metrics() *MetricsCollector {
	if mm == nil {
		return nil
	}
	return mm.metrics
}

// OperationMiddleware wraps a single ledger operation in a span and records
// its outcome. A nil middleware runs op unobserved.
func (mm *MonitoringMiddleware) OperationMiddleware(ctx context.Context, operation, caller string, op func(context.Context) error) error {
	if mm == nil {
		return op(ctx)
	}

	start := time.Now()

	if mm.tracing == nil {
		err := op(ctx)
		mm.record(operation, err, time.Since(start))
		return err
	}

	ctx, span := mm.tracing.StartOperationSpan(ctx, operation, caller)
	err := op(ctx)
	mm.tracing.EndOperationSpan(span, err)
	mm.record(operation, err, time.Since(start))
	return err
}

func (mm *MonitoringMiddleware) record(operation string, err error, duration time.Duration) {
	if mm.metrics != nil {
		mm.metrics.RecordOperation(operation, types.CodeOf(err), duration)
	}
}
