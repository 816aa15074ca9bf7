package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	attrOperation = attribute.Key("netconf.operation")
	attrStore     = attribute.Key("netconf.store")
	attrSessionID = attribute.Key("netconf.session_id")
	attrErrorTag  = attribute.Key("netconf.error_tag")
	attrOpErr     = attribute.Key("netconf.operation.error")
)

// OperationData captures the metadata recorded for each RPC operation.
type OperationData struct {
	Operation string
	Store     string
	SessionID string
	ErrorTag  string
	Duration  time.Duration
	Failed    bool
}

type operationMetrics struct {
	operations metric.Int64Counter
	latency    metric.Float64Histogram
	failures   metric.Int64Counter
}

func newOperationMetrics(m metric.Meter) (*operationMetrics, error) {
	if m == nil {
		return &operationMetrics{}, nil
	}
	operations, err := m.Int64Counter("netconf.operations.total", metric.WithDescription("Total number of NETCONF operation invocations."))
	if err != nil {
		return nil, err
	}
	latency, err := m.Float64Histogram("netconf.operation.latency.ms", metric.WithDescription("Operation end-to-end latency in milliseconds."), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	failures, err := m.Int64Counter("netconf.operation.failures.total", metric.WithDescription("Total number of operations that returned an error reply."))
	if err != nil {
		return nil, err
	}
	return &operationMetrics{operations: operations, latency: latency, failures: failures}, nil
}

func (m *operationMetrics) Record(ctx context.Context, data OperationData) {
	if m == nil || m.operations == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, 5)
	if data.Operation != "" {
		attrs = append(attrs, attrOperation.String(data.Operation))
	}
	if data.Store != "" {
		attrs = append(attrs, attrStore.String(data.Store))
	}
	if data.SessionID != "" {
		attrs = append(attrs, attrSessionID.String(data.SessionID))
	}
	attrs = append(attrs, attrOpErr.Bool(data.Failed))

	m.operations.Add(ctx, 1, metric.WithAttributes(attrs...))
	if data.Duration > 0 && m.latency != nil {
		m.latency.Record(ctx, float64(data.Duration.Milliseconds()), metric.WithAttributes(attrs...))
	}
	if data.Failed && m.failures != nil {
		failAttrs := attrs
		if data.ErrorTag != "" {
			failAttrs = append(failAttrs, attrErrorTag.String(data.ErrorTag))
		}
		m.failures.Add(ctx, 1, metric.WithAttributes(failAttrs...))
	}
}
