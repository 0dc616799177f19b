package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "sessionizer"

// Metrics holds all OTEL metric instruments for sessionizer.
// All counters are cumulative (monotonic) and safe for concurrent use.
type Metrics struct {
	// Multiplexer commands, partitioned by subcommand and outcome.
	MuxCommands metric.Int64Counter

	// Registry operations, partitioned by operation and result status
	// (ok, mismatch, error).
	RegistryOperations metric.Int64Counter

	// Directory discovery counters
	DiscoveryCandidates metric.Int64Counter
	DiscoveryWalkErrors metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.MuxCommands, err = meter.Int64Counter("mux.commands",
		metric.WithDescription("Multiplexer commands executed, by subcommand and outcome"),
		metric.WithUnit("{command}"))
	if err != nil {
		return nil, err
	}

	m.RegistryOperations, err = meter.Int64Counter("registry.operations",
		metric.WithDescription("Session registry operations, by operation and status"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, err
	}

	m.DiscoveryCandidates, err = meter.Int64Counter("discovery.candidates",
		metric.WithDescription("Directories produced by directory discovery"),
		metric.WithUnit("{directory}"))
	if err != nil {
		return nil, err
	}

	m.DiscoveryWalkErrors, err = meter.Int64Counter("discovery.walk_errors",
		metric.WithDescription("Filesystem entries skipped because they could not be read"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordMuxCommand records one multiplexer invocation.
func (m *Metrics) RecordMuxCommand(ctx context.Context, command string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.MuxCommands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mux.command", command),
		attribute.String("outcome", outcome),
	))
}

// RecordOperation records a registry operation with its final status.
func (m *Metrics) RecordOperation(ctx context.Context, operation, status string) {
	if m == nil {
		return
	}
	m.RegistryOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

// RecordDiscovery records the outcome of one discovery evaluation.
func (m *Metrics) RecordDiscovery(ctx context.Context, candidates, walkErrors int) {
	if m == nil {
		return
	}
	m.DiscoveryCandidates.Add(ctx, int64(candidates))
	if walkErrors > 0 {
		m.DiscoveryWalkErrors.Add(ctx, int64(walkErrors))
	}
}
