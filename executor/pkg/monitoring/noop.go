package monitoring

import (
	"context"
	"time"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
)

var (
	_ executor.Monitoring    = (*NoopExecutorMonitoring)(nil)
	_ executor.MetricLabeler = (*NoopExecutorMetricLabeler)(nil)
)

// NoopExecutorMonitoring provides a no-op implementation of Monitoring.
type NoopExecutorMonitoring struct {
	noop executor.MetricLabeler
}

// NewNoopExecutorMonitoring creates a new noop monitoring instance.
func NewNoopExecutorMonitoring() executor.Monitoring {
	return &NoopExecutorMonitoring{
		noop: NewNoopExecutorMetricLabeler(),
	}
}

func (n *NoopExecutorMonitoring) Metrics() executor.MetricLabeler {
	return n.noop
}

type NoopExecutorMetricLabeler struct{}

func NewNoopExecutorMetricLabeler() executor.MetricLabeler {
	return &NoopExecutorMetricLabeler{}
}

func (n *NoopExecutorMetricLabeler) With(keyValues ...string) executor.MetricLabeler {
	return n
}

func (n *NoopExecutorMetricLabeler) IncrementPacketsSent(ctx context.Context, paid bool) {}

func (n *NoopExecutorMetricLabeler) IncrementPacketsVerified(ctx context.Context) {}

func (n *NoopExecutorMetricLabeler) IncrementPacketsDropped(ctx context.Context, reason string) {}

func (n *NoopExecutorMetricLabeler) IncrementPacketsExecuted(ctx context.Context) {}

func (n *NoopExecutorMetricLabeler) IncrementExecutionFailures(ctx context.Context) {}

func (n *NoopExecutorMetricLabeler) RecordPacketExecutionLatency(ctx context.Context, duration time.Duration) {
}

func (n *NoopExecutorMetricLabeler) RecordLastProcessedBlock(ctx context.Context, block int64) {}

func (n *NoopExecutorMetricLabeler) RecordRPCError(ctx context.Context, operation string) {}
