package monitoring

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
)

var (
	PromPacketsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_packets_sent_total",
			Help: "PacketSent events stored, by whether the executor fee was paid",
		},
		[]string{"network", "paid"},
	)
	PromPacketsVerified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_packets_verified_total",
			Help: "PacketVerified events dispatched for processing",
		},
		[]string{"network"},
	)
	PromPacketsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_packets_dropped_total",
			Help: "Verified packets dropped before execution",
		},
		[]string{"network", "reason"},
	)
	PromPacketsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_packets_executed_total",
			Help: "lzReceive transactions mined successfully",
		},
		[]string{"network"},
	)
	PromExecutionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_execution_failures_total",
			Help: "lzReceive submissions that failed or reverted",
		},
		[]string{"network"},
	)
	PromPacketExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "executor_packet_execution_duration_seconds",
			Help: "Time from a PacketVerified event being observed to its lzReceive being mined",
			Buckets: []float64{
				0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800,
			},
		},
		[]string{"network"},
	)
	PromLastProcessedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "executor_last_processed_block",
			Help: "Highest block fully processed by a scanner",
		},
		[]string{"network", "scanner"},
	)
	PromRPCErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_rpc_errors_total",
			Help: "Reader failures by operation",
		},
		[]string{"network", "operation"},
	)
)

var _ executor.MetricLabeler = ExecutorMetricLabeler{}

// ExecutorMetricLabeler records prometheus metrics for one network. Recognised labels are
// "network" and "scanner"; other keys are ignored.
type ExecutorMetricLabeler struct {
	network string
	scanner string
}

func NewExecutorMetricLabeler() ExecutorMetricLabeler {
	return ExecutorMetricLabeler{}
}

func (l ExecutorMetricLabeler) With(keyValues ...string) executor.MetricLabeler {
	for i := 0; i+1 < len(keyValues); i += 2 {
		switch keyValues[i] {
		case "network":
			l.network = keyValues[i+1]
		case "scanner":
			l.scanner = keyValues[i+1]
		}
	}
	return l
}

func (l ExecutorMetricLabeler) IncrementPacketsSent(_ context.Context, paid bool) {
	PromPacketsSent.WithLabelValues(l.network, strconv.FormatBool(paid)).Inc()
}

func (l ExecutorMetricLabeler) IncrementPacketsVerified(_ context.Context) {
	PromPacketsVerified.WithLabelValues(l.network).Inc()
}

func (l ExecutorMetricLabeler) IncrementPacketsDropped(_ context.Context, reason string) {
	PromPacketsDropped.WithLabelValues(l.network, reason).Inc()
}

func (l ExecutorMetricLabeler) IncrementPacketsExecuted(_ context.Context) {
	PromPacketsExecuted.WithLabelValues(l.network).Inc()
}

func (l ExecutorMetricLabeler) IncrementExecutionFailures(_ context.Context) {
	PromExecutionFailures.WithLabelValues(l.network).Inc()
}

func (l ExecutorMetricLabeler) RecordPacketExecutionLatency(_ context.Context, duration time.Duration) {
	PromPacketExecutionDuration.WithLabelValues(l.network).Observe(duration.Seconds())
}

func (l ExecutorMetricLabeler) RecordLastProcessedBlock(_ context.Context, block int64) {
	PromLastProcessedBlock.WithLabelValues(l.network, l.scanner).Set(float64(block))
}

func (l ExecutorMetricLabeler) RecordRPCError(_ context.Context, operation string) {
	PromRPCErrors.WithLabelValues(l.network, operation).Inc()
}
