package executor

import (
	"context"
	"time"

	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
)

// SourceReader reads outbound packets from a single network's endpoint.
// When integrating with non-evms, the implementer only needs to add support for a single chain.
type SourceReader interface {
	// LatestBlockNumber returns the current head of the network.
	LatestBlockNumber(ctx context.Context) (uint64, error)
	// FetchPacketSentEvents returns PacketSent events in [fromBlock, toBlock], in emission order.
	FetchPacketSentEvents(ctx context.Context, fromBlock, toBlock uint64) ([]protocol.PacketSentEvent, error)
}

// ReceiptReader reads the fee records emitted in a send transaction.
type ReceiptReader interface {
	// FetchExecutorFees returns every ExecutorFeePaid record in the transaction's receipt.
	// It returns ErrReceiptNotFound when the node does not know the transaction.
	FetchExecutorFees(ctx context.Context, txHash protocol.Bytes32) ([]protocol.ExecutorFeePaid, error)
}

// DestinationReader reads verifications and execution state from a single network's endpoint.
type DestinationReader interface {
	// Eid returns the endpoint id of the network this reader is bound to.
	Eid(ctx context.Context) (uint32, error)
	// LatestBlockNumber returns the current head of the network.
	LatestBlockNumber(ctx context.Context) (uint64, error)
	// FetchPacketVerifiedEvents returns PacketVerified events in [fromBlock, toBlock], in emission order.
	FetchPacketVerifiedEvents(ctx context.Context, fromBlock, toBlock uint64) ([]protocol.PacketVerifiedEvent, error)
	// ExecutionState returns the endpoint's executable() view for the packet.
	ExecutionState(ctx context.Context, origin protocol.Origin, receiver protocol.Bytes32) (protocol.ExecutionState, error)
}

// ContractTransmitter submits lzReceive calls to a destination endpoint.
// it should be implemented by chain-specific transmitters.
type ContractTransmitter interface {
	SendLzReceive(ctx context.Context, req LzReceiveRequest) (TransmitResult, error)
}

// FeeChecker decides whether the executor fee for a send transaction was paid.
type FeeChecker interface {
	CheckFeePaid(ctx context.Context, txHash protocol.Bytes32) (FeeStatus, error)
}

// PacketStore bridges the source and destination sides. It is safe for concurrent use.
type PacketStore interface {
	Put(guid protocol.Bytes32, packet StoredPacket)
	Get(guid protocol.Bytes32) (StoredPacket, bool)
}

// ExecutionEvaluator waits until a verified packet can be executed.
type ExecutionEvaluator interface {
	// Evaluate returns true once the destination reports the packet Executable and false
	// when it has already been executed. It only returns an error when ctx is done.
	Evaluate(ctx context.Context, packet protocol.Packet, verified protocol.PacketVerifiedEvent) (bool, error)
}

// PacketExecutor delivers an executable packet to its receiver.
type PacketExecutor interface {
	Execute(ctx context.Context, packet protocol.Packet, options []byte) (ExecutionResult, error)
}

// Scanner is a long running polling loop over one side of one network.
type Scanner interface {
	// Name identifies the scanner in logs and in LastProcessedBlocks.
	Name() string
	// Run polls until ctx is done and returns the final scan position.
	Run(ctx context.Context) ScanResult
	// LastProcessedBlock returns the highest block fully processed so far, or -1.
	LastProcessedBlock() int64
}

// TaskDispatcher runs tracked units of work, one per verified packet.
type TaskDispatcher interface {
	// Go schedules fn. fn receives a context that is cancelled when the dispatcher shuts down.
	Go(fn func(ctx context.Context)) error
	// Shutdown waits up to grace for in-flight tasks, then cancels them and waits for them to return.
	Shutdown(grace time.Duration) error
	// InFlight returns the number of running or queued tasks.
	InFlight() int
}

// Monitoring provides all core monitoring functionality for the executor. Also can be implemented as a no-op.
type Monitoring interface {
	// Metrics returns the metrics labeler for the executor.
	Metrics() MetricLabeler
}

// MetricLabeler provides all metric recording functionality for the executor.
type MetricLabeler interface {
	// With returns a new metrics labeler with the given key-value pairs.
	With(keyValues ...string) MetricLabeler
	// IncrementPacketsSent counts PacketSent events stored, by fee status.
	IncrementPacketsSent(ctx context.Context, paid bool)
	// IncrementPacketsVerified counts PacketVerified events dispatched for processing.
	IncrementPacketsVerified(ctx context.Context)
	// IncrementPacketsDropped counts verified packets dropped before execution.
	IncrementPacketsDropped(ctx context.Context, reason string)
	// IncrementPacketsExecuted counts submitted lzReceive transactions.
	IncrementPacketsExecuted(ctx context.Context)
	// IncrementExecutionFailures counts failed lzReceive submissions.
	IncrementExecutionFailures(ctx context.Context)
	// RecordPacketExecutionLatency records time from verification observed to lzReceive mined.
	RecordPacketExecutionLatency(ctx context.Context, duration time.Duration)
	// RecordLastProcessedBlock records a scanner's position.
	RecordLastProcessedBlock(ctx context.Context, block int64)
	// RecordRPCError counts reader failures by operation.
	RecordRPCError(ctx context.Context, operation string)
}
