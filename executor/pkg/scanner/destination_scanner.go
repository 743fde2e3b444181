package scanner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/poll"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var _ executor.Scanner = (*DestinationScanner)(nil)

const (
	dropReasonUnpaid    = "unpaid"
	dropReasonExecuted  = "already_executed"
	dropReasonNoOption  = "no_lz_receive_option"
	defaultDedupeWindow = time.Hour
)

type DestinationParams struct {
	Lggr         logger.Logger
	Network      string
	Reader       executor.DestinationReader
	Store        executor.PacketStore
	Evaluator    executor.ExecutionEvaluator
	Executor     executor.PacketExecutor
	Dispatcher   executor.TaskDispatcher
	Metrics      executor.MetricLabeler
	Clock        clock.Clock
	PollInterval time.Duration
	StartBlock   int64
	// MaxBlockRange caps a single log query. Zero queries up to the latest block.
	MaxBlockRange uint64
	// DedupeWindow caps how long an in-flight GUID suppresses duplicate verifications. A GUID is
	// forgotten as soon as its task returns.
	DedupeWindow time.Duration
}

// DestinationScanner polls a network for PacketVerified events and hands each one to its own
// task, which waits for the matching PacketSent, checks the fee, waits until the packet is
// executable and then executes it.
type DestinationScanner struct {
	*position
	lggr          logger.Logger
	network       string
	reader        executor.DestinationReader
	store         executor.PacketStore
	evaluator     executor.ExecutionEvaluator
	executor      executor.PacketExecutor
	dispatcher    executor.TaskDispatcher
	metrics       executor.MetricLabeler
	clock         clock.Clock
	pollInterval  time.Duration
	maxBlockRange uint64
	dispatched    *expirable.LRU[protocol.Bytes32, struct{}]

	eidMu    sync.Mutex
	localEid *uint32
}

func NewDestinationScanner(params DestinationParams) (*DestinationScanner, error) {
	var errs []error
	appendIfNil := func(field any, fieldName string) {
		if field == nil {
			errs = append(errs, fmt.Errorf("%s is not set", fieldName))
		}
	}
	appendIfNil(params.Lggr, "logger")
	appendIfNil(params.Reader, "reader")
	appendIfNil(params.Store, "store")
	appendIfNil(params.Evaluator, "evaluator")
	appendIfNil(params.Executor, "executor")
	appendIfNil(params.Dispatcher, "dispatcher")
	appendIfNil(params.Metrics, "metrics")
	appendIfNil(params.Clock, "clock")
	if params.Network == "" {
		errs = append(errs, errors.New("network is not set"))
	}
	if params.PollInterval <= 0 {
		errs = append(errs, errors.New("pollInterval must be positive"))
	}
	if params.StartBlock < 0 {
		errs = append(errs, fmt.Errorf("startBlock must not be negative, got %d", params.StartBlock))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	window := params.DedupeWindow
	if window <= 0 {
		window = defaultDedupeWindow
	}

	name := params.Network + "/destination"
	return &DestinationScanner{
		position:      newPosition(params.StartBlock),
		lggr:          logger.Named(params.Lggr, "DestinationScanner."+params.Network),
		network:       params.Network,
		reader:        params.Reader,
		store:         params.Store,
		evaluator:     params.Evaluator,
		executor:      params.Executor,
		dispatcher:    params.Dispatcher,
		metrics:       params.Metrics.With("network", params.Network, "scanner", name),
		clock:         params.Clock,
		pollInterval:  params.PollInterval,
		maxBlockRange: params.MaxBlockRange,
		dispatched:    expirable.NewLRU[protocol.Bytes32, struct{}](0, nil, window),
	}, nil
}

func (s *DestinationScanner) Name() string {
	return s.network + "/destination"
}

func (s *DestinationScanner) LastProcessedBlock() int64 {
	return s.last()
}

func (s *DestinationScanner) State() State {
	return s.getState()
}

// Run polls until ctx is done. Dispatched packet tasks outlive Run; they belong to the dispatcher.
func (s *DestinationScanner) Run(ctx context.Context) executor.ScanResult {
	s.setState(StatePolling)
	s.lggr.Infow("Destination scanner started", "fromBlock", s.last()+1, "pollInterval", s.pollInterval)

	poll.Every(ctx, s.clock, s.pollInterval, func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.lggr.Errorw("Recovered from panic while scanning", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		if err := s.PollOnce(ctx); err != nil && ctx.Err() == nil {
			s.lggr.Errorw("Destination scan failed, retrying next interval", "error", err, "lastProcessedBlock", s.last())
		}
	})

	s.setState(StateStopped)
	return executor.ScanResult{Name: s.Name(), LastProcessedBlock: s.last()}
}

func (s *DestinationScanner) eid(ctx context.Context) (uint32, error) {
	s.eidMu.Lock()
	defer s.eidMu.Unlock()
	if s.localEid != nil {
		return *s.localEid, nil
	}
	eid, err := s.reader.Eid(ctx)
	if err != nil {
		s.metrics.RecordRPCError(ctx, "eid")
		return 0, fmt.Errorf("%w: eid: %w", executor.ErrTransientRPC, err)
	}
	s.localEid = &eid
	return eid, nil
}

// PollOnce dispatches a task for every new PacketVerified event after the last processed block.
func (s *DestinationScanner) PollOnce(ctx context.Context) error {
	localEid, err := s.eid(ctx)
	if err != nil {
		return err
	}

	latest, err := s.reader.LatestBlockNumber(ctx)
	if err != nil {
		s.metrics.RecordRPCError(ctx, "latest_block")
		return fmt.Errorf("%w: latest block: %w", executor.ErrTransientRPC, err)
	}

	from, to, bounded, ok := queryRange(s.last(), latest, s.maxBlockRange)
	if !ok {
		return nil
	}

	events, err := s.reader.FetchPacketVerifiedEvents(ctx, from, to)
	if err != nil {
		s.metrics.RecordRPCError(ctx, "packet_verified_logs")
		return fmt.Errorf("%w: PacketVerified logs [%d, %d]: %w", executor.ErrTransientRPC, from, to, err)
	}
	if len(events) > 0 {
		s.lggr.Infow("Found PacketVerified events", "count", len(events), "fromBlock", from, "toBlock", to)
	}

	for _, ev := range events {
		guid := ev.GUID(localEid)
		if s.dispatched.Contains(guid) {
			s.lggr.Debugw("Packet still in flight, skipping duplicate verification", "guid", guid, "txHash", ev.TxHash)
			s.advance(int64(ev.BlockNumber)) //nolint:gosec // block numbers fit in int64
			continue
		}

		s.dispatched.Add(guid, struct{}{})
		err := s.dispatcher.Go(func(taskCtx context.Context) {
			defer s.dispatched.Remove(guid)
			s.handleVerified(taskCtx, guid, ev)
		})
		if err != nil {
			s.dispatched.Remove(guid)
			s.advance(int64(ev.BlockNumber) - 1) //nolint:gosec // block numbers fit in int64
			s.metrics.RecordLastProcessedBlock(ctx, s.last())
			return fmt.Errorf("dispatching %s: %w", guid, err)
		}
		s.metrics.IncrementPacketsVerified(ctx)
		s.advance(int64(ev.BlockNumber)) //nolint:gosec // block numbers fit in int64
	}
	if bounded {
		s.advance(int64(to)) //nolint:gosec // block numbers fit in int64
	}
	s.metrics.RecordLastProcessedBlock(ctx, s.last())
	return nil
}

func (s *DestinationScanner) handleVerified(ctx context.Context, guid protocol.Bytes32, ev protocol.PacketVerifiedEvent) {
	lggr := logger.With(s.lggr,
		"guid", guid,
		"srcEid", ev.Origin.SrcEid,
		"nonce", ev.Origin.Nonce,
		"receiver", ev.Receiver)
	observed := s.clock.Now()

	stored, found := s.store.Get(guid)
	if !found {
		lggr.Infow("Waiting for matching PacketSent")
		var err error
		stored, err = poll.Until(ctx, s.clock, s.pollInterval, func(context.Context) (executor.StoredPacket, bool) {
			return s.store.Get(guid)
		})
		if err != nil {
			lggr.Infow("Stopped waiting for PacketSent", "error", err)
			return
		}
	}

	if !stored.Paid {
		lggr.Infow("Executor fee not paid, dropping packet")
		s.metrics.IncrementPacketsDropped(ctx, dropReasonUnpaid)
		return
	}

	executable, err := s.evaluator.Evaluate(ctx, stored.Packet, ev)
	if err != nil {
		lggr.Infow("Stopped evaluating packet", "error", err)
		return
	}
	if !executable {
		lggr.Infow("Packet already executed")
		s.metrics.IncrementPacketsDropped(ctx, dropReasonExecuted)
		return
	}

	result, err := s.executor.Execute(ctx, stored.Packet, stored.SentEvent.Options)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.IncrementExecutionFailures(ctx)
		}
		lggr.Infow("Packet not executed, a later verification may retry it", "error", err)
		return
	}
	if !result.Submitted {
		s.metrics.IncrementPacketsDropped(ctx, dropReasonNoOption)
		return
	}

	s.metrics.IncrementPacketsExecuted(ctx)
	s.metrics.RecordPacketExecutionLatency(ctx, s.clock.Since(observed))
}
