package scanner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/poll"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var _ executor.Scanner = (*SourceScanner)(nil)

type SourceParams struct {
	Lggr         logger.Logger
	Network      string
	Reader       executor.SourceReader
	FeeChecker   executor.FeeChecker
	Store        executor.PacketStore
	Metrics      executor.MetricLabeler
	Clock        clock.Clock
	PollInterval time.Duration
	StartBlock   int64
	// MaxBlockRange caps a single log query. Zero queries up to the latest block.
	MaxBlockRange uint64
}

// SourceScanner polls a network for PacketSent events, checks whether the executor fee was
// paid and records each packet in the PacketStore.
type SourceScanner struct {
	*position
	lggr          logger.Logger
	network       string
	reader        executor.SourceReader
	feeChecker    executor.FeeChecker
	store         executor.PacketStore
	metrics       executor.MetricLabeler
	clock         clock.Clock
	pollInterval  time.Duration
	maxBlockRange uint64
}

func NewSourceScanner(params SourceParams) (*SourceScanner, error) {
	var errs []error
	appendIfNil := func(field any, fieldName string) {
		if field == nil {
			errs = append(errs, fmt.Errorf("%s is not set", fieldName))
		}
	}
	appendIfNil(params.Lggr, "logger")
	appendIfNil(params.Reader, "reader")
	appendIfNil(params.FeeChecker, "feeChecker")
	appendIfNil(params.Store, "store")
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

	name := params.Network + "/source"
	return &SourceScanner{
		position:      newPosition(params.StartBlock),
		lggr:          logger.Named(params.Lggr, "SourceScanner."+params.Network),
		network:       params.Network,
		reader:        params.Reader,
		feeChecker:    params.FeeChecker,
		store:         params.Store,
		metrics:       params.Metrics.With("network", params.Network, "scanner", name),
		clock:         params.Clock,
		pollInterval:  params.PollInterval,
		maxBlockRange: params.MaxBlockRange,
	}, nil
}

func (s *SourceScanner) Name() string {
	return s.network + "/source"
}

func (s *SourceScanner) LastProcessedBlock() int64 {
	return s.last()
}

func (s *SourceScanner) State() State {
	return s.getState()
}

// Run polls until ctx is done.
func (s *SourceScanner) Run(ctx context.Context) executor.ScanResult {
	s.setState(StatePolling)
	s.lggr.Infow("Source scanner started", "fromBlock", s.last()+1, "pollInterval", s.pollInterval)

	poll.Every(ctx, s.clock, s.pollInterval, func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.lggr.Errorw("Recovered from panic while scanning", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		if err := s.PollOnce(ctx); err != nil && ctx.Err() == nil {
			s.lggr.Errorw("Source scan failed, retrying next interval", "error", err, "lastProcessedBlock", s.last())
		}
	})

	s.setState(StateStopped)
	return executor.ScanResult{Name: s.Name(), LastProcessedBlock: s.last()}
}

// PollOnce processes every PacketSent event after the last processed block, in emission order.
// Processing stops at the first event whose fee check fails, and the position is held below
// that event's block so the next poll retries it.
func (s *SourceScanner) PollOnce(ctx context.Context) error {
	latest, err := s.reader.LatestBlockNumber(ctx)
	if err != nil {
		s.metrics.RecordRPCError(ctx, "latest_block")
		return fmt.Errorf("%w: latest block: %w", executor.ErrTransientRPC, err)
	}

	from, to, bounded, ok := queryRange(s.last(), latest, s.maxBlockRange)
	if !ok {
		return nil
	}

	events, err := s.reader.FetchPacketSentEvents(ctx, from, to)
	if err != nil {
		s.metrics.RecordRPCError(ctx, "packet_sent_logs")
		return fmt.Errorf("%w: PacketSent logs [%d, %d]: %w", executor.ErrTransientRPC, from, to, err)
	}
	if len(events) > 0 {
		s.lggr.Infow("Found PacketSent events", "count", len(events), "fromBlock", from, "toBlock", to)
	}

	for _, ev := range events {
		if err := s.processEvent(ctx, ev); err != nil {
			s.advance(int64(ev.BlockNumber) - 1) //nolint:gosec // block numbers fit in int64
			s.metrics.RecordLastProcessedBlock(ctx, s.last())
			return err
		}
		s.advance(int64(ev.BlockNumber)) //nolint:gosec // block numbers fit in int64
	}
	if bounded {
		s.advance(int64(to)) //nolint:gosec // block numbers fit in int64
	}
	s.metrics.RecordLastProcessedBlock(ctx, s.last())
	return nil
}

func (s *SourceScanner) processEvent(ctx context.Context, ev protocol.PacketSentEvent) error {
	packet, err := protocol.DecodePacket(ev.EncodedPayload)
	if err != nil {
		s.lggr.Errorw("Failed to decode packet, skipping",
			"error", err, "txHash", ev.TxHash, "blockNumber", ev.BlockNumber)
		return nil
	}

	guid := protocol.DeriveGUID(packet.Header())
	if guid != packet.GUID {
		s.lggr.Warnw("Packet guid does not match its header",
			"derivedGUID", guid, "payloadGUID", packet.GUID, "txHash", ev.TxHash)
	}

	status, err := s.feeChecker.CheckFeePaid(ctx, ev.TxHash)
	if err != nil {
		return fmt.Errorf("fee check for %s: %w", ev.TxHash, err)
	}
	if !status.Known {
		s.lggr.Warnw("Fee status unknown, storing packet as unpaid", "guid", guid, "txHash", ev.TxHash)
	}

	paid := status.Paid()
	s.store.Put(guid, executor.StoredPacket{
		SentEvent: ev,
		Packet:    *packet,
		Paid:      paid,
		FeeAmount: status.Amount,
	})
	s.metrics.IncrementPacketsSent(ctx, paid)

	s.lggr.Infow("Stored packet",
		"guid", guid,
		"nonce", packet.Nonce,
		"srcEid", packet.SrcEid,
		"dstEid", packet.DstEid,
		"paid", paid,
		"fee", status.Amount,
		"blockNumber", ev.BlockNumber)
	return nil
}
