package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/poll"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var _ executor.ExecutionEvaluator = (*Evaluator)(nil)

// Evaluator polls executable() on the destination endpoint until the packet can be executed
// or turns out to be executed already.
type Evaluator struct {
	lggr         logger.Logger
	reader       executor.DestinationReader
	metrics      executor.MetricLabeler
	clock        clock.Clock
	pollInterval time.Duration
}

func NewEvaluator(lggr logger.Logger, reader executor.DestinationReader, metrics executor.MetricLabeler, clk clock.Clock, pollInterval time.Duration) (*Evaluator, error) {
	var errs []error
	appendIfNil := func(field any, fieldName string) {
		if field == nil {
			errs = append(errs, fmt.Errorf("%s is not set", fieldName))
		}
	}
	appendIfNil(lggr, "logger")
	appendIfNil(reader, "reader")
	appendIfNil(metrics, "metrics")
	appendIfNil(clk, "clock")
	if pollInterval <= 0 {
		errs = append(errs, errors.New("pollInterval must be positive"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Evaluator{
		lggr:         lggr,
		reader:       reader,
		metrics:      metrics,
		clock:        clk,
		pollInterval: pollInterval,
	}, nil
}

// Evaluate has no timeout of its own. A packet that never becomes executable is polled until
// ctx is cancelled.
func (e *Evaluator) Evaluate(ctx context.Context, packet protocol.Packet, verified protocol.PacketVerifiedEvent) (bool, error) {
	lggr := logger.With(e.lggr, "guid", packet.GUID, "srcEid", verified.Origin.SrcEid, "nonce", verified.Origin.Nonce)

	state, err := poll.Until(ctx, e.clock, e.pollInterval, func(ctx context.Context) (protocol.ExecutionState, bool) {
		state, err := e.reader.ExecutionState(ctx, verified.Origin, verified.Receiver)
		if err != nil {
			if ctx.Err() == nil {
				e.metrics.RecordRPCError(ctx, "executable")
				lggr.Warnw("Failed to query execution state, retrying", "error", err)
			}
			return state, false
		}

		switch state {
		case protocol.Executable, protocol.Executed:
			return state, true
		case protocol.NotExecutable:
			lggr.Debugw("Packet not executable yet")
		default:
			lggr.Warnw("Unexpected execution state", "state", state)
		}
		return state, false
	})
	if err != nil {
		return false, err
	}

	lggr.Infow("Execution state resolved", "state", state)
	return state == protocol.Executable, nil
}
