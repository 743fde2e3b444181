package executor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var _ executor.PacketExecutor = (*LzReceiveExecutor)(nil)

// LzReceiveExecutor turns an executable packet into an lzReceive call on its destination.
type LzReceiveExecutor struct {
	lggr        logger.Logger
	transmitter executor.ContractTransmitter
	submissions *semaphore.Weighted
}

type Option func(*LzReceiveExecutor)

// WithSubmissionLimit shares a submission budget between executors. A packet holds one slot
// from the moment it is handed to the transmitter until its receipt is in.
func WithSubmissionLimit(submissions *semaphore.Weighted) Option {
	return func(x *LzReceiveExecutor) {
		x.submissions = submissions
	}
}

func NewLzReceiveExecutor(lggr logger.Logger, transmitter executor.ContractTransmitter, opts ...Option) (*LzReceiveExecutor, error) {
	var errs []error
	if lggr == nil {
		errs = append(errs, errors.New("logger is not set"))
	}
	if transmitter == nil {
		errs = append(errs, errors.New("transmitter is not set"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	x := &LzReceiveExecutor{lggr: lggr, transmitter: transmitter}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// Execute reads gas and value from the packet's executor lzReceive option and submits lzReceive.
// Packets without that option are left alone and reported as not submitted.
func (x *LzReceiveExecutor) Execute(ctx context.Context, packet protocol.Packet, options []byte) (executor.ExecutionResult, error) {
	lggr := logger.With(x.lggr, "guid", packet.GUID, "srcEid", packet.SrcEid, "dstEid", packet.DstEid, "nonce", packet.Nonce)

	opt, err := protocol.DecodeExecutorLzReceiveOption(options)
	if err != nil {
		lggr.Errorw("Failed to decode executor options", "error", err, "options", protocol.ByteSlice(options))
		return executor.ExecutionResult{}, fmt.Errorf("decoding options: %w", err)
	}
	if opt == nil {
		lggr.Infow("Packet has no lzReceive option, not executing")
		return executor.ExecutionResult{}, nil
	}
	if !opt.Gas.IsUint64() {
		lggr.Errorw("lzReceive gas does not fit a gas limit", "gas", opt.Gas)
		return executor.ExecutionResult{}, fmt.Errorf("%w: gas %s overflows uint64", executor.ErrSubmission, opt.Gas)
	}

	req := executor.LzReceiveRequest{
		Origin:    packet.Origin(),
		Receiver:  packet.Receiver,
		GUID:      packet.GUID,
		Message:   packet.Message,
		ExtraData: []byte{},
		GasLimit:  opt.Gas.Uint64(),
		Value:     opt.Value,
	}

	if x.submissions != nil {
		if err := x.submissions.Acquire(ctx, 1); err != nil {
			lggr.Infow("Stopped waiting for a submission slot", "error", err)
			return executor.ExecutionResult{}, err
		}
		defer x.submissions.Release(1)
	}

	lggr.Infow("Executing packet", "gasLimit", req.GasLimit, "value", req.Value)
	res, err := x.transmitter.SendLzReceive(ctx, req)
	if err != nil {
		lggr.Errorw("lzReceive submission failed", "error", err)
		if errors.Is(err, executor.ErrSubmission) {
			return executor.ExecutionResult{}, err
		}
		return executor.ExecutionResult{}, fmt.Errorf("%w: %w", executor.ErrSubmission, err)
	}

	lggr.Infow("Packet executed", "txHash", res.TxHash, "blockNumber", res.BlockNumber, "attempts", res.Attempts)
	return executor.ExecutionResult{Submitted: true, TxHash: res.TxHash}, nil
}
