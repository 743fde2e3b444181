package feechecker

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var _ executor.FeeChecker = (*FeeChecker)(nil)

const (
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
)

type Params struct {
	Lggr   logger.Logger
	Reader executor.ReceiptReader
	// Executor, when set, only counts fees paid to this address.
	Executor *protocol.Bytes32
	// MaxRetries bounds receipt lookups for a single transaction, not counting the first try.
	MaxRetries     uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// FeeChecker reads ExecutorFeePaid records from send transaction receipts.
type FeeChecker struct {
	lggr     logger.Logger
	reader   executor.ReceiptReader
	executor *protocol.Bytes32
	policy   retrypolicy.RetryPolicy[[]protocol.ExecutorFeePaid]
}

func NewFeeChecker(params Params) (*FeeChecker, error) {
	var errs []error
	appendIfNil := func(field any, fieldName string) {
		if field == nil {
			errs = append(errs, fmt.Errorf("%s is not set", fieldName))
		}
	}
	appendIfNil(params.Lggr, "logger")
	appendIfNil(params.Reader, "reader")
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	initial, maxBackoff := params.InitialBackoff, params.MaxBackoff
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	if maxBackoff < initial {
		maxBackoff = max(defaultMaxBackoff, initial)
	}

	lggr := params.Lggr
	policy := retrypolicy.NewBuilder[[]protocol.ExecutorFeePaid]().
		HandleIf(func(_ []protocol.ExecutorFeePaid, err error) bool {
			return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}).
		WithMaxRetries(int(params.MaxRetries)). //nolint:gosec // retries come from config and are small
		WithBackoff(initial, maxBackoff).
		OnRetry(func(event failsafe.ExecutionEvent[[]protocol.ExecutorFeePaid]) {
			lggr.Debugw("Retrying receipt lookup", "attempt", event.Attempts(), "error", event.LastError())
		}).
		OnRetriesExceeded(func(event failsafe.ExecutionEvent[[]protocol.ExecutorFeePaid]) {
			lggr.Warnw("Receipt lookup retries exceeded", "maxRetries", params.MaxRetries, "error", event.LastError())
		}).
		Build()

	return &FeeChecker{
		lggr:     lggr,
		reader:   params.Reader,
		executor: params.Executor,
		policy:   policy,
	}, nil
}

// CheckFeePaid sums the ExecutorFeePaid records in the transaction receipt. A receipt the node
// never returns yields an unknown status, which callers treat as unpaid.
func (c *FeeChecker) CheckFeePaid(ctx context.Context, txHash protocol.Bytes32) (executor.FeeStatus, error) {
	fees, err := failsafe.With(c.policy).WithContext(ctx).Get(func() ([]protocol.ExecutorFeePaid, error) {
		return c.reader.FetchExecutorFees(ctx, txHash)
	})
	if err != nil {
		if errors.Is(err, executor.ErrReceiptNotFound) {
			c.lggr.Warnw("Receipt not found, treating fee as unpaid", "txHash", txHash)
			return executor.FeeStatus{Known: false}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return executor.FeeStatus{}, ctxErr
		}
		return executor.FeeStatus{}, fmt.Errorf("%w: fetching receipt %s: %w", executor.ErrTransientRPC, txHash, err)
	}

	status := executor.FeeStatus{Known: true, Amount: new(big.Int)}
	for _, fee := range fees {
		if fee.Fee == nil {
			continue
		}
		if c.executor != nil && fee.Executor != *c.executor {
			c.lggr.Debugw("Ignoring fee paid to another executor", "txHash", txHash, "payee", fee.Executor)
			continue
		}
		status.Payee = fee.Executor
		status.Amount.Add(status.Amount, fee.Fee)
	}
	return status, nil
}
