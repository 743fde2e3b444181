package contracttransmitter

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/LazerTechnologies/LayerZero-Executor/integration/pkg/endpoint"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var _ executor.ContractTransmitter = &EVMContractTransmitter{}

const (
	defaultReceiptTimeout = 2 * time.Minute
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 10 * time.Second
)

// Backend is what the transmitter needs from a node: contract calls, signing inputs,
// broadcasting and receipts. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type Params struct {
	Lggr            logger.Logger
	Network         string
	Backend         Backend
	EndpointAddress common.Address
	PrivateKey      *ecdsa.PrivateKey
	ChainID         *big.Int
	// MaxRetries bounds re-broadcasts after a failed send. Reverted transactions are never retried.
	MaxRetries     uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	ReceiptTimeout time.Duration
}

// EVMContractTransmitter signs lzReceive calls with a local key and waits for them to be mined.
type EVMContractTransmitter struct {
	lggr           logger.Logger
	backend        Backend
	endpoint       *bind.BoundContract
	auth           *bind.TransactOpts
	policy         retrypolicy.RetryPolicy[*types.Transaction]
	receiptTimeout time.Duration

	// mu serializes nonce selection and broadcast for the signer.
	mu sync.Mutex
}

func NewEVMContractTransmitter(params Params) (*EVMContractTransmitter, error) {
	var errs []error
	appendIfNil := func(field any, fieldName string) {
		if field == nil {
			errs = append(errs, fmt.Errorf("%s is not set", fieldName))
		}
	}
	appendIfNil(params.Lggr, "logger")
	appendIfNil(params.Backend, "backend")
	if params.PrivateKey == nil {
		errs = append(errs, errors.New("privateKey is not set"))
	}
	if params.ChainID == nil || params.ChainID.Sign() <= 0 {
		errs = append(errs, errors.New("chainID must be positive"))
	}
	if params.EndpointAddress == (common.Address{}) {
		errs = append(errs, errors.New("endpointAddress is not set"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(params.PrivateKey, params.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	contract, _, err := endpoint.Bind(params.EndpointAddress, params.Backend, params.Backend, params.Backend)
	if err != nil {
		return nil, fmt.Errorf("failed to bind endpoint at %s: %w", params.EndpointAddress.Hex(), err)
	}

	receiptTimeout := params.ReceiptTimeout
	if receiptTimeout <= 0 {
		receiptTimeout = defaultReceiptTimeout
	}
	initial, maxBackoff := params.InitialBackoff, params.MaxBackoff
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	if maxBackoff < initial {
		maxBackoff = max(defaultMaxBackoff, initial)
	}

	lggr := logger.With(logger.Named(params.Lggr, "EVMContractTransmitter."+params.Network), "from", auth.From.Hex())
	policy := retrypolicy.NewBuilder[*types.Transaction]().
		HandleIf(func(_ *types.Transaction, err error) bool {
			return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}).
		WithMaxRetries(int(params.MaxRetries)). //nolint:gosec // retries come from config and are small
		WithBackoff(initial, maxBackoff).
		OnRetry(func(event failsafe.ExecutionEvent[*types.Transaction]) {
			lggr.Warnw("Retrying lzReceive broadcast", "attempt", event.Attempts(), "error", event.LastError())
		}).
		Build()

	return &EVMContractTransmitter{
		lggr:           lggr,
		backend:        params.Backend,
		endpoint:       contract,
		auth:           auth,
		policy:         policy,
		receiptTimeout: receiptTimeout,
	}, nil
}

// From returns the signer address.
func (ct *EVMContractTransmitter) From() common.Address {
	return ct.auth.From
}

func (ct *EVMContractTransmitter) transactOpts(ctx context.Context, req executor.LzReceiveRequest) (*bind.TransactOpts, error) {
	nonce, err := ct.backend.PendingNonceAt(ctx, ct.auth.From)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending nonce: %w", err)
	}
	gasPrice, err := ct.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	opts := *ct.auth
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(nonce)
	opts.GasPrice = gasPrice
	// A zero limit lets the node estimate.
	opts.GasLimit = req.GasLimit
	opts.Value = value
	return &opts, nil
}

func (ct *EVMContractTransmitter) broadcast(ctx context.Context, req executor.LzReceiveRequest) (*types.Transaction, int, error) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	attempts := 0
	tx, err := failsafe.With(ct.policy).WithContext(ctx).Get(func() (*types.Transaction, error) {
		attempts++
		opts, err := ct.transactOpts(ctx, req)
		if err != nil {
			return nil, err
		}
		return ct.endpoint.Transact(opts, endpoint.LzReceiveMethod,
			endpoint.NewOrigin(req.Origin),
			req.Receiver.EVMAddress(),
			[32]byte(req.GUID),
			req.Message,
			req.ExtraData)
	})
	return tx, attempts, err
}

// SendLzReceive broadcasts endpoint.lzReceive for the request and waits for it to be mined.
// A reverted transaction is reported as an error.
func (ct *EVMContractTransmitter) SendLzReceive(ctx context.Context, req executor.LzReceiveRequest) (executor.TransmitResult, error) {
	tx, attempts, err := ct.broadcast(ctx, req)
	if err != nil {
		return executor.TransmitResult{Attempts: attempts}, fmt.Errorf("failed to broadcast lzReceive after %d attempts: %w", attempts, err)
	}
	result := executor.TransmitResult{TxHash: protocol.Bytes32(tx.Hash()), Attempts: attempts}
	ct.lggr.Infow("submitted tx to chain", "guid", req.GUID, "txHash", tx.Hash().Hex(), "nonce", tx.Nonce(), "gasLimit", tx.Gas())

	waitCtx, cancel := context.WithTimeout(ctx, ct.receiptTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, ct.backend, tx)
	if err != nil {
		return result, fmt.Errorf("failed waiting for lzReceive tx %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return result, fmt.Errorf("lzReceive tx %s reverted in block %d", tx.Hash().Hex(), result.BlockNumber)
	}
	return result, nil
}
