package contracttransmitter

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/LazerTechnologies/LayerZero-Executor/integration/pkg/endpoint"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var endpointAddr = common.HexToAddress("0x6EDCE65403992e310A62460808c4b910D972f10f")

// fakeBackend implements only the calls a transmitter makes when gas price, limit and nonce
// are set explicitly. Anything else panics on the nil embedded Backend.
type fakeBackend struct {
	Backend

	mu        sync.Mutex
	nonce     uint64
	sendErrs  []error
	sent      []*types.Transaction
	status    uint64
	receiptOK bool
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	if !f.receiptOK {
		return nil, errors.New("not found")
	}
	return &types.Receipt{TxHash: txHash, Status: f.status, BlockNumber: big.NewInt(77)}, nil
}

func newTransmitter(t *testing.T, backend *fakeBackend, maxRetries uint) *EVMContractTransmitter {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	ct, err := NewEVMContractTransmitter(Params{
		Lggr:            logger.Test(t),
		Network:         "arbitrum-sepolia",
		Backend:         backend,
		EndpointAddress: endpointAddr,
		PrivateKey:      key,
		ChainID:         big.NewInt(1337),
		MaxRetries:      maxRetries,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      time.Millisecond,
		ReceiptTimeout:  time.Second,
	})
	require.NoError(t, err)
	return ct
}

func testRequest() executor.LzReceiveRequest {
	return executor.LzReceiveRequest{
		Origin:    protocol.Origin{SrcEid: 101, Sender: protocol.Bytes32{31: 0xaa}, Nonce: 1},
		Receiver:  protocol.Bytes32FromEVMAddress(common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")),
		GUID:      protocol.Bytes32{0: 0x01, 31: 0x02},
		Message:   []byte("hello"),
		ExtraData: []byte{},
		GasLimit:  200_000,
		Value:     big.NewInt(10),
	}
}

func TestNewEVMContractTransmitter_Validation(t *testing.T) {
	_, err := NewEVMContractTransmitter(Params{})
	require.ErrorContains(t, err, "logger is not set")
	require.ErrorContains(t, err, "backend is not set")
	require.ErrorContains(t, err, "privateKey is not set")
	require.ErrorContains(t, err, "chainID must be positive")
	require.ErrorContains(t, err, "endpointAddress is not set")
}

func TestSendLzReceive(t *testing.T) {
	backend := &fakeBackend{nonce: 5, status: types.ReceiptStatusSuccessful, receiptOK: true}
	ct := newTransmitter(t, backend, 0)
	req := testRequest()

	res, err := ct.SendLzReceive(t.Context(), req)
	require.NoError(t, err)
	require.Equal(t, 1, res.Attempts)
	require.Equal(t, uint64(77), res.BlockNumber)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	require.Equal(t, protocol.Bytes32(tx.Hash()), res.TxHash)
	require.Equal(t, endpointAddr, *tx.To())
	require.Equal(t, uint64(5), tx.Nonce())
	require.Equal(t, uint64(200_000), tx.Gas())
	require.Zero(t, big.NewInt(10).Cmp(tx.Value()))

	parsed, err := endpoint.EndpointMetaData.GetAbi()
	require.NoError(t, err)
	method := parsed.Methods[endpoint.LzReceiveMethod]
	require.Equal(t, method.ID, tx.Data()[:4])

	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	origin := *abi.ConvertType(args[0], new(endpoint.Origin)).(*endpoint.Origin)
	require.Equal(t, endpoint.NewOrigin(req.Origin), origin)
	require.Equal(t, req.Receiver.EVMAddress(), args[1].(common.Address))
	require.Equal(t, [32]byte(req.GUID), args[2].([32]byte))
	require.Equal(t, req.Message, args[3].([]byte))
	require.Empty(t, args[4].([]byte))
}

func TestSendLzReceive_RetriesBroadcast(t *testing.T) {
	backend := &fakeBackend{
		sendErrs:  []error{errors.New("replacement transaction underpriced")},
		status:    types.ReceiptStatusSuccessful,
		receiptOK: true,
	}
	ct := newTransmitter(t, backend, 2)

	res, err := ct.SendLzReceive(t.Context(), testRequest())
	require.NoError(t, err)
	require.Equal(t, 2, res.Attempts)
	require.Len(t, backend.sent, 1)
}

func TestSendLzReceive_SingleAttemptByDefault(t *testing.T) {
	backend := &fakeBackend{sendErrs: []error{errors.New("nonce too low")}}
	ct := newTransmitter(t, backend, 0)

	res, err := ct.SendLzReceive(t.Context(), testRequest())
	require.ErrorContains(t, err, "nonce too low")
	require.Equal(t, 1, res.Attempts)
	require.Empty(t, backend.sent)
}

func TestSendLzReceive_RevertIsNotRetried(t *testing.T) {
	backend := &fakeBackend{status: types.ReceiptStatusFailed, receiptOK: true}
	ct := newTransmitter(t, backend, 3)

	res, err := ct.SendLzReceive(t.Context(), testRequest())
	require.ErrorContains(t, err, "reverted")
	require.Equal(t, 1, res.Attempts)
	require.Len(t, backend.sent, 1)
	require.Equal(t, protocol.Bytes32(backend.sent[0].Hash()), res.TxHash)
}

func TestSendLzReceive_ReceiptTimeout(t *testing.T) {
	backend := &fakeBackend{}
	ct := newTransmitter(t, backend, 0)

	_, err := ct.SendLzReceive(t.Context(), testRequest())
	require.ErrorContains(t, err, "failed waiting for lzReceive tx")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
