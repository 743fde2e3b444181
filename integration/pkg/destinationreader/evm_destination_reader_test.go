package destinationreader

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/LazerTechnologies/LayerZero-Executor/integration/pkg/endpoint"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var (
	endpointAddr = common.HexToAddress("0x6EDCE65403992e310A62460808c4b910D972f10f")
	receiverAddr = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

type fakeEndpointClient struct {
	eid        uint32
	state      uint8
	callErr    error
	eidCalls   atomic.Int32
	lastOrigin endpoint.Origin
	lastRecv   common.Address
	logs       []types.Log
}

func (f *fakeEndpointClient) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeEndpointClient) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	parsed, err := endpoint.EndpointMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	eidMethod := parsed.Methods[endpoint.EidMethod]
	executableMethod := parsed.Methods[endpoint.ExecutableMethod]

	switch {
	case bytes.HasPrefix(msg.Data, eidMethod.ID):
		f.eidCalls.Add(1)
		return eidMethod.Outputs.Pack(f.eid)
	case bytes.HasPrefix(msg.Data, executableMethod.ID):
		args, err := executableMethod.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		f.lastOrigin = *abi.ConvertType(args[0], new(endpoint.Origin)).(*endpoint.Origin)
		f.lastRecv = args[1].(common.Address)
		return executableMethod.Outputs.Pack(f.state)
	}
	return nil, errors.New("unexpected call")
}

func (f *fakeEndpointClient) BlockNumber(context.Context) (uint64, error) {
	return 99, nil
}

func (f *fakeEndpointClient) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return f.logs, nil
}

func newReader(t *testing.T, client *fakeEndpointClient) *EvmDestinationReader {
	t.Helper()
	r, err := NewEvmDestinationReader(Params{
		Lggr:            logger.Test(t),
		Network:         "arbitrum-sepolia",
		ChainClient:     client,
		EndpointAddress: endpointAddr,
	})
	require.NoError(t, err)
	return r
}

func TestNewEvmDestinationReader_Validation(t *testing.T) {
	_, err := NewEvmDestinationReader(Params{})
	require.ErrorContains(t, err, "logger is not set")
	require.ErrorContains(t, err, "chainClient is not set")
	require.ErrorContains(t, err, "endpointAddress is not set")
}

func TestEid_IsCached(t *testing.T) {
	client := &fakeEndpointClient{eid: 40231}
	r := newReader(t, client)

	for range 3 {
		eid, err := r.Eid(t.Context())
		require.NoError(t, err)
		require.Equal(t, uint32(40231), eid)
	}
	require.Equal(t, int32(1), client.eidCalls.Load())
}

func TestEid_ErrorIsNotCached(t *testing.T) {
	client := &fakeEndpointClient{eid: 7, callErr: errors.New("execution reverted")}
	r := newReader(t, client)

	_, err := r.Eid(t.Context())
	require.ErrorContains(t, err, "failed to call eid")

	client.callErr = nil
	eid, err := r.Eid(t.Context())
	require.NoError(t, err)
	require.Equal(t, uint32(7), eid)
}

func TestExecutionState(t *testing.T) {
	sender := protocol.Bytes32FromEVMAddress(common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	origin := protocol.Origin{SrcEid: 101, Sender: sender, Nonce: 9}

	for _, want := range []protocol.ExecutionState{protocol.NotExecutable, protocol.Executable, protocol.Executed} {
		t.Run(want.String(), func(t *testing.T) {
			client := &fakeEndpointClient{state: uint8(want)}
			got, err := newReader(t, client).ExecutionState(t.Context(), origin, protocol.Bytes32FromEVMAddress(receiverAddr))
			require.NoError(t, err)
			require.Equal(t, want, got)
			require.Equal(t, endpoint.NewOrigin(origin), client.lastOrigin)
			require.Equal(t, receiverAddr, client.lastRecv)
		})
	}
}

func TestExecutionState_CallError(t *testing.T) {
	client := &fakeEndpointClient{callErr: errors.New("header not found")}
	_, err := newReader(t, client).ExecutionState(t.Context(), protocol.Origin{}, protocol.Bytes32{})
	require.ErrorContains(t, err, "failed to call executable")
}

func TestFetchPacketVerifiedEvents(t *testing.T) {
	id, err := endpoint.EventID(endpoint.PacketVerifiedEventName)
	require.NoError(t, err)

	origin := endpoint.Origin{SrcEid: 101, Sender: [32]byte{31: 0xaa}, Nonce: 4}
	payloadHash := [32]byte{0: 0x11, 31: 0x22}
	data, err := endpoint.PackEventData(endpoint.PacketVerifiedEventName, origin, receiverAddr, payloadHash)
	require.NoError(t, err)

	good := types.Log{Address: endpointAddr, Topics: []common.Hash{id}, Data: data, BlockNumber: 55, TxHash: common.HexToHash("0x77"), Index: 2}
	broken := good
	broken.Data = nil

	client := &fakeEndpointClient{logs: []types.Log{good, broken}}
	events, err := newReader(t, client).FetchPacketVerifiedEvents(t.Context(), 50, 60)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	require.Equal(t, uint32(101), ev.Origin.SrcEid)
	require.Equal(t, protocol.Bytes32(origin.Sender), ev.Origin.Sender)
	require.Equal(t, uint64(4), ev.Origin.Nonce)
	require.Equal(t, protocol.Bytes32FromEVMAddress(receiverAddr), ev.Receiver)
	require.Equal(t, protocol.Bytes32(payloadHash), ev.PayloadHash)
	require.Equal(t, uint64(55), ev.BlockNumber)
	require.Equal(t, uint(2), ev.LogIndex)
}
