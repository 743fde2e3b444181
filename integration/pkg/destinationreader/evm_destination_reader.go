package destinationreader

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/LazerTechnologies/LayerZero-Executor/integration/pkg/endpoint"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// Ensure EvmDestinationReader implements the DestinationReader interface.
var _ executor.DestinationReader = (*EvmDestinationReader)(nil)

// ChainClient is the subset of ethclient.Client used to read a destination endpoint.
type ChainClient interface {
	bind.ContractCaller
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

type EvmDestinationReader struct {
	lggr                logger.Logger
	client              ChainClient
	endpointAddress     common.Address
	endpoint            *bind.BoundContract
	packetVerifiedTopic common.Hash

	// The endpoint eid never changes, so it is read once.
	eidMu sync.Mutex
	eid   *uint32
}

type Params struct {
	Lggr            logger.Logger
	Network         string
	ChainClient     ChainClient
	EndpointAddress common.Address
}

func NewEvmDestinationReader(params Params) (*EvmDestinationReader, error) {
	var errs []error
	appendIfNil := func(field any, fieldName string) {
		if field == nil {
			errs = append(errs, fmt.Errorf("%s is not set", fieldName))
		}
	}
	appendIfNil(params.Lggr, "logger")
	appendIfNil(params.ChainClient, "chainClient")
	if params.EndpointAddress == (common.Address{}) {
		errs = append(errs, errors.New("endpointAddress is not set"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	contract, _, err := endpoint.Bind(params.EndpointAddress, params.ChainClient, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to bind endpoint at %s: %w", params.EndpointAddress.Hex(), err)
	}
	topic, err := endpoint.EventID(endpoint.PacketVerifiedEventName)
	if err != nil {
		return nil, err
	}

	return &EvmDestinationReader{
		lggr:                logger.Named(params.Lggr, "EvmDestinationReader."+params.Network),
		client:              params.ChainClient,
		endpointAddress:     params.EndpointAddress,
		endpoint:            contract,
		packetVerifiedTopic: topic,
	}, nil
}

// Eid returns the endpoint id of this network, calling eid() on first use.
func (dr *EvmDestinationReader) Eid(ctx context.Context) (uint32, error) {
	dr.eidMu.Lock()
	defer dr.eidMu.Unlock()
	if dr.eid != nil {
		return *dr.eid, nil
	}

	var out []any
	if err := dr.endpoint.Call(&bind.CallOpts{Context: ctx}, &out, endpoint.EidMethod); err != nil {
		return 0, fmt.Errorf("failed to call eid: %w", err)
	}
	if len(out) == 0 {
		return 0, errors.New("eid returned no value")
	}
	eid := *abi.ConvertType(out[0], new(uint32)).(*uint32)
	dr.eid = &eid
	return eid, nil
}

func (dr *EvmDestinationReader) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return dr.client.BlockNumber(ctx)
}

// FetchPacketVerifiedEvents returns the endpoint's PacketVerified events in the given block range.
func (dr *EvmDestinationReader) FetchPacketVerifiedEvents(ctx context.Context, fromBlock, toBlock uint64) ([]protocol.PacketVerifiedEvent, error) {
	logs, err := dr.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{dr.endpointAddress},
		Topics:    [][]common.Hash{{dr.packetVerifiedTopic}},
	})
	if err != nil {
		dr.lggr.Warnw("Failed to filter logs", "error", err, "fromBlock", fromBlock, "toBlock", toBlock)
		return nil, err
	}

	results := make([]protocol.PacketVerifiedEvent, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		ev, err := endpoint.UnpackPacketVerified(log)
		if err != nil {
			dr.lggr.Errorw("Failed to unpack PacketVerified event", "error", err, "txHash", log.TxHash.Hex(), "blockNumber", log.BlockNumber)
			continue
		}
		results = append(results, protocol.PacketVerifiedEvent{
			Origin: protocol.Origin{
				SrcEid: ev.Origin.SrcEid,
				Sender: ev.Origin.Sender,
				Nonce:  ev.Origin.Nonce,
			},
			Receiver:    protocol.Bytes32FromEVMAddress(ev.Receiver),
			PayloadHash: ev.PayloadHash,
			TxHash:      protocol.Bytes32(log.TxHash),
			BlockNumber: log.BlockNumber,
			LogIndex:    log.Index,
		})
	}
	return results, nil
}

// ExecutionState calls executable(origin, receiver) on the endpoint.
func (dr *EvmDestinationReader) ExecutionState(ctx context.Context, origin protocol.Origin, receiver protocol.Bytes32) (protocol.ExecutionState, error) {
	var out []any
	err := dr.endpoint.Call(&bind.CallOpts{Context: ctx}, &out, endpoint.ExecutableMethod,
		endpoint.NewOrigin(origin),
		receiver.EVMAddress())
	if err != nil {
		// expect that the error is checked by the caller so it doesn't accidentally assume success
		return 0, fmt.Errorf("failed to call executable: %w", err)
	}
	if len(out) == 0 {
		return 0, errors.New("executable returned no value")
	}
	return protocol.ExecutionState(*abi.ConvertType(out[0], new(uint8)).(*uint8)), nil
}
