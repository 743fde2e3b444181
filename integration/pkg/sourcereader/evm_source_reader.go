package sourcereader

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/LazerTechnologies/LayerZero-Executor/integration/pkg/endpoint"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// Compile-time checks to ensure EVMSourceReader implements the reader interfaces.
var (
	_ executor.SourceReader  = (*EVMSourceReader)(nil)
	_ executor.ReceiptReader = (*EVMSourceReader)(nil)
)

// ChainClient is the subset of ethclient.Client used to read a source endpoint.
type ChainClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type EVMSourceReader struct {
	chainClient     ChainClient
	endpointAddress common.Address
	packetSentTopic common.Hash
	feePaidTopic    common.Hash
	network         string
	lggr            logger.Logger
}

func NewEVMSourceReader(chainClient ChainClient, endpointAddress common.Address, network string, lggr logger.Logger) (*EVMSourceReader, error) {
	var errs []error
	appendIfNil := func(field any, fieldName string) {
		if field == nil {
			errs = append(errs, fmt.Errorf("%s is not set", fieldName))
		}
	}

	appendIfNil(chainClient, "chainClient")
	appendIfNil(lggr, "logger")

	if endpointAddress == (common.Address{}) {
		errs = append(errs, fmt.Errorf("endpointAddress is not set"))
	}
	if network == "" {
		errs = append(errs, fmt.Errorf("network is not set"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	packetSentTopic, err := endpoint.EventID(endpoint.PacketSentEventName)
	if err != nil {
		return nil, err
	}
	feePaidTopic, err := endpoint.EventID(endpoint.ExecutorFeePaidEventName)
	if err != nil {
		return nil, err
	}

	return &EVMSourceReader{
		chainClient:     chainClient,
		endpointAddress: endpointAddress,
		packetSentTopic: packetSentTopic,
		feePaidTopic:    feePaidTopic,
		network:         network,
		lggr:            logger.Named(lggr, "EVMSourceReader."+network),
	}, nil
}

func (r *EVMSourceReader) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return r.chainClient.BlockNumber(ctx)
}

// FetchPacketSentEvents returns the endpoint's PacketSent events in the given block range.
// Logs that cannot be unpacked are skipped.
func (r *EVMSourceReader) FetchPacketSentEvents(ctx context.Context, fromBlock, toBlock uint64) ([]protocol.PacketSentEvent, error) {
	rangeQuery := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{r.endpointAddress},
		Topics:    [][]common.Hash{{r.packetSentTopic}},
	}
	logs, err := r.chainClient.FilterLogs(ctx, rangeQuery)
	if err != nil {
		r.lggr.Warnw("Failed to filter logs", "error", err, "fromBlock", fromBlock, "toBlock", toBlock)
		return nil, err
	}

	results := make([]protocol.PacketSentEvent, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		ev, err := endpoint.UnpackPacketSent(log)
		if err != nil {
			r.lggr.Errorw("Failed to unpack PacketSent event", "error", err, "txHash", log.TxHash.Hex(), "blockNumber", log.BlockNumber)
			continue // to next log
		}

		r.lggr.Debugw("Found PacketSent event",
			"blockNumber", log.BlockNumber,
			"txHash", log.TxHash.Hex(),
			"sendLibrary", ev.SendLibrary.Hex())

		results = append(results, protocol.PacketSentEvent{
			EncodedPayload: ev.EncodedPayload,
			Options:        ev.Options,
			SendLibrary:    protocol.Bytes32FromEVMAddress(ev.SendLibrary),
			TxHash:         protocol.Bytes32(log.TxHash),
			BlockNumber:    log.BlockNumber,
			LogIndex:       log.Index,
		})
	}
	return results, nil
}

// FetchExecutorFees reads the ExecutorFeePaid records out of a send transaction's receipt.
func (r *EVMSourceReader) FetchExecutorFees(ctx context.Context, txHash protocol.Bytes32) ([]protocol.ExecutorFeePaid, error) {
	receipt, err := r.chainClient.TransactionReceipt(ctx, common.Hash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("%w: %s", executor.ErrReceiptNotFound, txHash)
		}
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("%w: %s", executor.ErrReceiptNotFound, txHash)
	}

	var fees []protocol.ExecutorFeePaid
	for _, log := range receipt.Logs {
		if log == nil || len(log.Topics) == 0 || log.Topics[0] != r.feePaidTopic {
			continue
		}
		ev, err := endpoint.UnpackExecutorFeePaid(*log)
		if err != nil {
			r.lggr.Errorw("Failed to unpack ExecutorFeePaid event", "error", err, "txHash", txHash)
			continue
		}
		fees = append(fees, protocol.ExecutorFeePaid{
			Executor: protocol.Bytes32FromEVMAddress(ev.Executor),
			Fee:      ev.Fee,
		})
	}
	return fees, nil
}
