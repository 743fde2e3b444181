package scanner

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/internal/mocks"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/dispatcher"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/feechecker"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/monitoring"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/packetstore"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// receiptFees serves ExecutorFeePaid records by send transaction hash.
type receiptFees map[protocol.Bytes32][]protocol.ExecutorFeePaid

func (r receiptFees) FetchExecutorFees(_ context.Context, txHash protocol.Bytes32) ([]protocol.ExecutorFeePaid, error) {
	fees, ok := r[txHash]
	if !ok {
		return nil, executor.ErrReceiptNotFound
	}
	return fees, nil
}

func TestScanners_PaidPacketFlowsFromSourceToDestination(t *testing.T) {
	store := packetstore.NewStore()
	clk := clock.NewMock()
	metrics := monitoring.NewNoopExecutorMetricLabeler()

	p := newTestPacket(t, 1)
	sent := sentEvent(p, 3)
	verified := verifiedEvent(p, 12)

	fees, err := feechecker.NewFeeChecker(feechecker.Params{
		Lggr: logger.Test(t),
		Reader: receiptFees{
			sent.TxHash: {{Executor: protocol.Bytes32{31: 0xee}, Fee: big.NewInt(5)}},
		},
	})
	require.NoError(t, err)

	srcReader := &mocks.SourceReader{}
	srcReader.On("LatestBlockNumber", mock.Anything).Return(uint64(4), nil).Once()
	srcReader.On("FetchPacketSentEvents", mock.Anything, uint64(0), uint64(4)).
		Return([]protocol.PacketSentEvent{sent}, nil).Once()

	source, err := NewSourceScanner(SourceParams{
		Lggr:         logger.Test(t),
		Network:      "src",
		Reader:       srcReader,
		FeeChecker:   fees,
		Store:        store,
		Metrics:      metrics,
		Clock:        clk,
		PollInterval: time.Second,
	})
	require.NoError(t, err)

	d, err := dispatcher.New(logger.Test(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Shutdown(0) })

	sameGUID := mock.MatchedBy(func(packet protocol.Packet) bool { return packet.GUID == p.GUID })
	dstReader := &mocks.DestinationReader{}
	evaluator := &mocks.Evaluator{}
	packetExecutor := &mocks.PacketExecutor{}
	dstReader.On("Eid", mock.Anything).Return(localEid, nil)
	dstReader.On("LatestBlockNumber", mock.Anything).Return(uint64(12), nil).Once()
	dstReader.On("FetchPacketVerifiedEvents", mock.Anything, uint64(0), uint64(12)).
		Return([]protocol.PacketVerifiedEvent{verified}, nil).Once()
	evaluator.On("Evaluate", mock.Anything, sameGUID, verified).Return(true, nil).Once()
	packetExecutor.On("Execute", mock.Anything, sameGUID, []byte(sent.Options)).
		Return(executor.ExecutionResult{Submitted: true}, nil).Once()

	destination, err := NewDestinationScanner(DestinationParams{
		Lggr:         logger.Test(t),
		Network:      "dst",
		Reader:       dstReader,
		Store:        store,
		Evaluator:    evaluator,
		Executor:     packetExecutor,
		Dispatcher:   d,
		Metrics:      metrics,
		Clock:        clk,
		PollInterval: time.Second,
	})
	require.NoError(t, err)

	// The verification is seen first and waits for its PacketSent.
	require.NoError(t, destination.PollOnce(t.Context()))
	require.Eventually(t, func() bool { return d.InFlight() == 1 }, time.Second, time.Millisecond)
	evaluator.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, source.PollOnce(t.Context()))
	stored, ok := store.Get(p.GUID)
	require.True(t, ok)
	require.True(t, stored.Paid)
	require.Zero(t, big.NewInt(5).Cmp(stored.FeeAmount))

	require.Eventually(t, func() bool {
		clk.Add(time.Second)
		return d.InFlight() == 0
	}, 2*time.Second, time.Millisecond)

	evaluator.AssertExpectations(t)
	packetExecutor.AssertExpectations(t)
}
