// Package mocks holds testify mocks of the executor interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
)

var (
	_ executor.SourceReader        = (*SourceReader)(nil)
	_ executor.DestinationReader   = (*DestinationReader)(nil)
	_ executor.FeeChecker          = (*FeeChecker)(nil)
	_ executor.ExecutionEvaluator  = (*Evaluator)(nil)
	_ executor.PacketExecutor      = (*PacketExecutor)(nil)
	_ executor.ContractTransmitter = (*ContractTransmitter)(nil)
)

type SourceReader struct {
	mock.Mock
}

func (m *SourceReader) LatestBlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *SourceReader) FetchPacketSentEvents(ctx context.Context, fromBlock, toBlock uint64) ([]protocol.PacketSentEvent, error) {
	args := m.Called(ctx, fromBlock, toBlock)
	events, _ := args.Get(0).([]protocol.PacketSentEvent)
	return events, args.Error(1)
}

type DestinationReader struct {
	mock.Mock
}

func (m *DestinationReader) Eid(ctx context.Context) (uint32, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint32), args.Error(1)
}

func (m *DestinationReader) LatestBlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *DestinationReader) FetchPacketVerifiedEvents(ctx context.Context, fromBlock, toBlock uint64) ([]protocol.PacketVerifiedEvent, error) {
	args := m.Called(ctx, fromBlock, toBlock)
	events, _ := args.Get(0).([]protocol.PacketVerifiedEvent)
	return events, args.Error(1)
}

func (m *DestinationReader) ExecutionState(ctx context.Context, origin protocol.Origin, receiver protocol.Bytes32) (protocol.ExecutionState, error) {
	args := m.Called(ctx, origin, receiver)
	return args.Get(0).(protocol.ExecutionState), args.Error(1)
}

type FeeChecker struct {
	mock.Mock
}

func (m *FeeChecker) CheckFeePaid(ctx context.Context, txHash protocol.Bytes32) (executor.FeeStatus, error) {
	args := m.Called(ctx, txHash)
	return args.Get(0).(executor.FeeStatus), args.Error(1)
}

type Evaluator struct {
	mock.Mock
}

func (m *Evaluator) Evaluate(ctx context.Context, packet protocol.Packet, verified protocol.PacketVerifiedEvent) (bool, error) {
	args := m.Called(ctx, packet, verified)
	return args.Bool(0), args.Error(1)
}

type PacketExecutor struct {
	mock.Mock
}

func (m *PacketExecutor) Execute(ctx context.Context, packet protocol.Packet, options []byte) (executor.ExecutionResult, error) {
	args := m.Called(ctx, packet, options)
	return args.Get(0).(executor.ExecutionResult), args.Error(1)
}

type ContractTransmitter struct {
	mock.Mock
}

func (m *ContractTransmitter) SendLzReceive(ctx context.Context, req executor.LzReceiveRequest) (executor.TransmitResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(executor.TransmitResult), args.Error(1)
}
