// Package endpoint holds the subset of the LayerZero EndpointV2 and send library ABI the
// executor reads and writes.
package endpoint

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
)

const (
	PacketSentEventName      = "PacketSent"
	PacketVerifiedEventName  = "PacketVerified"
	ExecutorFeePaidEventName = "ExecutorFeePaid"

	EidMethod        = "eid"
	ExecutableMethod = "executable"
	LzReceiveMethod  = "lzReceive"
)

const originTuple = `{"components":[{"internalType":"uint32","name":"srcEid","type":"uint32"},{"internalType":"bytes32","name":"sender","type":"bytes32"},{"internalType":"uint64","name":"nonce","type":"uint64"}],"internalType":"struct Origin","name":"%s","type":"tuple"}`

// EndpointMetaData contains the ABI of the endpoint methods and events used by the executor.
// ExecutorFeePaid is emitted by the send library, not the endpoint, but lands in the same receipt.
var EndpointMetaData = &bind.MetaData{
	ABI: `[` +
		`{"anonymous":false,"inputs":[{"indexed":false,"internalType":"bytes","name":"encodedPayload","type":"bytes"},{"indexed":false,"internalType":"bytes","name":"options","type":"bytes"},{"indexed":false,"internalType":"address","name":"sendLibrary","type":"address"}],"name":"PacketSent","type":"event"},` +
		`{"anonymous":false,"inputs":[` + fmt.Sprintf(originTuple, "origin") + `,{"indexed":false,"internalType":"address","name":"receiver","type":"address"},{"indexed":false,"internalType":"bytes32","name":"payloadHash","type":"bytes32"}],"name":"PacketVerified","type":"event"},` +
		`{"anonymous":false,"inputs":[{"indexed":false,"internalType":"address","name":"executor","type":"address"},{"indexed":false,"internalType":"uint256","name":"fee","type":"uint256"}],"name":"ExecutorFeePaid","type":"event"},` +
		`{"inputs":[],"name":"eid","outputs":[{"internalType":"uint32","name":"","type":"uint32"}],"stateMutability":"view","type":"function"},` +
		`{"inputs":[` + fmt.Sprintf(originTuple, "_origin") + `,{"internalType":"address","name":"_receiver","type":"address"}],"name":"executable","outputs":[{"internalType":"enum ExecutionState","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},` +
		`{"inputs":[` + fmt.Sprintf(originTuple, "_origin") + `,{"internalType":"address","name":"_receiver","type":"address"},{"internalType":"bytes32","name":"_guid","type":"bytes32"},{"internalType":"bytes","name":"_message","type":"bytes"},{"internalType":"bytes","name":"_extraData","type":"bytes"}],"name":"lzReceive","outputs":[],"stateMutability":"payable","type":"function"}` +
		`]`,
}

// Origin is the ABI form of protocol.Origin.
type Origin struct {
	SrcEid uint32
	Sender [32]byte
	Nonce  uint64
}

func NewOrigin(o protocol.Origin) Origin {
	return Origin{SrcEid: o.SrcEid, Sender: o.Sender, Nonce: o.Nonce}
}

type PacketSent struct {
	EncodedPayload []byte
	Options        []byte
	SendLibrary    common.Address
}

type PacketVerified struct {
	Origin      Origin
	Receiver    common.Address
	PayloadHash [32]byte
}

type ExecutorFeePaid struct {
	Executor common.Address
	Fee      *big.Int
}

// EventID returns the topic0 of one of the endpoint events.
func EventID(name string) (common.Hash, error) {
	parsed, err := EndpointMetaData.GetAbi()
	if err != nil {
		return common.Hash{}, err
	}
	ev, ok := parsed.Events[name]
	if !ok {
		return common.Hash{}, fmt.Errorf("event %s not found in endpoint abi", name)
	}
	return ev.ID, nil
}

func unpackLog(out any, name string, log types.Log) error {
	parsed, err := EndpointMetaData.GetAbi()
	if err != nil {
		return err
	}
	ev, ok := parsed.Events[name]
	if !ok {
		return fmt.Errorf("event %s not found in endpoint abi", name)
	}
	if len(log.Topics) == 0 || log.Topics[0] != ev.ID {
		return fmt.Errorf("log is not a %s event", name)
	}
	if err := parsed.UnpackIntoInterface(out, name, log.Data); err != nil {
		return fmt.Errorf("failed to unpack %s: %w", name, err)
	}
	return nil
}

func UnpackPacketSent(log types.Log) (*PacketSent, error) {
	ev := new(PacketSent)
	if err := unpackLog(ev, PacketSentEventName, log); err != nil {
		return nil, err
	}
	return ev, nil
}

func UnpackPacketVerified(log types.Log) (*PacketVerified, error) {
	ev := new(PacketVerified)
	if err := unpackLog(ev, PacketVerifiedEventName, log); err != nil {
		return nil, err
	}
	return ev, nil
}

func UnpackExecutorFeePaid(log types.Log) (*ExecutorFeePaid, error) {
	ev := new(ExecutorFeePaid)
	if err := unpackLog(ev, ExecutorFeePaidEventName, log); err != nil {
		return nil, err
	}
	return ev, nil
}

// PackEventData ABI encodes the non-indexed fields of an endpoint event.
func PackEventData(name string, args ...any) ([]byte, error) {
	parsed, err := EndpointMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	ev, ok := parsed.Events[name]
	if !ok {
		return nil, fmt.Errorf("event %s not found in endpoint abi", name)
	}
	return ev.Inputs.NonIndexed().Pack(args...)
}

// Bind returns a bound endpoint contract. transactor and filterer may be nil for read-only use.
func Bind(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor, filterer bind.ContractFilterer) (*bind.BoundContract, *abi.ABI, error) {
	parsed, err := EndpointMetaData.GetAbi()
	if err != nil {
		return nil, nil, err
	}
	return bind.NewBoundContract(address, *parsed, caller, transactor, filterer), parsed, nil
}
