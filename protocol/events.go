package protocol

import (
	"fmt"
	"math/big"
)

// PacketSentEvent is a PacketSent log observed on a source endpoint.
type PacketSentEvent struct {
	EncodedPayload ByteSlice `json:"encodedPayload"`
	Options        ByteSlice `json:"options"`
	SendLibrary    Bytes32   `json:"sendLibrary"`
	TxHash         Bytes32   `json:"txHash"`
	BlockNumber    uint64    `json:"blockNumber"`
	LogIndex       uint      `json:"logIndex"`
}

// PacketVerifiedEvent is a PacketVerified log observed on a destination endpoint.
type PacketVerifiedEvent struct {
	Origin      Origin  `json:"origin"`
	Receiver    Bytes32 `json:"receiver"`
	PayloadHash Bytes32 `json:"payloadHash"`
	TxHash      Bytes32 `json:"txHash"`
	BlockNumber uint64  `json:"blockNumber"`
	LogIndex    uint    `json:"logIndex"`
}

// GUID derives the packet GUID for this verification, given the eid of the endpoint that
// emitted it.
func (e PacketVerifiedEvent) GUID(localEid uint32) Bytes32 {
	return DeriveGUID(PacketHeader{
		Nonce:    e.Origin.Nonce,
		SrcEid:   e.Origin.SrcEid,
		Sender:   e.Origin.Sender,
		DstEid:   localEid,
		Receiver: e.Receiver,
	})
}

// ExecutorFeePaid is the fee record a send library emits for the assigned executor.
type ExecutorFeePaid struct {
	Executor Bytes32
	Fee      *big.Int
}

// ExecutionState mirrors the endpoint's executable() result.
type ExecutionState uint8

const (
	NotExecutable ExecutionState = iota
	Executable
	Executed
)

func (s ExecutionState) String() string {
	switch s {
	case NotExecutable:
		return "NotExecutable"
	case Executable:
		return "Executable"
	case Executed:
		return "Executed"
	default:
		return fmt.Sprintf("ExecutionState(%d)", uint8(s))
	}
}
