package executor

import (
	"math/big"

	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
)

// StoredPacket is what the source side learned about a packet, keyed by GUID in the PacketStore.
// Paid is decided once, when the PacketSent event is first processed.
type StoredPacket struct {
	SentEvent protocol.PacketSentEvent
	Packet    protocol.Packet
	Paid      bool
	FeeAmount *big.Int
}

// FeeStatus is the outcome of a fee lookup. Known is false when no receipt could be found.
type FeeStatus struct {
	Known  bool
	Payee  protocol.Bytes32
	Amount *big.Int
}

// Paid reports whether a positive fee was observed.
func (f FeeStatus) Paid() bool {
	return f.Known && f.Amount != nil && f.Amount.Sign() > 0
}

// LzReceiveRequest holds everything needed to build an lzReceive call.
type LzReceiveRequest struct {
	Origin    protocol.Origin
	Receiver  protocol.Bytes32
	GUID      protocol.Bytes32
	Message   []byte
	ExtraData []byte
	GasLimit  uint64
	Value     *big.Int
}

// TransmitResult describes a mined lzReceive transaction.
type TransmitResult struct {
	TxHash      protocol.Bytes32
	BlockNumber uint64
	Attempts    int
}

// ExecutionResult is returned by a PacketExecutor. Submitted is false when the packet
// carried no lzReceive option and nothing was sent.
type ExecutionResult struct {
	Submitted bool
	TxHash    protocol.Bytes32
}

// ScanResult is returned by a scanner when it stops.
type ScanResult struct {
	Name               string
	LastProcessedBlock int64
}
