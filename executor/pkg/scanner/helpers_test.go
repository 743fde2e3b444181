package scanner

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
)

func newTestPacket(t *testing.T, nonce uint64) protocol.Packet {
	t.Helper()
	sender, err := protocol.AddressToBytes32("0x" + strings.Repeat("aa", 20))
	require.NoError(t, err)
	receiver, err := protocol.AddressToBytes32("0x" + strings.Repeat("bb", 20))
	require.NoError(t, err)

	p := protocol.Packet{
		Version:  protocol.PacketVersion,
		Nonce:    nonce,
		SrcEid:   101,
		Sender:   sender,
		DstEid:   102,
		Receiver: receiver,
		Message:  protocol.ByteSlice("hello"),
	}
	p.GUID = protocol.DeriveGUID(p.Header())
	return p
}

func sentEvent(p protocol.Packet, block uint64) protocol.PacketSentEvent {
	return protocol.PacketSentEvent{
		EncodedPayload: p.Encode(),
		Options:        protocol.NewLzReceiveOptions(big.NewInt(200_000), nil),
		TxHash:         protocol.Bytes32{0: byte(block), 31: byte(p.Nonce)},
		BlockNumber:    block,
	}
}

func verifiedEvent(p protocol.Packet, block uint64) protocol.PacketVerifiedEvent {
	return protocol.PacketVerifiedEvent{
		Origin:      p.Origin(),
		Receiver:    p.Receiver,
		PayloadHash: p.PayloadHash(),
		TxHash:      protocol.Bytes32{0: byte(block), 1: 0xde, 31: byte(p.Nonce)},
		BlockNumber: block,
	}
}
