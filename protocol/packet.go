package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// PacketVersion is the only payload version the endpoint emits today.
	PacketVersion uint8 = 1

	packetHeaderLen = 1 + 8 + 4 + 32 + 4 + 32
	// PacketPrefixLen is the header followed by the 32 byte guid.
	PacketPrefixLen = packetHeaderLen + 32
)

// Origin identifies a packet on the destination side.
type Origin struct {
	SrcEid uint32
	Sender Bytes32
	Nonce  uint64
}

// Packet is the decoded form of the encodedPayload carried by PacketSent.
type Packet struct {
	Version  uint8
	Nonce    uint64
	SrcEid   uint32
	Sender   Bytes32
	DstEid   uint32
	Receiver Bytes32
	GUID     Bytes32
	Message  ByteSlice
}

// Header returns the tuple the packet's GUID is derived from.
func (p Packet) Header() PacketHeader {
	return PacketHeader{
		Nonce:    p.Nonce,
		SrcEid:   p.SrcEid,
		Sender:   p.Sender,
		DstEid:   p.DstEid,
		Receiver: p.Receiver,
	}
}

// Origin returns the origin triple the destination endpoint indexes the packet by.
func (p Packet) Origin() Origin {
	return Origin{SrcEid: p.SrcEid, Sender: p.Sender, Nonce: p.Nonce}
}

// DecodePacket decodes a PacketV1 payload:
// version(1) | nonce(8) | srcEid(4) | sender(32) | dstEid(4) | receiver(32) | guid(32) | message.
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) < PacketPrefixLen {
		return nil, fmt.Errorf("packet too short: %d bytes, need at least %d", len(data), PacketPrefixLen)
	}

	reader := bytes.NewReader(data)
	p := &Packet{}

	if err := binary.Read(reader, binary.BigEndian, &p.Version); err != nil {
		return nil, fmt.Errorf("failed to read version: %w", err)
	}
	if p.Version != PacketVersion {
		return nil, fmt.Errorf("unsupported packet version: %d", p.Version)
	}
	if err := binary.Read(reader, binary.BigEndian, &p.Nonce); err != nil {
		return nil, fmt.Errorf("failed to read nonce: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &p.SrcEid); err != nil {
		return nil, fmt.Errorf("failed to read src eid: %w", err)
	}
	if _, err := io.ReadFull(reader, p.Sender[:]); err != nil {
		return nil, fmt.Errorf("failed to read sender: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &p.DstEid); err != nil {
		return nil, fmt.Errorf("failed to read dst eid: %w", err)
	}
	if _, err := io.ReadFull(reader, p.Receiver[:]); err != nil {
		return nil, fmt.Errorf("failed to read receiver: %w", err)
	}
	if _, err := io.ReadFull(reader, p.GUID[:]); err != nil {
		return nil, fmt.Errorf("failed to read guid: %w", err)
	}

	p.Message = make(ByteSlice, reader.Len())
	if _, err := io.ReadFull(reader, p.Message); err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	return p, nil
}

// Encode serializes the packet into the PacketV1 payload format.
func (p Packet) Encode() []byte {
	var buf bytes.Buffer
	buf.Grow(PacketPrefixLen + len(p.Message))

	buf.WriteByte(p.Version)
	_ = binary.Write(&buf, binary.BigEndian, p.Nonce)
	_ = binary.Write(&buf, binary.BigEndian, p.SrcEid)
	buf.Write(p.Sender[:])
	_ = binary.Write(&buf, binary.BigEndian, p.DstEid)
	buf.Write(p.Receiver[:])
	buf.Write(p.GUID[:])
	buf.Write(p.Message)

	return buf.Bytes()
}

// PayloadHash is keccak256(guid || message), the value PacketVerified commits to.
func (p Packet) PayloadHash() Bytes32 {
	return Keccak256(p.GUID[:], p.Message)
}
