package protocol

import (
	"encoding/binary"
)

// guidPreimageLen is nonce(8) + srcEid(4) + sender(32) + dstEid(4) + receiver(32).
const guidPreimageLen = 8 + 4 + 32 + 4 + 32

// PacketHeader is the tuple a packet GUID is derived from.
type PacketHeader struct {
	Nonce    uint64
	SrcEid   uint32
	Sender   Bytes32
	DstEid   uint32
	Receiver Bytes32
}

// DeriveGUID returns keccak256(abi.encodePacked(nonce, srcEid, sender, dstEid, receiver)).
// Both source and destination sides must call this with the same tuple to correlate events.
func DeriveGUID(h PacketHeader) Bytes32 {
	buf := make([]byte, guidPreimageLen)
	binary.BigEndian.PutUint64(buf[0:8], h.Nonce)
	binary.BigEndian.PutUint32(buf[8:12], h.SrcEid)
	copy(buf[12:44], h.Sender[:])
	binary.BigEndian.PutUint32(buf[44:48], h.DstEid)
	copy(buf[48:80], h.Receiver[:])
	return Keccak256(buf)
}

// DeriveGUIDFromAddresses derives a GUID from human readable sender/receiver addresses.
// Addresses are normalized with AddressToBytes32, so an unparsable address yields ErrInvalidAddress.
func DeriveGUIDFromAddresses(nonce uint64, srcEid uint32, sender string, dstEid uint32, receiver string) (Bytes32, error) {
	s, err := AddressToBytes32(sender)
	if err != nil {
		return Bytes32{}, err
	}
	r, err := AddressToBytes32(receiver)
	if err != nil {
		return Bytes32{}, err
	}
	return DeriveGUID(PacketHeader{
		Nonce:    nonce,
		SrcEid:   srcEid,
		Sender:   s,
		DstEid:   dstEid,
		Receiver: r,
	}), nil
}
