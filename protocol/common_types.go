package protocol

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Eid is a LayerZero endpoint id. Every endpoint deployment reports its own eid via eid().
type Eid uint32

func (e Eid) String() string {
	return strconv.FormatUint(uint64(e), 10)
}

// Nonce is the per-path outbound counter assigned by the source endpoint.
type Nonce uint64

func (n Nonce) String() string {
	return strconv.FormatUint(uint64(n), 10)
}

// ByteSlice is a wrapper around []byte that marshals/unmarshals to/from hex instead of base64.
type ByteSlice []byte

// MarshalJSON returns the hex representation of the bytes.
func (h ByteSlice) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf(`"%s"`, h.String())), nil
}

// UnmarshalJSON decodes a hex string into a ByteSlice.
func (h *ByteSlice) UnmarshalJSON(data []byte) error {
	v := string(data)
	if v == "null" {
		*h = nil
		return nil
	}
	if len(v) < 2 {
		return fmt.Errorf("invalid ByteSlice: %s", v)
	}

	v = strings.TrimPrefix(v[1:len(v)-1], "0x")
	if v == "" {
		*h = ByteSlice{}
		return nil
	}

	bytes, err := hex.DecodeString(v)
	if err != nil {
		return fmt.Errorf("failed to decode hex: %w", err)
	}

	*h = ByteSlice(bytes)
	return nil
}

// String returns the hex representation with 0x prefix.
func (h ByteSlice) String() string {
	return "0x" + hex.EncodeToString(h)
}

// Bytes32 is a fixed 32 byte value: guids, payload hashes and addresses padded to the
// endpoint's bytes32 representation.
type Bytes32 [32]byte

// NewBytes32FromString parses a 0x-prefixed hex string of at most 32 bytes. Shorter values
// are left-padded with zeros, matching how EVM addresses are widened to bytes32.
func NewBytes32FromString(s string) (Bytes32, error) {
	if !strings.HasPrefix(s, "0x") {
		return Bytes32{}, fmt.Errorf("Bytes32 must start with '0x' prefix: %s", s)
	}
	if len(s) > 66 {
		return Bytes32{}, fmt.Errorf("Bytes32 must be at most 32 bytes (64 hex chars) long: %s", s)
	}

	digits := s[2:]
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return Bytes32{}, fmt.Errorf("failed to decode hex: %w", err)
	}

	var res Bytes32
	copy(res[32-len(b):], b)
	return res, nil
}

func (b Bytes32) String() string {
	return "0x" + hex.EncodeToString(b[:])
}

func (b Bytes32) IsEmpty() bool {
	return b == Bytes32{}
}

func (b Bytes32) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%s"`, b.String())), nil
}

func (b *Bytes32) UnmarshalJSON(data []byte) error {
	v := string(data)
	if len(v) < 4 {
		return fmt.Errorf("invalid Bytes32: %s", v)
	}

	parsed, err := NewBytes32FromString(v[1 : len(v)-1])
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
