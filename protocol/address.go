package protocol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is returned when an address is neither a base58 Solana address nor a
// 0x-prefixed hex value of at most 32 bytes.
var ErrInvalidAddress = errors.New("invalid address")

var solanaAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// IsSolanaAddress reports whether addr looks like a base58 Solana public key.
func IsSolanaAddress(addr string) bool {
	return solanaAddressRegex.MatchString(addr)
}

// AddressToBytes32 normalizes a chain address to the endpoint's bytes32 form.
// Solana addresses are base58 decoded and must be exactly 32 bytes, hex addresses are
// left-padded with zeros.
func AddressToBytes32(addr string) (Bytes32, error) {
	if IsSolanaAddress(addr) {
		decoded, err := base58.Decode(addr)
		if err != nil {
			return Bytes32{}, fmt.Errorf("%w: %s: %w", ErrInvalidAddress, addr, err)
		}
		if len(decoded) != 32 {
			return Bytes32{}, fmt.Errorf("%w: %s decodes to %d bytes, expected 32", ErrInvalidAddress, addr, len(decoded))
		}
		return Bytes32(decoded), nil
	}

	if strings.HasPrefix(addr, "0x") && len(addr) <= 66 {
		b, err := NewBytes32FromString(addr)
		if err != nil {
			return Bytes32{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
		}
		return b, nil
	}

	return Bytes32{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
}

// EVMAddress returns the low 20 bytes of b as an EVM address.
func (b Bytes32) EVMAddress() common.Address {
	return common.BytesToAddress(b[12:])
}

// Bytes32FromEVMAddress widens an EVM address to bytes32.
func Bytes32FromEVMAddress(addr common.Address) Bytes32 {
	var out Bytes32
	copy(out[12:], addr.Bytes())
	return out
}
