package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// Option blob types understood by the endpoint.
const (
	OptionsTypeLegacyGas        uint16 = 1
	OptionsTypeLegacyNativeDrop uint16 = 2
	OptionsTypeWorkers          uint16 = 3
)

// Worker ids inside a type 3 options blob.
const (
	ExecutorWorkerID uint8 = 1
	DVNWorkerID      uint8 = 2
)

// Executor option types.
const (
	ExecutorOptionLzReceive  uint8 = 1
	ExecutorOptionNativeDrop uint8 = 2
	ExecutorOptionLzCompose  uint8 = 3
	ExecutorOptionOrdered    uint8 = 4
)

const (
	uint128Len = 16
	uint256Len = 32
)

var ErrMalformedOptions = errors.New("malformed options")

// LzReceiveOption is the gas limit and native value the sender asked the executor to
// forward to lzReceive.
type LzReceiveOption struct {
	Gas   *big.Int
	Value *big.Int
}

// DecodeExecutorLzReceiveOption extracts the executor lzReceive option from an options blob.
// Multiple lzReceive records are summed. Legacy type 1 and type 2 blobs map to their gas
// amount with zero value. A nil option with a nil error means the blob carries no lzReceive
// instruction.
func DecodeExecutorLzReceiveOption(options []byte) (*LzReceiveOption, error) {
	if len(options) == 0 {
		return nil, nil
	}
	if len(options) < 2 {
		return nil, fmt.Errorf("%w: blob too short", ErrMalformedOptions)
	}

	switch optType := binary.BigEndian.Uint16(options[:2]); optType {
	case OptionsTypeLegacyGas:
		if len(options) != 2+uint256Len {
			return nil, fmt.Errorf("%w: legacy type 1 must be %d bytes, got %d", ErrMalformedOptions, 2+uint256Len, len(options))
		}
		return &LzReceiveOption{
			Gas:   new(big.Int).SetBytes(options[2 : 2+uint256Len]),
			Value: big.NewInt(0),
		}, nil
	case OptionsTypeLegacyNativeDrop:
		// gas(32) | amount(32) | receiver(<=32)
		if len(options) <= 2+2*uint256Len || len(options) > 2+3*uint256Len {
			return nil, fmt.Errorf("%w: legacy type 2 has invalid length %d", ErrMalformedOptions, len(options))
		}
		return &LzReceiveOption{
			Gas:   new(big.Int).SetBytes(options[2 : 2+uint256Len]),
			Value: big.NewInt(0),
		}, nil
	case OptionsTypeWorkers:
		return decodeWorkerOptions(options[2:])
	default:
		return nil, fmt.Errorf("%w: unknown options type %d", ErrMalformedOptions, optType)
	}
}

func decodeWorkerOptions(data []byte) (*LzReceiveOption, error) {
	var result *LzReceiveOption
	cursor := 0
	for cursor < len(data) {
		// workerId(1) | size(2) | optionType(1) | payload(size-1)
		if len(data)-cursor < 4 {
			return nil, fmt.Errorf("%w: truncated option record at offset %d", ErrMalformedOptions, cursor)
		}
		workerID := data[cursor]
		size := int(binary.BigEndian.Uint16(data[cursor+1 : cursor+3]))
		if size == 0 {
			return nil, fmt.Errorf("%w: zero sized option at offset %d", ErrMalformedOptions, cursor)
		}
		optionType := data[cursor+3]
		start := cursor + 4
		end := start + size - 1
		if end > len(data) {
			return nil, fmt.Errorf("%w: option at offset %d overruns blob", ErrMalformedOptions, cursor)
		}
		payload := data[start:end]
		cursor = end

		if workerID != ExecutorWorkerID || optionType != ExecutorOptionLzReceive {
			continue
		}

		gas, value, err := decodeLzReceivePayload(payload)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = &LzReceiveOption{Gas: new(big.Int), Value: new(big.Int)}
		}
		result.Gas.Add(result.Gas, gas)
		result.Value.Add(result.Value, value)
	}
	return result, nil
}

// lzReceive payload is gas(uint128) with an optional value(uint128).
func decodeLzReceivePayload(payload []byte) (*big.Int, *big.Int, error) {
	switch len(payload) {
	case uint128Len:
		return new(big.Int).SetBytes(payload), big.NewInt(0), nil
	case 2 * uint128Len:
		return new(big.Int).SetBytes(payload[:uint128Len]), new(big.Int).SetBytes(payload[uint128Len:]), nil
	default:
		return nil, nil, fmt.Errorf("%w: lzReceive option has invalid length %d", ErrMalformedOptions, len(payload))
	}
}

// NewLzReceiveOptions builds a type 3 options blob carrying a single executor lzReceive record.
// A nil or zero value omits the value field.
func NewLzReceiveOptions(gas, value *big.Int) []byte {
	payloadLen := uint128Len
	if value != nil && value.Sign() > 0 {
		payloadLen = 2 * uint128Len
	}

	out := make([]byte, 2+4+payloadLen)
	binary.BigEndian.PutUint16(out[0:2], OptionsTypeWorkers)
	out[2] = ExecutorWorkerID
	binary.BigEndian.PutUint16(out[3:5], uint16(payloadLen+1)) //nolint:gosec // payloadLen is at most 32
	out[5] = ExecutorOptionLzReceive
	gas.FillBytes(out[6 : 6+uint128Len])
	if payloadLen == 2*uint128Len {
		value.FillBytes(out[6+uint128Len:])
	}
	return out
}
