package protocol

import (
	"hash"
	"sync"

	"golang.org/x/crypto/sha3"
)

var hasherPool = sync.Pool{
	New: func() any {
		return sha3.NewLegacyKeccak256()
	},
}

// Keccak256 computes the Keccak256 hash over the concatenation of its inputs.
func Keccak256(data ...[]byte) Bytes32 {
	h, ok := hasherPool.Get().(hash.Hash)
	if !ok {
		panic("cannot get hasher")
	}
	defer hasherPool.Put(h)

	h.Reset()
	for _, d := range data {
		h.Write(d) // nolint:revive // keccak256 never returns an error
	}
	var out Bytes32
	h.Sum(out[:0])
	return out
}
