package packetstore

import (
	"sync"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
)

var _ executor.PacketStore = (*Store)(nil)

// Store is an in-memory GUID keyed packet store. Entries are never evicted; a restart loses them.
type Store struct {
	mu      sync.RWMutex
	packets map[protocol.Bytes32]executor.StoredPacket
}

func NewStore() *Store {
	return &Store{
		packets: make(map[protocol.Bytes32]executor.StoredPacket),
	}
}

// Put records packet under guid, replacing any previous entry.
func (s *Store) Put(guid protocol.Bytes32, packet executor.StoredPacket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets[guid] = packet
}

func (s *Store) Get(guid protocol.Bytes32) (executor.StoredPacket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.packets[guid]
	return p, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.packets)
}
