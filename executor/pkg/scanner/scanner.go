package scanner

import (
	"sync"
	"sync/atomic"
)

// State is a scanner's lifecycle position.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePolling:
		return "Polling"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// position tracks the scan cursor shared by both scanner kinds.
type position struct {
	mu                 sync.RWMutex
	lastProcessedBlock int64
	state              atomic.Int32
}

func newPosition(startBlock int64) *position {
	// Scanning starts at startBlock, so the block before it counts as processed.
	return &position{lastProcessedBlock: startBlock - 1}
}

func (p *position) last() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastProcessedBlock
}

// advance moves the cursor forward, never backwards.
func (p *position) advance(block int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if block > p.lastProcessedBlock {
		p.lastProcessedBlock = block
	}
}

func (p *position) setState(s State) {
	p.state.Store(int32(s))
}

func (p *position) getState() State {
	return State(p.state.Load())
}

// queryRange returns the next inclusive block range to scan, or ok=false when there is
// nothing new. maxRange <= 0 means no limit.
func queryRange(last int64, latest uint64, maxRange uint64) (from, to uint64, bounded, ok bool) {
	from = uint64(max(last+1, 0)) //nolint:gosec // clamped to non-negative
	if from > latest {
		return 0, 0, false, false
	}
	to = latest
	if maxRange > 0 && to-from+1 > maxRange {
		to = from + maxRange - 1
		bounded = true
	}
	return from, to, bounded, true
}
