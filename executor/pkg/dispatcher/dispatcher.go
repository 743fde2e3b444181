package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var _ executor.TaskDispatcher = (*Dispatcher)(nil)

var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// Dispatcher runs one tracked task per verified packet on an ants pool.
// Tasks share a context that is only cancelled once Shutdown's grace period has elapsed.
type Dispatcher struct {
	lggr logger.Logger
	pool *ants.Pool

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// New creates a dispatcher on an unbounded pool. Tasks may wait indefinitely for a PacketSent or
// for executable(), so Go must never block the scanner that calls it. Bound the expensive step
// inside the task instead.
func New(lggr logger.Logger) (*Dispatcher, error) {
	if lggr == nil {
		return nil, errors.New("logger is not set")
	}
	pool, err := ants.NewPool(-1, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		lggr:   lggr,
		pool:   pool,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Go schedules fn and returns without waiting for a worker.
func (d *Dispatcher) Go(fn func(ctx context.Context)) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	d.inFlight.Add(1)
	d.mu.Unlock()

	err := d.pool.Submit(func() {
		defer d.done()
		defer func() {
			if r := recover(); r != nil {
				d.lggr.Errorw("Packet task panicked", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn(d.ctx)
	})
	if err != nil {
		d.done()
		return fmt.Errorf("failed to submit task: %w", err)
	}
	return nil
}

func (d *Dispatcher) done() {
	d.inFlight.Add(-1)
	d.wg.Done()
}

func (d *Dispatcher) InFlight() int {
	return int(d.inFlight.Load())
}

func (d *Dispatcher) Shutdown(grace time.Duration) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	defer d.pool.Release()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		d.cancel()
		return nil
	case <-time.After(grace):
	}

	remaining := d.InFlight()
	d.lggr.Warnw("Cancelling in-flight packet tasks", "remaining", remaining, "grace", grace)
	d.cancel()
	<-finished
	return fmt.Errorf("%d packet tasks cancelled after %s", remaining, grace)
}
