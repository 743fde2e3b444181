package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"
)

var _ services.Service = (*Service)(nil)

// Service owns the scanner goroutines and the per-packet task dispatcher.
type Service struct {
	services.StateMachine

	lggr       logger.Logger
	clock      clock.Clock
	scanners   []Scanner
	dispatcher TaskDispatcher

	startupDelay    time.Duration
	shutdownTimeout time.Duration

	stopCh services.StopChan
	wg     sync.WaitGroup

	mu      sync.Mutex
	results map[string]ScanResult
}

type Option func(*Service)

func WithLogger(lggr logger.Logger) Option {
	return func(s *Service) {
		s.lggr = lggr
	}
}

// WithScanners adds source and destination scanners. Each gets its own goroutine.
func WithScanners(scanners ...Scanner) Option {
	return func(s *Service) {
		s.scanners = append(s.scanners, scanners...)
	}
}

func WithDispatcher(dispatcher TaskDispatcher) Option {
	return func(s *Service) {
		s.dispatcher = dispatcher
	}
}

func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		s.clock = clk
	}
}

// WithStartupDelay delays the first poll, giving freshly started nodes time to come up.
func WithStartupDelay(d time.Duration) Option {
	return func(s *Service) {
		s.startupDelay = d
	}
}

// WithShutdownTimeout bounds how long Close waits for in-flight packets before cancelling them.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.shutdownTimeout = d
	}
}

func NewService(options ...Option) (*Service, error) {
	s := &Service{
		clock:           clock.New(),
		shutdownTimeout: 30 * time.Second,
		stopCh:          make(chan struct{}),
		results:         make(map[string]ScanResult),
	}

	for _, opt := range options {
		opt(s)
	}

	var errs []error
	appendIfNil := func(field any, fieldName string) {
		if field == nil {
			errs = append(errs, fmt.Errorf("%s is not set", fieldName))
		}
	}
	appendIfNil(s.lggr, "logger")
	appendIfNil(s.dispatcher, "dispatcher")
	appendIfNil(s.clock, "clock")
	if len(s.scanners) == 0 {
		errs = append(errs, errors.New("no scanners configured"))
	}
	seen := make(map[string]struct{}, len(s.scanners))
	for _, sc := range s.scanners {
		if _, ok := seen[sc.Name()]; ok {
			errs = append(errs, fmt.Errorf("duplicate scanner name %q", sc.Name()))
		}
		seen[sc.Name()] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return s, nil
}

func (s *Service) Start(_ context.Context) error {
	return s.StartOnce("executor.Service", func() error {
		s.wg.Go(s.run)
		s.lggr.Infow("Executor service started", "scanners", len(s.scanners), "startupDelay", s.startupDelay)
		return nil
	})
}

func (s *Service) run() {
	ctx, cancel := s.stopCh.NewCtx()
	defer cancel()

	if s.startupDelay > 0 {
		s.lggr.Infow("Waiting before first poll", "delay", s.startupDelay)
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.startupDelay):
		}
	}

	for _, sc := range s.scanners {
		s.wg.Go(func() {
			s.runScanner(ctx, sc)
		})
	}
}

func (s *Service) runScanner(ctx context.Context, sc Scanner) {
	lggr := logger.With(s.lggr, "scanner", sc.Name())
	defer func() {
		if r := recover(); r != nil {
			lggr.Errorw("Scanner panicked", "panic", r, "stack", string(debug.Stack()))
			s.record(ScanResult{Name: sc.Name(), LastProcessedBlock: sc.LastProcessedBlock()})
		}
	}()

	lggr.Infow("Scanner starting")
	res := sc.Run(ctx)
	s.record(res)
	lggr.Infow("Scanner stopped", "lastProcessedBlock", res.LastProcessedBlock)
}

func (s *Service) record(res ScanResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.Name] = res
}

// Close stops polling, lets in-flight packets finish within the shutdown timeout and then
// cancels whatever is still running.
func (s *Service) Close() error {
	return s.StopOnce("executor.Service", func() error {
		s.lggr.Infow("Executor service stopping")
		close(s.stopCh)
		s.wg.Wait()

		err := s.dispatcher.Shutdown(s.shutdownTimeout)
		if err != nil {
			s.lggr.Warnw("In-flight packets did not finish before shutdown timeout", "error", err)
		}

		for name, block := range s.LastProcessedBlocks() {
			s.lggr.Infow("Final scan position", "scanner", name, "lastProcessedBlock", block)
		}
		s.lggr.Infow("Executor service stopped")
		return err
	})
}

// LastProcessedBlocks returns each scanner's position, keyed by scanner name.
func (s *Service) LastProcessedBlocks() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.scanners))
	for _, sc := range s.scanners {
		if res, ok := s.results[sc.Name()]; ok {
			out[sc.Name()] = res.LastProcessedBlock
			continue
		}
		out[sc.Name()] = sc.LastProcessedBlock()
	}
	return out
}

func (s *Service) Name() string {
	return "executor.Service"
}

func (s *Service) HealthReport() map[string]error {
	report := make(map[string]error)
	report[s.Name()] = s.Ready()
	return report
}
