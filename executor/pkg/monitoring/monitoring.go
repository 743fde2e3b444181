package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"
)

var (
	_ executor.Monitoring = (*ExecutorMonitoring)(nil)
	_ services.Service    = (*ExecutorMonitoring)(nil)
)

// ExecutorMonitoring records metrics to the default prometheus registry and serves them on /metrics.
type ExecutorMonitoring struct {
	services.StateMachine
	lggr       logger.Logger
	metrics    executor.MetricLabeler
	httpServer *http.Server
	listenAddr string
	wg         sync.WaitGroup
}

// NewExecutorMonitoring creates prometheus backed monitoring served on listenAddress.
func NewExecutorMonitoring(lggr logger.Logger, listenAddress string) *ExecutorMonitoring {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	))

	return &ExecutorMonitoring{
		lggr:    lggr,
		metrics: NewExecutorMetricLabeler(),
		httpServer: &http.Server{
			Addr:              listenAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (m *ExecutorMonitoring) Metrics() executor.MetricLabeler {
	return m.metrics
}

// Addr returns the bound listen address once started.
func (m *ExecutorMonitoring) Addr() string {
	return m.listenAddr
}

func (m *ExecutorMonitoring) Start(_ context.Context) error {
	return m.StartOnce("executor.Monitoring", func() error {
		listener, err := net.Listen("tcp", m.httpServer.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", m.httpServer.Addr, err)
		}
		m.listenAddr = listener.Addr().String()
		m.wg.Go(func() {
			m.lggr.Infow("starting metrics HTTP server", "addr", m.listenAddr)
			if err := m.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				m.lggr.Errorw("metrics HTTP server error", "error", err)
			}
		})
		return nil
	})
}

func (m *ExecutorMonitoring) Close() error {
	return m.StopOnce("executor.Monitoring", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.httpServer.Shutdown(shutdownCtx); err != nil {
			m.lggr.Warnw("failed to shutdown metrics HTTP server", "error", err)
		}
		m.wg.Wait()
		return nil
	})
}

func (m *ExecutorMonitoring) Name() string {
	return "executor.Monitoring"
}

func (m *ExecutorMonitoring) HealthReport() map[string]error {
	return map[string]error{m.Name(): m.Healthy()}
}
