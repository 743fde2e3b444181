package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/grafana/pyroscope-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/LazerTechnologies/LayerZero-Executor/executor"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/dispatcher"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/evaluator"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/feechecker"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/monitoring"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/packetstore"
	"github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/scanner"
	"github.com/LazerTechnologies/LayerZero-Executor/integration/pkg/contracttransmitter"
	"github.com/LazerTechnologies/LayerZero-Executor/integration/pkg/destinationreader"
	"github.com/LazerTechnologies/LayerZero-Executor/integration/pkg/sourcereader"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol"
	"github.com/LazerTechnologies/LayerZero-Executor/protocol/common/logging"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	x "github.com/LazerTechnologies/LayerZero-Executor/executor/pkg/executor"
)

const configPathEnvVar = "EXECUTOR_CONFIG_PATH"

func main() {
	//
	// Initialize logger
	// ------------------------------------------------------------------------------------------------
	logConfig, err := logging.FromEnv(os.Getenv)
	if err != nil {
		panic(fmt.Sprintf("Invalid logging configuration: %v", err))
	}
	lggr, err := logger.NewWith(logConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	lggr = logger.Named(lggr, "executor")

	//
	// Load configuration
	// ------------------------------------------------------------------------------------------------
	executorConfig, source, err := loadConfiguration(os.Args[1:], os.Getenv)
	if err != nil {
		lggr.Errorw("Failed to load configuration", "source", source, "error", err)
		os.Exit(1)
	}
	if err = executorConfig.Validate(); err != nil {
		lggr.Errorw("Failed to validate configuration", "source", source, "error", err)
		os.Exit(1)
	}

	if executorConfig.PyroscopeURL != "" {
		if _, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "layerzero-executor",
			ServerAddress:   executorConfig.PyroscopeURL,
			Logger:          nil, // Disable pyroscope logging - so noisy
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileGoroutines,
			},
		}); err != nil {
			lggr.Errorw("Failed to start pyroscope", "error", err)
		}
	}

	// Use SugaredLogger for better API
	lggr = logger.Sugared(lggr)
	lggr.Infow("Executor configuration", "source", source, "networks", executorConfig.NetworkNames())

	//
	// Setup Prometheus Monitoring
	// ------------------------------------------------------------------------------------------------
	var executorMonitoring executor.Monitoring
	if executorConfig.Monitoring.Enabled {
		promMonitoring := monitoring.NewExecutorMonitoring(lggr, executorConfig.Monitoring.ListenAddress)
		if err := promMonitoring.Start(context.Background()); err != nil {
			lggr.Errorw("Failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer promMonitoring.Close()
		executorMonitoring = promMonitoring
	} else {
		lggr.Info("Using noop monitoring")
		executorMonitoring = monitoring.NewNoopExecutorMonitoring()
	}

	//
	// Initialize Context
	// ------------------------------------------------------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	//
	// Connect to networks
	// ------------------------------------------------------------------------------------------------
	clients, err := dialNetworks(ctx, executorConfig)
	if err != nil {
		lggr.Errorw("Failed to connect to networks", "error", err)
		os.Exit(1)
	}
	defer func() {
		for _, c := range clients {
			c.client.Close()
		}
	}()

	//
	// Initialize executor components
	// ------------------------------------------------------------------------------------------------
	clk := clock.New()
	store := packetstore.NewStore()
	taskDispatcher, err := dispatcher.New(lggr)
	if err != nil {
		lggr.Errorw("Failed to create packet dispatcher", "error", err)
		os.Exit(1)
	}
	var submissions *semaphore.Weighted
	if executorConfig.MaxInflightSubmissions > 0 {
		submissions = semaphore.NewWeighted(int64(executorConfig.MaxInflightSubmissions))
	}

	var scanners []executor.Scanner
	for _, name := range executorConfig.NetworkNames() {
		networkScanners, err := buildNetwork(lggr, executorConfig, name, clients[name], store, taskDispatcher, submissions, executorMonitoring.Metrics(), clk)
		if err != nil {
			lggr.Errorw("Failed to initialize network", "network", name, "error", err)
			os.Exit(1)
		}
		scanners = append(scanners, networkScanners...)
	}

	//
	// Initialize executor service
	// ------------------------------------------------------------------------------------------------
	svc, err := executor.NewService(
		executor.WithLogger(lggr),
		executor.WithScanners(scanners...),
		executor.WithDispatcher(taskDispatcher),
		executor.WithClock(clk),
		executor.WithStartupDelay(executorConfig.GetStartupDelay()),
		executor.WithShutdownTimeout(executorConfig.GetShutdownTimeout()),
	)
	if err != nil {
		lggr.Errorw("Failed to create executor service", "error", err)
		os.Exit(1)
	}

	if err := svc.Start(ctx); err != nil {
		lggr.Errorw("Failed to start executor service", "error", err)
		os.Exit(1)
	}

	//
	// Wait for shutdown signal
	// ------------------------------------------------------------------------------------------------
	<-sigCh
	lggr.Infow("Shutdown signal received, stopping executor...")

	if err := svc.Close(); err != nil {
		lggr.Errorw("Executor service stop error", "error", err)
	}
	lggr.Infow("Last processed blocks", "blocks", svc.LastProcessedBlocks())
	lggr.Infow("Executor service stopped gracefully")
}

// loadConfiguration reads the TOML file named by EXECUTOR_CONFIG_PATH or the first argument.
// Without either, the legacy SRC_/DST_ environment is used when present, and the default
// file otherwise.
func loadConfiguration(args []string, getenv func(string) string) (*executor.Configuration, string, error) {
	configPath := ""
	if len(args) > 0 {
		configPath = args[0]
	}
	if envConfig := getenv(configPathEnvVar); envConfig != "" {
		configPath = envConfig
	}
	if configPath == "" && executor.HasLegacyEnv(getenv) {
		cfg, err := executor.LoadLegacyEnvConfig(getenv)
		return cfg, "environment", err
	}
	if configPath == "" {
		configPath = executor.DefaultConfigFile
	}

	var cfg executor.Configuration
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		return nil, configPath, err
	}
	return &cfg, configPath, nil
}

type networkClient struct {
	client  *ethclient.Client
	chainID *big.Int
}

// dialNetworks connects to every configured network concurrently and reads its chain id.
func dialNetworks(ctx context.Context, cfg *executor.Configuration) (map[string]networkClient, error) {
	names := cfg.NetworkNames()
	results := make([]networkClient, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			client, err := ethclient.DialContext(gctx, cfg.Networks[name].RPCURL)
			if err != nil {
				return fmt.Errorf("network %s: dial: %w", name, err)
			}
			chainID, err := client.ChainID(gctx)
			if err != nil {
				client.Close()
				return fmt.Errorf("network %s: chain id: %w", name, err)
			}
			results[i] = networkClient{client: client, chainID: chainID}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range results {
			if r.client != nil {
				r.client.Close()
			}
		}
		return nil, err
	}

	clients := make(map[string]networkClient, len(names))
	for i, name := range names {
		clients[name] = results[i]
	}
	return clients, nil
}

// buildNetwork wires the source and destination scanners of one network.
func buildNetwork(
	lggr logger.Logger,
	cfg *executor.Configuration,
	name string,
	nc networkClient,
	store executor.PacketStore,
	taskDispatcher executor.TaskDispatcher,
	submissions *semaphore.Weighted,
	metrics executor.MetricLabeler,
	clk clock.Clock,
) ([]executor.Scanner, error) {
	netCfg := cfg.Networks[name]
	endpointAddress := common.HexToAddress(netCfg.EndpointAddress)
	startBlock := cfg.GetStartBlock(name)

	var scanners []executor.Scanner

	if !netCfg.DisableSource {
		sr, err := sourcereader.NewEVMSourceReader(nc.client, endpointAddress, name, lggr)
		if err != nil {
			return nil, fmt.Errorf("source reader: %w", err)
		}

		var payee *protocol.Bytes32
		if netCfg.ExecutorAddress != "" {
			addr := protocol.Bytes32FromEVMAddress(common.HexToAddress(netCfg.ExecutorAddress))
			payee = &addr
		}
		fc, err := feechecker.NewFeeChecker(feechecker.Params{
			Lggr:       logger.Named(lggr, "FeeChecker."+name),
			Reader:     sr,
			Executor:   payee,
			MaxRetries: cfg.GetFeeReceiptRetries(),
		})
		if err != nil {
			return nil, fmt.Errorf("fee checker: %w", err)
		}

		src, err := scanner.NewSourceScanner(scanner.SourceParams{
			Lggr:          lggr,
			Network:       name,
			Reader:        sr,
			FeeChecker:    fc,
			Store:         store,
			Metrics:       metrics,
			Clock:         clk,
			PollInterval:  cfg.GetPollInterval(),
			StartBlock:    startBlock,
			MaxBlockRange: cfg.MaxBlockRange,
		})
		if err != nil {
			return nil, fmt.Errorf("source scanner: %w", err)
		}
		scanners = append(scanners, src)
	}

	if netCfg.DisableDestination {
		return scanners, nil
	}
	pk := cfg.ResolvePrivateKey(name, os.Getenv)
	if pk == "" {
		lggr.Warnw("No signer key configured, destination side disabled", "network", name,
			"envVar", executor.NetworkPrivateKeyEnvVar(name))
		return scanners, nil
	}
	key, err := crypto.HexToECDSA(pk)
	if err != nil {
		return nil, errors.New("invalid signer key")
	}

	dr, err := destinationreader.NewEvmDestinationReader(destinationreader.Params{
		Lggr:            lggr,
		Network:         name,
		ChainClient:     nc.client,
		EndpointAddress: endpointAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("destination reader: %w", err)
	}

	ct, err := contracttransmitter.NewEVMContractTransmitter(contracttransmitter.Params{
		Lggr:            lggr,
		Network:         name,
		Backend:         nc.client,
		EndpointAddress: endpointAddress,
		PrivateKey:      key,
		ChainID:         nc.chainID,
		MaxRetries:      cfg.SubmissionMaxRetries,
		ReceiptTimeout:  cfg.GetReceiptTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("contract transmitter: %w", err)
	}
	lggr.Infow("Transmitter ready", "network", name, "chainID", nc.chainID, "from", ct.From().Hex())

	ev, err := evaluator.NewEvaluator(logger.Named(lggr, "Evaluator."+name), dr, metrics.With("network", name), clk, cfg.GetPollInterval())
	if err != nil {
		return nil, fmt.Errorf("evaluator: %w", err)
	}
	var executorOpts []x.Option
	if submissions != nil {
		executorOpts = append(executorOpts, x.WithSubmissionLimit(submissions))
	}
	ex, err := x.NewLzReceiveExecutor(logger.Named(lggr, "LzReceiveExecutor."+name), ct, executorOpts...)
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}

	dst, err := scanner.NewDestinationScanner(scanner.DestinationParams{
		Lggr:          lggr,
		Network:       name,
		Reader:        dr,
		Store:         store,
		Evaluator:     ev,
		Executor:      ex,
		Dispatcher:    taskDispatcher,
		Metrics:       metrics,
		Clock:         clk,
		PollInterval:  cfg.GetPollInterval(),
		StartBlock:    startBlock,
		MaxBlockRange: cfg.MaxBlockRange,
		DedupeWindow:  cfg.GetVerifiedDedupeWindow(),
	})
	if err != nil {
		return nil, fmt.Errorf("destination scanner: %w", err)
	}
	return append(scanners, dst), nil
}
