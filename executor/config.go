package executor

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultConfigFile = "executor_config.toml"

	// PrivateKeyEnvVar is the fallback signer key for every network.
	PrivateKeyEnvVar = "EXECUTOR_TRANSMITTER_PRIVATE_KEY"
)

type Configuration struct {
	PollInterval         string `toml:"poll_interval"`
	StartBlock           int64  `toml:"start_block"`
	MaxBlockRange        uint64 `toml:"max_block_range"`
	StartupDelay         string `toml:"startup_delay"`
	ShutdownTimeout      string `toml:"shutdown_timeout"`
	VerifiedDedupeWindow string `toml:"verified_dedupe_window"`
	// MaxInflightSubmissions bounds concurrent lzReceive submissions across all networks.
	// Zero means no limit. Waiting and evaluating packets never count against it.
	MaxInflightSubmissions int                       `toml:"max_inflight_submissions"`
	SubmissionMaxRetries   uint                      `toml:"submission_max_retries"`
	FeeReceiptRetries      *uint                     `toml:"fee_receipt_retries"`
	ReceiptTimeout         string                    `toml:"receipt_timeout"`
	PyroscopeURL           string                    `toml:"pyroscope_url"`
	Networks               map[string]*NetworkConfig `toml:"networks"`
	Monitoring             MonitoringConfig          `toml:"Monitoring"`
}

// NetworkConfig describes one endpoint deployment. Every network is scanned as a source and,
// when a signer key is available, as a destination.
type NetworkConfig struct {
	RPCURL          string `toml:"rpc_url"`
	EndpointAddress string `toml:"endpoint_address"`
	// ExecutorAddress restricts fee checks to ExecutorFeePaid records naming this address.
	// Left empty, any positive fee counts.
	ExecutorAddress    string `toml:"executor_address"`
	PrivateKey         string `toml:"private_key"`
	StartBlock         *int64 `toml:"start_block"`
	DisableSource      bool   `toml:"disable_source"`
	DisableDestination bool   `toml:"disable_destination"`
}

// MonitoringConfig provides monitoring configuration for executor.
type MonitoringConfig struct {
	// Enabled exposes prometheus metrics on ListenAddress.
	Enabled bool `toml:"Enabled"`
	// ListenAddress is the host:port the /metrics endpoint is served on.
	ListenAddress string `toml:"ListenAddress"`
}

func (c *Configuration) Validate() error {
	var errs []error
	if len(c.Networks) == 0 {
		errs = append(errs, errors.New("no networks configured"))
	}
	if c.StartBlock < 0 {
		errs = append(errs, fmt.Errorf("start_block must not be negative, got %d", c.StartBlock))
	}
	if c.MaxInflightSubmissions < 0 {
		errs = append(errs, fmt.Errorf("max_inflight_submissions must not be negative, got %d", c.MaxInflightSubmissions))
	}
	for _, name := range c.NetworkNames() {
		if err := c.Networks[name].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("network %s: %w", name, err))
		}
	}
	if err := c.Monitoring.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (n *NetworkConfig) Validate() error {
	if n == nil {
		return errors.New("empty network section")
	}
	var errs []error
	if n.RPCURL == "" {
		errs = append(errs, errors.New("rpc_url must be set"))
	}
	if !common.IsHexAddress(n.EndpointAddress) {
		errs = append(errs, fmt.Errorf("endpoint_address %q is not a valid address", n.EndpointAddress))
	}
	if n.ExecutorAddress != "" && !common.IsHexAddress(n.ExecutorAddress) {
		errs = append(errs, fmt.Errorf("executor_address %q is not a valid address", n.ExecutorAddress))
	}
	if n.StartBlock != nil && *n.StartBlock < 0 {
		errs = append(errs, fmt.Errorf("start_block must not be negative, got %d", *n.StartBlock))
	}
	if n.DisableSource && n.DisableDestination {
		errs = append(errs, errors.New("both sides are disabled"))
	}
	return errors.Join(errs...)
}

// Validate performs validation on the monitoring configuration.
func (m *MonitoringConfig) Validate() error {
	if m.Enabled && m.ListenAddress == "" {
		return errors.New("monitoring ListenAddress is required when monitoring is enabled")
	}
	return nil
}

// NetworkNames returns the configured network names in a stable order.
func (c *Configuration) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetStartBlock returns the first block a network's scanners should read.
func (c *Configuration) GetStartBlock(network string) int64 {
	if n, ok := c.Networks[network]; ok && n.StartBlock != nil {
		return *n.StartBlock
	}
	return c.StartBlock
}

// ResolvePrivateKey returns the signer key for a network. EXECUTOR_<NETWORK>_PRIVATE_KEY wins,
// then EXECUTOR_TRANSMITTER_PRIVATE_KEY, then the file. An empty result disables the network's
// destination side.
func (c *Configuration) ResolvePrivateKey(network string, getenv func(string) string) string {
	if pk := getenv(NetworkPrivateKeyEnvVar(network)); pk != "" {
		return strings.TrimPrefix(pk, "0x")
	}
	if pk := getenv(PrivateKeyEnvVar); pk != "" {
		return strings.TrimPrefix(pk, "0x")
	}
	if n, ok := c.Networks[network]; ok {
		return strings.TrimPrefix(n.PrivateKey, "0x")
	}
	return ""
}

// NetworkPrivateKeyEnvVar returns the per-network key variable, e.g. EXECUTOR_ARBITRUM_SEPOLIA_PRIVATE_KEY.
func NetworkPrivateKeyEnvVar(network string) string {
	name := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(network))
	return "EXECUTOR_" + name + "_PRIVATE_KEY"
}

func (c *Configuration) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

func (c *Configuration) GetStartupDelay() time.Duration {
	d, err := time.ParseDuration(c.StartupDelay)
	if err != nil || d < 0 {
		return 10 * time.Second
	}
	return d
}

func (c *Configuration) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil || d < 0 {
		return 30 * time.Second
	}
	return d
}

func (c *Configuration) GetVerifiedDedupeWindow() time.Duration {
	d, err := time.ParseDuration(c.VerifiedDedupeWindow)
	if err != nil || d <= 0 {
		return 1 * time.Hour
	}
	return d
}

func (c *Configuration) GetReceiptTimeout() time.Duration {
	d, err := time.ParseDuration(c.ReceiptTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// GetFeeReceiptRetries returns the receipt lookup retries. Unset means 3, an explicit 0 a single attempt.
func (c *Configuration) GetFeeReceiptRetries() uint {
	if c.FeeReceiptRetries == nil {
		return 3
	}
	return *c.FeeReceiptRetries
}

//
// Legacy environment configuration
// ------------------------------------------------------------------------------------------------

// Legacy single-pair deployments are configured through the environment only.
const (
	legacySrcRPCURLEnvVar   = "SRC_RPC_URL"
	legacySrcEndpointEnvVar = "SRC_ENDPOINT_CONTRACT_ADDRESS"
	legacyDstRPCURLEnvVar   = "DST_RPC_URL"
	legacyDstKeyEnvVar      = "DST_PRIVATE_KEY"
	legacyDstEndpointEnvVar = "DST_ENDPOINT_CONTRACT_ADDRESS"
	legacyDelayEnvVar       = "DELAY"
	legacyStartBlockEnvVar  = "START_BLOCK"

	LegacySourceNetwork      = "source"
	LegacyDestinationNetwork = "destination"
)

// HasLegacyEnv reports whether the legacy SRC_/DST_ variables are present.
func HasLegacyEnv(getenv func(string) string) bool {
	return getenv(legacySrcRPCURLEnvVar) != "" && getenv(legacyDstRPCURLEnvVar) != ""
}

// LoadLegacyEnvConfig builds a two network configuration from SRC_* and DST_* variables.
// DELAY is the poll interval in milliseconds, START_BLOCK the first block to scan.
func LoadLegacyEnvConfig(getenv func(string) string) (*Configuration, error) {
	cfg := &Configuration{
		Networks: map[string]*NetworkConfig{
			LegacySourceNetwork: {
				RPCURL:             getenv(legacySrcRPCURLEnvVar),
				EndpointAddress:    getenv(legacySrcEndpointEnvVar),
				DisableDestination: true,
			},
			LegacyDestinationNetwork: {
				RPCURL:          getenv(legacyDstRPCURLEnvVar),
				EndpointAddress: getenv(legacyDstEndpointEnvVar),
				PrivateKey:      getenv(legacyDstKeyEnvVar),
				DisableSource:   true,
			},
		},
	}

	if v := getenv(legacyDelayEnvVar); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", legacyDelayEnvVar, err)
		}
		cfg.PollInterval = (time.Duration(ms) * time.Millisecond).String()
	}
	if v := getenv(legacyStartBlockEnvVar); v != "" {
		block, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", legacyStartBlockEnvVar, err)
		}
		cfg.StartBlock = block
	}

	return cfg, nil
}
