package executor

import (
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
)

const (
	testEndpoint = "0x1a44076050125825900e736c501f859c50fE728c"
	testExecutor = "0x31CAe3B7fB82d847621859fb1585353c5720660D"
)

func validNetwork() *NetworkConfig {
	return &NetworkConfig{RPCURL: "http://localhost:8545", EndpointAddress: testEndpoint}
}

func TestConfiguration_Validate(t *testing.T) {
	negative := int64(-5)
	cases := []struct {
		name            string
		config          Configuration
		wantErr         bool
		wantErrContains string
	}{
		{
			name:   "valid_single_network",
			config: Configuration{Networks: map[string]*NetworkConfig{"sepolia": validNetwork()}},
		},
		{
			name: "valid_with_executor_address_and_monitoring",
			config: Configuration{
				Networks: map[string]*NetworkConfig{
					"sepolia": {RPCURL: "http://a", EndpointAddress: testEndpoint, ExecutorAddress: testExecutor},
				},
				Monitoring: MonitoringConfig{Enabled: true, ListenAddress: ":9090"},
			},
		},
		{
			name:            "no_networks_fails",
			config:          Configuration{},
			wantErr:         true,
			wantErrContains: "no networks configured",
		},
		{
			name: "negative_start_block_fails",
			config: Configuration{
				StartBlock: -1,
				Networks:   map[string]*NetworkConfig{"sepolia": validNetwork()},
			},
			wantErr:         true,
			wantErrContains: "start_block must not be negative",
		},
		{
			name: "missing_rpc_url_fails",
			config: Configuration{
				Networks: map[string]*NetworkConfig{"sepolia": {EndpointAddress: testEndpoint}},
			},
			wantErr:         true,
			wantErrContains: "network sepolia: rpc_url must be set",
		},
		{
			name: "invalid_endpoint_fails",
			config: Configuration{
				Networks: map[string]*NetworkConfig{"sepolia": {RPCURL: "http://a", EndpointAddress: "0x1234"}},
			},
			wantErr:         true,
			wantErrContains: "endpoint_address \"0x1234\" is not a valid address",
		},
		{
			name: "invalid_executor_address_fails",
			config: Configuration{
				Networks: map[string]*NetworkConfig{
					"sepolia": {RPCURL: "http://a", EndpointAddress: testEndpoint, ExecutorAddress: "executor"},
				},
			},
			wantErr:         true,
			wantErrContains: "executor_address",
		},
		{
			name: "negative_network_start_block_fails",
			config: Configuration{
				Networks: map[string]*NetworkConfig{
					"sepolia": {RPCURL: "http://a", EndpointAddress: testEndpoint, StartBlock: &negative},
				},
			},
			wantErr:         true,
			wantErrContains: "start_block must not be negative, got -5",
		},
		{
			name: "both_sides_disabled_fails",
			config: Configuration{
				Networks: map[string]*NetworkConfig{
					"sepolia": {RPCURL: "http://a", EndpointAddress: testEndpoint, DisableSource: true, DisableDestination: true},
				},
			},
			wantErr:         true,
			wantErrContains: "both sides are disabled",
		},
		{
			name: "empty_network_section_fails",
			config: Configuration{
				Networks: map[string]*NetworkConfig{"sepolia": nil},
			},
			wantErr:         true,
			wantErrContains: "empty network section",
		},
		{
			name: "monitoring_without_listen_address_fails",
			config: Configuration{
				Networks:   map[string]*NetworkConfig{"sepolia": validNetwork()},
				Monitoring: MonitoringConfig{Enabled: true},
			},
			wantErr:         true,
			wantErrContains: "ListenAddress is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()

			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErrContains)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfiguration_Defaults(t *testing.T) {
	var cfg Configuration
	require.Equal(t, 10*time.Second, cfg.GetPollInterval())
	require.Equal(t, 10*time.Second, cfg.GetStartupDelay())
	require.Equal(t, 30*time.Second, cfg.GetShutdownTimeout())
	require.Equal(t, time.Hour, cfg.GetVerifiedDedupeWindow())
	require.Equal(t, 2*time.Minute, cfg.GetReceiptTimeout())
	require.Equal(t, uint(3), cfg.GetFeeReceiptRetries())

	cfg = Configuration{
		PollInterval:         "2s",
		StartupDelay:         "0s",
		ShutdownTimeout:      "1m",
		VerifiedDedupeWindow: "10m",
		ReceiptTimeout:       "30s",
		FeeReceiptRetries:    ptr(uint(7)),
	}
	require.Equal(t, 2*time.Second, cfg.GetPollInterval())
	require.Equal(t, time.Duration(0), cfg.GetStartupDelay())
	require.Equal(t, time.Minute, cfg.GetShutdownTimeout())
	require.Equal(t, 10*time.Minute, cfg.GetVerifiedDedupeWindow())
	require.Equal(t, 30*time.Second, cfg.GetReceiptTimeout())
	require.Equal(t, uint(7), cfg.GetFeeReceiptRetries())

	cfg.PollInterval = "soon"
	require.Equal(t, 10*time.Second, cfg.GetPollInterval())

	// An explicit zero is a single lookup, not the default.
	cfg.FeeReceiptRetries = ptr(uint(0))
	require.Equal(t, uint(0), cfg.GetFeeReceiptRetries())
}

func ptr[T any](v T) *T {
	return &v
}

func TestConfiguration_DecodeTOML(t *testing.T) {
	const raw = `
poll_interval = "5s"
start_block = 100
max_block_range = 2000
max_inflight_submissions = 16
submission_max_retries = 2
fee_receipt_retries = 0

[Monitoring]
Enabled = true
ListenAddress = "127.0.0.1:9090"

[networks.sepolia]
rpc_url = "http://localhost:8545"
endpoint_address = "0x1a44076050125825900e736c501f859c50fE728c"
start_block = 250

[networks.arbitrum-sepolia]
rpc_url = "http://localhost:8546"
endpoint_address = "0x1a44076050125825900e736c501f859c50fE728c"
disable_destination = true
`
	var cfg Configuration
	_, err := toml.Decode(raw, &cfg)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, []string{"arbitrum-sepolia", "sepolia"}, cfg.NetworkNames())
	require.Equal(t, 5*time.Second, cfg.GetPollInterval())
	require.Equal(t, uint64(2000), cfg.MaxBlockRange)
	require.Equal(t, 16, cfg.MaxInflightSubmissions)
	require.Equal(t, uint(0), cfg.GetFeeReceiptRetries())
	require.Equal(t, uint(2), cfg.SubmissionMaxRetries)
	require.Equal(t, int64(250), cfg.GetStartBlock("sepolia"))
	require.Equal(t, int64(100), cfg.GetStartBlock("arbitrum-sepolia"))
	require.True(t, cfg.Networks["arbitrum-sepolia"].DisableDestination)
	require.True(t, cfg.Monitoring.Enabled)
}

func TestConfiguration_ResolvePrivateKey(t *testing.T) {
	cfg := Configuration{Networks: map[string]*NetworkConfig{
		"arbitrum-sepolia": {PrivateKey: "0xfile"},
	}}

	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	require.Equal(t, "file", cfg.ResolvePrivateKey("arbitrum-sepolia", getenv))
	require.Empty(t, cfg.ResolvePrivateKey("unknown", getenv))

	env[PrivateKeyEnvVar] = "0xshared"
	require.Equal(t, "shared", cfg.ResolvePrivateKey("arbitrum-sepolia", getenv))
	require.Equal(t, "shared", cfg.ResolvePrivateKey("unknown", getenv))

	env["EXECUTOR_ARBITRUM_SEPOLIA_PRIVATE_KEY"] = "network"
	require.Equal(t, "network", cfg.ResolvePrivateKey("arbitrum-sepolia", getenv))
}

func TestNetworkPrivateKeyEnvVar(t *testing.T) {
	require.Equal(t, "EXECUTOR_ARBITRUM_SEPOLIA_PRIVATE_KEY", NetworkPrivateKeyEnvVar("arbitrum-sepolia"))
	require.Equal(t, "EXECUTOR_BASE_MAINNET_PRIVATE_KEY", NetworkPrivateKeyEnvVar("base.mainnet"))
}

func TestLoadLegacyEnvConfig(t *testing.T) {
	env := map[string]string{
		"SRC_RPC_URL":                   "http://src:8545",
		"SRC_ENDPOINT_CONTRACT_ADDRESS": testEndpoint,
		"DST_RPC_URL":                   "http://dst:8545",
		"DST_ENDPOINT_CONTRACT_ADDRESS": testEndpoint,
		"DST_PRIVATE_KEY":               "0xabc",
		"DELAY":                         "1500",
		"START_BLOCK":                   "42",
	}
	getenv := func(k string) string { return env[k] }

	require.True(t, HasLegacyEnv(getenv))
	cfg, err := LoadLegacyEnvConfig(getenv)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	src := cfg.Networks[LegacySourceNetwork]
	require.Equal(t, "http://src:8545", src.RPCURL)
	require.True(t, src.DisableDestination)
	require.False(t, src.DisableSource)

	dst := cfg.Networks[LegacyDestinationNetwork]
	require.True(t, dst.DisableSource)
	require.Equal(t, "abc", cfg.ResolvePrivateKey(LegacyDestinationNetwork, func(string) string { return "" }))

	require.Equal(t, 1500*time.Millisecond, cfg.GetPollInterval())
	require.Equal(t, 10*time.Second, cfg.GetStartupDelay())
	require.Equal(t, int64(42), cfg.GetStartBlock(LegacySourceNetwork))
}

func TestLoadLegacyEnvConfig_InvalidNumbers(t *testing.T) {
	env := map[string]string{"SRC_RPC_URL": "a", "DST_RPC_URL": "b", "DELAY": "soon"}
	_, err := LoadLegacyEnvConfig(func(k string) string { return env[k] })
	require.ErrorContains(t, err, "invalid DELAY")

	env = map[string]string{"SRC_RPC_URL": "a", "DST_RPC_URL": "b", "START_BLOCK": "-"}
	_, err = LoadLegacyEnvConfig(func(k string) string { return env[k] })
	require.ErrorContains(t, err, "invalid START_BLOCK")

	require.False(t, HasLegacyEnv(func(string) string { return "" }))
}
