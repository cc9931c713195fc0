package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/push-pool-client/poolClient/constant"
)

func int64Ptr(v int64) *int64 { return &v }

func uint64Ptr(v uint64) *uint64 { return &v }

func TestValidate(t *testing.T) {
	testCases := []struct {
		name        string
		config      *Config
		expectError bool
		errorMsg    string
		validate    func(t *testing.T, cfg *Config)
	}{
		{
			name: "Valid config with all fields",
			config: &Config{
				LogLevel:                    2,
				LogFormat:                   "json",
				ChainID:                     "eip155:11155111",
				RPCURLs:                     []string{"https://rpc.example"},
				ContractAddress:             "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb7",
				EventLookbackBlocks:         uint64Ptr(5),
				ReorgToleranceBlocks:        uint64Ptr(20),
				EventPollingIntervalSeconds: 2,
				OverlapPolicy:               OverlapAbandon,
				QueryServerPort:             9000,
			},
		},
		{
			name:        "Invalid log level (negative)",
			config:      &Config{LogLevel: -1, LogFormat: "json"},
			expectError: true,
			errorMsg:    "log level must be between 0 and 5",
		},
		{
			name:        "Invalid log level (too high)",
			config:      &Config{LogLevel: 6, LogFormat: "json"},
			expectError: true,
			errorMsg:    "log level must be between 0 and 5",
		},
		{
			name:        "Invalid log format",
			config:      &Config{LogLevel: 2, LogFormat: "xml"},
			expectError: true,
			errorMsg:    "log format must be 'json' or 'console'",
		},
		{
			name:        "Invalid chain id",
			config:      &Config{LogFormat: "json", ChainID: "cosmos:push-1"},
			expectError: true,
			errorMsg:    "must have the form eip155:<id>",
		},
		{
			name:        "Invalid contract address",
			config:      &Config{LogFormat: "json", ContractAddress: "0x1234"},
			expectError: true,
			errorMsg:    "not a valid hex address",
		},
		{
			name: "Tolerance below look-back",
			config: &Config{
				LogFormat:            "json",
				EventLookbackBlocks:  uint64Ptr(10),
				ReorgToleranceBlocks: uint64Ptr(3),
			},
			expectError: true,
			errorMsg:    "reorg_tolerance_blocks (3) must be >= event_lookback_blocks (10)",
		},
		{
			name: "Explicit zero tolerance and look-back kept",
			config: &Config{
				LogFormat:            "json",
				EventLookbackBlocks:  uint64Ptr(0),
				ReorgToleranceBlocks: uint64Ptr(0),
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, uint64(0), cfg.EventLookback())
				assert.Equal(t, uint64(0), cfg.ReorgTolerance())
			},
		},
		{
			name:        "Zero tolerance with default look-back",
			config:      &Config{LogFormat: "json", ReorgToleranceBlocks: uint64Ptr(0)},
			expectError: true,
			errorMsg:    "reorg_tolerance_blocks (0) must be >= event_lookback_blocks (5)",
		},
		{
			name:        "Unknown overlap policy",
			config:      &Config{LogFormat: "json", OverlapPolicy: "queue"},
			expectError: true,
			errorMsg:    "overlap policy must be 'skip' or 'abandon'",
		},
		{
			name:        "Start block below -1",
			config:      &Config{LogFormat: "json", EventStartFrom: int64Ptr(-5)},
			expectError: true,
			errorMsg:    "event_start_from must be -1 or a block number",
		},
		{
			name:   "Config with defaults applied",
			config: &Config{LogLevel: 1, LogFormat: "console"},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "eip155:31337", cfg.ChainID)
				assert.Equal(t, []string{"http://localhost:8545"}, cfg.RPCURLs)
				assert.Equal(t, []string{constant.SlotOperators, constant.SlotValidators}, cfg.Slots)
				assert.Equal(t, []string{constant.EventPubKeyDeposited}, cfg.EventTypes)
				assert.Equal(t, uint64(5), cfg.EventLookback())
				assert.Equal(t, uint64(12), cfg.ReorgTolerance())
				assert.Equal(t, uint64(9000), cfg.MaxBlockRange)
				assert.Equal(t, 5*time.Second, cfg.PollingInterval())
				assert.Equal(t, OverlapSkip, cfg.OverlapPolicy)
				assert.Equal(t, 7*24*time.Hour, cfg.RetentionPeriod())
				assert.Equal(t, time.Hour, cfg.CleanupInterval())
				assert.Equal(t, 8080, cfg.QueryServerPort)
				assert.Equal(t, 5, cfg.InitialFetchRetries)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.config)
			if tc.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errorMsg)
				return
			}
			require.NoError(t, err)
			if tc.validate != nil {
				tc.validate(t, tc.config)
			}
		})
	}
}

func TestEVMChainID(t *testing.T) {
	cfg := &Config{ChainID: "eip155:97"}
	id, err := cfg.EVMChainID()
	require.NoError(t, err)
	assert.Equal(t, int64(97), id)

	cfg.ChainID = "eip155:-1"
	_, err = cfg.EVMChainID()
	assert.Error(t, err)
}

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, []string{"getOperators", "getValidators"}, cfg.Slots)
	assert.Equal(t, uint64(5), cfg.EventLookback())
	require.NotNil(t, cfg.EventStartFrom)
	assert.Equal(t, int64(-1), *cfg.EventStartFrom)
	require.NoError(t, Validate(cfg))
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	cfg := &Config{
		LogLevel:        0,
		LogFormat:       "json",
		ChainID:         "eip155:1",
		RPCURLs:         []string{"https://a.example", "https://b.example"},
		ContractAddress: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb7",
		EventStartFrom:  int64Ptr(1200),
	}
	require.NoError(t, Save(cfg, dir))
	assert.FileExists(t, filepath.Join(dir, constant.ConfigSubdir, constant.ConfigFileName))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.RPCURLs, loaded.RPCURLs)
	assert.Equal(t, cfg.ContractAddress, loaded.ContractAddress)
	require.NotNil(t, loaded.EventStartFrom)
	assert.Equal(t, int64(1200), *loaded.EventStartFrom)

	t.Run("invalid config is not written", func(t *testing.T) {
		other := t.TempDir()
		err := Save(&Config{LogFormat: "yaml"}, other)
		require.Error(t, err)
		_, statErr := os.Stat(filepath.Join(other, constant.ConfigSubdir, constant.ConfigFileName))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(t.TempDir())
		assert.ErrorContains(t, err, "failed to read config file")
	})
}
