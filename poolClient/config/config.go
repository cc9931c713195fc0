package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/pushchain/push-pool-client/poolClient/constant"
)

//go:embed default_config.json
var defaultConfigJSON []byte

// Validate checks the config and fills in defaults for unset fields.
func Validate(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.ChainID == "" {
		cfg.ChainID = "eip155:31337"
	}
	if _, err := cfg.EVMChainID(); err != nil {
		return err
	}

	if len(cfg.RPCURLs) == 0 {
		cfg.RPCURLs = []string{"http://localhost:8545"}
	}
	if cfg.RPCRequestsPerSecond < 0 {
		return fmt.Errorf("rpc_requests_per_second must not be negative")
	}

	if cfg.ContractAddress != "" && !ethcommon.IsHexAddress(cfg.ContractAddress) {
		return fmt.Errorf("contract_address %q is not a valid hex address", cfg.ContractAddress)
	}

	// Set defaults for the read model
	if len(cfg.Slots) == 0 {
		cfg.Slots = []string{constant.SlotOperators, constant.SlotValidators}
	}
	if len(cfg.EventTypes) == 0 {
		cfg.EventTypes = []string{constant.EventPubKeyDeposited}
	}
	if cfg.EventLookbackBlocks == nil {
		lookback := uint64(constant.DefaultEventLookbackBlocks)
		cfg.EventLookbackBlocks = &lookback
	}
	if cfg.ReorgToleranceBlocks == nil {
		tolerance := uint64(constant.DefaultReorgToleranceBlocks)
		cfg.ReorgToleranceBlocks = &tolerance
	}
	// A tolerance below the look-back would flag late-but-legitimate events.
	if cfg.ReorgTolerance() < cfg.EventLookback() {
		return fmt.Errorf("reorg_tolerance_blocks (%d) must be >= event_lookback_blocks (%d)",
			cfg.ReorgTolerance(), cfg.EventLookback())
	}
	if cfg.EventStartFrom != nil && *cfg.EventStartFrom < -1 {
		return fmt.Errorf("event_start_from must be -1 or a block number")
	}
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = 9000
	}
	if cfg.EventPollingIntervalSeconds == 0 {
		cfg.EventPollingIntervalSeconds = 5
	}
	if cfg.EventPollingIntervalSeconds < 0 {
		return fmt.Errorf("event_polling_interval_seconds must be positive")
	}
	if cfg.OverlapPolicy == "" {
		cfg.OverlapPolicy = OverlapSkip
	}
	if cfg.OverlapPolicy != OverlapSkip && cfg.OverlapPolicy != OverlapAbandon {
		return fmt.Errorf("overlap policy must be 'skip' or 'abandon'")
	}

	// Set defaults for housekeeping
	if cfg.EventRetentionSeconds == 0 {
		cfg.EventRetentionSeconds = 7 * 24 * 3600
	}
	if cfg.CleanupIntervalSeconds == 0 {
		cfg.CleanupIntervalSeconds = 3600
	}

	// Set defaults for query server
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = 8080
	}

	if cfg.InitialFetchRetries == 0 {
		cfg.InitialFetchRetries = 5
	}

	return nil
}

// EVMChainID returns the numeric chain id from a CAIP-2 "eip155:<id>" string.
func (c *Config) EVMChainID() (int64, error) {
	ns, ref, ok := strings.Cut(c.ChainID, ":")
	if !ok || ns != "eip155" {
		return 0, fmt.Errorf("chain_id %q must have the form eip155:<id>", c.ChainID)
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("chain_id %q has an invalid numeric reference", c.ChainID)
	}
	return id, nil
}

// Save writes the given config to <basePath>/config/ppool_config.json.
func Save(cfg *Config, basePath string) error {
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, constant.ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads and returns the config from <basePath>/config/ppool_config.json.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}
