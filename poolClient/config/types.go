package config

import (
	"time"

	"github.com/pushchain/push-pool-client/poolClient/constant"
)

// OverlapPolicy decides what happens when a poll tick fires while the
// previous cycle is still running.
type OverlapPolicy string

const (
	// OverlapSkip lets the in-flight cycle complete and drops the due tick.
	OverlapSkip OverlapPolicy = "skip"

	// OverlapAbandon cancels the in-flight cycle and discards its result.
	OverlapAbandon OverlapPolicy = "abandon"
)

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level"`   // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home"` // Node home directory (default: ~/.ppool)

	// Ledger connection
	ChainID              string   `json:"chain_id"`                // CAIP-2 chain id, e.g. eip155:1
	RPCURLs              []string `json:"rpc_urls"`                // JSON-RPC endpoints, used round-robin with failover
	RPCRequestsPerSecond float64  `json:"rpc_requests_per_second"` // Client-side RPC rate limit (0 = unlimited)
	ContractAddress      string   `json:"contract_address"`        // StakingPool contract address

	// Read model
	Slots                       []string      `json:"slots"`                          // Contract view methods polled into snapshots
	EventTypes                  []string      `json:"event_types"`                    // Contract events reconciled into views
	EventLookbackBlocks         *uint64       `json:"event_lookback_blocks"`          // Blocks re-scanned below head every cycle; unset = 5
	ReorgToleranceBlocks        *uint64       `json:"reorg_tolerance_blocks"`         // Depth below view head a new event may land; unset = 12
	EventStartFrom              *int64        `json:"event_start_from"`               // First block for a full sync; -1 or unset = head - lookback
	MaxBlockRange               uint64        `json:"max_block_range"`                // Max blocks per eth_getLogs call (default: 9000)
	EventPollingIntervalSeconds int           `json:"event_polling_interval_seconds"` // Poll cadence (default: 5)
	OverlapPolicy               OverlapPolicy `json:"overlap_policy"`                 // "skip" or "abandon" (default: skip)

	// Command submission
	SignerPrivateKeyHex string `json:"signer_private_key_hex"` // secp256k1 key supplied by the operator; empty = read only
	GasLimit            uint64 `json:"gas_limit"`              // 0 = estimate per call

	// Persistence housekeeping
	EventRetentionSeconds  int `json:"event_retention_seconds"`  // How long persisted events are kept (default: 7 days)
	CleanupIntervalSeconds int `json:"cleanup_interval_seconds"` // How often the cleaner runs (default: 3600)

	// Query Server Config
	QueryServerPort int `json:"query_server_port"` // Port for HTTP query server (default: 8080)

	// Startup
	InitialFetchRetries int `json:"initial_fetch_retries"` // Attempts to reach the ledger on start (default: 5)
}

// PollingInterval returns the poll cadence as a duration.
func (c *Config) PollingInterval() time.Duration {
	return time.Duration(c.EventPollingIntervalSeconds) * time.Second
}

// EventLookback returns the look-back window in blocks.
func (c *Config) EventLookback() uint64 {
	if c.EventLookbackBlocks == nil {
		return constant.DefaultEventLookbackBlocks
	}
	return *c.EventLookbackBlocks
}

// ReorgTolerance returns how far below the view head an event may land.
func (c *Config) ReorgTolerance() uint64 {
	if c.ReorgToleranceBlocks == nil {
		return constant.DefaultReorgToleranceBlocks
	}
	return *c.ReorgToleranceBlocks
}

// RetentionPeriod returns how long persisted events are kept.
func (c *Config) RetentionPeriod() time.Duration {
	return time.Duration(c.EventRetentionSeconds) * time.Second
}

// CleanupInterval returns how often the event cleaner runs.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}
