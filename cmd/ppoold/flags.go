package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushchain/push-pool-client/poolClient/config"
	"github.com/pushchain/push-pool-client/poolClient/constant"
)

// Override keys. Each is settable as --<key> or PPOOL_<KEY> with dashes
// turned into underscores.
const (
	flagHome            = "home"
	flagLogLevel        = "log-level"
	flagLogFormat       = "log-format"
	flagChainID         = "chain-id"
	flagRPCURLs         = "rpc-urls"
	flagContractAddress = "contract-address"
	flagSignerKey       = "signer-private-key"
	flagQueryPort       = "query-port"
	flagOverlapPolicy   = "overlap-policy"
	flagStartFrom       = "start-from"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(constant.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault(flagHome, constant.DefaultNodeHome)
	return v
}

func registerConfigFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()
	f.String(flagHome, constant.DefaultNodeHome, "Node home directory")
	f.Int(flagLogLevel, 1, "Log level (0=debug ... 5=panic)")
	f.String(flagLogFormat, "console", "Log format (json|console)")
	f.String(flagChainID, "", "CAIP-2 chain id, e.g. eip155:1")
	f.String(flagRPCURLs, "", "Comma separated JSON-RPC endpoints")
	f.String(flagContractAddress, "", "StakingPool contract address")
	f.String(flagSignerKey, "", "Hex secp256k1 key used to sign commands (prefer PPOOL_SIGNER_PRIVATE_KEY)")
	f.Int(flagQueryPort, 0, "Query server port")
	f.String(flagOverlapPolicy, "", "What a tick does while a cycle runs (skip|abandon)")
	f.Int64(flagStartFrom, -1, "First block for a full event sync (-1 = head - lookback)")

	_ = v.BindPFlags(f)
}

// homeDir returns the node home after flag and env overrides.
func homeDir(v *viper.Viper) string {
	if h := v.GetString(flagHome); h != "" {
		return h
	}
	return constant.DefaultNodeHome
}

// applyOverrides copies explicitly set flags and env vars onto cfg.
func applyOverrides(cfg *config.Config, v *viper.Viper) error {
	cfg.NodeHome = homeDir(v)

	if v.IsSet(flagLogLevel) {
		cfg.LogLevel = v.GetInt(flagLogLevel)
	}
	if v.IsSet(flagLogFormat) {
		cfg.LogFormat = v.GetString(flagLogFormat)
	}
	if v.IsSet(flagChainID) {
		cfg.ChainID = v.GetString(flagChainID)
	}
	if v.IsSet(flagRPCURLs) {
		urls := splitList(v.GetString(flagRPCURLs))
		if len(urls) == 0 {
			return fmt.Errorf("%s must list at least one endpoint", flagRPCURLs)
		}
		cfg.RPCURLs = urls
	}
	if v.IsSet(flagContractAddress) {
		cfg.ContractAddress = v.GetString(flagContractAddress)
	}
	if v.IsSet(flagSignerKey) {
		cfg.SignerPrivateKeyHex = v.GetString(flagSignerKey)
	}
	if v.IsSet(flagQueryPort) {
		cfg.QueryServerPort = v.GetInt(flagQueryPort)
	}
	if v.IsSet(flagOverlapPolicy) {
		cfg.OverlapPolicy = config.OverlapPolicy(v.GetString(flagOverlapPolicy))
	}
	if v.IsSet(flagStartFrom) {
		start := v.GetInt64(flagStartFrom)
		cfg.EventStartFrom = &start
	}
	return nil
}

// loadConfig reads the config file under the node home and applies overrides.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	loaded, err := config.Load(homeDir(v))
	if err != nil {
		return nil, fmt.Errorf("%w (run `ppoold init` first)", err)
	}
	cfg := &loaded
	if err := applyOverrides(cfg, v); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
