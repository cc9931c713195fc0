package constant

import "os"

// <NodeDir>/                    (e.g., /home/pool/.ppool)
// └── config/
//	└── ppool_config.json
// └── databases/
//	└── <contract_address>.db

const (
	NodeDir = ".ppool"

	ConfigSubdir   = "config"
	ConfigFileName = "ppool_config.json"

	DatabasesSubdir = "databases"

	// EnvPrefix is the prefix for environment overrides (PPOOL_RPC_URLS, ...).
	EnvPrefix = "PPOOL"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir

// StakingPool slot, event and command names exposed by the pool contract.
const (
	SlotOperators  = "getOperators"
	SlotValidators = "getValidators"

	EventPubKeyDeposited = "PubKeyDeposited"

	// DefaultEventLookbackBlocks matches the look-back window the pool
	// manager view has always subscribed with.
	DefaultEventLookbackBlocks = 5

	DefaultReorgToleranceBlocks = 12
)
