package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// StakingPoolABI is the subset of the pool contract the client reads,
// listens to and calls.
const StakingPoolABI = `[
  {
    "type": "function",
    "name": "getOperators",
    "inputs": [],
    "outputs": [{ "name": "", "type": "uint256[]", "internalType": "uint256[]" }],
    "stateMutability": "view"
  },
  {
    "type": "function",
    "name": "getValidators",
    "inputs": [],
    "outputs": [{ "name": "", "type": "bytes[]", "internalType": "bytes[]" }],
    "stateMutability": "view"
  },
  {
    "type": "function",
    "name": "updateOperators",
    "inputs": [{ "name": "operatorIds", "type": "uint256[]", "internalType": "uint256[]" }],
    "outputs": [],
    "stateMutability": "nonpayable"
  },
  {
    "type": "function",
    "name": "updateBeaconRewards",
    "inputs": [{ "name": "amount", "type": "uint256", "internalType": "uint256" }],
    "outputs": [],
    "stateMutability": "nonpayable"
  },
  {
    "type": "function",
    "name": "depositShares",
    "inputs": [
      { "name": "pubkey", "type": "bytes", "internalType": "bytes" },
      { "name": "operatorIds", "type": "uint256[]", "internalType": "uint256[]" },
      { "name": "sharesPublicKeys", "type": "bytes[]", "internalType": "bytes[]" },
      { "name": "sharesEncrypted", "type": "bytes[]", "internalType": "bytes[]" },
      { "name": "amount", "type": "uint256", "internalType": "uint256" }
    ],
    "outputs": [],
    "stateMutability": "nonpayable"
  },
  {
    "type": "function",
    "name": "depositValidator",
    "inputs": [
      { "name": "pubkey", "type": "bytes", "internalType": "bytes" },
      { "name": "withdrawalCredentials", "type": "bytes", "internalType": "bytes" },
      { "name": "signature", "type": "bytes", "internalType": "bytes" },
      { "name": "depositDataRoot", "type": "bytes32", "internalType": "bytes32" }
    ],
    "outputs": [],
    "stateMutability": "nonpayable"
  },
  {
    "type": "event",
    "name": "PubKeyDeposited",
    "inputs": [
      { "name": "depositor", "type": "address", "indexed": true, "internalType": "address" },
      { "name": "amount", "type": "uint256", "indexed": false, "internalType": "uint256" },
      { "name": "pubkey", "type": "bytes", "indexed": false, "internalType": "bytes" }
    ],
    "anonymous": false
  }
]`

// ParseABI parses a contract ABI; an empty string selects StakingPoolABI.
func ParseABI(raw string) (abi.ABI, error) {
	if strings.TrimSpace(raw) == "" {
		raw = StakingPoolABI
	}
	return abi.JSON(strings.NewReader(raw))
}
