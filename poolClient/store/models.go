// Package store contains GORM-backed SQLite models used by the pool client.
//
// Database Structure (one database file per watched contract):
//
//	databases/
//	└── {contract_address}.db
//	    ├── chain_states
//	    ├── events
//	    └── commands
package store

import (
	"gorm.io/gorm"
)

// ChainState tracks the sync cursor for a contract.
type ChainState struct {
	gorm.Model
	ContractAddress string `gorm:"uniqueIndex;not null"`
	LastBlock       uint64 // Last block whose events were reconciled
}

// Event is a persisted ledger event. Identity is (block, log index, type)
// within a contract.
type Event struct {
	gorm.Model
	ContractAddress string `gorm:"uniqueIndex:idx_event_identity;not null"`
	BlockHeight     uint64 `gorm:"uniqueIndex:idx_event_identity;index;not null"`
	LogIndex        uint   `gorm:"uniqueIndex:idx_event_identity;not null"`
	EventType       string `gorm:"uniqueIndex:idx_event_identity;not null"`
	BlockHash       string
	TxHash          string `gorm:"index"`
	Payload         []byte // JSON-encoded ordered payload fields
}

// Command status values.
const (
	CommandStatusSubmitted = "SUBMITTED"
	CommandStatusConfirmed = "CONFIRMED"
	CommandStatusFailed    = "FAILED"
)

// Command tracks a state-changing request submitted to the contract.
type Command struct {
	gorm.Model
	Ref         string `gorm:"uniqueIndex;not null"` // Client-side reference (uuid)
	TargetSlot  string `gorm:"not null"`
	Method      string `gorm:"not null"`
	Parameters  []byte // JSON-encoded raw parameters as received
	TxHash      string `gorm:"index"`
	Status      string `gorm:"index;not null"` // SUBMITTED, CONFIRMED, FAILED
	BlockHeight uint64 // Inclusion block once confirmed
	ErrorMsg    string `gorm:"type:text"`
}
