// Package ledger defines the data exchanged with the external ledger and the
// narrow port the rest of the client talks to it through.
package ledger

import (
	"fmt"
	"time"
)

// Field is one decoded, named value of an event payload.
type Field struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// EventID is the identity of a ledger event.
type EventID struct {
	BlockHeight     uint64 `json:"block_height"`
	SequenceInBlock uint   `json:"sequence_in_block"`
	EventType       string `json:"event_type"`
}

func (id EventID) String() string {
	return fmt.Sprintf("%s@%d:%d", id.EventType, id.BlockHeight, id.SequenceInBlock)
}

// Less orders identities by (block, sequence), falling back to the event
// type so the order stays total when two types share a position.
func (id EventID) Less(other EventID) bool {
	if id.BlockHeight != other.BlockHeight {
		return id.BlockHeight < other.BlockHeight
	}
	if id.SequenceInBlock != other.SequenceInBlock {
		return id.SequenceInBlock < other.SequenceInBlock
	}
	return id.EventType < other.EventType
}

// LedgerEvent is an immutable record emitted by the ledger.
type LedgerEvent struct {
	BlockHeight     uint64  `json:"block_height"`
	SequenceInBlock uint    `json:"sequence_in_block"`
	EventType       string  `json:"event_type"`
	Payload         []Field `json:"payload"`

	// BlockHash and TxHash are informational; BlockHash lets the reconciler
	// notice a replaced block at an already-seen identity.
	BlockHash string `json:"block_hash,omitempty"`
	TxHash    string `json:"tx_hash,omitempty"`
}

// ID returns the identity of the event.
func (e LedgerEvent) ID() EventID {
	return EventID{
		BlockHeight:     e.BlockHeight,
		SequenceInBlock: e.SequenceInBlock,
		EventType:       e.EventType,
	}
}

// Arg returns the payload value at position i, or nil.
func (e LedgerEvent) Arg(i int) any {
	if i < 0 || i >= len(e.Payload) {
		return nil
	}
	return e.Payload[i].Value
}

// Snapshot is the latest polled value of a named slot. A new snapshot
// replaces the previous one wholesale.
type Snapshot struct {
	SlotName   string    `json:"slot_name"`
	Values     []any     `json:"values"`
	AsOfHeight uint64    `json:"as_of_height"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// CommandRequest is the only inbound structure accepted from users.
type CommandRequest struct {
	TargetSlot string `json:"target_slot"`
	Parameters []any  `json:"parameters"`
}

// OutcomeStatus is the lifecycle stage of a submitted command.
type OutcomeStatus string

const (
	OutcomeSubmitted OutcomeStatus = "SUBMITTED"
	OutcomeConfirmed OutcomeStatus = "CONFIRMED"
	OutcomeFailed    OutcomeStatus = "FAILED"
)

// CommandOutcome is one of Submitted(requestID), Confirmed(blockHeight) or Failed(reason).
type CommandOutcome struct {
	Status      OutcomeStatus `json:"status"`
	RequestID   string        `json:"request_id,omitempty"`
	BlockHeight uint64        `json:"block_height,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

func Submitted(requestID string) CommandOutcome {
	return CommandOutcome{Status: OutcomeSubmitted, RequestID: requestID}
}

func Confirmed(blockHeight uint64) CommandOutcome {
	return CommandOutcome{Status: OutcomeConfirmed, BlockHeight: blockHeight}
}

func Failed(reason string) CommandOutcome {
	return CommandOutcome{Status: OutcomeFailed, Reason: reason}
}

// Receipt is what the ledger reports for an included command.
type Receipt struct {
	BlockHeight uint64
	Succeeded   bool
}
