package api

import (
	"time"

	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

// QueryResponse represents the standard query response format
type QueryResponse struct {
	Data        interface{} `json:"data"`
	LastFetched time.Time   `json:"last_fetched"`
}

// EventsResponse is the body of GET /api/v1/events/{type}
type EventsResponse struct {
	EventType string               `json:"event_type"`
	Count     int                  `json:"count"`
	MaxHeight uint64               `json:"max_height"`
	Head      uint64               `json:"head"`
	Events    []ledger.LedgerEvent `json:"events"`
}

// CommandResponse is the body returned for a submitted or looked up command
type CommandResponse struct {
	Ref        string                `json:"ref"`
	TargetSlot string                `json:"target_slot,omitempty"`
	Method     string                `json:"method,omitempty"`
	Outcome    ledger.CommandOutcome `json:"outcome"`
	CreatedAt  *time.Time            `json:"created_at,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
