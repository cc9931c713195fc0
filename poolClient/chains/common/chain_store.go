package common

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pushchain/push-pool-client/poolClient/db"
	"github.com/pushchain/push-pool-client/poolClient/store"
)

// ChainStore provides database operations for the sync cursor, reconciled
// events and submitted commands of one contract
type ChainStore struct {
	database        *db.DB
	contractAddress string
}

// NewChainStore creates a new chain store
func NewChainStore(database *db.DB, contractAddress string) *ChainStore {
	return &ChainStore{
		database:        database,
		contractAddress: contractAddress,
	}
}

// ContractAddress returns the contract this store is scoped to
func (cs *ChainStore) ContractAddress() string {
	return cs.contractAddress
}

// GetCursor returns the last reconciled block height for the contract.
// Creates a new entry with height 0 if it doesn't exist
func (cs *ChainStore) GetCursor() (uint64, error) {
	if cs.database == nil {
		return 0, fmt.Errorf("database is nil")
	}

	var state store.ChainState
	result := cs.database.Client().Where("contract_address = ?", cs.contractAddress).First(&state)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			state = store.ChainState{ContractAddress: cs.contractAddress}
			if err := cs.database.Client().Create(&state).Error; err != nil {
				return 0, fmt.Errorf("failed to create chain state: %w", err)
			}
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get cursor: %w", result.Error)
	}

	return state.LastBlock, nil
}

// AdvanceCursor moves the cursor forward. Lower heights are ignored
func (cs *ChainStore) AdvanceCursor(blockHeight uint64) error {
	return cs.setCursor(blockHeight, false)
}

// RewindCursor sets the cursor unconditionally; used after a reorg
func (cs *ChainStore) RewindCursor(blockHeight uint64) error {
	return cs.setCursor(blockHeight, true)
}

func (cs *ChainStore) setCursor(blockHeight uint64, force bool) error {
	if cs.database == nil {
		return fmt.Errorf("database is nil")
	}

	var state store.ChainState
	result := cs.database.Client().Where("contract_address = ?", cs.contractAddress).First(&state)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			state = store.ChainState{
				ContractAddress: cs.contractAddress,
				LastBlock:       blockHeight,
			}
			if err := cs.database.Client().Create(&state).Error; err != nil {
				return fmt.Errorf("failed to create chain state: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to query chain state: %w", result.Error)
	}

	if force || blockHeight > state.LastBlock {
		state.LastBlock = blockHeight
		if err := cs.database.Client().Save(&state).Error; err != nil {
			return fmt.Errorf("failed to update cursor: %w", err)
		}
	}

	return nil
}

// InsertEventIfNotExists inserts an event if its identity is not stored yet.
// Returns (true, nil) if a new event was inserted, (false, nil) if it already existed,
// or (false, error) if insertion failed
func (cs *ChainStore) InsertEventIfNotExists(event *store.Event) (bool, error) {
	if cs.database == nil {
		return false, fmt.Errorf("database is nil")
	}
	if event == nil {
		return false, fmt.Errorf("event is nil")
	}

	event.ContractAddress = cs.contractAddress
	res := cs.database.Client().
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create event: %w", res.Error)
	}

	return res.RowsAffected > 0, nil
}

// InsertEvents stores a batch in one transaction and returns how many were new
func (cs *ChainStore) InsertEvents(events []store.Event) (int, error) {
	if cs.database == nil {
		return 0, fmt.Errorf("database is nil")
	}
	if len(events) == 0 {
		return 0, nil
	}

	inserted := 0
	err := cs.database.Transaction(func(tx *gorm.DB) error {
		for i := range events {
			events[i].ContractAddress = cs.contractAddress
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&events[i])
			if res.Error != nil {
				return res.Error
			}
			inserted += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert events: %w", err)
	}

	return inserted, nil
}

// LoadEvents returns the persisted events of a type in ledger order
func (cs *ChainStore) LoadEvents(eventType string) ([]store.Event, error) {
	if cs.database == nil {
		return nil, fmt.Errorf("database is nil")
	}

	var events []store.Event
	if err := cs.database.Client().
		Where("contract_address = ? AND event_type = ?", cs.contractAddress, eventType).
		Order("block_height ASC").
		Order("log_index ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	return events, nil
}

// DeleteEvents removes every persisted event of the contract
func (cs *ChainStore) DeleteEvents() (int64, error) {
	if cs.database == nil {
		return 0, fmt.Errorf("database is nil")
	}

	res := cs.database.Client().
		Unscoped().
		Where("contract_address = ?", cs.contractAddress).
		Delete(&store.Event{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete events: %w", res.Error)
	}

	return res.RowsAffected, nil
}

// DeleteEventsBefore deletes events created before the given time whose
// height is at most maxHeight
func (cs *ChainStore) DeleteEventsBefore(createdBefore time.Time, maxHeight uint64) (int64, error) {
	if cs.database == nil {
		return 0, fmt.Errorf("database is nil")
	}

	res := cs.database.Client().
		Unscoped().
		Where("contract_address = ? AND created_at < ? AND block_height <= ?",
			cs.contractAddress, createdBefore, maxHeight).
		Delete(&store.Event{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", res.Error)
	}

	return res.RowsAffected, nil
}

// InsertCommand stores a newly submitted command
func (cs *ChainStore) InsertCommand(cmd *store.Command) error {
	if cs.database == nil {
		return fmt.Errorf("database is nil")
	}
	if cmd == nil {
		return fmt.Errorf("command is nil")
	}

	if err := cs.database.Client().Create(cmd).Error; err != nil {
		return fmt.Errorf("failed to create command: %w", err)
	}
	return nil
}

// GetCommand fetches a command by its client reference
func (cs *ChainStore) GetCommand(ref string) (*store.Command, error) {
	if cs.database == nil {
		return nil, fmt.Errorf("database is nil")
	}

	var cmd store.Command
	if err := cs.database.Client().Where("ref = ?", ref).First(&cmd).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get command: %w", err)
	}
	return &cmd, nil
}

// GetPendingCommands fetches submitted commands that have no outcome yet,
// ordered by creation time
func (cs *ChainStore) GetPendingCommands(limit int) ([]store.Command, error) {
	if cs.database == nil {
		return nil, fmt.Errorf("database is nil")
	}

	var cmds []store.Command
	if err := cs.database.Client().
		Where("status = ?", store.CommandStatusSubmitted).
		Order("created_at ASC").
		Limit(limit).
		Find(&cmds).Error; err != nil {
		return nil, fmt.Errorf("failed to query pending commands: %w", err)
	}

	return cmds, nil
}

// UpdateCommandStatus moves a command out of SUBMITTED
func (cs *ChainStore) UpdateCommandStatus(ref, status string, blockHeight uint64, errorMsg string) (int64, error) {
	if cs.database == nil {
		return 0, fmt.Errorf("database is nil")
	}

	res := cs.database.Client().
		Model(&store.Command{}).
		Where("ref = ? AND status = ?", ref, store.CommandStatusSubmitted).
		Updates(map[string]any{
			"status":       status,
			"block_height": blockHeight,
			"error_msg":    errorMsg,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update command status: %w", res.Error)
	}

	return res.RowsAffected, nil
}
