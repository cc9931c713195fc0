package poller

import (
	"encoding/json"
	"fmt"

	"github.com/pushchain/push-pool-client/poolClient/ledger"
	"github.com/pushchain/push-pool-client/poolClient/store"
)

func toStoreEvents(events []ledger.LedgerEvent) ([]store.Event, error) {
	out := make([]store.Event, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload of %s: %w", ev.ID(), err)
		}
		out = append(out, store.Event{
			BlockHeight: ev.BlockHeight,
			LogIndex:    ev.SequenceInBlock,
			EventType:   ev.EventType,
			BlockHash:   ev.BlockHash,
			TxHash:      ev.TxHash,
			Payload:     payload,
		})
	}
	return out, nil
}

func fromStoreEvents(rows []store.Event) ([]ledger.LedgerEvent, error) {
	out := make([]ledger.LedgerEvent, 0, len(rows))
	for _, row := range rows {
		var payload []ledger.Field
		if len(row.Payload) > 0 {
			if err := json.Unmarshal(row.Payload, &payload); err != nil {
				return nil, fmt.Errorf("failed to decode payload of %s@%d:%d: %w",
					row.EventType, row.BlockHeight, row.LogIndex, err)
			}
		}
		out = append(out, ledger.LedgerEvent{
			BlockHeight:     row.BlockHeight,
			SequenceInBlock: row.LogIndex,
			EventType:       row.EventType,
			Payload:         payload,
			BlockHash:       row.BlockHash,
			TxHash:          row.TxHash,
		})
	}
	return out, nil
}
