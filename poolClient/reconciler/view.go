// Package reconciler merges overlapping batches of ledger events into one
// ordered, deduplicated read model.
package reconciler

import (
	"fmt"
	"sort"

	"github.com/pushchain/push-pool-client/poolClient/errors"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

// View is an immutable ordered sequence of events with unique identities.
// The zero value is an empty view.
type View struct {
	events []ledger.LedgerEvent
	index  map[ledger.EventID]int
}

// NewView builds a view from an arbitrary batch, as Merge into an empty view.
func NewView(events ...ledger.LedgerEvent) (View, error) {
	return Merge(View{}, events, 0)
}

// Len returns the number of events in the view.
func (v View) Len() int { return len(v.events) }

// Events returns a copy of the events in order.
func (v View) Events() []ledger.LedgerEvent {
	return append([]ledger.LedgerEvent(nil), v.events...)
}

// IDs returns the identities in order.
func (v View) IDs() []ledger.EventID {
	ids := make([]ledger.EventID, len(v.events))
	for i, ev := range v.events {
		ids[i] = ev.ID()
	}
	return ids
}

// Contains reports whether an event with this identity is in the view.
func (v View) Contains(id ledger.EventID) bool {
	_, ok := v.index[id]
	return ok
}

// MaxHeight returns the highest block height in the view, or 0 when empty.
func (v View) MaxHeight() uint64 {
	if len(v.events) == 0 {
		return 0
	}
	return v.events[len(v.events)-1].BlockHeight
}

// Merge inserts the events of batch that are not yet in v and returns the
// resulting view. It is all-or-nothing: on error v is returned unchanged.
//
// A reorg is reported when a new event lands more than tolerance blocks
// below the view's highest height, or when an already-seen identity comes
// back with a different block hash.
func Merge(v View, batch []ledger.LedgerEvent, tolerance uint64) (View, error) {
	if len(batch) == 0 {
		return v, nil
	}

	maxHeight := v.MaxHeight()
	fresh := make(map[ledger.EventID]ledger.LedgerEvent, len(batch))

	for _, ev := range batch {
		id := ev.ID()

		if pos, ok := v.index[id]; ok {
			if hashMismatch(v.events[pos].BlockHash, ev.BlockHash) {
				return v, reorgError(id, fmt.Sprintf("block hash changed from %s to %s",
					v.events[pos].BlockHash, ev.BlockHash))
			}
			continue
		}

		if prev, ok := fresh[id]; ok {
			if hashMismatch(prev.BlockHash, ev.BlockHash) {
				return v, reorgError(id, "batch carries the same event with two block hashes")
			}
			continue
		}

		if v.Len() > 0 && maxHeight > tolerance && ev.BlockHeight < maxHeight-tolerance {
			return v, reorgError(id, fmt.Sprintf("new event at height %d is more than %d blocks below view head %d",
				ev.BlockHeight, tolerance, maxHeight))
		}

		fresh[id] = ev
	}

	if len(fresh) == 0 {
		return v, nil
	}

	added := make([]ledger.LedgerEvent, 0, len(fresh))
	for _, ev := range fresh {
		added = append(added, ev)
	}
	sort.Slice(added, func(i, j int) bool { return added[i].ID().Less(added[j].ID()) })

	merged := make([]ledger.LedgerEvent, 0, len(v.events)+len(added))
	i, j := 0, 0
	for i < len(v.events) && j < len(added) {
		if v.events[i].ID().Less(added[j].ID()) {
			merged = append(merged, v.events[i])
			i++
		} else {
			merged = append(merged, added[j])
			j++
		}
	}
	merged = append(merged, v.events[i:]...)
	merged = append(merged, added[j:]...)

	index := make(map[ledger.EventID]int, len(merged))
	for pos, ev := range merged {
		index[ev.ID()] = pos
	}

	return View{events: merged, index: index}, nil
}

func hashMismatch(a, b string) bool {
	return a != "" && b != "" && a != b
}

func reorgError(id ledger.EventID, detail string) error {
	return errors.NewReorgError("", fmt.Sprintf("reorg detected at %s: %s", id, detail)).
		WithContext("event", id.String())
}
