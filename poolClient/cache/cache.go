package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

// Cache is a thread-safe store for the latest snapshot of each slot.
// A slot's snapshot is only ever replaced wholesale.
type Cache struct {
	mu         sync.RWMutex
	snapshots  map[string]ledger.Snapshot
	lastUpdate time.Time
	logger     zerolog.Logger
}

// New creates a new Cache instance.
func New(logger zerolog.Logger) *Cache {
	return &Cache{
		snapshots: make(map[string]ledger.Snapshot),
		logger:    logger.With().Str("component", "cache").Logger(),
	}
}

// LastUpdated returns the last time any snapshot was replaced.
func (c *Cache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// Put replaces the snapshot of snap.SlotName.
func (c *Cache) Put(snap ledger.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap.Values = append([]any(nil), snap.Values...)
	c.snapshots[snap.SlotName] = snap
	c.lastUpdate = time.Now()

	c.logger.Debug().
		Str("slot", snap.SlotName).
		Uint64("as_of_height", snap.AsOfHeight).
		Msg("snapshot replaced")
}

// Get returns a copy of a slot's snapshot.
func (c *Cache) Get(slot string) (ledger.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.snapshots[slot]
	if !ok {
		return ledger.Snapshot{}, false
	}
	snap.Values = append([]any(nil), snap.Values...)
	return snap, true
}

// All returns copies of every snapshot ordered by slot name.
func (c *Cache) All() []ledger.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ledger.Snapshot, 0, len(c.snapshots))
	for _, snap := range c.snapshots {
		snap.Values = append([]any(nil), snap.Values...)
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotName < out[j].SlotName })
	return out
}
