// Package reader polls contract slots into snapshots.
package reader

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pushchain/push-pool-client/poolClient/cache"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

// Reader reads slots through the ledger and keeps the latest snapshot of
// each. It never retries; a failed read leaves the previous snapshot.
type Reader struct {
	ledger ledger.Ledger
	cache  *cache.Cache
	logger zerolog.Logger
}

// New creates a reader backed by the given cache.
func New(l ledger.Ledger, c *cache.Cache, logger zerolog.Logger) *Reader {
	return &Reader{
		ledger: l,
		cache:  c,
		logger: logger.With().Str("component", "reader").Logger(),
	}
}

// ReadSlot reads one slot and replaces its snapshot on success.
func (r *Reader) ReadSlot(ctx context.Context, slot string, args ...any) (ledger.Snapshot, error) {
	snap, err := r.ledger.ReadSlot(ctx, slot, args...)
	if err != nil {
		r.logger.Warn().Err(err).Str("slot", slot).Msg("slot read failed, keeping previous snapshot")
		return ledger.Snapshot{}, err
	}
	r.cache.Put(snap)
	return snap, nil
}

// ReadAll reads every slot concurrently. Each slot is independent: all
// reads run to completion and the first error is returned.
func (r *Reader) ReadAll(ctx context.Context, slots []string) error {
	var g errgroup.Group
	for _, slot := range slots {
		g.Go(func() error {
			_, err := r.ReadSlot(ctx, slot)
			return err
		})
	}
	return g.Wait()
}

// Snapshot returns a copy of the latest snapshot of a slot.
func (r *Reader) Snapshot(slot string) (ledger.Snapshot, bool) {
	return r.cache.Get(slot)
}

// Snapshots returns copies of all snapshots.
func (r *Reader) Snapshots() []ledger.Snapshot {
	return r.cache.All()
}
