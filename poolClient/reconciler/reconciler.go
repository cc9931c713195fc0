package reconciler

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

// Reconciler owns the view of one event type. Writes are serialized; reads
// hand out the current immutable View.
type Reconciler struct {
	eventType string
	tolerance uint64
	logger    zerolog.Logger

	mu   sync.Mutex
	view View
}

// New creates a reconciler with an empty view.
func New(eventType string, tolerance uint64, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		eventType: eventType,
		tolerance: tolerance,
		logger: logger.With().
			Str("component", "reconciler").
			Str("event_type", eventType).
			Logger(),
	}
}

// EventType returns the event type this reconciler tracks.
func (r *Reconciler) EventType() string { return r.eventType }

// Apply merges a batch into the view and returns how many events were new.
// If ctx is already done the batch is discarded without touching the view.
func (r *Reconciler) Apply(ctx context.Context, batch []ledger.LedgerEvent) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	before := r.view.Len()
	next, err := Merge(r.view, batch, r.tolerance)
	if err != nil {
		r.logger.Warn().Err(err).
			Int("batch_size", len(batch)).
			Uint64("view_head", r.view.MaxHeight()).
			Msg("batch rejected")
		return 0, err
	}
	r.view = next

	added := next.Len() - before
	if added > 0 {
		r.logger.Debug().
			Int("added", added).
			Int("view_size", next.Len()).
			Uint64("view_head", next.MaxHeight()).
			Msg("merged events")
	}
	return added, nil
}

// View returns the current view.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Len returns the current view size.
func (r *Reconciler) Len() int {
	return r.View().Len()
}

// Reset drops every event; used after a reorg before a full resync.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Warn().Int("dropped", r.view.Len()).Msg("view reset")
	r.view = View{}
}
