// Package poller drives the periodic read, subscribe and reconcile cycle.
package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	chaincommon "github.com/pushchain/push-pool-client/poolClient/chains/common"
	"github.com/pushchain/push-pool-client/poolClient/config"
	"github.com/pushchain/push-pool-client/poolClient/errors"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
	"github.com/pushchain/push-pool-client/poolClient/metrics"
	"github.com/pushchain/push-pool-client/poolClient/reader"
	"github.com/pushchain/push-pool-client/poolClient/reconciler"
)

// Driver runs poll cycles on a ticker. At most one cycle runs at a time;
// what happens to a tick that fires during a cycle is set by the overlap
// policy.
type Driver struct {
	ledger      ledger.Ledger
	reader      *reader.Reader
	chainStore  *chaincommon.ChainStore
	reconcilers map[string]*reconciler.Reconciler
	eventTypes  []string
	slots       []string
	lookback    uint64
	startFrom   *int64
	interval    time.Duration
	policy      config.OverlapPolicy
	metrics     *metrics.PoolMetrics
	logger      zerolog.Logger

	cursor atomic.Uint64
	synced atomic.Bool
	head   atomic.Uint64

	mu       sync.Mutex
	inFlight chan struct{}
	cancel   context.CancelFunc

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a driver. chainStore may be nil for a purely in-memory view.
func New(
	l ledger.Ledger,
	r *reader.Reader,
	chainStore *chaincommon.ChainStore,
	cfg *config.Config,
	m *metrics.PoolMetrics,
	logger zerolog.Logger,
) *Driver {
	log := logger.With().Str("component", "poller").Logger()

	recs := make(map[string]*reconciler.Reconciler, len(cfg.EventTypes))
	for _, et := range cfg.EventTypes {
		recs[et] = reconciler.New(et, cfg.ReorgTolerance(), logger)
	}

	interval := cfg.PollingInterval()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	policy := cfg.OverlapPolicy
	if policy == "" {
		policy = config.OverlapSkip
	}

	return &Driver{
		ledger:      l,
		reader:      r,
		chainStore:  chainStore,
		reconcilers: recs,
		eventTypes:  append([]string(nil), cfg.EventTypes...),
		slots:       append([]string(nil), cfg.Slots...),
		lookback:    cfg.EventLookback(),
		startFrom:   cfg.EventStartFrom,
		interval:    interval,
		policy:      policy,
		metrics:     m,
		logger:      log,
		stopCh:      make(chan struct{}),
	}
}

// EventTypes returns the reconciled event types.
func (d *Driver) EventTypes() []string {
	return append([]string(nil), d.eventTypes...)
}

// View returns the current view of an event type.
func (d *Driver) View(eventType string) (reconciler.View, bool) {
	rec, ok := d.reconcilers[eventType]
	if !ok {
		return reconciler.View{}, false
	}
	return rec.View(), true
}

// Head returns the last observed head height.
func (d *Driver) Head() uint64 { return d.head.Load() }

// Cursor returns the last fully reconciled block height.
func (d *Driver) Cursor() uint64 { return d.cursor.Load() }

// MaxViewHeight returns the highest height held by any view.
func (d *Driver) MaxViewHeight() uint64 {
	var highest uint64
	for _, rec := range d.reconcilers {
		if h := rec.View().MaxHeight(); h > highest {
			highest = h
		}
	}
	return highest
}

// Hydrate loads persisted events and the cursor into memory.
func (d *Driver) Hydrate(ctx context.Context) error {
	if d.chainStore == nil {
		return nil
	}

	cursor, err := d.chainStore.GetCursor()
	if err != nil {
		return errors.NewDatabaseError("", "failed to load cursor", err)
	}
	d.cursor.Store(cursor)
	d.synced.Store(cursor > 0)

	for _, et := range d.eventTypes {
		rows, err := d.chainStore.LoadEvents(et)
		if err != nil {
			return errors.NewDatabaseError("", "failed to load events", err)
		}
		events, err := fromStoreEvents(rows)
		if err != nil {
			return errors.NewDatabaseError("", "failed to decode stored events", err)
		}
		added, err := d.reconcilers[et].Apply(ctx, events)
		if err != nil {
			return err
		}
		d.metrics.RecordMerge(et, added, d.reconcilers[et].Len())
		d.logger.Info().
			Str("event_type", et).
			Int("events", added).
			Uint64("cursor", cursor).
			Msg("view hydrated from database")
	}
	return nil
}

// Start hydrates the views and begins polling. The first cycle runs immediately.
func (d *Driver) Start(ctx context.Context) error {
	if err := d.Hydrate(ctx); err != nil {
		return err
	}

	d.logger.Info().
		Dur("interval", d.interval).
		Str("overlap_policy", string(d.policy)).
		Strs("slots", d.slots).
		Strs("event_types", d.eventTypes).
		Msg("starting poller")

	d.wg.Add(1)
	go d.loop(ctx)
	return nil
}

// Stop stops the ticker, cancels an in-flight cycle and waits for it.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Driver) loop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("context cancelled, stopping poller")
			return
		case <-d.stopCh:
			d.logger.Info().Msg("stop signal received, stopping poller")
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick starts a cycle in the background, applying the overlap policy if
// the previous one is still running. It reports whether a cycle started.
func (d *Driver) Tick(ctx context.Context) bool {
	d.mu.Lock()
	if d.inFlight != nil {
		switch d.policy {
		case config.OverlapAbandon:
			prev, cancel := d.inFlight, d.cancel
			d.mu.Unlock()
			d.logger.Warn().Msg("previous cycle still running, abandoning it")
			cancel()
			<-prev
			d.mu.Lock()
		default:
			d.mu.Unlock()
			d.logger.Debug().Msg("previous cycle still running, skipping tick")
			d.metrics.ObserveCycle("skipped", 0)
			return false
		}
	}

	select {
	case <-d.stopCh:
		d.mu.Unlock()
		return false
	default:
	}

	cycleCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.inFlight, d.cancel = done, cancel
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(done)
		defer cancel()

		d.runCycle(cycleCtx)

		d.mu.Lock()
		if d.inFlight == done {
			d.inFlight, d.cancel = nil, nil
		}
		d.mu.Unlock()
	}()
	return true
}

// Wait blocks until the in-flight cycle, if any, has finished.
func (d *Driver) Wait() {
	d.mu.Lock()
	done := d.inFlight
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (d *Driver) runCycle(ctx context.Context) {
	start := time.Now()
	err := d.Cycle(ctx)
	duration := time.Since(start)

	switch {
	case err == nil:
		d.metrics.ObserveCycle("ok", duration)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		d.metrics.ObserveCycle("abandoned", duration)
		d.logger.Info().Dur("duration", duration).Msg("cycle abandoned before merge, results discarded")
	case errors.IsReorg(err):
		d.metrics.ObserveCycle("reorg", duration)
	default:
		d.metrics.ObserveCycle("error", duration)
		d.logger.Error().
			Err(err).
			Str("severity", string(errors.GetSeverity(err))).
			Dur("duration", duration).
			Msg("poll cycle failed")
	}
}

// Cycle runs one poll cycle: fetch head, read slots and collect events
// concurrently, merge each batch, persist, then advance the cursor.
// Cancellation is honoured until every batch is fetched; the merge phase
// then runs to completion so views never hold part of a cycle.
func (d *Driver) Cycle(ctx context.Context) error {
	head, err := d.ledger.LatestHeight(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	d.head.Store(head)
	d.metrics.SetHead(head)

	from, ok := d.window(head)

	var (
		slotErr error
		batches = make(map[string][]ledger.LedgerEvent, len(d.eventTypes))
		bmu     sync.Mutex
		g       errgroup.Group
	)

	if len(d.slots) > 0 && d.reader != nil {
		g.Go(func() error {
			slotErr = d.readSlots(ctx)
			return nil
		})
	}
	if ok {
		for _, et := range d.eventTypes {
			g.Go(func() error {
				batch, err := ledger.Collect(d.ledger.SubscribeEvents(ctx, et, from, head))
				if err != nil {
					return errors.Wrapf(err, "collect %s [%d, %d]", et, from, head)
				}
				bmu.Lock()
				batches[et] = batch
				bmu.Unlock()
				return nil
			})
		}
	}
	eventsErr := g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	commitCtx := context.WithoutCancel(ctx)

	errs := errors.NewErrorGroup()
	errs.Add(slotErr)
	errs.Add(eventsErr)

	allMerged := ok && eventsErr == nil
	for _, et := range d.eventTypes {
		batch, fetched := batches[et]
		if !fetched {
			allMerged = false
			continue
		}
		if err := d.merge(commitCtx, et, batch); err != nil {
			if errors.IsReorg(err) {
				d.handleReorg(et, err)
				return err
			}
			errs.Add(err)
			allMerged = false
		}
	}

	if allMerged {
		d.advanceCursor(head)
	}
	return errs.ErrOrNil()
}

// window returns the first block to scan for this head and whether there
// is anything to scan.
func (d *Driver) window(head uint64) (uint64, bool) {
	recent := uint64(0)
	if head > d.lookback {
		recent = head - d.lookback
	}

	from := recent
	if d.synced.Load() {
		if c := d.cursor.Load(); c < from {
			from = c
		}
	} else if d.startFrom != nil && *d.startFrom >= 0 {
		from = uint64(*d.startFrom)
	}
	return from, from <= head
}

func (d *Driver) readSlots(ctx context.Context) error {
	errs := errors.NewErrorGroup()
	var mu sync.Mutex
	var g errgroup.Group
	for _, slot := range d.slots {
		g.Go(func() error {
			if _, err := d.reader.ReadSlot(ctx, slot); err != nil {
				d.metrics.RecordSlotError(slot)
				mu.Lock()
				errs.Add(fmt.Errorf("read %s: %w", slot, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs.ErrOrNil()
}

func (d *Driver) merge(ctx context.Context, eventType string, batch []ledger.LedgerEvent) error {
	rec := d.reconcilers[eventType]
	added, err := rec.Apply(ctx, batch)
	if err != nil {
		return err
	}
	d.metrics.RecordMerge(eventType, added, rec.Len())

	// The whole batch is written, not just what was new to the view, so
	// rows from a cycle whose insert failed are retried here.
	if d.chainStore == nil || len(batch) == 0 {
		return nil
	}
	rows, err := toStoreEvents(batch)
	if err != nil {
		return errors.NewInternalError("", "failed to encode events", err)
	}
	inserted, err := d.chainStore.InsertEvents(rows)
	if err != nil {
		return errors.NewDatabaseError("", "failed to persist events", err)
	}
	d.logger.Debug().
		Str("event_type", eventType).
		Int("merged", added).
		Int("persisted", inserted).
		Msg("events reconciled")
	return nil
}

func (d *Driver) advanceCursor(head uint64) {
	if head > d.cursor.Load() || !d.synced.Load() {
		d.cursor.Store(head)
	}
	d.synced.Store(true)
	if d.chainStore == nil {
		return
	}
	if err := d.chainStore.AdvanceCursor(head); err != nil {
		d.logger.Error().Err(err).Uint64("head", head).Msg("failed to persist cursor")
	}
}

// handleReorg drops every view and the persisted events, and rewinds the
// cursor so the next cycle resyncs from the configured start.
func (d *Driver) handleReorg(eventType string, cause error) {
	d.metrics.RecordReorg(eventType)
	d.logger.Warn().
		Err(cause).
		Str("event_type", eventType).
		Uint64("cursor", d.cursor.Load()).
		Msg("reorganization detected, resetting views for full resync")

	for _, rec := range d.reconcilers {
		rec.Reset()
		d.metrics.RecordMerge(rec.EventType(), 0, 0)
	}
	d.cursor.Store(0)
	d.synced.Store(false)

	if d.chainStore == nil {
		return
	}
	if deleted, err := d.chainStore.DeleteEvents(); err != nil {
		d.logger.Error().Err(err).Msg("failed to delete persisted events after reorg")
	} else {
		d.logger.Info().Int64("deleted", deleted).Msg("persisted events dropped")
	}
	if err := d.chainStore.RewindCursor(0); err != nil {
		d.logger.Error().Err(err).Msg("failed to rewind cursor after reorg")
	}
}
