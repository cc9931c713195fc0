package submitter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	chaincommon "github.com/pushchain/push-pool-client/poolClient/chains/common"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
	"github.com/pushchain/push-pool-client/poolClient/metrics"
	"github.com/pushchain/push-pool-client/poolClient/store"
)

const trackerBatchSize = 500

// Tracker periodically checks submitted commands and records their outcome
// once the ledger included them.
type Tracker struct {
	ledger     ledger.Ledger
	chainStore *chaincommon.ChainStore
	interval   time.Duration
	metrics    *metrics.PoolMetrics
	logger     zerolog.Logger
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewTracker creates a command tracker
func NewTracker(
	l ledger.Ledger,
	chainStore *chaincommon.ChainStore,
	interval time.Duration,
	m *metrics.PoolMetrics,
	logger zerolog.Logger,
) *Tracker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Tracker{
		ledger:     l,
		chainStore: chainStore,
		interval:   interval,
		metrics:    m,
		logger:     logger.With().Str("component", "command_tracker").Logger(),
		stopCh:     make(chan struct{}),
	}
}

// Start begins checking submitted commands
func (t *Tracker) Start(ctx context.Context) error {
	t.wg.Add(1)
	go t.run(ctx)
	return nil
}

// Stop stops the tracker and waits for the loop to exit
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.wg.Wait()
}

func (t *Tracker) run(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info().Dur("interval", t.interval).Msg("starting command tracking")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("context cancelled, stopping command tracker")
			return
		case <-t.stopCh:
			t.logger.Info().Msg("stop signal received, stopping command tracker")
			return
		case <-ticker.C:
			if _, err := t.CheckPending(ctx); err != nil {
				t.logger.Error().Err(err).Msg("failed to check pending commands")
			}
		}
	}
}

// CheckPending resolves what it can of the oldest submitted commands and
// returns how many reached an outcome.
func (t *Tracker) CheckPending(ctx context.Context) (int, error) {
	pending, err := t.chainStore.GetPendingCommands(trackerBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to query pending commands: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	t.logger.Debug().Int("count", len(pending)).Msg("checking pending commands")

	resolved := 0
	for _, cmd := range pending {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		if cmd.TxHash == "" {
			continue
		}

		receipt, found, err := t.ledger.CommandReceipt(ctx, cmd.TxHash)
		if err != nil {
			t.logger.Debug().Err(err).Str("ref", cmd.Ref).Msg("receipt lookup failed, will retry")
			continue
		}
		if !found {
			continue
		}

		status, reason := store.CommandStatusConfirmed, ""
		if !receipt.Succeeded {
			status, reason = store.CommandStatusFailed, "reverted"
		}

		rows, err := t.chainStore.UpdateCommandStatus(cmd.Ref, status, receipt.BlockHeight, reason)
		if err != nil {
			t.logger.Error().Err(err).Str("ref", cmd.Ref).Msg("failed to update command status")
			continue
		}
		if rows == 0 {
			continue
		}

		resolved++
		t.metrics.RecordCommand(cmd.TargetSlot, strings.ToLower(status))
		t.logger.Info().
			Str("ref", cmd.Ref).
			Str("tx_hash", cmd.TxHash).
			Str("status", status).
			Uint64("block", receipt.BlockHeight).
			Msg("command resolved")
	}

	return resolved, nil
}
