package common

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HeadFunc reports the highest reconciled block height.
type HeadFunc func() uint64

// EventCleaner handles periodic pruning of persisted events. Only events
// older than the retention period and deeper than the reorg tolerance are
// removed, so the window a reorg can still touch is never pruned.
type EventCleaner struct {
	chainStore      *ChainStore
	cleanupInterval time.Duration
	retentionPeriod time.Duration
	tolerance       uint64
	head            HeadFunc
	logger          zerolog.Logger
	ticker          *time.Ticker
	stopCh          chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// NewEventCleaner creates a new event cleaner for a contract
func NewEventCleaner(
	chainStore *ChainStore,
	cleanupInterval time.Duration,
	retentionPeriod time.Duration,
	tolerance uint64,
	head HeadFunc,
	logger zerolog.Logger,
) *EventCleaner {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}
	contract := ""
	if chainStore != nil {
		contract = chainStore.ContractAddress()
	}
	return &EventCleaner{
		chainStore:      chainStore,
		cleanupInterval: cleanupInterval,
		retentionPeriod: retentionPeriod,
		tolerance:       tolerance,
		head:            head,
		logger:          logger.With().Str("component", "event_cleaner").Str("contract", contract).Logger(),
		stopCh:          make(chan struct{}),
	}
}

// Start begins the periodic cleanup process
func (ec *EventCleaner) Start(ctx context.Context) error {
	ec.logger.Info().
		Str("cleanup_interval", ec.cleanupInterval.String()).
		Str("retention_period", ec.retentionPeriod.String()).
		Msg("starting event cleaner")

	if _, err := ec.performCleanup(); err != nil {
		ec.logger.Error().Err(err).Msg("failed to perform initial cleanup")
	}

	ec.ticker = time.NewTicker(ec.cleanupInterval)

	ec.wg.Add(1)
	go func() {
		defer ec.wg.Done()
		defer ec.ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				ec.logger.Info().Msg("context cancelled, stopping event cleaner")
				return
			case <-ec.stopCh:
				ec.logger.Info().Msg("stop signal received, stopping event cleaner")
				return
			case <-ec.ticker.C:
				if _, err := ec.performCleanup(); err != nil {
					ec.logger.Error().Err(err).Msg("failed to perform scheduled cleanup")
				}
			}
		}
	}()

	return nil
}

// Stop gracefully stops the event cleaner and waits for a running pass
func (ec *EventCleaner) Stop() {
	ec.stopOnce.Do(func() {
		ec.logger.Info().Msg("stopping event cleaner")
		close(ec.stopCh)
	})
	ec.wg.Wait()
}

func (ec *EventCleaner) performCleanup() (int64, error) {
	if ec.chainStore == nil || ec.chainStore.database == nil {
		return 0, fmt.Errorf("database is nil")
	}

	start := time.Now()

	var head uint64
	if ec.head != nil {
		head = ec.head()
	}
	if head <= ec.tolerance {
		ec.logger.Debug().Uint64("head", head).Msg("nothing deep enough to prune")
		return 0, nil
	}
	maxHeight := head - ec.tolerance

	cutoffTime := time.Now().Add(-ec.retentionPeriod)
	deletedCount, err := ec.chainStore.DeleteEventsBefore(cutoffTime, maxHeight)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup events: %w", err)
	}

	duration := time.Since(start)

	if deletedCount > 0 {
		ec.logger.Info().
			Int64("deleted_count", deletedCount).
			Uint64("max_height", maxHeight).
			Str("duration", duration.String()).
			Msg("event cleanup completed")

		ec.checkpointWAL()
	} else {
		ec.logger.Debug().
			Str("duration", duration.String()).
			Msg("event cleanup completed - nothing to delete")
	}

	return deletedCount, nil
}

// checkpointWAL forces a checkpoint and truncates the WAL
func (ec *EventCleaner) checkpointWAL() {
	if err := ec.chainStore.database.Checkpoint(); err != nil {
		ec.logger.Warn().Err(err).Msg("failed to checkpoint WAL")
	} else {
		ec.logger.Debug().Msg("WAL checkpoint completed")
	}
}
