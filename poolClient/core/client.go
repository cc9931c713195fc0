// Package core wires the pool client together and owns its lifecycle.
package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushchain/push-pool-client/poolClient/api"
	"github.com/pushchain/push-pool-client/poolClient/cache"
	chaincommon "github.com/pushchain/push-pool-client/poolClient/chains/common"
	"github.com/pushchain/push-pool-client/poolClient/chains/evm"
	"github.com/pushchain/push-pool-client/poolClient/config"
	"github.com/pushchain/push-pool-client/poolClient/constant"
	"github.com/pushchain/push-pool-client/poolClient/db"
	"github.com/pushchain/push-pool-client/poolClient/errors"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
	"github.com/pushchain/push-pool-client/poolClient/metrics"
	"github.com/pushchain/push-pool-client/poolClient/poller"
	"github.com/pushchain/push-pool-client/poolClient/reader"
	"github.com/pushchain/push-pool-client/poolClient/reconciler"
	"github.com/pushchain/push-pool-client/poolClient/store"
	"github.com/pushchain/push-pool-client/poolClient/submitter"
)

type PoolClient struct {
	ctx context.Context
	log zerolog.Logger
	cfg *config.Config
	db  *db.DB

	ledger      ledger.Ledger
	cache       *cache.Cache
	reader      *reader.Reader
	submitter   *submitter.Submitter
	tracker     *submitter.Tracker
	cleaner     *chaincommon.EventCleaner
	poller      *poller.Driver
	queryServer *api.Server
}

var _ api.PoolClientInterface = (*PoolClient)(nil)

// NewPoolClient dials the ledger, retrying transient failures, and opens the
// contract's database under <node_home>/databases.
func NewPoolClient(ctx context.Context, log zerolog.Logger, cfg *config.Config) (*PoolClient, error) {
	var client *evm.Client
	retry := errors.DefaultRetryConfig()
	if cfg.InitialFetchRetries > 0 {
		retry.MaxAttempts = cfg.InitialFetchRetries
	}

	op := errors.RetryOperation{
		Name: "dial_ledger",
		Fn: func() error {
			c, err := evm.NewClient(ctx, cfg, log)
			if err != nil {
				return err
			}
			client = c
			return nil
		},
		Config: retry,
		OnRetry: func(attempt int, err error) {
			log.Warn().Err(err).Int("attempt", attempt).Msg("ledger not reachable yet, retrying")
		},
	}
	if err := op.Execute(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	home := cfg.NodeHome
	if home == "" {
		home = constant.DefaultNodeHome
	}
	database, err := db.OpenFileDB(
		filepath.Join(home, constant.DatabasesSubdir),
		DatabaseFileName(cfg.ContractAddress),
		true,
	)
	if err != nil {
		client.Close()
		return nil, errors.NewDatabaseError(cfg.ChainID, "failed to open database", err)
	}

	return NewPoolClientWithLedger(ctx, log, cfg, client, database), nil
}

// NewPoolClientWithLedger assembles the client over an existing ledger and
// database. The client takes ownership of both.
func NewPoolClientWithLedger(
	ctx context.Context,
	log zerolog.Logger,
	cfg *config.Config,
	l ledger.Ledger,
	database *db.DB,
) *PoolClient {
	log = log.With().Str("contract", cfg.ContractAddress).Logger()
	m := metrics.Pool()
	chainStore := chaincommon.NewChainStore(database, cfg.ContractAddress)

	c := cache.New(log)
	r := reader.New(l, c, log)
	driver := poller.New(l, r, chainStore, cfg, m, log)

	return &PoolClient{
		ctx:    ctx,
		log:    log,
		cfg:    cfg,
		db:     database,
		ledger: l,
		cache:  c,
		reader: r,
		submitter: submitter.New(l, cfg.ChainID, log,
			submitter.WithChainStore(chainStore),
			submitter.WithMetrics(m),
		),
		tracker: submitter.NewTracker(l, chainStore, cfg.PollingInterval(), m, log),
		cleaner: chaincommon.NewEventCleaner(
			chainStore,
			cfg.CleanupInterval(),
			cfg.RetentionPeriod(),
			cfg.ReorgTolerance(),
			driver.Head,
			log,
		),
		poller: driver,
	}
}

// DatabaseFileName returns the database file used for a contract.
func DatabaseFileName(contractAddress string) string {
	return strings.ToLower(contractAddress) + ".db"
}

// Start runs every component until the context is done, then shuts down.
func (pc *PoolClient) Start() error {
	pc.log.Info().Msg("🚀 Starting pool client...")

	if err := pc.poller.Start(pc.ctx); err != nil {
		pc.shutdown()
		return fmt.Errorf("failed to start poller: %w", err)
	}
	if err := pc.tracker.Start(pc.ctx); err != nil {
		pc.shutdown()
		return fmt.Errorf("failed to start command tracker: %w", err)
	}
	if err := pc.cleaner.Start(pc.ctx); err != nil {
		pc.shutdown()
		return fmt.Errorf("failed to start event cleaner: %w", err)
	}

	pc.queryServer = api.NewServer(pc, pc.log, pc.cfg.QueryServerPort)
	if err := pc.queryServer.Start(); err != nil {
		pc.shutdown()
		return fmt.Errorf("failed to start query server: %w", err)
	}

	pc.log.Info().
		Int("query_port", pc.cfg.QueryServerPort).
		Msg("✅ Initialization complete. Entering main loop...")

	<-pc.ctx.Done()

	pc.log.Info().Msg("🛑 Shutting down pool client...")
	return pc.shutdown()
}

func (pc *PoolClient) shutdown() error {
	if pc.queryServer != nil {
		if err := pc.queryServer.Stop(); err != nil {
			pc.log.Error().Err(err).Msg("failed to stop query server")
		}
	}
	pc.poller.Stop()
	pc.tracker.Stop()
	pc.cleaner.Stop()

	if closer, ok := pc.ledger.(interface{ Close() }); ok {
		closer.Close()
	}
	return pc.db.Close()
}

// Snapshots returns the latest snapshot of every slot.
func (pc *PoolClient) Snapshots() []ledger.Snapshot {
	return pc.reader.Snapshots()
}

// Snapshot returns the latest snapshot of one slot.
func (pc *PoolClient) Snapshot(slot string) (ledger.Snapshot, bool) {
	return pc.reader.Snapshot(slot)
}

// View returns the reconciled view of an event type.
func (pc *PoolClient) View(eventType string) (reconciler.View, bool) {
	return pc.poller.View(eventType)
}

// GetCacheLastUpdate returns when a snapshot was last replaced.
func (pc *PoolClient) GetCacheLastUpdate() time.Time {
	return pc.cache.LastUpdated()
}

// Head returns the last observed ledger head.
func (pc *PoolClient) Head() uint64 {
	return pc.poller.Head()
}

// Commands returns the accepted command catalog.
func (pc *PoolClient) Commands() []submitter.Command {
	return pc.submitter.Commands()
}

// SubmitCommand validates and submits a command request.
func (pc *PoolClient) SubmitCommand(ctx context.Context, req ledger.CommandRequest) (string, ledger.CommandOutcome, error) {
	return pc.submitter.SubmitWithRef(ctx, req)
}

// CommandStatus returns a tracked command and its outcome.
func (pc *PoolClient) CommandStatus(ref string) (*store.Command, ledger.CommandOutcome, error) {
	return pc.submitter.Status(ref)
}
