package api

import (
	"context"
	"time"

	"github.com/pushchain/push-pool-client/poolClient/ledger"
	"github.com/pushchain/push-pool-client/poolClient/reconciler"
	"github.com/pushchain/push-pool-client/poolClient/store"
	"github.com/pushchain/push-pool-client/poolClient/submitter"
)

// PoolClientInterface defines the methods needed by the API server
type PoolClientInterface interface {
	Snapshots() []ledger.Snapshot
	Snapshot(slot string) (ledger.Snapshot, bool)
	View(eventType string) (reconciler.View, bool)
	GetCacheLastUpdate() time.Time
	Head() uint64
	Commands() []submitter.Command
	SubmitCommand(ctx context.Context, req ledger.CommandRequest) (string, ledger.CommandOutcome, error)
	CommandStatus(ref string) (*store.Command, ledger.CommandOutcome, error)
}
