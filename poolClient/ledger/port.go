package ledger

import (
	"context"
	"iter"
)

// Ledger is the single capability the client needs from the chain. The
// EVM implementation lives in chains/evm; tests use ledger/mock.
type Ledger interface {
	// LatestHeight returns the current head block height.
	LatestHeight(ctx context.Context) (uint64, error)

	// ReadSlot calls a view method and returns its decoded outputs.
	ReadSlot(ctx context.Context, slot string, args ...any) (Snapshot, error)

	// SubscribeEvents yields events of eventType in [from, to]. The sequence
	// is lazy and finite; iteration stops at the first error.
	SubscribeEvents(ctx context.Context, eventType string, from, to uint64) iter.Seq2[LedgerEvent, error]

	// SubmitCommand sends a contract call with already-typed arguments and
	// returns once the ledger accepted it into its pending pool.
	SubmitCommand(ctx context.Context, method string, args ...any) (requestID string, err error)

	// CommandReceipt reports inclusion of a submitted command. found is
	// false while it is still pending.
	CommandReceipt(ctx context.Context, requestID string) (receipt Receipt, found bool, err error)
}

// Collect drains a subscription into a batch.
func Collect(seq iter.Seq2[LedgerEvent, error]) ([]LedgerEvent, error) {
	var out []LedgerEvent
	for ev, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
