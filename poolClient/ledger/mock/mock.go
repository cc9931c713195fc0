// Package mock provides an in-memory Ledger used by tests and local demos.
package mock

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

// Submission records one accepted SubmitCommand call.
type Submission struct {
	RequestID string
	Method    string
	Args      []any
}

// Ledger is a scriptable fake of ledger.Ledger with per-operation call counters.
type Ledger struct {
	mu sync.Mutex

	head        uint64
	slots       map[string][]any
	events      []ledger.LedgerEvent
	receipts    map[string]ledger.Receipt
	submissions []Submission

	// Injected failures, returned until cleared.
	HeadErr   error
	ReadErr   map[string]error
	EventsErr error
	SubmitErr error

	// SubscribeHook, when set, runs before a subscription yields anything.
	SubscribeHook func(ctx context.Context)

	calls map[string]int
}

// New creates an empty fake ledger at height 0.
func New() *Ledger {
	return &Ledger{
		slots:    make(map[string][]any),
		receipts: make(map[string]ledger.Receipt),
		ReadErr:  make(map[string]error),
		calls:    make(map[string]int),
	}
}

var _ ledger.Ledger = (*Ledger)(nil)

// SetHead moves the chain head.
func (l *Ledger) SetHead(h uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.head = h
}

// SetSlot sets the values a slot read returns.
func (l *Ledger) SetSlot(slot string, values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slots[slot] = values
}

// Emit appends events to the chain.
func (l *Ledger) Emit(events ...ledger.LedgerEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, events...)
	sort.SliceStable(l.events, func(i, j int) bool {
		return l.events[i].ID().Less(l.events[j].ID())
	})
}

// ReplaceEvents swaps the whole event history, simulating a reorganization.
func (l *Ledger) ReplaceEvents(events ...ledger.LedgerEvent) {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
	l.Emit(events...)
}

// SetReceipt marks a submitted command as included.
func (l *Ledger) SetReceipt(requestID string, r ledger.Receipt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receipts[requestID] = r
}

// Submissions returns the accepted submissions in order.
func (l *Ledger) Submissions() []Submission {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Submission(nil), l.submissions...)
}

// Calls returns how many times an operation was invoked.
func (l *Ledger) Calls(op string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (l *Ledger) TotalCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		n += c
	}
	return n
}

func (l *Ledger) count(op string) {
	l.calls[op]++
}

func (l *Ledger) LatestHeight(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("LatestHeight")
	if l.HeadErr != nil {
		return 0, l.HeadErr
	}
	return l.head, nil
}

func (l *Ledger) ReadSlot(ctx context.Context, slot string, args ...any) (ledger.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("ReadSlot")
	if err := l.ReadErr[slot]; err != nil {
		return ledger.Snapshot{}, err
	}
	values, ok := l.slots[slot]
	if !ok {
		return ledger.Snapshot{}, fmt.Errorf("mock ledger: unknown slot %s", slot)
	}
	return ledger.Snapshot{
		SlotName:   slot,
		Values:     append([]any(nil), values...),
		AsOfHeight: l.head,
		FetchedAt:  time.Now(),
	}, nil
}

func (l *Ledger) SubscribeEvents(ctx context.Context, eventType string, from, to uint64) iter.Seq2[ledger.LedgerEvent, error] {
	l.mu.Lock()
	l.count("SubscribeEvents")
	l.mu.Unlock()

	return func(yield func(ledger.LedgerEvent, error) bool) {
		if l.SubscribeHook != nil {
			l.SubscribeHook(ctx)
		}

		l.mu.Lock()
		err := l.EventsErr
		var batch []ledger.LedgerEvent
		for _, ev := range l.events {
			if ev.EventType == eventType && ev.BlockHeight >= from && ev.BlockHeight <= to {
				batch = append(batch, ev)
			}
		}
		l.mu.Unlock()

		if err != nil {
			yield(ledger.LedgerEvent{}, err)
			return
		}
		for _, ev := range batch {
			if ctx.Err() != nil {
				yield(ledger.LedgerEvent{}, ctx.Err())
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func (l *Ledger) SubmitCommand(ctx context.Context, method string, args ...any) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("SubmitCommand")
	if l.SubmitErr != nil {
		return "", l.SubmitErr
	}
	id := fmt.Sprintf("0x%064x", len(l.submissions)+1)
	l.submissions = append(l.submissions, Submission{RequestID: id, Method: method, Args: args})
	return id, nil
}

func (l *Ledger) CommandReceipt(ctx context.Context, requestID string) (ledger.Receipt, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("CommandReceipt")
	r, ok := l.receipts[requestID]
	return r, ok, nil
}
