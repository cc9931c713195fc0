package reader

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/push-pool-client/poolClient/cache"
	"github.com/pushchain/push-pool-client/poolClient/errors"
	"github.com/pushchain/push-pool-client/poolClient/ledger/mock"
)

func newReader() (*Reader, *mock.Ledger) {
	l := mock.New()
	return New(l, cache.New(zerolog.Nop()), zerolog.Nop()), l
}

func TestReadSlotReplacesSnapshot(t *testing.T) {
	r, l := newReader()
	ctx := context.Background()

	l.SetHead(10)
	l.SetSlot("getOperators", []any{"1", "2"})

	snap, err := r.ReadSlot(ctx, "getOperators")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), snap.AsOfHeight)

	l.SetHead(11)
	l.SetSlot("getOperators", []any{"3"})
	_, err = r.ReadSlot(ctx, "getOperators")
	require.NoError(t, err)

	got, ok := r.Snapshot("getOperators")
	require.True(t, ok)
	assert.Equal(t, uint64(11), got.AsOfHeight)
	assert.Equal(t, []any{[]any{"3"}}, got.Values)
}

func TestReadSlotFailureKeepsPrevious(t *testing.T) {
	r, l := newReader()
	ctx := context.Background()

	l.SetHead(5)
	l.SetSlot("getValidators", "0xaa")
	_, err := r.ReadSlot(ctx, "getValidators")
	require.NoError(t, err)

	l.SetHead(6)
	l.ReadErr["getValidators"] = errors.NewNetworkError("eip155:1", "boom", nil)

	_, err = r.ReadSlot(ctx, "getValidators")
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, 2, l.Calls("ReadSlot"), "no internal retry")

	got, ok := r.Snapshot("getValidators")
	require.True(t, ok)
	assert.Equal(t, uint64(5), got.AsOfHeight)
}

func TestReadAll(t *testing.T) {
	r, l := newReader()
	ctx := context.Background()

	l.SetHead(3)
	l.SetSlot("getOperators", []any{"1"})
	l.SetSlot("getValidators", []any{"0x01"})

	require.NoError(t, r.ReadAll(ctx, []string{"getValidators", "getOperators"}))
	snaps := r.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "getOperators", snaps[0].SlotName)
	assert.Equal(t, "getValidators", snaps[1].SlotName)

	t.Run("one failing slot does not block the others", func(t *testing.T) {
		l.SetHead(4)
		l.ReadErr["getOperators"] = errors.NewNetworkError("", "down", nil)

		err := r.ReadAll(ctx, []string{"getOperators", "getValidators"})
		require.Error(t, err)

		ops, _ := r.Snapshot("getOperators")
		vals, _ := r.Snapshot("getValidators")
		assert.Equal(t, uint64(3), ops.AsOfHeight)
		assert.Equal(t, uint64(4), vals.AsOfHeight)
	})
}

func TestSnapshotCopiesAreIsolated(t *testing.T) {
	r, l := newReader()
	l.SetSlot("getOperators", "a", "b")
	_, err := r.ReadSlot(context.Background(), "getOperators")
	require.NoError(t, err)

	got, _ := r.Snapshot("getOperators")
	got.Values[0] = "mutated"

	again, _ := r.Snapshot("getOperators")
	assert.Equal(t, "a", again.Values[0])

	_, ok := r.Snapshot("unknown")
	assert.False(t, ok)
}
