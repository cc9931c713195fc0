package common

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/push-pool-client/poolClient/db"
	"github.com/pushchain/push-pool-client/poolClient/store"
)

const testContract = "0x00000000000000000000000000000000000000aa"

func newTestStore(t *testing.T) *ChainStore {
	t.Helper()
	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewChainStore(database, testContract)
}

func event(height uint64, logIndex uint) store.Event {
	return store.Event{
		BlockHeight: height,
		LogIndex:    logIndex,
		EventType:   "PubKeyDeposited",
		BlockHash:   "0xhash",
		Payload:     []byte(`[]`),
	}
}

func TestChainStoreNilDatabase(t *testing.T) {
	cs := NewChainStore(nil, testContract)

	t.Run("GetCursor returns error for nil database", func(t *testing.T) {
		height, err := cs.GetCursor()
		require.Error(t, err)
		assert.Equal(t, uint64(0), height)
		assert.Contains(t, err.Error(), "database is nil")
	})

	t.Run("AdvanceCursor returns error for nil database", func(t *testing.T) {
		err := cs.AdvanceCursor(100)
		assert.ErrorContains(t, err, "database is nil")
	})

	t.Run("InsertEventIfNotExists returns error for nil database", func(t *testing.T) {
		inserted, err := cs.InsertEventIfNotExists(nil)
		require.Error(t, err)
		assert.False(t, inserted)
		assert.Contains(t, err.Error(), "database is nil")
	})

	t.Run("LoadEvents returns error for nil database", func(t *testing.T) {
		events, err := cs.LoadEvents("PubKeyDeposited")
		require.Error(t, err)
		assert.Nil(t, events)
	})

	t.Run("GetPendingCommands returns error for nil database", func(t *testing.T) {
		cmds, err := cs.GetPendingCommands(10)
		require.Error(t, err)
		assert.Nil(t, cmds)
	})
}

func TestChainStoreCursor(t *testing.T) {
	cs := newTestStore(t)

	height, err := cs.GetCursor()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), height)

	require.NoError(t, cs.AdvanceCursor(50))
	require.NoError(t, cs.AdvanceCursor(40))

	height, err = cs.GetCursor()
	require.NoError(t, err)
	assert.Equal(t, uint64(50), height, "cursor never moves backwards on advance")

	require.NoError(t, cs.RewindCursor(10))
	height, err = cs.GetCursor()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), height)

	t.Run("cursors are per contract", func(t *testing.T) {
		other := NewChainStore(cs.database, "0xbb")
		h, err := other.GetCursor()
		require.NoError(t, err)
		assert.Equal(t, uint64(0), h)
	})
}

func TestChainStoreEvents(t *testing.T) {
	cs := newTestStore(t)

	ev := event(7, 1)
	inserted, err := cs.InsertEventIfNotExists(&ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := event(7, 1)
	inserted, err = cs.InsertEventIfNotExists(&dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := cs.InsertEvents([]store.Event{event(9, 0), event(7, 1), event(7, 0), event(8, 3)})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	loaded, err := cs.LoadEvents("PubKeyDeposited")
	require.NoError(t, err)
	require.Len(t, loaded, 4)

	var got [][2]uint64
	for _, e := range loaded {
		assert.Equal(t, testContract, e.ContractAddress)
		got = append(got, [2]uint64{e.BlockHeight, uint64(e.LogIndex)})
	}
	assert.Equal(t, [][2]uint64{{7, 0}, {7, 1}, {8, 3}, {9, 0}}, got)

	other, err := cs.LoadEvents("SomethingElse")
	require.NoError(t, err)
	assert.Empty(t, other)

	deleted, err := cs.DeleteEvents()
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	loaded, err = cs.LoadEvents("PubKeyDeposited")
	require.NoError(t, err)
	assert.Empty(t, loaded)

	t.Run("deleted identities can be stored again", func(t *testing.T) {
		again := event(7, 1)
		inserted, err := cs.InsertEventIfNotExists(&again)
		require.NoError(t, err)
		assert.True(t, inserted)
	})
}

func TestChainStoreDeleteEventsBefore(t *testing.T) {
	cs := newTestStore(t)

	old := time.Now().Add(-2 * time.Hour)
	events := []store.Event{event(1, 0), event(2, 0), event(3, 0)}
	for i := range events {
		events[i].CreatedAt = old
	}
	recent := event(4, 0)
	events = append(events, recent)

	_, err := cs.InsertEvents(events)
	require.NoError(t, err)

	deleted, err := cs.DeleteEventsBefore(time.Now().Add(-time.Hour), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	loaded, err := cs.LoadEvents("PubKeyDeposited")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, uint64(3), loaded[0].BlockHeight)
	assert.Equal(t, uint64(4), loaded[1].BlockHeight)
}

func TestChainStoreCommands(t *testing.T) {
	cs := newTestStore(t)

	cmd := &store.Command{
		Ref:        "ref-1",
		TargetSlot: "operators",
		Method:     "updateOperators",
		Parameters: []byte(`["[1,2]"]`),
		TxHash:     "0xabc",
		Status:     store.CommandStatusSubmitted,
	}
	require.NoError(t, cs.InsertCommand(cmd))
	require.NoError(t, cs.InsertCommand(&store.Command{
		Ref: "ref-2", TargetSlot: "operators", Method: "updateOperators",
		TxHash: "0xdef", Status: store.CommandStatusSubmitted,
	}))

	pending, err := cs.GetPendingCommands(10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "ref-1", pending[0].Ref)

	rows, err := cs.UpdateCommandStatus("ref-1", store.CommandStatusConfirmed, 42, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = cs.UpdateCommandStatus("ref-1", store.CommandStatusFailed, 0, "late")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "terminal commands are not updated again")

	got, err := cs.GetCommand("ref-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, store.CommandStatusConfirmed, got.Status)
	assert.Equal(t, uint64(42), got.BlockHeight)

	missing, err := cs.GetCommand("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	pending, err = cs.GetPendingCommands(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ref-2", pending[0].Ref)
}

func TestEventCleaner(t *testing.T) {
	t.Run("creates event cleaner with valid params", func(t *testing.T) {
		cleaner := NewEventCleaner(nil, time.Hour, 24*time.Hour, 12, nil, zerolog.Nop())
		require.NotNil(t, cleaner)
		assert.Equal(t, time.Hour, cleaner.cleanupInterval)
		assert.Equal(t, 24*time.Hour, cleaner.retentionPeriod)
		assert.NotNil(t, cleaner.stopCh)

		_, err := cleaner.performCleanup()
		assert.ErrorContains(t, err, "database is nil")
	})

	t.Run("prunes only events deeper than tolerance", func(t *testing.T) {
		cs := newTestStore(t)
		old := time.Now().Add(-48 * time.Hour)
		var events []store.Event
		for h := uint64(1); h <= 10; h++ {
			e := event(h, 0)
			e.CreatedAt = old
			events = append(events, e)
		}
		_, err := cs.InsertEvents(events)
		require.NoError(t, err)

		cleaner := NewEventCleaner(cs, time.Hour, time.Hour, 4, func() uint64 { return 10 }, zerolog.Nop())
		deleted, err := cleaner.performCleanup()
		require.NoError(t, err)
		assert.Equal(t, int64(6), deleted)

		loaded, err := cs.LoadEvents("PubKeyDeposited")
		require.NoError(t, err)
		require.Len(t, loaded, 4)
		assert.Equal(t, uint64(7), loaded[0].BlockHeight)
	})

	t.Run("head within tolerance prunes nothing", func(t *testing.T) {
		cs := newTestStore(t)
		cleaner := NewEventCleaner(cs, time.Hour, 0, 12, func() uint64 { return 5 }, zerolog.Nop())
		deleted, err := cleaner.performCleanup()
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("start and stop", func(t *testing.T) {
		cs := newTestStore(t)
		cleaner := NewEventCleaner(cs, 10*time.Millisecond, time.Hour, 1, func() uint64 { return 0 }, zerolog.Nop())
		require.NoError(t, cleaner.Start(context.Background()))
		time.Sleep(30 * time.Millisecond)
		cleaner.Stop()
	})
}
