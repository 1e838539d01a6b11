package colllog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/events"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func appendAction(t *testing.T, l *Log, actionId block.ActionId) block.Revision {
	t.Helper()
	rev, err := l.Append(context.Background(), func(rev block.Revision) Entry {
		return Entry{Kind: EntryAction, Action: &ActionEntry{ActionId: actionId, BlockIds: []block.Id{"b1"}}}
	})
	require.NoError(t, err)
	return rev
}

func TestAppendRevisionsStrictlyIncreasing(t *testing.T) {
	store := newTestStore(t)
	l := New("c1", store)

	var revs []block.Revision
	for i := 0; i < 5; i++ {
		revs = append(revs, appendAction(t, l, block.ActionId(string(rune('a'+i)))))
	}
	for i := 1; i < len(revs); i++ {
		require.Greater(t, revs[i], revs[i-1])
	}
}

func TestGetFromReturnsEntriesAfterRev(t *testing.T) {
	store := newTestStore(t)
	l := New("c1", store)
	for i := 0; i < 4; i++ {
		appendAction(t, l, block.ActionId(string(rune('a'+i))))
	}

	entries, err := l.GetFrom(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, block.Revision(3), entries[0].Rev)
	require.Equal(t, block.Revision(4), entries[1].Rev)
}

func TestChunkAllocationAndChainHash(t *testing.T) {
	store := newTestStore(t)
	l := New("c1", store)

	for i := 0; i < ChunkSize+5; i++ {
		appendAction(t, l, block.ActionId(string(rune('a'+(i%26)))))
	}

	require.NoError(t, l.VerifyChain(context.Background()))

	meta, ok, err := store.GetMeta(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, meta.TailIndex)
}

func TestAddCheckpointRejectsUnknownAction(t *testing.T) {
	store := newTestStore(t)
	l := New("c1", store)
	appendAction(t, l, "a1")

	err := l.AddCheckpoint(context.Background(), []PendingRef{{ActionId: "does-not-exist", Rev: 1}}, 1)
	require.ErrorIs(t, err, ErrCheckpointOutOfOrder)
}

func TestCheckpointNarrowsActionContext(t *testing.T) {
	store := newTestStore(t)
	l := New("c1", store)
	appendAction(t, l, "a1")
	appendAction(t, l, "a2")
	appendAction(t, l, "a3")

	err := l.AddCheckpoint(context.Background(), []PendingRef{{ActionId: "a1", Rev: 1}}, 4)
	require.NoError(t, err)

	ctx, err := l.GetActionContext(context.Background())
	require.NoError(t, err)
	require.Equal(t, block.Revision(4), ctx.Rev)
	require.Len(t, ctx.Committed, 1)
	require.Equal(t, block.ActionId("a1"), ctx.Committed[0].ActionId)
}

func TestAddCheckpointPublishesEvent(t *testing.T) {
	store := newTestStore(t)
	l := New("c1", store)
	appendAction(t, l, "a1")

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	l.SetEvents(broker)
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	err := l.AddCheckpoint(context.Background(), []PendingRef{{ActionId: "a1", Rev: 1}}, 1)
	require.NoError(t, err)

	select {
	case ev := <-sub:
		require.Equal(t, events.CheckpointAdded, ev.Type)
		require.Equal(t, "c1", ev.Message)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for checkpoint event")
	}
}
