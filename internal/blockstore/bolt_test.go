package blockstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/optimystic/internal/block"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMaterializeReplaysFromNearestMaterialization(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mat := NewMaterializer(store, nil)

	id := block.Id("b1")
	inserted := &block.Block{Header: block.Header{Id: id}, Attributes: map[string][]any{"balance": {100}}}

	require.NoError(t, store.SaveCommittedTransform(ctx, id, "a1", block.Transform{Insert: inserted}))
	require.NoError(t, store.SaveMaterializedBlock(ctx, id, "a1", inserted))
	require.NoError(t, store.SaveRevision(ctx, id, 1, "a1"))
	require.NoError(t, mat.SetLatest(ctx, id, block.RevisionEntry{ActionId: "a1", Rev: 1}))

	update := block.Transform{Updates: []block.Op{{Attribute: "balance", DeleteCount: 1, Inserts: []any{75}}}}
	require.NoError(t, store.SaveCommittedTransform(ctx, id, "a2", update))
	require.NoError(t, store.SaveRevision(ctx, id, 2, "a2"))
	require.NoError(t, mat.SetLatest(ctx, id, block.RevisionEntry{ActionId: "a2", Rev: 2}))

	got, err := mat.GetBlock(ctx, id, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, []any{float64(75)}, jsonRoundTripAttr(t, got, "balance"))

	// Cache should now have a materialization at a2.
	cached, found, err := store.GetMaterialization(ctx, id, "a2")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, cached)
}

func TestMaterializationMissingIsCorruption(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mat := NewMaterializer(store, nil)

	id := block.Id("b2")
	require.NoError(t, store.SaveCommittedTransform(ctx, id, "a1", block.Transform{Updates: []block.Op{{Attribute: "x", Inserts: []any{1}}}}))
	require.NoError(t, store.SaveRevision(ctx, id, 0, "a1"))
	require.NoError(t, mat.SetLatest(ctx, id, block.RevisionEntry{ActionId: "a1", Rev: 0}))

	_, err := mat.GetBlock(ctx, id, nil)
	require.ErrorIs(t, err, ErrMaterializationMissing)
}

func TestListRevisionsOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mat := NewMaterializer(store, nil)
	id := block.Id("b3")

	for r := block.Revision(0); r <= 3; r++ {
		require.NoError(t, store.SaveRevision(ctx, id, r, block.ActionId(string(rune('a'+r)))))
	}

	asc, err := mat.ListRevisions(ctx, id, 0, 3)
	require.NoError(t, err)
	require.Len(t, asc, 4)
	require.Equal(t, block.Revision(0), asc[0].Rev)
	require.Equal(t, block.Revision(3), asc[3].Rev)

	desc, err := mat.ListRevisions(ctx, id, 3, 0)
	require.NoError(t, err)
	require.Len(t, desc, 4)
	require.Equal(t, block.Revision(3), desc[0].Rev)
	require.Equal(t, block.Revision(0), desc[3].Rev)
}

func TestRestoreAppliesArchiveAtomicallyAndMerges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var restoreCalls int
	restoreFn := RestoreFunc(func(_ context.Context, id block.Id, rev block.Revision) (*Archive, error) {
		restoreCalls++
		b := &block.Block{Header: block.Header{Id: id}, Attributes: map[string][]any{"v": {1}}}
		return &Archive{
			Range:            Range{Start: 0, End: 5},
			Revisions:        map[block.Revision]block.ActionId{0: "r0"},
			Transforms:       map[block.ActionId]block.Transform{"r0": {Insert: b}},
			Materializations: map[block.ActionId]*block.Block{"r0": b},
		}, nil
	})
	mat := NewMaterializer(store, restoreFn)
	id := block.Id("b4")

	rev := block.Revision(0)
	got, err := mat.GetBlock(ctx, id, &rev)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 1, restoreCalls)

	// Second call for a rev already covered by the restored range must
	// not call restore again.
	got2, err := mat.GetBlock(ctx, id, &rev)
	require.NoError(t, err)
	require.NotNil(t, got2)
	require.Equal(t, 1, restoreCalls)
}

func jsonRoundTripAttr(t *testing.T, b *block.Block, attr string) []any {
	t.Helper()
	return b.Attributes[attr]
}
