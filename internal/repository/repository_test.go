package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/blockstore"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dir := t.TempDir()
	store, err := blockstore.NewBoltStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	mat := blockstore.NewMaterializer(store, nil)
	return New(store, mat, nil)
}

func insertTransforms(id block.Id, attrs map[string][]any) block.Transforms {
	t := block.NewTransforms()
	t.Inserts[id] = &block.Block{Header: block.Header{Id: id}, Attributes: attrs}
	return t
}

// S1: single-collection insert.
func TestSingleCollectionInsert(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	transforms := insertTransforms("1", map[string][]any{"name": {"Alice"}})
	rev := block.Revision(1)

	pend := repo.Pend(ctx, PendRequest{ActionId: "a1", Transforms: transforms, Policy: PolicyFail, Rev: &rev})
	require.True(t, pend.Success)

	commit := repo.Commit(ctx, CommitRequest{ActionId: "a1", BlockIds: []block.Id{"1"}, TailId: "1", Rev: rev})
	require.True(t, commit.Success)

	results, err := repo.Get(ctx, []block.Id{"1"}, GetContext{})
	require.NoError(t, err)
	require.NotNil(t, results["1"].Block)
	require.Equal(t, []any{"Alice"}, results["1"].Block.Attributes["name"])
}

// S3: stale revision on commit reports the missing committed action.
func TestStaleRevisionOnCommitReportsMissing(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	rev1 := block.Revision(1)
	pend1 := repo.Pend(ctx, PendRequest{ActionId: "a1", Transforms: insertTransforms("b1", nil), Policy: PolicyFail, Rev: &rev1})
	require.True(t, pend1.Success)
	commit1 := repo.Commit(ctx, CommitRequest{ActionId: "a1", BlockIds: []block.Id{"b1"}, TailId: "b1", Rev: rev1})
	require.True(t, commit1.Success)

	update := block.Transforms{Updates: map[block.Id][]block.Op{"b1": {{Attribute: "x", Inserts: []any{1}}}}, Inserts: map[block.Id]*block.Block{}, Deletes: map[block.Id]bool{}}
	rev2 := block.Revision(2)
	pend2 := repo.Pend(ctx, PendRequest{ActionId: "a2", Transforms: update, Policy: PolicyFail, Rev: &rev2})
	require.True(t, pend2.Success)
	commit2 := repo.Commit(ctx, CommitRequest{ActionId: "a2", BlockIds: []block.Id{"b1"}, TailId: "b1", Rev: rev2})
	require.True(t, commit2.Success)

	// Caller attempts to pend a non-insert transform at a stale rev.
	staleRev := block.Revision(1)
	staleUpdate := block.Transforms{Updates: map[block.Id][]block.Op{"b1": {{Attribute: "y", Inserts: []any{2}}}}, Inserts: map[block.Id]*block.Block{}, Deletes: map[block.Id]bool{}}
	stale := repo.Pend(ctx, PendRequest{ActionId: "a3", Transforms: staleUpdate, Policy: PolicyFail, Rev: &staleRev})

	require.False(t, stale.Success)
	require.Len(t, stale.Missing, 2)
	var revs []block.Revision
	for _, m := range stale.Missing {
		revs = append(revs, m.Rev)
	}
	require.ElementsMatch(t, []block.Revision{1, 2}, revs)
}

// S4: pending-conflict policies on the same block.
func TestPendingConflictPolicies(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *Repository {
		repo := newTestRepository(t)
		rev := block.Revision(1)
		pend := repo.Pend(ctx, PendRequest{ActionId: "a1", Transforms: insertTransforms("b1", nil), Policy: PolicyFail, Rev: &rev})
		require.True(t, pend.Success)
		return repo
	}

	t.Run("fail", func(t *testing.T) {
		repo := setup(t)
		resp := repo.Pend(ctx, PendRequest{ActionId: "a2", Transforms: insertTransforms("b1", nil), Policy: PolicyFail})
		require.False(t, resp.Success)
		require.Len(t, resp.Pending, 1)
		require.Equal(t, block.ActionId("a1"), resp.Pending[0].ActionId)
	})

	t.Run("return", func(t *testing.T) {
		repo := setup(t)
		resp := repo.Pend(ctx, PendRequest{ActionId: "a2", Transforms: insertTransforms("b1", nil), Policy: PolicyReturn})
		require.False(t, resp.Success)
		require.Len(t, resp.Pending, 1)
		require.NotNil(t, resp.Pending[0].Transform)
	})

	t.Run("wait", func(t *testing.T) {
		repo := setup(t)
		resp := repo.Pend(ctx, PendRequest{ActionId: "a2", Transforms: insertTransforms("b1", nil), Policy: PolicyWait})
		require.True(t, resp.Success)
	})
}

// S5: commit failure (protocol violation) rolls back cleanly once the
// pending entry is cancelled, and a fresh actionId retry succeeds.
func TestCommitFailureThenRetryWithFreshActionSucceeds(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	transforms := insertTransforms("b1", map[string][]any{"x": {1}})
	rev := block.Revision(1)

	pend1 := repo.Pend(ctx, PendRequest{ActionId: "a1", Transforms: transforms, Policy: PolicyFail, Rev: &rev})
	require.True(t, pend1.Success)

	// Simulate a commit attempt with a wrong actionId (protocol
	// violation -> NotPending), then cancel the stranded pending entry.
	bad := repo.Commit(ctx, CommitRequest{ActionId: "wrong", BlockIds: []block.Id{"b1"}, TailId: "b1", Rev: rev})
	require.False(t, bad.Success)

	require.NoError(t, repo.Cancel(ctx, CancelRequest{ActionId: "a1", BlockIds: []block.Id{"b1"}}))

	pend2 := repo.Pend(ctx, PendRequest{ActionId: "a2", Transforms: transforms, Policy: PolicyFail, Rev: &rev})
	require.True(t, pend2.Success)
	commit2 := repo.Commit(ctx, CommitRequest{ActionId: "a2", BlockIds: []block.Id{"b1"}, TailId: "b1", Rev: rev})
	require.True(t, commit2.Success)
}

// Cancel idempotence (property 4): two successive cancels of the same
// action produce the same state.
func TestCancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	rev := block.Revision(1)
	pend := repo.Pend(ctx, PendRequest{ActionId: "a1", Transforms: insertTransforms("b1", nil), Policy: PolicyFail, Rev: &rev})
	require.True(t, pend.Success)

	require.NoError(t, repo.Cancel(ctx, CancelRequest{ActionId: "a1", BlockIds: []block.Id{"b1"}}))
	require.NoError(t, repo.Cancel(ctx, CancelRequest{ActionId: "a1", BlockIds: []block.Id{"b1"}}))
}

// Cancel after commit has already promoted the action is a no-op
// (§9 Open Question decision).
func TestCancelAfterCommitIsNoop(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	rev := block.Revision(1)
	pend := repo.Pend(ctx, PendRequest{ActionId: "a1", Transforms: insertTransforms("b1", nil), Policy: PolicyFail, Rev: &rev})
	require.True(t, pend.Success)
	commit := repo.Commit(ctx, CommitRequest{ActionId: "a1", BlockIds: []block.Id{"b1"}, TailId: "b1", Rev: rev})
	require.True(t, commit.Success)

	require.NoError(t, repo.Cancel(ctx, CancelRequest{ActionId: "a1", BlockIds: []block.Id{"b1"}}))

	results, err := repo.Get(ctx, []block.Id{"b1"}, GetContext{})
	require.NoError(t, err)
	require.NotNil(t, results["b1"].Block)
}
