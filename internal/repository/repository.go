package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/blockstore"
	"github.com/cuemby/optimystic/internal/lockset"
	"github.com/cuemby/optimystic/pkg/log"
)

// Repository is the authoritative local implementation of the
// transactor contract (C5). It serializes mutation per block id via a
// lock set and is the only writer of blockstore.Store/Materializer
// state for the blocks it owns.
type Repository struct {
	store     blockstore.Store
	mat       *blockstore.Materializer
	locks     *lockset.Set[block.Id]
	validator Validator
	logger    zerolog.Logger
}

// New creates a Repository over store/mat. validator may be nil, in
// which case pend never runs the §4.4 step-1 validation hook.
func New(store blockstore.Store, mat *blockstore.Materializer, validator Validator) *Repository {
	return &Repository{
		store:     store,
		mat:       mat,
		locks:     lockset.New[block.Id](),
		validator: validator,
		logger:    log.WithComponent("repository"),
	}
}

var _ Transactor = (*Repository)(nil)

// Get deduplicates blockIds, advances local state by applying any
// context.Committed actions not yet reflected locally whose pending
// entry this peer still holds, and returns
// each block's materialized value plus its pending/committed state.
// If gctx.ActionId is set, the named pending action is layered on top
// of the latest committed block for every returned entry.
func (r *Repository) Get(ctx context.Context, blockIds []block.Id, gctx GetContext) (map[block.Id]GetResult, error) {
	unique := dedupe(blockIds)
	out := make(map[block.Id]GetResult, len(unique))

	for _, id := range unique {
		r.locks.Lock(id)
		result, err := r.getLocked(ctx, id, gctx)
		r.locks.Unlock(id)
		if err != nil {
			return nil, err
		}
		out[id] = result
	}
	return out, nil
}

func (r *Repository) getLocked(ctx context.Context, id block.Id, gctx GetContext) (GetResult, error) {
	for _, committed := range gctx.Committed {
		if err := r.advanceIfMissing(ctx, id, committed); err != nil {
			return GetResult{}, err
		}
	}

	pendingIds, err := r.listPendingIds(ctx, id)
	if err != nil {
		return GetResult{}, err
	}

	latest, err := r.mat.GetLatest(ctx, id)
	if err != nil {
		return GetResult{}, err
	}

	var rev *block.Revision
	if gctx.Rev != nil {
		rev = gctx.Rev
	}
	b, err := r.mat.GetBlock(ctx, id, rev)
	if err != nil {
		return GetResult{}, err
	}

	state := BlockState{Latest: latest}

	if gctx.ActionId != nil {
		pending, ok, err := r.store.GetPendingTransaction(ctx, id, *gctx.ActionId)
		if err != nil {
			return GetResult{}, err
		}
		if ok {
			b = block.ApplyTransform(b, pending)
			state.Pendings = []block.ActionId{*gctx.ActionId}
			return GetResult{Block: b, State: state}, nil
		}
	}

	state.Pendings = pendingIds
	return GetResult{Block: b, State: state}, nil
}

// advanceIfMissing applies a committed action the caller already
// observed but this peer may not have materialized into its revision
// index yet, provided this peer still holds it as pending; a no-op
// when the peer already has that revision, is past it, or holds no
// pending entry for the action.
func (r *Repository) advanceIfMissing(ctx context.Context, id block.Id, expect block.RevisionEntry) error {
	_, ok, err := r.store.GetRevisionAction(ctx, id, expect.Rev)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	latest, err := r.mat.GetLatest(ctx, id)
	if err != nil {
		return err
	}
	if latest != nil && latest.Rev >= expect.Rev {
		return nil
	}
	_, pending, err := r.store.GetPendingTransaction(ctx, id, expect.ActionId)
	if err != nil || !pending {
		return err
	}
	return r.commitOneLocked(ctx, id, CommitRequest{ActionId: expect.ActionId, Rev: expect.Rev})
}

func (r *Repository) listPendingIds(ctx context.Context, id block.Id) ([]block.ActionId, error) {
	pending, err := r.store.ListPendingTransactions(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]block.ActionId, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Pend validates, checks for committed and pending conflicts per
// §4.4, and on success writes a pending transform for every affected
// block.
func (r *Repository) Pend(ctx context.Context, req PendRequest) PendResponse {
	if r.validator != nil && req.Transaction != nil && req.OperationsHash != "" {
		if ok, reason := r.validator.Validate(req); !ok {
			return PendResponse{Success: false, Reason: reason}
		}
	}

	ids := block.BlockIdsForTransforms(req.Transforms)
	sorted := sortedCopy(ids)
	unlock := r.locks.LockAllSorted(sorted)
	defer unlock()

	var missing []block.MissingAction
	var pendingConflicts []block.PendingConflict

	for _, id := range sorted {
		single := block.TransformForBlockId(req.Transforms, id)

		pendingIds, err := r.listPendingIds(ctx, id)
		if err != nil {
			return PendResponse{Success: false, Reason: err.Error()}
		}

		if req.Rev != nil || single.Insert != nil {
			m, err := r.committedConflicts(ctx, id, req.Rev)
			if err != nil {
				return PendResponse{Success: false, Reason: err.Error()}
			}
			missing = append(missing, m...)
		}

		for _, pid := range pendingIds {
			pendingConflicts = append(pendingConflicts, block.PendingConflict{BlockId: id, ActionId: pid})
		}
	}

	if len(missing) > 0 {
		return PendResponse{Success: false, Missing: missing}
	}

	if len(pendingConflicts) > 0 {
		switch req.Policy {
		case PolicyFail:
			return PendResponse{Success: false, Pending: pendingConflicts}
		case PolicyReturn:
			enriched, err := r.enrichPendingConflicts(ctx, pendingConflicts)
			if err != nil {
				return PendResponse{Success: false, Reason: err.Error()}
			}
			return PendResponse{Success: false, Pending: enriched}
		case PolicyWait:
			// fall through to write, reporting conflicts informationally
		default:
			return PendResponse{Success: false, Reason: fmt.Sprintf("repository: unknown policy %q", req.Policy)}
		}
	}

	for _, id := range sorted {
		single := block.TransformForBlockId(req.Transforms, id)
		if err := r.store.SavePendingTransaction(ctx, id, req.ActionId, single); err != nil {
			return PendResponse{Success: false, Reason: err.Error()}
		}
	}

	return PendResponse{Success: true, BlockIds: sorted, Pending: pendingConflicts}
}

// committedConflicts returns every committed action with a revision
// >= rev (or >= 0, for inserts with no rev supplied) for id, which the
// caller must replay before retrying.
func (r *Repository) committedConflicts(ctx context.Context, id block.Id, rev *block.Revision) ([]block.MissingAction, error) {
	latest, err := r.mat.GetLatest(ctx, id)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	threshold := block.Revision(0)
	if rev != nil {
		threshold = *rev
	}
	if latest.Rev < threshold {
		return nil, nil
	}

	entries, err := r.mat.ListRevisions(ctx, id, threshold, latest.Rev)
	if err != nil {
		return nil, err
	}

	var out []block.MissingAction
	for _, e := range entries {
		t, ok, err := r.store.GetTransaction(ctx, id, e.ActionId)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ts := block.NewTransforms()
		_ = block.ConcatTransform(&ts, id, t)
		out = append(out, block.MissingAction{ActionId: e.ActionId, Rev: e.Rev, Transforms: ts})
	}
	return out, nil
}

func (r *Repository) enrichPendingConflicts(ctx context.Context, conflicts []block.PendingConflict) ([]block.PendingConflict, error) {
	out := make([]block.PendingConflict, 0, len(conflicts))
	for _, c := range conflicts {
		t, ok, err := r.store.GetPendingTransaction(ctx, c.BlockId, c.ActionId)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Promoted to committed in the interim; fall back there.
			t, ok, err = r.store.GetTransaction(ctx, c.BlockId, c.ActionId)
			if err != nil {
				return nil, err
			}
		}
		enriched := c
		if ok {
			tc := t
			enriched.Transform = &tc
		}
		out = append(out, enriched)
	}
	return out, nil
}

// Cancel removes the pending entry for actionId on every named block.
// Idempotent; never touches committed state (§4.4).
func (r *Repository) Cancel(ctx context.Context, req CancelRequest) error {
	sorted := sortedCopy(req.BlockIds)
	unlock := r.locks.LockAllSorted(sorted)
	defer unlock()

	for _, id := range sorted {
		if err := r.store.DeletePendingTransaction(ctx, id, req.ActionId); err != nil {
			return err
		}
	}
	return nil
}

// Commit acquires per-block locks in sorted order, verifies no
// committed revision has advanced past req.Rev, requires a pending
// entry for req.ActionId on every block, then applies each block's
// pending transform and promotes it, in the same sorted order, per
// the crash-safety ordering of §4.4: materialization, then revision
// index, then promotion, then latest pointer.
func (r *Repository) Commit(ctx context.Context, req CommitRequest) CommitResponse {
	logger := log.WithTaskID(string(req.ActionId))

	sorted := sortedCopy(req.BlockIds)
	unlock := r.locks.LockAllSorted(sorted)
	defer unlock()

	var missing []block.MissingAction
	for _, id := range sorted {
		m, err := r.committedConflicts(ctx, id, &req.Rev)
		if err != nil {
			return CommitResponse{Success: false, Reason: err.Error()}
		}
		missing = append(missing, m...)
	}
	if len(missing) > 0 {
		return CommitResponse{Success: false, Missing: missing}
	}

	for _, id := range sorted {
		if _, ok, err := r.store.GetPendingTransaction(ctx, id, req.ActionId); err != nil {
			return CommitResponse{Success: false, Reason: err.Error()}
		} else if !ok {
			return CommitResponse{Success: false, Reason: fmt.Errorf("%w: block %s, action %s", ErrNotPending, id, req.ActionId).Error()}
		}
	}

	for _, id := range sorted {
		if err := r.commitOneLocked(ctx, id, req); err != nil {
			return CommitResponse{Success: false, Reason: err.Error()}
		}
	}

	logger.Debug().Str("tail_id", string(req.TailId)).Int64("rev", int64(req.Rev)).Msg("committed action")
	return CommitResponse{Success: true}
}

func (r *Repository) commitOneLocked(ctx context.Context, id block.Id, req CommitRequest) error {
	pending, _, err := r.store.GetPendingTransaction(ctx, id, req.ActionId)
	if err != nil {
		return err
	}

	prior, err := r.mat.GetBlock(ctx, id, nil)
	if err != nil {
		return err
	}

	result := block.ApplyTransform(prior, pending)
	if result == nil && !pending.Delete {
		return fmt.Errorf("%w: block %s action %s", ErrCommitInconsistent, id, req.ActionId)
	}

	if result != nil {
		if err := r.store.SaveMaterializedBlock(ctx, id, req.ActionId, result); err != nil {
			return err
		}
	}
	if err := r.store.SaveRevision(ctx, id, req.Rev, req.ActionId); err != nil {
		return err
	}
	if err := blockstore.PromotePendingTransaction(ctx, r.store, id, req.ActionId); err != nil {
		return err
	}
	return r.mat.SetLatest(ctx, id, block.RevisionEntry{ActionId: req.ActionId, Rev: req.Rev})
}

func dedupe(ids []block.Id) []block.Id {
	seen := make(map[block.Id]bool, len(ids))
	out := make([]block.Id, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func sortedCopy(ids []block.Id) []block.Id {
	out := append([]block.Id(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
