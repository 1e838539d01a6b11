package blockstore

import (
	"context"
	"fmt"

	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/lockset"
)

// Materializer implements the GetLatest/GetBlock/ListRevisions/SetLatest
// operations of §4.3 over any Store, plus restoration of missing
// ranges via an injected RestoreFunc.
type Materializer struct {
	store    Store
	restore  RestoreFunc
	restores *lockset.Set[block.Id]
}

// NewMaterializer wraps store with the materialization algorithm.
// restore may be nil if the peer never needs to pull archived ranges.
func NewMaterializer(store Store, restore RestoreFunc) *Materializer {
	return &Materializer{store: store, restore: restore, restores: lockset.New[block.Id]()}
}

// GetLatest returns the latest known (actionId, rev) for id, if any.
func (m *Materializer) GetLatest(ctx context.Context, id block.Id) (*block.RevisionEntry, error) {
	md, ok, err := m.store.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return md.Latest, nil
}

// SetLatest records the new (actionId, rev) as the latest for id,
// extending the local range list to cover rev.
func (m *Materializer) SetLatest(ctx context.Context, id block.Id, entry block.RevisionEntry) error {
	md, _, err := m.store.GetMetadata(ctx, id)
	if err != nil {
		return err
	}
	md.Latest = &entry
	md.Ranges = mergeRanges(append(md.Ranges, Range{Start: entry.Rev, End: entry.Rev}))
	return m.store.SetMetadata(ctx, id, md)
}

// GetBlock returns the materialized block at rev (or at latest if rev
// is nil). It walks revisions backward until a materialization is
// found, then replays the intervening transforms forward, caching the
// rebuilt value at the most recent actionId visited.
func (m *Materializer) GetBlock(ctx context.Context, id block.Id, rev *block.Revision) (*block.Block, error) {
	target, err := m.resolveTargetRevision(ctx, id, rev)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, nil
	}

	if err := m.ensurePresent(ctx, id, *target); err != nil {
		return nil, err
	}

	type step struct {
		rev      block.Revision
		actionId block.ActionId
	}
	var chain []step

	cur := *target
	for {
		actionId, ok, err := m.store.GetRevisionAction(ctx, id, cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("blockstore: revision %d for %s: %w", cur, id, ErrNotFound)
		}
		chain = append(chain, step{rev: cur, actionId: actionId})

		if mat, found, err := m.store.GetMaterialization(ctx, id, actionId); err != nil {
			return nil, err
		} else if found {
			result := mat
			for i := len(chain) - 2; i >= 0; i-- {
				t, ok, err := m.store.GetTransaction(ctx, id, chain[i].actionId)
				if err != nil {
					return nil, err
				}
				if !ok {
					return nil, fmt.Errorf("blockstore: transform %s for %s: %w", chain[i].actionId, id, ErrNotFound)
				}
				result = block.ApplyTransform(result, t)
			}
			if len(chain) > 1 {
				if err := m.store.SaveMaterializedBlock(ctx, id, chain[0].actionId, result); err != nil {
					return nil, err
				}
			}
			return result, nil
		}

		if cur == 0 {
			return nil, fmt.Errorf("blockstore: %s has no materialization at or before rev 0: %w", id, ErrMaterializationMissing)
		}
		cur--
	}
}

// resolveTargetRevision returns the revision to materialize: rev if
// given, otherwise the latest known revision. Returns nil if the
// block has never existed locally.
func (m *Materializer) resolveTargetRevision(ctx context.Context, id block.Id, rev *block.Revision) (*block.Revision, error) {
	if rev != nil {
		return rev, nil
	}
	latest, err := m.GetLatest(ctx, id)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	r := latest.Rev
	return &r, nil
}

// ensurePresent guarantees rev is covered by a locally-held range,
// invoking the restore callback and atomically applying its Archive
// otherwise.
func (m *Materializer) ensurePresent(ctx context.Context, id block.Id, rev block.Revision) error {
	m.restores.Lock(id)
	defer m.restores.Unlock(id)

	md, _, err := m.store.GetMetadata(ctx, id)
	if err != nil {
		return err
	}
	if md.Contains(rev) {
		return nil
	}
	if m.restore == nil {
		return fmt.Errorf("blockstore: revision %d for %s not held locally and no restore source configured: %w", rev, id, ErrNotFound)
	}

	archive, err := m.restore(ctx, id, rev)
	if err != nil {
		return fmt.Errorf("blockstore: restore %s at rev %d: %w", id, rev, err)
	}
	return m.store.ApplyArchive(ctx, id, archive)
}

// ListRevisions returns, in order, the (actionId, rev) pairs between
// start and end inclusive. Ascending if start <= end, descending
// otherwise.
func (m *Materializer) ListRevisions(ctx context.Context, id block.Id, start, end block.Revision) ([]block.RevisionEntry, error) {
	var out []block.RevisionEntry
	if start <= end {
		for r := start; r <= end; r++ {
			actionId, ok, err := m.store.GetRevisionAction(ctx, id, r)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, block.RevisionEntry{ActionId: actionId, Rev: r})
			}
		}
		return out, nil
	}
	for r := start; r >= end; r-- {
		actionId, ok, err := m.store.GetRevisionAction(ctx, id, r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, block.RevisionEntry{ActionId: actionId, Rev: r})
		}
		if r == 0 {
			break
		}
	}
	return out, nil
}

func mergeRanges(ranges []Range) []Range {
	if len(ranges) <= 1 {
		return ranges
	}
	sorted := append([]Range(nil), ranges...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Start < sorted[j-1].Start; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	merged := []Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
