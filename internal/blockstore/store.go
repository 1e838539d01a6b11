// Package blockstore implements C4: per-block metadata, the revision
// index, pending and committed action tables, and cached
// materializations, plus the materialization-and-restore algorithm
// that rebuilds a block value at any known revision.
package blockstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/optimystic/internal/block"
)

// ErrMaterializationMissing signals a corruption condition: no
// materialization could be found to anchor a replay, and no earlier
// known revision exists either (§4.3, §7).
var ErrMaterializationMissing = errors.New("blockstore: materialization missing")

// ErrNotFound is returned by lookups with no matching entry.
var ErrNotFound = errors.New("blockstore: not found")

// Range is a contiguous span of revisions known to be present
// locally. End is inclusive; a Range with End == Start is a single
// revision.
type Range struct {
	Start block.Revision
	End   block.Revision
}

// Metadata is the latest known (actionId, rev) for a block plus the
// revision ranges held locally.
type Metadata struct {
	Latest *block.RevisionEntry
	Ranges []Range
}

// Contains reports whether rev falls within any locally-held range.
func (m Metadata) Contains(rev block.Revision) bool {
	for _, r := range m.Ranges {
		if rev >= r.Start && rev <= r.End {
			return true
		}
	}
	return false
}

// Archive is what a restore callback returns: enough state to extend
// a block's locally-held ranges atomically.
type Archive struct {
	Range           Range
	Revisions       map[block.Revision]block.ActionId
	Transforms      map[block.ActionId]block.Transform
	Materializations map[block.ActionId]*block.Block
}

// RestoreFunc fetches a BlockArchive covering at least targetRev from
// whatever durable archive sits behind the peer layer (out of scope
// for this spec beyond this interface).
type RestoreFunc func(ctx context.Context, id block.Id, targetRev block.Revision) (*Archive, error)

// Store is the persistence contract for C4. A concrete Store owns no
// locking of its own; callers (the storage repository, C5) serialize
// access per block id.
type Store interface {
	GetMetadata(ctx context.Context, id block.Id) (Metadata, bool, error)
	SetMetadata(ctx context.Context, id block.Id, md Metadata) error

	GetRevisionAction(ctx context.Context, id block.Id, rev block.Revision) (block.ActionId, bool, error)
	SaveRevision(ctx context.Context, id block.Id, rev block.Revision, actionId block.ActionId) error

	GetTransaction(ctx context.Context, id block.Id, actionId block.ActionId) (block.Transform, bool, error)
	SaveCommittedTransform(ctx context.Context, id block.Id, actionId block.ActionId, t block.Transform) error

	GetPendingTransaction(ctx context.Context, id block.Id, actionId block.ActionId) (block.Transform, bool, error)
	ListPendingTransactions(ctx context.Context, id block.Id) (map[block.ActionId]block.Transform, error)
	SavePendingTransaction(ctx context.Context, id block.Id, actionId block.ActionId, t block.Transform) error
	DeletePendingTransaction(ctx context.Context, id block.Id, actionId block.ActionId) error

	GetMaterialization(ctx context.Context, id block.Id, actionId block.ActionId) (*block.Block, bool, error)
	SaveMaterializedBlock(ctx context.Context, id block.Id, actionId block.ActionId, b *block.Block) error

	ApplyArchive(ctx context.Context, id block.Id, archive *Archive) error

	Close() error
}

// PromotePendingTransaction moves actionId from the pending table to
// the committed table for id. It is implemented in terms of the other
// Store methods so any Store implementation gets it for free, mirroring
// the boltdb package's "Update is Create" composition idiom.
func PromotePendingTransaction(ctx context.Context, s Store, id block.Id, actionId block.ActionId) error {
	t, ok, err := s.GetPendingTransaction(ctx, id, actionId)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("blockstore: promote %s: %w", actionId, ErrNotFound)
	}
	if err := s.SaveCommittedTransform(ctx, id, actionId, t); err != nil {
		return err
	}
	return s.DeletePendingTransaction(ctx, id, actionId)
}
