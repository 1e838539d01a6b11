// Package tracker implements the mutable in-memory edit buffer that
// sits in front of a read-through block source (C3). Every Collection
// owns exactly one Tracker; the Tracker owns its pending Transforms
// buffer and is the only thing in the engine allowed to mutate it.
package tracker

import (
	"context"
	"sync"

	"github.com/cuemby/optimystic/internal/block"
)

// Source resolves a block id to its current committed value, read
// through whatever sits underneath the tracker (a local storage
// repository, or a remote one via the coordinated repository, C7).
type Source interface {
	TryGet(ctx context.Context, id block.Id) (*block.Block, error)
}

// Tracker buffers edits made by a collection's in-flight transaction
// over a Source, resolving reads through the buffer first.
type Tracker struct {
	source Source

	mu         sync.Mutex
	transforms block.Transforms
}

// New creates a Tracker layered over source.
func New(source Source) *Tracker {
	return &Tracker{
		source:     source,
		transforms: block.NewTransforms(),
	}
}

// Insert places b in the insert buffer for b.Header.Id, removing any
// prior delete marker for the same id (§4.2, §9 phantom-delete fix).
func (t *Tracker) Insert(b *block.Block) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := b.Header.Id
	t.transforms.Inserts[id] = b
	delete(t.transforms.Deletes, id)
}

// Update appends op to the buffered update list for blockId.
func (t *Tracker) Update(blockId block.Id, op block.Op) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.transforms.Updates[blockId] = append(t.transforms.Updates[blockId], op)
}

// Delete marks blockId as deleted, removing any buffered insert or
// update for the same id (§4.2, §9 phantom-delete fix: a full removal,
// not just a flag flip).
func (t *Tracker) Delete(blockId block.Id) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.transforms.Deletes[blockId] = true
	delete(t.transforms.Inserts, blockId)
	delete(t.transforms.Updates, blockId)
}

// TryGet returns the tracker's view of blockId: the buffered value if
// the buffer inserted or deleted the block, otherwise the source's
// value with any buffered updates layered on top. Returns
// nil, nil if the block does not exist under either view.
func (t *Tracker) TryGet(ctx context.Context, id block.Id) (*block.Block, error) {
	t.mu.Lock()
	single := block.TransformForBlockId(t.transforms, id)
	t.mu.Unlock()

	if single.Delete {
		return nil, nil
	}
	if single.Insert != nil {
		return block.ApplyTransform(nil, single), nil
	}
	if len(single.Updates) == 0 {
		return t.source.TryGet(ctx, id)
	}

	base, err := t.source.TryGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, nil
	}
	return block.ApplyTransform(base, single), nil
}

// Transforms returns a snapshot copy of the currently buffered edits
// without resetting them.
func (t *Tracker) Transforms() block.Transforms {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneTransforms(t.transforms)
}

// Reset atomically returns the current transforms and replaces them
// with an empty buffer.
func (t *Tracker) Reset() block.Transforms {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.transforms
	t.transforms = block.NewTransforms()
	return out
}

func cloneTransforms(t block.Transforms) block.Transforms {
	out := block.NewTransforms()
	for id, b := range t.Inserts {
		out.Inserts[id] = b
	}
	for id, ops := range t.Updates {
		out.Updates[id] = append([]block.Op(nil), ops...)
	}
	for id := range t.Deletes {
		out.Deletes[id] = true
	}
	return out
}
