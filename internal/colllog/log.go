package colllog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/events"
	"github.com/cuemby/optimystic/pkg/log"
	"github.com/cuemby/optimystic/pkg/metrics"
)

// Log is one collection's append-only chain of fixed-size chunks
// (§4.8). Appends, GetFrom and AddCheckpoint are serialized per
// collection by mu. VerifyChain and GetActionContext's checkpoint
// lookup read the store without taking mu.
type Log struct {
	collectionId string
	store        Store
	mu           sync.Mutex
	events       *events.Broker
	logger       zerolog.Logger
}

// New opens the log for collectionId over store.
func New(collectionId string, store Store) *Log {
	return &Log{
		collectionId: collectionId,
		store:        store,
		logger:       log.WithServiceID(collectionId).With().Str("component", "colllog").Logger(),
	}
}

// SetEvents attaches a broker that AddCheckpoint publishes
// collection.checkpoint_added events to. A nil broker (the default)
// disables publishing entirely.
func (l *Log) SetEvents(b *events.Broker) {
	l.events = b
}

// Append adds entry to the chain at priorRev+1, allocating a new
// chunk if the tail is full, and returns the assigned revision.
func (l *Log) Append(ctx context.Context, buildEntry func(rev block.Revision) Entry) (block.Revision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	meta, ok, err := l.store.GetMeta(ctx, l.collectionId)
	if err != nil {
		return 0, err
	}
	if !ok {
		meta = Meta{TailIndex: 0, NextRev: 1}
		if err := l.ensureChunk(ctx, 0, ""); err != nil {
			return 0, err
		}
	}

	tail, found, err := l.store.GetChunk(ctx, l.collectionId, meta.TailIndex)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("colllog: tail chunk %d missing for collection %s", meta.TailIndex, l.collectionId)
	}

	rev := meta.NextRev
	entry := buildEntry(rev)
	entry.Rev = rev

	if tail.Full() {
		priorHash := ChunkHash(tail)
		meta.TailIndex++
		if err := l.ensureChunk(ctx, meta.TailIndex, priorHash); err != nil {
			return 0, err
		}
		tail, _, err = l.store.GetChunk(ctx, l.collectionId, meta.TailIndex)
		if err != nil {
			return 0, err
		}
		metrics.LogChunkAllocationsTotal.Inc()
	}

	tail.Entries = append(tail.Entries, entry)
	if err := l.store.SaveChunk(ctx, l.collectionId, tail.Index, tail); err != nil {
		return 0, err
	}

	meta.NextRev = rev + 1
	if err := l.store.SaveMeta(ctx, l.collectionId, meta); err != nil {
		return 0, err
	}

	metrics.LogAppendTotal.Inc()
	l.logger.Debug().Str("collection_id", l.collectionId).Int64("rev", int64(rev)).Msg("appended log entry")
	return rev, nil
}

func (l *Log) ensureChunk(ctx context.Context, index int, priorHash string) error {
	_, found, err := l.store.GetChunk(ctx, l.collectionId, index)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	return l.store.SaveChunk(ctx, l.collectionId, index, &Chunk{Index: index, PriorHash: priorHash, Entries: nil})
}

// GetFrom returns every entry with Rev > rev, in ascending order.
func (l *Log) GetFrom(ctx context.Context, rev block.Revision) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getFromLocked(ctx, rev)
}

func (l *Log) getFromLocked(ctx context.Context, rev block.Revision) ([]Entry, error) {
	meta, ok, err := l.store.GetMeta(ctx, l.collectionId)
	if err != nil || !ok {
		return nil, err
	}

	var out []Entry
	for i := 0; i <= meta.TailIndex; i++ {
		chunk, found, err := l.store.GetChunk(ctx, l.collectionId, i)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		for _, e := range chunk.Entries {
			if e.Rev > rev {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rev < out[j].Rev })
	return out, nil
}

// VerifyChain walks every chunk after the first and checks its
// PriorHash against the deterministic hash of its predecessor,
// per §8 property 8.
func (l *Log) VerifyChain(ctx context.Context) error {
	meta, ok, err := l.store.GetMeta(ctx, l.collectionId)
	if err != nil || !ok {
		return err
	}
	var prev *Chunk
	for i := 0; i <= meta.TailIndex; i++ {
		chunk, found, err := l.store.GetChunk(ctx, l.collectionId, i)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("colllog: chunk %d missing from chain", i)
		}
		if prev != nil && chunk.PriorHash != ChunkHash(prev) {
			return fmt.Errorf("colllog: chunk %d priorHash mismatch", i)
		}
		prev = chunk
	}
	return nil
}

// ActionContext is the result of getActionContext: the checkpointed
// committed set unioned with every action appended after it, plus the
// revision the caller should resume from.
type ActionContext struct {
	Committed []PendingRef
	Rev       block.Revision
}

// GetActionContext returns the latest checkpoint's pendings unioned
// with actions appended after the checkpoint (§4.8).
func (l *Log) GetActionContext(ctx context.Context) (ActionContext, error) {
	cp, cpRev, ok, err := l.store.GetCheckpoint(ctx, l.collectionId)
	if err != nil {
		return ActionContext{}, err
	}

	var committed []PendingRef
	var fromRev block.Revision
	if ok {
		committed = append(committed, cp.Pendings...)
		fromRev = cpRev
	}

	entries, err := l.GetFrom(ctx, fromRev)
	if err != nil {
		return ActionContext{}, err
	}

	rev := fromRev
	for _, e := range entries {
		if e.Kind == EntryAction && e.Action != nil {
			committed = append(committed, PendingRef{ActionId: e.Action.ActionId, Rev: e.Rev})
		}
		if e.Rev > rev {
			rev = e.Rev
		}
	}

	return ActionContext{Committed: committed, Rev: rev}, nil
}

// AddCheckpoint records pendings as logically committed as of rev.
// Every named action id must already appear in an action entry of the
// log (§9 Open Question, decided): out-of-order checkpoints are
// rejected. The revisions carried in pendings are not checked.
func (l *Log) AddCheckpoint(ctx context.Context, pendings []PendingRef, rev block.Revision) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	visible := make(map[block.ActionId]bool)
	entries, err := l.getFromLocked(ctx, 0)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Kind == EntryAction && e.Action != nil {
			visible[e.Action.ActionId] = true
		}
	}

	for _, p := range pendings {
		if !visible[p.ActionId] {
			return fmt.Errorf("%w: action %s at rev %d", ErrCheckpointOutOfOrder, p.ActionId, p.Rev)
		}
	}

	if err := l.store.SaveCheckpoint(ctx, l.collectionId, &CheckpointEntry{Pendings: pendings}, rev); err != nil {
		return err
	}
	if l.events != nil {
		l.events.Publish(&events.Event{Type: events.CheckpointAdded, Message: l.collectionId, Metadata: map[string]string{"rev": fmt.Sprintf("%d", rev)}})
	}
	return nil
}
