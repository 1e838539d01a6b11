package colllog

import (
	"context"
	"errors"

	"github.com/cuemby/optimystic/internal/block"
)

// ErrCheckpointOutOfOrder is returned when a checkpoint names an
// action that has never been appended to the log, per the §9 Open
// Question decision recorded in SPEC_FULL.md.
var ErrCheckpointOutOfOrder = errors.New("colllog: checkpoint references an action not yet visible in the log")

// Meta is the per-collection chain pointer persisted alongside the chunks.
type Meta struct {
	TailIndex int            `json:"tailIndex"`
	NextRev   block.Revision `json:"nextRev"`
}

// Store persists chunks, the chain tail pointer, and the latest
// checkpoint for every collection.
type Store interface {
	GetMeta(ctx context.Context, collectionId string) (Meta, bool, error)
	SaveMeta(ctx context.Context, collectionId string, meta Meta) error

	GetChunk(ctx context.Context, collectionId string, index int) (*Chunk, bool, error)
	SaveChunk(ctx context.Context, collectionId string, index int, chunk *Chunk) error

	GetCheckpoint(ctx context.Context, collectionId string) (*CheckpointEntry, block.Revision, bool, error)
	SaveCheckpoint(ctx context.Context, collectionId string, cp *CheckpointEntry, rev block.Revision) error
}
