// Package colllog implements C8: each collection's append-only Log,
// chained in fixed-size chunks with checkpoints that narrow the
// logically-committed set.
package colllog

import (
	"encoding/json"

	"github.com/cuemby/optimystic/internal/block"
)

// ChunkSize is the fixed entry count per chain chunk (§4.8).
const ChunkSize = 32

// EntryKind tags a log entry's variant.
type EntryKind string

const (
	EntryAction     EntryKind = "action"
	EntryCheckpoint EntryKind = "checkpoint"
)

// ActionEntry records one transaction-coordinator append.
type ActionEntry struct {
	ActionId      block.ActionId  `json:"actionId"`
	Actions       json.RawMessage `json:"actions"`
	BlockIds      []block.Id      `json:"blockIds"`
	CollectionIds []string        `json:"collectionIds"`
}

// PendingRef names one action considered logically committed as of a
// checkpoint.
type PendingRef struct {
	ActionId block.ActionId  `json:"actionId"`
	Rev      block.Revision  `json:"rev"`
}

// CheckpointEntry narrows the committed set the application observes.
type CheckpointEntry struct {
	Pendings []PendingRef `json:"pendings"`
}

// Entry is one slot in a chunk: exactly one of Action/Checkpoint is set.
type Entry struct {
	Kind       EntryKind        `json:"kind"`
	Rev        block.Revision   `json:"rev"`
	Action     *ActionEntry     `json:"action,omitempty"`
	Checkpoint *CheckpointEntry `json:"checkpoint,omitempty"`
}

// Chunk is one fixed-size chain block: up to ChunkSize entries plus
// the hash of the predecessor chunk's contents.
type Chunk struct {
	Index     int     `json:"index"`
	PriorHash string  `json:"priorHash"`
	Entries   []Entry `json:"entries"`
}

// Full reports whether the chunk has no remaining entry slots.
func (c *Chunk) Full() bool {
	return len(c.Entries) >= ChunkSize
}
