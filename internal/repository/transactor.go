package repository

import (
	"context"
	"errors"

	"github.com/cuemby/optimystic/internal/block"
)

// ErrNotPending is a protocol violation: commit named a block with no
// pending entry for the given actionId (§4.4, §7 NotPending).
var ErrNotPending = errors.New("repository: action not pending for block")

// ErrCommitInconsistent signals corruption: applying a pending
// transform during commit produced nil without the transform carrying
// a delete flag (§4.4, §7 CommitInconsistent).
var ErrCommitInconsistent = errors.New("repository: commit produced inconsistent result")

// Transactor is the contract implemented locally by the storage
// repository (C5) and, over the wire, by the coordinated repository's
// remote peers (C7). It is the seam the cluster coordinator (C6) and
// transaction coordinator (C9) program against.
type Transactor interface {
	Get(ctx context.Context, blockIds []block.Id, gctx GetContext) (map[block.Id]GetResult, error)
	Pend(ctx context.Context, req PendRequest) PendResponse
	Commit(ctx context.Context, req CommitRequest) CommitResponse
	Cancel(ctx context.Context, req CancelRequest) error
}
