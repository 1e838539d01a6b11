// Package repository implements C5: the storage repository that
// exposes the transactor contract (get/pend/commit/cancel) to local
// callers, with per-block locking, revision-conflict detection,
// missing-action replay, and crash-safe commit ordering.
package repository

import "github.com/cuemby/optimystic/internal/block"

// Policy selects how pend behaves when it discovers actions already
// pending against a block it is about to touch (§4.4).
type Policy string

const (
	// PolicyFail aborts pend on any pending conflict.
	PolicyFail Policy = "f"
	// PolicyReturn aborts pend on any pending conflict but enriches
	// the response with the conflicting transforms.
	PolicyReturn Policy = "r"
	// PolicyWait proceeds despite pending conflicts, reporting them
	// informationally in a successful response.
	PolicyWait Policy = "w"
)

// GetContext optionally names committed actions the caller expects to
// be applied before it reads, and/or a pending action to layer on top
// of the latest committed block.
type GetContext struct {
	Rev       *block.Revision
	ActionId  *block.ActionId
	Committed []block.RevisionEntry
}

// BlockState is the per-block half of a GetResponse entry.
type BlockState struct {
	Latest   *block.RevisionEntry
	Pendings []block.ActionId
}

// GetResult is one entry of a Get response.
type GetResult struct {
	Block *block.Block
	State BlockState
}

// PendRequest is the argument to Pend (§6 PendRequest).
type PendRequest struct {
	ActionId             block.ActionId
	Transforms           block.Transforms
	Policy               Policy
	Rev                  *block.Revision
	OperationsHash       string
	Transaction          *TransactionEnvelope
	SuperclusterNominees []string
}

// TransactionEnvelope is the subset of a coordinator-level transaction
// the validation hook needs; kept opaque here so repository does not
// import the txn package (C9 depends on C5, not the reverse).
type TransactionEnvelope struct {
	StampId        string
	OperationsHash string
	Raw            interface{}
}

// Validator independently re-derives and checks a pend's
// operationsHash against the transaction envelope, per §4.4 step 1.
type Validator interface {
	Validate(req PendRequest) (ok bool, reason string)
}

// PendResponse is a tagged variant, replacing the source's duck-typed
// shape (§9): exactly one of the four cases is populated.
type PendResponse struct {
	Success bool

	// success fields
	BlockIds []block.Id
	Pending  []block.PendingConflict

	// failure fields
	Reason  string
	Missing []block.MissingAction
}

// CommitRequest is the argument to Commit (§6 CommitRequest).
type CommitRequest struct {
	ActionId block.ActionId
	BlockIds []block.Id
	TailId   block.Id
	Rev      block.Revision
}

// CommitResponse is the tagged result of Commit.
type CommitResponse struct {
	Success bool
	Reason  string
	Missing []block.MissingAction
}

// CancelRequest is the argument to Cancel (§6 CancelRequest).
type CancelRequest struct {
	ActionId block.ActionId
	BlockIds []block.Id
}
