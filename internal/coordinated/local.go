package coordinated

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cuemby/optimystic/internal/cluster"
	"github.com/cuemby/optimystic/internal/repository"
)

// resultStore holds the real application-level response a local
// handler produced for a given message hash, so the dispatcher can
// return it to the original caller once consensus concludes. pend,
// commit, and cancel are deterministic given identical inputs (§4.9),
// so every peer that actually runs the operation locally computes the
// same answer; only one copy needs to be kept.
type resultStore struct {
	mu     sync.Mutex
	pend   map[string]repository.PendResponse
	commit map[string]repository.CommitResponse
	cancel map[string]error
}

func newResultStore() *resultStore {
	return &resultStore{
		pend:   make(map[string]repository.PendResponse),
		commit: make(map[string]repository.CommitResponse),
		cancel: make(map[string]error),
	}
}

// localHandler answers promise/commit for the local peer by actually
// performing the transactor operation against the local repository.
// Repository operations are already atomic and crash-safe per block
// (§4.4), so there is no separate staging step between "promise" and
// "commit" here: promise performs the real operation and signs
// approve/reject from its outcome; commit is a confirming no-op.
type localHandler struct {
	transactor repository.Transactor
	results    *resultStore
}

func newLocalHandler(transactor repository.Transactor, results *resultStore) *localHandler {
	return &localHandler{transactor: transactor, results: results}
}

func (h *localHandler) PromiseLocal(ctx context.Context, record *cluster.ClusterRecord) cluster.Signature {
	switch record.Message.Kind {
	case "pend":
		var req repository.PendRequest
		if err := json.Unmarshal(record.Message.Payload, &req); err != nil {
			return cluster.Signature{Type: cluster.SignatureReject, RejectReason: err.Error()}
		}
		resp := h.transactor.Pend(ctx, req)
		h.results.mu.Lock()
		h.results.pend[record.MessageHash] = resp
		h.results.mu.Unlock()
		if !resp.Success {
			return cluster.Signature{Type: cluster.SignatureReject, RejectReason: resp.Reason}
		}
		return cluster.Signature{Type: cluster.SignatureApprove}

	case "commit":
		var req repository.CommitRequest
		if err := json.Unmarshal(record.Message.Payload, &req); err != nil {
			return cluster.Signature{Type: cluster.SignatureReject, RejectReason: err.Error()}
		}
		resp := h.transactor.Commit(ctx, req)
		h.results.mu.Lock()
		h.results.commit[record.MessageHash] = resp
		h.results.mu.Unlock()
		if !resp.Success {
			return cluster.Signature{Type: cluster.SignatureReject, RejectReason: resp.Reason}
		}
		return cluster.Signature{Type: cluster.SignatureApprove}

	case "cancel":
		var req repository.CancelRequest
		if err := json.Unmarshal(record.Message.Payload, &req); err != nil {
			return cluster.Signature{Type: cluster.SignatureReject, RejectReason: err.Error()}
		}
		err := h.transactor.Cancel(ctx, req)
		h.results.mu.Lock()
		h.results.cancel[record.MessageHash] = err
		h.results.mu.Unlock()
		if err != nil {
			return cluster.Signature{Type: cluster.SignatureReject, RejectReason: err.Error()}
		}
		return cluster.Signature{Type: cluster.SignatureApprove}

	default:
		return cluster.Signature{Type: cluster.SignatureReject, RejectReason: "coordinated: unknown message kind " + record.Message.Kind}
	}
}

// CommitLocal confirms the effect PromiseLocal already durably
// applied; it never re-executes the operation.
func (h *localHandler) CommitLocal(ctx context.Context, record *cluster.ClusterRecord) cluster.Signature {
	return cluster.Signature{Type: cluster.SignatureApprove}
}
