package coordinated

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/cluster"
	"github.com/cuemby/optimystic/internal/repository"
	"github.com/cuemby/optimystic/pkg/log"
)

// Repository implements repository.Transactor by driving pend/commit/
// cancel through the cluster coordinator (C6) against the peers a
// PeerResolver names as responsible for the touched blocks, then
// returning the deterministic result the local peer's own execution
// of the operation produced (§4.9: pend/commit/cancel are
// deterministic given identical inputs, so every participating peer
// that actually runs the operation computes the same answer).
//
// Get is answered directly from the local replica: reads are not part
// of the two-phase protocol (§1: "the transactor contract: the
// two-phase pend/commit/cancel protocol").
type Repository struct {
	localPeer   cluster.PeerId
	resolver    PeerResolver
	coordinator *cluster.Coordinator
	local       repository.Transactor
	results     *resultStore
	logger      zerolog.Logger
}

// New builds a Repository. local is this peer's authoritative
// storage repository (C5); resolver names the cluster of peers
// responsible for a given set of blocks; dialer is used to reach
// remote peers over internal/transport.
func New(localPeer cluster.PeerId, local repository.Transactor, resolver PeerResolver, thresholds cluster.Thresholds, retry cluster.RetryConfig, estimator *cluster.Estimator, devMode bool, dialer RemoteDialer) *Repository {
	results := newResultStore()
	handler := newLocalHandler(local, results)
	client := newPeerClient(dialer)
	coordinator := cluster.NewCoordinator(localPeer, client, handler, thresholds, retry, estimator, devMode)

	return &Repository{
		localPeer:   localPeer,
		resolver:    resolver,
		coordinator: coordinator,
		local:       local,
		results:     results,
		logger:      log.WithComponent("coordinated"),
	}
}

var _ repository.Transactor = (*Repository)(nil)

func (r *Repository) Get(ctx context.Context, blockIds []block.Id, gctx repository.GetContext) (map[block.Id]repository.GetResult, error) {
	return r.local.Get(ctx, blockIds, gctx)
}

func (r *Repository) Pend(ctx context.Context, req repository.PendRequest) repository.PendResponse {
	requestId := uuid.NewString()
	logger := r.logger.With().Str("request_id", requestId).Logger()

	blockIds := block.BlockIdsForTransforms(req.Transforms)
	msg, err := buildMessage("pend", req)
	if err != nil {
		return repository.PendResponse{Success: false, Reason: err.Error()}
	}

	peers, err := r.resolver.ResponsiblePeers(ctx, blockIds)
	if err != nil {
		return repository.PendResponse{Success: false, Reason: err.Error()}
	}

	messageHash := cluster.MessageHash(msg)
	if _, err := r.coordinator.ExecuteClusterTransaction(ctx, msg, peers, idStrings(blockIds)); err != nil {
		logger.Warn().Err(err).Str("actionId", string(req.ActionId)).Msg("pend: cluster consensus did not complete")
		return repository.PendResponse{Success: false, Reason: err.Error()}
	}

	r.results.mu.Lock()
	resp, ok := r.results.pend[messageHash]
	r.results.mu.Unlock()
	if !ok {
		return repository.PendResponse{Success: false, Reason: "coordinated: local peer did not record a pend result"}
	}
	return resp
}

func (r *Repository) Commit(ctx context.Context, req repository.CommitRequest) repository.CommitResponse {
	requestId := uuid.NewString()
	logger := r.logger.With().Str("request_id", requestId).Logger()

	msg, err := buildMessage("commit", req)
	if err != nil {
		return repository.CommitResponse{Success: false, Reason: err.Error()}
	}

	peers, err := r.resolver.ResponsiblePeers(ctx, req.BlockIds)
	if err != nil {
		return repository.CommitResponse{Success: false, Reason: err.Error()}
	}

	messageHash := cluster.MessageHash(msg)
	if _, err := r.coordinator.ExecuteClusterTransaction(ctx, msg, peers, idStrings(req.BlockIds)); err != nil {
		logger.Warn().Err(err).Str("actionId", string(req.ActionId)).Msg("commit: cluster consensus did not complete")
		return repository.CommitResponse{Success: false, Reason: err.Error()}
	}

	r.results.mu.Lock()
	resp, ok := r.results.commit[messageHash]
	r.results.mu.Unlock()
	if !ok {
		return repository.CommitResponse{Success: false, Reason: "coordinated: local peer did not record a commit result"}
	}
	return resp
}

func (r *Repository) Cancel(ctx context.Context, req repository.CancelRequest) error {
	requestId := uuid.NewString()
	logger := r.logger.With().Str("request_id", requestId).Logger()

	msg, err := buildMessage("cancel", req)
	if err != nil {
		return err
	}

	peers, err := r.resolver.ResponsiblePeers(ctx, req.BlockIds)
	if err != nil {
		return err
	}

	messageHash := cluster.MessageHash(msg)
	if _, err := r.coordinator.ExecuteClusterTransaction(ctx, msg, peers, idStrings(req.BlockIds)); err != nil {
		logger.Warn().Err(err).Str("actionId", string(req.ActionId)).Msg("cancel: cluster consensus did not complete")
		return err
	}

	r.results.mu.Lock()
	cancelErr, ok := r.results.cancel[messageHash]
	r.results.mu.Unlock()
	if !ok {
		return fmt.Errorf("coordinated: local peer did not record a cancel result")
	}
	return cancelErr
}

func buildMessage(kind string, payload interface{}) (cluster.RepoMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return cluster.RepoMessage{}, fmt.Errorf("coordinated: marshal %s payload: %w", kind, err)
	}
	return cluster.RepoMessage{Kind: kind, Payload: data}, nil
}

func idStrings(ids []block.Id) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
