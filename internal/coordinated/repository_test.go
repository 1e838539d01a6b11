package coordinated

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/cluster"
	"github.com/cuemby/optimystic/internal/repository"
)

// fakeLocal is a scripted repository.Transactor standing in for the
// local storage repository (C5).
type fakeLocal struct {
	pendSuccess   bool
	commitSuccess bool
}

func (f *fakeLocal) Get(context.Context, []block.Id, repository.GetContext) (map[block.Id]repository.GetResult, error) {
	return nil, nil
}

func (f *fakeLocal) Pend(_ context.Context, req repository.PendRequest) repository.PendResponse {
	if !f.pendSuccess {
		return repository.PendResponse{Success: false, Reason: "rejected"}
	}
	return repository.PendResponse{Success: true, BlockIds: block.BlockIdsForTransforms(req.Transforms)}
}

func (f *fakeLocal) Commit(context.Context, repository.CommitRequest) repository.CommitResponse {
	if !f.commitSuccess {
		return repository.CommitResponse{Success: false, Reason: "commit rejected"}
	}
	return repository.CommitResponse{Success: true}
}

func (f *fakeLocal) Cancel(context.Context, repository.CancelRequest) error {
	return nil
}

func newSinglePeerRepo(local repository.Transactor) *Repository {
	localPeer := cluster.PeerId("local")
	resolver := StaticResolver{Peers: map[cluster.PeerId]cluster.PeerAddr{localPeer: {Addrs: []string{"local"}}}}
	return New(localPeer, local, resolver, cluster.DefaultThresholds(), cluster.DefaultRetryConfig(), nil, true, NewCachingDialer())
}

func TestCoordinatedPendSucceedsWithSinglePeer(t *testing.T) {
	repo := newSinglePeerRepo(&fakeLocal{pendSuccess: true})
	transforms := block.NewTransforms()
	transforms.Inserts["b1"] = &block.Block{Header: block.Header{Id: "b1"}}

	resp := repo.Pend(context.Background(), repository.PendRequest{ActionId: "a1", Transforms: transforms})
	require.True(t, resp.Success)
	require.Contains(t, resp.BlockIds, block.Id("b1"))
}

func TestCoordinatedPendFailsWhenLocalRejects(t *testing.T) {
	repo := newSinglePeerRepo(&fakeLocal{pendSuccess: false})
	transforms := block.NewTransforms()
	transforms.Inserts["b1"] = &block.Block{Header: block.Header{Id: "b1"}}

	resp := repo.Pend(context.Background(), repository.PendRequest{ActionId: "a1", Transforms: transforms})
	require.False(t, resp.Success)
}

func TestCoordinatedCommitSucceeds(t *testing.T) {
	repo := newSinglePeerRepo(&fakeLocal{pendSuccess: true, commitSuccess: true})

	resp := repo.Commit(context.Background(), repository.CommitRequest{ActionId: "a1", BlockIds: []block.Id{"b1"}})
	require.True(t, resp.Success)
}

func TestCoordinatedCancelSucceeds(t *testing.T) {
	repo := newSinglePeerRepo(&fakeLocal{})

	err := repo.Cancel(context.Background(), repository.CancelRequest{ActionId: "a1", BlockIds: []block.Id{"b1"}})
	require.NoError(t, err)
}
