package cluster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/optimystic/internal/events"
)

type fakeLocal struct{}

func (fakeLocal) PromiseLocal(ctx context.Context, record *ClusterRecord) Signature {
	return Signature{Type: SignatureApprove}
}

func (fakeLocal) CommitLocal(ctx context.Context, record *ClusterRecord) Signature {
	return Signature{Type: SignatureApprove}
}

type fakeClient struct {
	mu           sync.Mutex
	rejectPeers  map[PeerId]bool
	failCommit   map[PeerId]int // number of times to fail commit before succeeding
	commitCalls  map[PeerId]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		rejectPeers: make(map[PeerId]bool),
		failCommit:  make(map[PeerId]int),
		commitCalls: make(map[PeerId]int),
	}
}

func (f *fakeClient) Promise(ctx context.Context, peer PeerId, record *ClusterRecord) (Signature, error) {
	if f.rejectPeers[peer] {
		return Signature{Type: SignatureReject, RejectReason: "test"}, nil
	}
	return Signature{Type: SignatureApprove}, nil
}

func (f *fakeClient) Commit(ctx context.Context, peer PeerId, record *ClusterRecord) (Signature, error) {
	f.mu.Lock()
	f.commitCalls[peer]++
	calls := f.commitCalls[peer]
	f.mu.Unlock()

	if n, ok := f.failCommit[peer]; ok && calls <= n {
		return Signature{}, errTransientCommitFailure
	}
	return Signature{Type: SignatureApprove}, nil
}

var errTransientCommitFailure = errors.New("transient commit failure")

func peerSet(n int) map[PeerId]PeerAddr {
	peers := make(map[PeerId]PeerAddr, n)
	for i := 0; i < n; i++ {
		peers[PeerId(rune('a'+i))] = PeerAddr{}
	}
	return peers
}

func TestExecuteClusterTransactionAllApprove(t *testing.T) {
	client := newFakeClient()
	coord := NewCoordinator("a", client, fakeLocal{}, DefaultThresholds(), DefaultRetryConfig(), nil, true)

	peers := peerSet(4) // "a","b","c","d" -- "a" is local
	outcome, err := coord.ExecuteClusterTransaction(context.Background(), RepoMessage{Kind: "pend"}, peers, []string{"b1"})
	require.NoError(t, err)
	require.Equal(t, StateCommitted, outcome.State)
	require.Empty(t, outcome.Stragglers)
}

func TestExecuteClusterTransactionRejectedByValidators(t *testing.T) {
	client := newFakeClient()
	peers := peerSet(4)
	// Reject more than maxAllowedRejections (peerCount=4, superMajority=ceil(4*2/3)=3, maxAllowed=1)
	client.rejectPeers["b"] = true
	client.rejectPeers["c"] = true

	coord := NewCoordinator("a", client, fakeLocal{}, DefaultThresholds(), DefaultRetryConfig(), nil, true)
	outcome, err := coord.ExecuteClusterTransaction(context.Background(), RepoMessage{Kind: "pend"}, peers, []string{"b1"})
	require.ErrorIs(t, err, ErrRejectedByValidators)
	require.Equal(t, StateRejectedByValidators, outcome.State)
}

func TestExecuteClusterTransactionCommitPartialRetriesStragglers(t *testing.T) {
	client := newFakeClient()
	peers := peerSet(4)
	// b fails commit the first attempt, succeeds after.
	client.failCommit["b"] = 1

	retry := RetryConfig{InitialInterval: 10 * time.Millisecond, BackoffFactor: 1, MaxInterval: 50 * time.Millisecond, MaxAttempts: 3}
	coord := NewCoordinator("a", client, fakeLocal{}, DefaultThresholds(), retry, nil, true)

	outcome, err := coord.ExecuteClusterTransaction(context.Background(), RepoMessage{Kind: "pend"}, peers, []string{"b1"})
	require.NoError(t, err)
	// Simple majority (3/4) still reached even with b missing initially.
	require.Contains(t, []State{StateCommitted, StateCommitPartial}, outcome.State)

	// Give the background retry goroutine time to recover the straggler.
	time.Sleep(100 * time.Millisecond)
	client.mu.Lock()
	defer client.mu.Unlock()
	require.GreaterOrEqual(t, client.commitCalls["b"], 2)
}

func TestMessageHashDeterministic(t *testing.T) {
	msg := RepoMessage{Kind: "pend", Payload: []byte(`{"a":1}`)}
	require.Equal(t, MessageHash(msg), MessageHash(msg))
}

func TestThresholdsDefaults(t *testing.T) {
	th := DefaultThresholds()
	require.Equal(t, 3, th.SuperMajorityCount(4)) // ceil(4*2/3) = 3
	require.Equal(t, 3, th.SimpleMajorityCount(4)) // floor(4*0.5)+1 = 3
	require.Equal(t, 1, th.MaxAllowedRejections(4))
}

func TestWithinOrderOfMagnitude(t *testing.T) {
	require.True(t, WithinOrderOfMagnitude(5, 1))
	require.True(t, WithinOrderOfMagnitude(1, 5))
	require.False(t, WithinOrderOfMagnitude(50, 1))
}

func TestExecuteClusterTransactionPublishesEvents(t *testing.T) {
	client := newFakeClient()
	coord := NewCoordinator("a", client, fakeLocal{}, DefaultThresholds(), DefaultRetryConfig(), nil, true)

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	coord.SetEvents(broker)
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	peers := peerSet(4)
	outcome, err := coord.ExecuteClusterTransaction(context.Background(), RepoMessage{Kind: "pend"}, peers, []string{"b1"})
	require.NoError(t, err)
	require.Equal(t, StateCommitted, outcome.State)

	seen := map[events.Type]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub:
			seen[ev.Type] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for cluster event")
		}
	}
	require.True(t, seen[events.ClusterPromised])
	require.True(t, seen[events.ClusterCommitted])
}
