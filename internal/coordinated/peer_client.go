package coordinated

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuemby/optimystic/internal/cluster"
	"github.com/cuemby/optimystic/internal/repository"
	"github.com/cuemby/optimystic/internal/transport"
)

// RemoteDialer resolves a cluster.PeerId to a live transport.Client,
// dialing lazily and caching the connection.
type RemoteDialer interface {
	Dial(ctx context.Context, peer cluster.PeerId, addr cluster.PeerAddr) (*transport.Client, error)
}

// peerClient implements cluster.PeerClient. Promise replays the
// cluster record as the corresponding transactor RPC (pend/commit/
// cancel) against the remote peer, performing the real mutating
// operation: the wire surface carries exactly the four transactor
// RPCs, so cluster consensus reuses them rather than adding a fifth
// message kind. Commit only confirms that a prior Promise already
// applied the effect; it does not dispatch the mutating RPC again.
type peerClient struct {
	dialer RemoteDialer
}

func newPeerClient(dialer RemoteDialer) *peerClient {
	return &peerClient{dialer: dialer}
}

func (p *peerClient) Promise(ctx context.Context, peer cluster.PeerId, record *cluster.ClusterRecord) (cluster.Signature, error) {
	return p.dispatch(ctx, peer, record)
}

// Commit confirms the effect Promise already durably applied on the
// remote peer; it never re-dispatches the mutating pend/commit/cancel
// RPC, mirroring localHandler.CommitLocal's no-op-confirmation
// contract so local and remote peers behave identically under the
// promise/commit protocol (§4.5/§4.9).
func (p *peerClient) Commit(ctx context.Context, peer cluster.PeerId, record *cluster.ClusterRecord) (cluster.Signature, error) {
	if _, ok := record.Peers[peer]; !ok {
		return cluster.Signature{}, fmt.Errorf("coordinated: no address for peer %s", peer)
	}
	return cluster.Signature{Type: cluster.SignatureApprove}, nil
}

func (p *peerClient) dispatch(ctx context.Context, peer cluster.PeerId, record *cluster.ClusterRecord) (cluster.Signature, error) {
	addr, ok := record.Peers[peer]
	if !ok {
		return cluster.Signature{}, fmt.Errorf("coordinated: no address for peer %s", peer)
	}
	client, err := p.dialer.Dial(ctx, peer, addr)
	if err != nil {
		return cluster.Signature{}, err
	}

	switch record.Message.Kind {
	case "pend":
		var req repository.PendRequest
		if err := json.Unmarshal(record.Message.Payload, &req); err != nil {
			return cluster.Signature{}, err
		}
		resp := client.Pend(ctx, req)
		if !resp.Success {
			return cluster.Signature{Type: cluster.SignatureReject, RejectReason: resp.Reason}, nil
		}
		return cluster.Signature{Type: cluster.SignatureApprove}, nil

	case "commit":
		var req repository.CommitRequest
		if err := json.Unmarshal(record.Message.Payload, &req); err != nil {
			return cluster.Signature{}, err
		}
		resp := client.Commit(ctx, req)
		if !resp.Success {
			return cluster.Signature{Type: cluster.SignatureReject, RejectReason: resp.Reason}, nil
		}
		return cluster.Signature{Type: cluster.SignatureApprove}, nil

	case "cancel":
		var req repository.CancelRequest
		if err := json.Unmarshal(record.Message.Payload, &req); err != nil {
			return cluster.Signature{}, err
		}
		if err := client.Cancel(ctx, req); err != nil {
			return cluster.Signature{Type: cluster.SignatureReject, RejectReason: err.Error()}, nil
		}
		return cluster.Signature{Type: cluster.SignatureApprove}, nil

	default:
		return cluster.Signature{}, fmt.Errorf("coordinated: unknown message kind %q", record.Message.Kind)
	}
}
