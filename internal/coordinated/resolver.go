// Package coordinated implements C7: the per-peer request dispatcher
// that routes a Transactor call to the cluster of peers responsible
// for the blocks it touches, driving it to durability through the
// C6 promise/commit protocol before answering the caller.
package coordinated

import (
	"context"

	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/cluster"
)

// PeerResolver maps a set of block ids to the cluster of peers
// responsible for them. The DHT / routing layer that computes this
// mapping in a real deployment is out of scope (§1 OUT OF SCOPE); this
// package consumes whatever PeerResolver a deployment wires in.
type PeerResolver interface {
	ResponsiblePeers(ctx context.Context, blockIds []block.Id) (map[cluster.PeerId]cluster.PeerAddr, error)
}

// StaticResolver is the simplest PeerResolver: every block resolves to
// the same fixed peer set, suitable for a single-cluster deployment or
// for tests.
type StaticResolver struct {
	Peers map[cluster.PeerId]cluster.PeerAddr
}

func (r StaticResolver) ResponsiblePeers(context.Context, []block.Id) (map[cluster.PeerId]cluster.PeerAddr, error) {
	return r.Peers, nil
}
