package coordinated

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/optimystic/internal/cluster"
	"github.com/cuemby/optimystic/internal/transport"
)

// CachingDialer dials each peer address once and reuses the
// connection for subsequent calls.
type CachingDialer struct {
	mu      sync.Mutex
	clients map[cluster.PeerId]*transport.Client
}

// NewCachingDialer constructs an empty CachingDialer.
func NewCachingDialer() *CachingDialer {
	return &CachingDialer{clients: make(map[cluster.PeerId]*transport.Client)}
}

func (d *CachingDialer) Dial(ctx context.Context, peer cluster.PeerId, addr cluster.PeerAddr) (*transport.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[peer]; ok {
		return c, nil
	}
	if len(addr.Addrs) == 0 {
		return nil, fmt.Errorf("coordinated: peer %s has no addresses", peer)
	}
	client, err := transport.Dial(ctx, addr.Addrs[0])
	if err != nil {
		return nil, err
	}
	d.clients[peer] = client
	return client, nil
}

// Close tears down every cached connection.
func (d *CachingDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for peer, c := range d.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("coordinated: close %s: %w", peer, err)
		}
	}
	d.clients = make(map[cluster.PeerId]*transport.Client)
	return firstErr
}
