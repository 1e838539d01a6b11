package transport

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/repository"
)

// Client is a repository.Transactor backed by a gRPC connection to a
// remote peer's transactor service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a remote peer's transactor service at target.
// Transport security (mTLS, peer transport framing) is out of scope
// for this spec (§1 OUT OF SCOPE); Dial uses plaintext credentials.
func Dial(ctx context.Context, target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})))
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

var _ repository.Transactor = (*Client)(nil)

func (c *Client) Get(ctx context.Context, blockIds []block.Id, gctx repository.GetContext) (map[block.Id]repository.GetResult, error) {
	req := &GetRequest{BlockIds: blockIds, Context: gctx}
	resp := new(GetResponse)
	if err := c.conn.Invoke(ctx, MethodGet, req, resp); err != nil {
		return nil, fmt.Errorf("transport: get: %w", err)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return resp.Results, nil
}

func (c *Client) Pend(ctx context.Context, req repository.PendRequest) repository.PendResponse {
	resp := new(repository.PendResponse)
	if err := c.conn.Invoke(ctx, MethodPend, &req, resp); err != nil {
		return repository.PendResponse{Success: false, Reason: err.Error()}
	}
	return *resp
}

func (c *Client) Commit(ctx context.Context, req repository.CommitRequest) repository.CommitResponse {
	resp := new(repository.CommitResponse)
	if err := c.conn.Invoke(ctx, MethodCommit, &req, resp); err != nil {
		return repository.CommitResponse{Success: false, Reason: err.Error()}
	}
	return *resp
}

func (c *Client) Cancel(ctx context.Context, req repository.CancelRequest) error {
	resp := new(CancelResponse)
	if err := c.conn.Invoke(ctx, MethodCancel, &req, resp); err != nil {
		return fmt.Errorf("transport: cancel: %w", err)
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	return nil
}
