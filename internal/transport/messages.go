package transport

import (
	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/repository"
)

// GetRequest is the wire request for the Get RPC: repository.Transactor.Get
// takes two positional arguments, so the wire form bundles them into
// one JSON message.
type GetRequest struct {
	BlockIds []block.Id            `json:"blockIds"`
	Context  repository.GetContext `json:"context"`
}

// GetResponse is the wire response for the Get RPC.
type GetResponse struct {
	Results map[block.Id]repository.GetResult `json:"results"`
	Error   string                            `json:"error,omitempty"`
}

// CancelResponse is the wire response for the Cancel RPC, which
// locally returns only an error.
type CancelResponse struct {
	Error string `json:"error,omitempty"`
}
