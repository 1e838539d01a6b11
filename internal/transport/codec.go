// Package transport implements the wire-level surface for the
// transactor contract (§6): a hand-registered gRPC service carrying
// the four transactor RPCs (get/pend/commit/cancel), encoded as JSON
// rather than protobuf since no .proto sources survived retrieval for
// this spec (see DESIGN.md).
package transport

import (
	"encoding/json"
	"fmt"
)

// jsonCodec implements grpc/encoding.Codec over encoding/json, so the
// hand-registered ServiceDesc below can carry the repository package's
// request/response structs directly (under encoding/json's default
// field names) instead of requiring protoc-generated types.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("transport: unmarshal: %w", err)
	}
	return nil
}
