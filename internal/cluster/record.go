// Package cluster implements C6: the two-phase (promise/commit)
// consensus protocol that drives a RepoMessage to durability across
// every peer responsible for a blockId.
package cluster

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// PeerId identifies a cluster member.
type PeerId string

// SignatureType tags a promise response.
type SignatureType string

const (
	SignatureApprove SignatureType = "approve"
	SignatureReject  SignatureType = "reject"
)

// Signature is a peer's response to a promise or commit request.
type Signature struct {
	Type         SignatureType `json:"type"`
	RejectReason string        `json:"rejectReason,omitempty"`
	Bytes        []byte        `json:"bytes,omitempty"`
}

// PeerAddr names the transport addresses a peer can be reached at.
type PeerAddr struct {
	Addrs []string `json:"addrs"`
}

// RepoMessage is the opaque transactor request being driven to
// consensus; it is whatever the caller handed to ExecuteClusterTransaction,
// carried as raw JSON so this package never depends on repository's
// request types directly.
type RepoMessage struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// ClusterRecord is the process-wide mutable state tracked for one
// in-flight cluster transaction, keyed by MessageHash.
type ClusterRecord struct {
	MessageHash  string `json:"messageHash"`
	Peers        map[PeerId]PeerAddr `json:"peers"`
	Message      RepoMessage `json:"message"`
	Promises     map[PeerId]Signature `json:"promises"`
	Commits      map[PeerId]Signature `json:"commits"`

	CoordinatingBlockIds []string `json:"coordinatingBlockIds"`

	SuggestedClusterSize  *int     `json:"suggestedClusterSize,omitempty"`
	MinRequiredSize       *int     `json:"minRequiredSize,omitempty"`
	NetworkSizeHint       *int     `json:"networkSizeHint,omitempty"`
	NetworkSizeConfidence *float64 `json:"networkSizeConfidence,omitempty"`
}

// NewClusterRecord builds an empty record for msg addressed to peers.
func NewClusterRecord(msg RepoMessage, peers map[PeerId]PeerAddr, blockIds []string) *ClusterRecord {
	return &ClusterRecord{
		MessageHash:          MessageHash(msg),
		Peers:                peers,
		Message:              msg,
		Promises:             make(map[PeerId]Signature),
		Commits:              make(map[PeerId]Signature),
		CoordinatingBlockIds: blockIds,
	}
}

// MessageHash computes the stable hash of a RepoMessage's canonical
// JSON encoding (base64url of the SHA-256 digest, matching §4.9's
// "base58btc of SHA-256 digest" in spirit — base64url is used here
// since no base58 library is present anywhere in the example pack).
func MessageHash(msg RepoMessage) string {
	canonical, _ := json.Marshal(msg)
	sum := sha256.Sum256(canonical)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
