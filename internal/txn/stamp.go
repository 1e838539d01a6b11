// Package txn implements C9: the multi-collection transaction
// coordinator that drives GATHER/PEND/COMMIT/CANCEL across every
// collection a transaction touches.
package txn

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Stamp identifies the originating peer, time, engine, and schema of
// a transaction (§4.9).
type Stamp struct {
	Id         string `json:"id"`
	PeerId     string `json:"peerId"`
	Timestamp  int64  `json:"timestamp"`
	EngineId   string `json:"engineId"`
	SchemaHash string `json:"schemaHash"`
}

// NewStamp derives stamp.id from (peerId, timestamp, engineId,
// schemaHash) via a cryptographic hash, per §4.9: two peers must not
// collide. timestamp is supplied by the caller rather than read from
// the clock here, keeping this package free of wall-clock calls.
func NewStamp(peerId string, timestamp int64, engineId, schemaHash string) Stamp {
	s := Stamp{PeerId: peerId, Timestamp: timestamp, EngineId: engineId, SchemaHash: schemaHash}
	s.Id = hashStamp(s)
	return s
}

func hashStamp(s Stamp) string {
	canonical := fmt.Sprintf("%s|%d|%s|%s", s.PeerId, s.Timestamp, s.EngineId, s.SchemaHash)
	sum := sha256.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// TransactionId computes transaction.id as a hash of (stamp.id,
// statements, reads), per §4.9: different statements or reads must
// produce different ids.
func TransactionId(stamp Stamp, statements []string, reads []ReadRef) string {
	payload := struct {
		StampId    string    `json:"stampId"`
		Statements []string  `json:"statements"`
		Reads      []ReadRef `json:"reads"`
	}{StampId: stamp.Id, Statements: statements, Reads: reads}
	canonical, _ := json.Marshal(payload)
	sum := sha256.Sum256(canonical)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
