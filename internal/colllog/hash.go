package colllog

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// ChunkHash computes the deterministic hash of a chunk's contents
// (§4.8, §8 property 8: "priorHash equals the deterministic hash of
// its predecessor's contents").
func ChunkHash(c *Chunk) string {
	canonical, _ := json.Marshal(c)
	sum := sha256.Sum256(canonical)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
