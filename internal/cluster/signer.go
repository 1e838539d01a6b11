package cluster

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

// Signer signs and verifies promise/commit signatures over a
// messageHash: bare RSA message signing with no certificate issuance
// or rotation concept, only per-message signatures over the cluster
// record.
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner wraps an existing RSA private key.
func NewSigner(key *rsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// GenerateSigner creates a Signer backed by a fresh RSA key, for
// tests and single-binary deployments that have no external key
// management.
func GenerateSigner(bits int) (*Signer, error) {
	if bits <= 0 {
		bits = 2048
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("cluster: generate signer key: %w", err)
	}
	return &Signer{key: key}, nil
}

// Sign produces signature bytes over messageHash.
func (s *Signer) Sign(messageHash string) ([]byte, error) {
	digest := sha256.Sum256([]byte(messageHash))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("cluster: sign message: %w", err)
	}
	return sig, nil
}

// PublicKey exposes the verification key.
func (s *Signer) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

// Verify checks sig against messageHash under pub.
func Verify(pub *rsa.PublicKey, messageHash string, sig []byte) error {
	digest := sha256.Sum256([]byte(messageHash))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("cluster: verify signature: %w", err)
	}
	return nil
}
