package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignerSignAndVerify(t *testing.T) {
	signer, err := GenerateSigner(2048)
	require.NoError(t, err)

	sig, err := signer.Sign("hash-abc")
	require.NoError(t, err)
	require.NoError(t, Verify(signer.PublicKey(), "hash-abc", sig))
}

func TestSignerVerifyRejectsTamperedHash(t *testing.T) {
	signer, err := GenerateSigner(2048)
	require.NoError(t, err)

	sig, err := signer.Sign("hash-abc")
	require.NoError(t, err)
	require.Error(t, Verify(signer.PublicKey(), "hash-xyz", sig))
}
