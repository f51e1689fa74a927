package domain

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"

	"github.com/pendergraft/sealreg/internal/sealing"
)

func TestCheck(t *testing.T) {
	instanceID := make([]byte, sealing.InstanceIDSize)
	_, err := rand.Read(instanceID)
	require.NoError(t, err)

	boxPriv := make([]byte, 32)
	_, err = rand.Read(boxPriv)
	require.NoError(t, err)
	boxPub, err := curve25519.X25519(boxPriv, curve25519.Basepoint)
	require.NoError(t, err)

	attestPub, attestPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	registry, err := sealing.FromConfig(sealing.BackendX25519, instanceID, attestPub)
	require.NoError(t, err)
	svc := NewService(registry)
	ctx := context.Background()

	sealed, proof, err := sealing.Seal(instanceID, boxPub, 42)
	require.NoError(t, err)
	sig := ed25519.Sign(attestPriv, sealing.AttestationMessage(sealed, 42))

	t.Run("valid material passes both checks", func(t *testing.T) {
		result, err := svc.Check(ctx, CheckRequest{
			Sealed:      sealed,
			Proof:       proof,
			ClearAmount: 42,
			Attestation: sig,
		})
		require.NoError(t, err)
		assert.True(t, result.WellFormed)
		assert.True(t, result.Attested)
		assert.Equal(t, sealing.BackendX25519, result.Backend)
	})

	t.Run("wrong claimed value fails attestation only", func(t *testing.T) {
		result, err := svc.Check(ctx, CheckRequest{
			Sealed:      sealed,
			Proof:       proof,
			ClearAmount: 43,
			Attestation: sig,
		})
		require.NoError(t, err)
		assert.True(t, result.WellFormed)
		assert.False(t, result.Attested)
		assert.NotEmpty(t, result.AttestError)
	})

	t.Run("omitted proof skips well-formedness", func(t *testing.T) {
		result, err := svc.Check(ctx, CheckRequest{
			Sealed:      sealed,
			ClearAmount: 42,
			Attestation: sig,
		})
		require.NoError(t, err)
		assert.False(t, result.WellFormed)
		assert.Empty(t, result.WellFormedError)
		assert.True(t, result.Attested)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := svc.Check(ctx, CheckRequest{Backend: "tee-sgx"})
		assert.ErrorIs(t, err, ErrBackendNotFound)
	})
}
