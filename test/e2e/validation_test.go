//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/sealreg/internal/sealing"
	"github.com/pendergraft/sealreg/pkg/client"
)

// TestPlaceValidation covers the rejections a placement can hit.
func TestPlaceValidation(t *testing.T) {
	env := startEnv(t)
	ctx := context.Background()

	alice, _ := env.newBidder(t, "alice", 100)
	expiration := time.Now().Add(time.Hour)

	t.Run("invalid domain name", func(t *testing.T) {
		sealed, proof := env.seal(t, 5)
		err := alice.Place(ctx, "UPPER CASE!", client.PlaceRequest{
			Sealed: sealed, Proof: proof, Deposit: 10, Expiration: expiration,
		})
		assertAPIError(t, err, "INVALID_REQUEST")
	})

	t.Run("zero deposit", func(t *testing.T) {
		sealed, proof := env.seal(t, 5)
		err := alice.Place(ctx, "nodeposit.eth", client.PlaceRequest{
			Sealed: sealed, Proof: proof, Deposit: 0, Expiration: expiration,
		})
		assertAPIError(t, err, "INVALID_REQUEST")
	})

	t.Run("expiration in the past", func(t *testing.T) {
		sealed, proof := env.seal(t, 5)
		err := alice.Place(ctx, "stale.eth", client.PlaceRequest{
			Sealed: sealed, Proof: proof, Deposit: 10, Expiration: time.Now().Add(-time.Hour),
		})
		assertAPIError(t, err, "INVALID_REQUEST")
	})

	t.Run("malformed sealed blob", func(t *testing.T) {
		err := alice.Place(ctx, "garbled.eth", client.PlaceRequest{
			Sealed: []byte("not an envelope"), Proof: make([]byte, 32),
			Deposit: 10, Expiration: expiration,
		})
		assertAPIError(t, err, "MALFORMED_AMOUNT")
	})

	t.Run("proof does not match blob", func(t *testing.T) {
		sealed, proof := env.seal(t, 5)
		proof[0] ^= 0xff
		err := alice.Place(ctx, "forged.eth", client.PlaceRequest{
			Sealed: sealed, Proof: proof, Deposit: 10, Expiration: expiration,
		})
		assertAPIError(t, err, "MALFORMED_AMOUNT")
	})

	t.Run("blob sealed for another instance", func(t *testing.T) {
		otherID, err := sealing.NewInstanceID()
		require.NoError(t, err)
		sealed, proof, err := sealing.Seal(otherID, env.Keys.BoxPub, 5)
		require.NoError(t, err)
		err = alice.Place(ctx, "foreign.eth", client.PlaceRequest{
			Sealed: sealed, Proof: proof, Deposit: 10, Expiration: expiration,
		})
		assertAPIError(t, err, "MALFORMED_AMOUNT")
	})

	t.Run("insufficient funds", func(t *testing.T) {
		sealed, proof := env.seal(t, 5)
		err := alice.Place(ctx, "rich.eth", client.PlaceRequest{
			Sealed: sealed, Proof: proof, Deposit: 5000, Expiration: expiration,
		})
		assertAPIError(t, err, "INSUFFICIENT_FUNDS")
	})

	t.Run("duplicate bid", func(t *testing.T) {
		env.placeBid(t, alice, "taken.eth", 5, 10, expiration)
		sealed, proof := env.seal(t, 6)
		err := alice.Place(ctx, "taken.eth", client.PlaceRequest{
			Sealed: sealed, Proof: proof, Deposit: 10, Expiration: expiration,
		})
		assertAPIError(t, err, "BID_EXISTS")
	})
}

// TestAttestationBinding verifies the registry only accepts signatures that
// bind this exact blob to this exact amount, from this oracle.
func TestAttestationBinding(t *testing.T) {
	env := startEnv(t)
	ctx := context.Background()

	alice, _ := env.newBidder(t, "alice", 100)
	env.placeBid(t, alice, "bound.eth", 42, 50, time.Now().Add(time.Hour))

	sealed, err := alice.GetSealed(ctx, "bound.eth")
	require.NoError(t, err)

	clear, attestation, err := env.Oracle.Attest(sealed)
	require.NoError(t, err)

	t.Run("wrong claimed amount", func(t *testing.T) {
		err := alice.Verify(ctx, "bound.eth", client.VerifyRequest{
			ClearAmount: clear + 1, Attestation: attestation,
		})
		assertAPIError(t, err, "ATTESTATION_REJECTED")
	})

	t.Run("tampered signature", func(t *testing.T) {
		bad := bytes.Clone(attestation)
		bad[0] ^= 0xff
		err := alice.Verify(ctx, "bound.eth", client.VerifyRequest{
			ClearAmount: clear, Attestation: bad,
		})
		assertAPIError(t, err, "ATTESTATION_REJECTED")
	})

	t.Run("signature from the wrong oracle", func(t *testing.T) {
		_, rogue, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		forged := ed25519.Sign(rogue, sealing.AttestationMessage(sealed, clear))
		err = alice.Verify(ctx, "bound.eth", client.VerifyRequest{
			ClearAmount: clear, Attestation: forged,
		})
		assertAPIError(t, err, "ATTESTATION_REJECTED")
	})

	t.Run("genuine attestation accepted once", func(t *testing.T) {
		require.NoError(t, alice.Verify(ctx, "bound.eth", client.VerifyRequest{
			ClearAmount: clear, Attestation: attestation,
		}))
		err := alice.Verify(ctx, "bound.eth", client.VerifyRequest{
			ClearAmount: clear, Attestation: attestation,
		})
		assertAPIError(t, err, "ALREADY_VERIFIED")
	})
}

// TestAttestationPreCheck exercises the stateless gateway dry-run endpoint.
func TestAttestationPreCheck(t *testing.T) {
	env := startEnv(t)
	ctx := context.Background()

	c := client.New(env.Server.URL, "")
	sealed, proof := env.seal(t, 77)
	clear, attestation, err := env.Oracle.Attest(sealed)
	require.NoError(t, err)

	result, err := c.CheckAttestation(ctx, client.CheckRequest{
		Sealed: sealed, Proof: proof, ClearAmount: clear, Attestation: attestation,
	})
	require.NoError(t, err)
	assert.Equal(t, "x25519", result.Backend)
	assert.True(t, result.WellFormed)
	assert.True(t, result.Attested)

	result, err = c.CheckAttestation(ctx, client.CheckRequest{
		Sealed: sealed, Proof: proof, ClearAmount: clear + 1, Attestation: attestation,
	})
	require.NoError(t, err)
	assert.True(t, result.WellFormed)
	assert.False(t, result.Attested)
	assert.NotEmpty(t, result.AttestError)
}

// TestAnnouncementFeed checks the feed the oracle tails: monotonic sequence
// numbers, cursor paging, and blobs surviving bid settlement.
func TestAnnouncementFeed(t *testing.T) {
	env := startEnv(t)
	ctx := context.Background()

	alice, _ := env.newBidder(t, "alice", 1000)
	c := client.New(env.Server.URL, "")

	domains := []string{"one.eth", "two.eth", "three.eth"}
	for i, d := range domains {
		env.placeBid(t, alice, d, uint64(10+i), 50, time.Now().Add(time.Hour))
	}

	feed, err := c.Announcements(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, feed.Announcements, 3)

	var prev int64
	for i, ann := range feed.Announcements {
		assert.Greater(t, ann.Seq, prev, "sequence must be strictly increasing")
		assert.Equal(t, domains[i], ann.Domain)
		assert.NotEmpty(t, ann.Sealed)
		prev = ann.Seq
	}

	// Resume from a cursor.
	page, err := c.Announcements(ctx, feed.Announcements[0].Seq, 0)
	require.NoError(t, err)
	assert.Len(t, page.Announcements, 2)

	// Limit is honored.
	page, err = c.Announcements(ctx, 0, 1)
	require.NoError(t, err)
	assert.Len(t, page.Announcements, 1)
	assert.Equal(t, feed.Announcements[0].Seq, page.NextSeq)

	// Lookup by domain.
	ann, err := env.Store.GetAnnouncement(ctx, "two.eth")
	require.NoError(t, err)
	assert.Equal(t, "two.eth", ann.Domain)
}
