//go:build e2e

package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/sealreg/pkg/client"
)

// TestAuthRequired checks that bidder operations demand a valid API key
// while reads and settlement stay public.
func TestAuthRequired(t *testing.T) {
	env := startEnv(t)
	ctx := context.Background()

	alice, _ := env.newBidder(t, "alice", 100)
	env.placeBid(t, alice, "guarded.eth", 7, 20, time.Now().Add(time.Hour))

	anon := client.New(env.Server.URL, "")

	t.Run("place without key", func(t *testing.T) {
		sealed, proof := env.seal(t, 3)
		err := anon.Place(ctx, "sneaky.eth", client.PlaceRequest{
			Sealed: sealed, Proof: proof, Deposit: 10, Expiration: time.Now().Add(time.Hour),
		})
		assertAPIError(t, err, "UNAUTHORIZED")
	})

	t.Run("place with bogus key", func(t *testing.T) {
		bogus := client.New(env.Server.URL, "sr_key_bogus")
		sealed, proof := env.seal(t, 3)
		err := bogus.Place(ctx, "sneaky.eth", client.PlaceRequest{
			Sealed: sealed, Proof: proof, Deposit: 10, Expiration: time.Now().Add(time.Hour),
		})
		assertAPIError(t, err, "UNAUTHORIZED")
	})

	t.Run("withdraw without key", func(t *testing.T) {
		err := anon.Withdraw(ctx, "guarded.eth")
		assertAPIError(t, err, "UNAUTHORIZED")
	})

	t.Run("reads are public", func(t *testing.T) {
		bid, err := anon.GetBid(ctx, "guarded.eth")
		require.NoError(t, err)
		assert.Equal(t, "guarded.eth", bid.Domain)

		_, err = anon.ListActive(ctx)
		require.NoError(t, err)

		_, err = anon.IsRegistered(ctx, "guarded.eth")
		require.NoError(t, err)
	})

	t.Run("settlement is public", func(t *testing.T) {
		// Verification comes from the oracle, which holds no API key.
		env.attestAll(t)

		bid, err := anon.GetBid(ctx, "guarded.eth")
		require.NoError(t, err)
		assert.True(t, bid.Verified)

		require.NoError(t, anon.Register(ctx, "guarded.eth"))
	})

	t.Run("revoked key rejected", func(t *testing.T) {
		victim, _ := env.newBidder(t, "victim", 100)

		keys, err := env.Store.ListAPIKeys(ctx)
		require.NoError(t, err)
		for _, k := range keys {
			if k.Name == "victim" {
				require.NoError(t, env.Store.RevokeAPIKey(ctx, k.ID))
			}
		}

		sealed, proof := env.seal(t, 3)
		err = victim.Place(ctx, "revoked.eth", client.PlaceRequest{
			Sealed: sealed, Proof: proof, Deposit: 10, Expiration: time.Now().Add(time.Hour),
		})
		assertAPIError(t, err, "UNAUTHORIZED")
	})
}
