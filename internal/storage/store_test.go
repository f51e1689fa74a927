package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// storeFactories builds each Store implementation that runs the shared
// behavior suite. Postgres is covered separately by the integration test.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore(testLogger())
		},
		"sqlite": func(t *testing.T) Store {
			path := filepath.Join(t.TempDir(), "test.db")
			s, err := NewSQLiteStore(path, testLogger())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			require.NoError(t, s.Migrate(context.Background()))
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testBid(domain, bidder string) *Bid {
	return &Bid{
		Domain:     domain,
		Sealed:     []byte("sealed-blob-" + domain),
		Deposit:    100,
		Expiration: t0.Add(time.Hour),
		Bidder:     bidder,
		PlacedAt:   t0,
	}
}

func fund(t *testing.T, s Store, account string, amount uint64) {
	t.Helper()
	require.NoError(t, s.CreditAccount(context.Background(), account, amount))
}

func TestCreateBidGuards(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		fund(t, s, "alice", 1000)

		require.NoError(t, s.CreateBid(ctx, testBid("alpha.eth", "alice")))

		// Escrow debited.
		balance, err := s.GetBalance(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(900), balance)

		// Duplicate key.
		assert.ErrorIs(t, s.CreateBid(ctx, testBid("alpha.eth", "alice")), ErrBidExists)

		// Insufficient funds.
		assert.ErrorIs(t, s.CreateBid(ctx, testBid("beta.eth", "broke")), ErrInsufficientFunds)

		// Registered key can never be re-bid.
		require.NoError(t, s.MarkVerified(ctx, "alpha.eth", 42, t0.Add(time.Minute)))
		require.NoError(t, s.RegisterDomain(ctx, "alpha.eth", t0.Add(2*time.Minute)))
		assert.ErrorIs(t, s.CreateBid(ctx, testBid("alpha.eth", "alice")), ErrDomainRegistered)
	})
}

func TestMarkVerified(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		fund(t, s, "alice", 1000)
		require.NoError(t, s.CreateBid(ctx, testBid("alpha.eth", "alice")))

		assert.ErrorIs(t, s.MarkVerified(ctx, "missing.eth", 1, t0), ErrNotFound)
		assert.ErrorIs(t, s.MarkVerified(ctx, "alpha.eth", 1, t0.Add(time.Hour)), ErrBidExpired)

		require.NoError(t, s.MarkVerified(ctx, "alpha.eth", 42, t0.Add(time.Minute)))

		bid, err := s.GetBid(ctx, "alpha.eth")
		require.NoError(t, err)
		assert.True(t, bid.Verified)
		assert.Equal(t, uint64(42), bid.ClearAmount)

		// Irreversible; the stored value survives a second attempt.
		assert.ErrorIs(t, s.MarkVerified(ctx, "alpha.eth", 99, t0.Add(time.Minute)), ErrAlreadyVerified)
		bid, err = s.GetBid(ctx, "alpha.eth")
		require.NoError(t, err)
		assert.Equal(t, uint64(42), bid.ClearAmount)
	})
}

func TestRegisterDomain(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		fund(t, s, "alice", 100)
		require.NoError(t, s.CreateBid(ctx, testBid("alpha.eth", "alice")))

		assert.ErrorIs(t, s.RegisterDomain(ctx, "alpha.eth", t0), ErrNotVerified)

		require.NoError(t, s.MarkVerified(ctx, "alpha.eth", 42, t0.Add(time.Minute)))
		assert.ErrorIs(t, s.RegisterDomain(ctx, "alpha.eth", t0.Add(2*time.Hour)), ErrBidExpired)

		require.NoError(t, s.RegisterDomain(ctx, "alpha.eth", t0.Add(time.Minute)))

		registered, err := s.IsRegistered(ctx, "alpha.eth")
		require.NoError(t, err)
		assert.True(t, registered)

		// Deposit returned exactly once.
		balance, err := s.GetBalance(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(100), balance)

		// Record retained but settled; deposit zeroed, key out of the
		// active index.
		bid, err := s.GetBid(ctx, "alpha.eth")
		require.NoError(t, err)
		assert.True(t, bid.Settled)
		assert.Zero(t, bid.Deposit)
		domains, err := s.ListActiveDomains(ctx)
		require.NoError(t, err)
		assert.NotContains(t, domains, "alpha.eth")

		// Terminal: no second payout via either path.
		assert.ErrorIs(t, s.RegisterDomain(ctx, "alpha.eth", t0.Add(time.Minute)), ErrDomainRegistered)
		assert.ErrorIs(t, s.WithdrawBid(ctx, "alpha.eth", "alice", t0.Add(2*time.Hour)), ErrDomainRegistered)
		balance, err = s.GetBalance(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(100), balance)
	})
}

func TestWithdrawBid(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		fund(t, s, "alice", 100)
		require.NoError(t, s.CreateBid(ctx, testBid("alpha.eth", "alice")))

		assert.ErrorIs(t, s.WithdrawBid(ctx, "missing.eth", "alice", t0.Add(2*time.Hour)), ErrNotFound)
		assert.ErrorIs(t, s.WithdrawBid(ctx, "alpha.eth", "alice", t0.Add(time.Minute)), ErrBidNotExpired)
		assert.ErrorIs(t, s.WithdrawBid(ctx, "alpha.eth", "mallory", t0.Add(2*time.Hour)), ErrNotBidder)

		// Exactly at expiration counts as expired.
		require.NoError(t, s.WithdrawBid(ctx, "alpha.eth", "alice", t0.Add(time.Hour)))

		balance, err := s.GetBalance(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(100), balance)

		// Record deleted and gone from the index.
		_, err = s.GetBid(ctx, "alpha.eth")
		assert.ErrorIs(t, err, ErrNotFound)
		domains, err := s.ListActiveDomains(ctx)
		require.NoError(t, err)
		assert.NotContains(t, domains, "alpha.eth")

		// Withdrawal does not register the key; a fresh bid is allowed.
		registered, err := s.IsRegistered(ctx, "alpha.eth")
		require.NoError(t, err)
		assert.False(t, registered)
		require.NoError(t, s.CreateBid(ctx, testBid("alpha.eth", "alice")))
	})
}

func TestActiveDomainIndex(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		fund(t, s, "alice", 1000)

		for _, d := range []string{"a.eth", "b.eth", "c.eth", "d.eth"} {
			require.NoError(t, s.CreateBid(ctx, testBid(d, "alice")))
		}

		require.NoError(t, s.WithdrawBid(ctx, "b.eth", "alice", t0.Add(time.Hour)))

		domains, err := s.ListActiveDomains(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a.eth", "c.eth", "d.eth"}, domains)
	})
}

func TestAnnouncements(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		fund(t, s, "alice", 1000)

		require.NoError(t, s.CreateBid(ctx, testBid("a.eth", "alice")))
		require.NoError(t, s.CreateBid(ctx, testBid("b.eth", "alice")))
		require.NoError(t, s.CreateBid(ctx, testBid("c.eth", "alice")))

		all, err := s.ListAnnouncements(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "a.eth", all[0].Domain)
		assert.True(t, all[0].Seq < all[1].Seq && all[1].Seq < all[2].Seq)

		// Cursor resumes after the given sequence.
		tail, err := s.ListAnnouncements(ctx, all[0].Seq, 0)
		require.NoError(t, err)
		require.Len(t, tail, 2)
		assert.Equal(t, "b.eth", tail[0].Domain)

		limited, err := s.ListAnnouncements(ctx, 0, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		a, err := s.GetAnnouncement(ctx, "b.eth")
		require.NoError(t, err)
		assert.Equal(t, []byte("sealed-blob-b.eth"), a.Sealed)

		_, err = s.GetAnnouncement(ctx, "missing.eth")
		assert.ErrorIs(t, err, ErrNotFound)

		// Announcements are history; withdrawal does not erase them.
		require.NoError(t, s.WithdrawBid(ctx, "b.eth", "alice", t0.Add(time.Hour)))
		all, err = s.ListAnnouncements(ctx, 0, 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestAPIKeys(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		key, err := s.CreateAPIKey(ctx, "test-bidder")
		require.NoError(t, err)
		assert.Contains(t, key, "sr_key_")

		ak, err := s.ValidateAPIKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "test-bidder", ak.Name)
		require.NotEmpty(t, ak.ID)

		_, err = s.ValidateAPIKey(ctx, "sr_key_bogus")
		assert.ErrorIs(t, err, ErrNotFound)

		keys, err := s.ListAPIKeys(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, 1)

		require.NoError(t, s.RevokeAPIKey(ctx, ak.ID))
		_, err = s.ValidateAPIKey(ctx, key)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.RevokeAPIKey(ctx, ak.ID), ErrNotFound)
	})
}

func TestGetBidCopyIsolation(t *testing.T) {
	// Memory store must not leak internal state through returned pointers.
	s := NewMemoryStore(testLogger())
	ctx := context.Background()
	fund(t, s, "alice", 100)
	require.NoError(t, s.CreateBid(ctx, testBid("alpha.eth", "alice")))

	bid, err := s.GetBid(ctx, "alpha.eth")
	require.NoError(t, err)
	bid.Sealed[0] = 'X'
	bid.Verified = true

	again, err := s.GetBid(ctx, "alpha.eth")
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed-blob-alpha.eth"), again.Sealed)
	assert.False(t, again.Verified)
}
