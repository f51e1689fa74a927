//go:build e2e

package e2e

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pendergraft/sealreg/internal/config"
	"github.com/pendergraft/sealreg/internal/sealing"
	"github.com/pendergraft/sealreg/internal/server"
	"github.com/pendergraft/sealreg/internal/storage"
	"github.com/pendergraft/sealreg/pkg/client"
	"github.com/pendergraft/sealreg/pkg/oracle"
)

// TestEnv holds one registry instance with its oracle.
type TestEnv struct {
	Server     *httptest.Server
	Store      storage.Store
	Oracle     *oracle.Oracle
	Keys       *oracle.Keys
	InstanceID []byte
}

// startEnv starts an in-process registry over the memory store, together
// with the oracle key material its sealing config points at.
func startEnv(t *testing.T) *TestEnv {
	t.Helper()

	keys, err := oracle.GenerateKeys()
	require.NoError(t, err)
	instanceID, err := sealing.NewInstanceID()
	require.NoError(t, err)

	cfg := &config.Config{
		Server:  config.ServerConfig{Port: 8080, Host: "0.0.0.0"},
		Storage: config.StorageConfig{Type: "memory"},
		Auth:    config.AuthConfig{Type: "api-key"},
		Sealing: config.SealingConfig{
			Backend:         "x25519",
			InstanceID:      hex.EncodeToString(instanceID),
			OraclePublicKey: hex.EncodeToString(keys.AttestPub),
			OracleBoxKey:    hex.EncodeToString(keys.BoxPub),
		},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Security:  config.SecurityConfig{FilterEnabled: false, MaxBodySizeMB: 50},
		Proxy:     config.ProxyConfig{TrustProxy: false},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.New(cfg.Storage, logger)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	srv, err := server.New(cfg, store, logger)
	require.NoError(t, err)

	testServer := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		testServer.Close()
		store.Close()
	})

	return &TestEnv{
		Server:     testServer,
		Store:      store,
		Oracle:     oracle.New(keys),
		Keys:       keys,
		InstanceID: instanceID,
	}
}

// seal encrypts an amount for this instance's oracle.
func (env *TestEnv) seal(t *testing.T, amount uint64) (sealed, proof []byte) {
	t.Helper()
	sealed, proof, err := sealing.Seal(env.InstanceID, env.Keys.BoxPub, amount)
	require.NoError(t, err)
	return sealed, proof
}

// newBidder creates an API key, funds its ledger account, and returns an
// authenticated client plus the bidder's account ID.
func (env *TestEnv) newBidder(t *testing.T, name string, funds uint64) (*client.Client, string) {
	t.Helper()
	ctx := context.Background()

	key, err := env.Store.CreateAPIKey(ctx, name)
	require.NoError(t, err)

	info, err := env.Store.ValidateAPIKey(ctx, key)
	require.NoError(t, err)

	if funds > 0 {
		require.NoError(t, env.Store.CreditAccount(ctx, info.ID, funds))
	}

	return client.New(env.Server.URL, key), info.ID
}

// balance reads a bidder's ledger balance.
func (env *TestEnv) balance(t *testing.T, account string) uint64 {
	t.Helper()
	b, err := env.Store.GetBalance(context.Background(), account)
	require.NoError(t, err)
	return b
}

// placeBid seals amount for this instance and places a bid through the API.
func (env *TestEnv) placeBid(t *testing.T, c *client.Client, domain string, amount, deposit uint64, expiration time.Time) {
	t.Helper()
	ctx := context.Background()

	inst, err := c.GetInstance(ctx)
	require.NoError(t, err)

	instanceID, err := hex.DecodeString(inst.InstanceID)
	require.NoError(t, err)
	boxKey, err := hex.DecodeString(inst.OracleBoxKey)
	require.NoError(t, err)

	sealed, proof, err := sealing.Seal(instanceID, boxKey, amount)
	require.NoError(t, err)

	require.NoError(t, c.Place(ctx, domain, client.PlaceRequest{
		Sealed:     sealed,
		Proof:      proof,
		Deposit:    deposit,
		Expiration: expiration,
	}))
}

// attestAll runs one oracle pass over the full announcement feed.
func (env *TestEnv) attestAll(t *testing.T) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := oracle.NewRunner(env.Oracle, client.New(env.Server.URL, ""), logger, time.Second, 0)
	require.NoError(t, runner.Poll(context.Background()))
}

// assertAPIError asserts that an error is an APIError with the expected code.
func assertAPIError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError, got %T: %v", err, err)
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
