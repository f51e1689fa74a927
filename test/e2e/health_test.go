//go:build e2e

package e2e

import (
	"context"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/sealreg/pkg/client"
)

// TestHealth_Endpoints tests all health check endpoints
func TestHealth_Endpoints(t *testing.T) {
	env := startEnv(t)

	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		t.Run(path+" returns 200", func(t *testing.T) {
			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, env.Server.URL+path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		})
	}
}

// TestInstanceIdentity verifies clients can discover everything they need to
// seal amounts for this registry.
func TestInstanceIdentity(t *testing.T) {
	env := startEnv(t)

	c := client.New(env.Server.URL, "")
	inst, err := c.GetInstance(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "x25519", inst.Backend)
	assert.Equal(t, hex.EncodeToString(env.InstanceID), inst.InstanceID)
	assert.Equal(t, hex.EncodeToString(env.Keys.BoxPub), inst.OracleBoxKey)
	assert.Equal(t, hex.EncodeToString(env.Keys.AttestPub), inst.OraclePublicKey)
	assert.NotEmpty(t, inst.APIVersion)
}

// TestCORS_Headers tests that CORS headers are set correctly
func TestCORS_Headers(t *testing.T) {
	env := startEnv(t)

	t.Run("OPTIONS request returns CORS headers", func(t *testing.T) {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodOptions, env.Server.URL+"/api/v1/bids", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "https://example.com")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "GET")
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "X-API-Key")
	})

	t.Run("GET request has CORS headers", func(t *testing.T) {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, env.Server.URL+"/api/v1/bids", nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})
}
