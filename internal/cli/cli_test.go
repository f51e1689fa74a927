package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetServer(t *testing.T) {
	// Save original values
	origServer := server
	origEnv := os.Getenv("SEALREG_SERVER")
	defer func() {
		server = origServer
		os.Setenv("SEALREG_SERVER", origEnv)
	}()

	t.Run("flag takes precedence", func(t *testing.T) {
		server = "http://flag-server:8080"
		os.Setenv("SEALREG_SERVER", "http://env-server:8080")
		assert.Equal(t, "http://flag-server:8080", getServer())
	})

	t.Run("env var when no flag", func(t *testing.T) {
		server = ""
		os.Setenv("SEALREG_SERVER", "http://env-server:8080")
		assert.Equal(t, "http://env-server:8080", getServer())
	})

	t.Run("default when nothing set", func(t *testing.T) {
		server = ""
		os.Unsetenv("SEALREG_SERVER")
		assert.Equal(t, "http://localhost:8080", getServer())
	})
}

func TestGetAPIKey(t *testing.T) {
	// Save original values
	origKey := apiKey
	origEnv := os.Getenv("SEALREG_API_KEY")
	defer func() {
		apiKey = origKey
		os.Setenv("SEALREG_API_KEY", origEnv)
	}()

	t.Run("flag takes precedence", func(t *testing.T) {
		apiKey = "flag-key"
		os.Setenv("SEALREG_API_KEY", "env-key")
		assert.Equal(t, "flag-key", getAPIKey())
	})

	t.Run("env var when no flag", func(t *testing.T) {
		apiKey = ""
		os.Setenv("SEALREG_API_KEY", "env-key")
		assert.Equal(t, "env-key", getAPIKey())
	})

	t.Run("empty when nothing set", func(t *testing.T) {
		apiKey = ""
		os.Unsetenv("SEALREG_API_KEY")
		// A credential stored in ~/.sealreg/credentials for the default
		// server would make this non-empty; skip rather than fail.
		result := getAPIKey()
		if result != "" {
			t.Skip("skipping: credential exists for default server")
		}
		assert.Equal(t, "", result)
	})
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"sr_key_abcdefghijklmnop", "sr_key_a...mnop"},
		{"short", "****"},
		{"12345678", "****"},
		{"123456789", "12345678...6789"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskAPIKey(tt.key))
		})
	}
}

func TestCredentialsFilePath(t *testing.T) {
	path := credentialsFilePath()
	assert.Contains(t, path, ".sealreg")
	assert.Contains(t, path, "credentials")
}

func TestCredentialStorage(t *testing.T) {
	// Create temp directory for credentials
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)
	os.Setenv("HOME", tmpDir)

	// Ensure the directory exists
	os.MkdirAll(filepath.Join(tmpDir, ".sealreg"), 0700)

	t.Run("save and load credential", func(t *testing.T) {
		err := saveCredential("http://test:8080", "test-api-key")
		require.NoError(t, err)

		key := getCredential("http://test:8080")
		assert.Equal(t, "test-api-key", key)
	})

	t.Run("load non-existent credential", func(t *testing.T) {
		key := getCredential("http://nonexistent:8080")
		assert.Equal(t, "", key)
	})

	t.Run("load and save credentials", func(t *testing.T) {
		err := saveCredential("http://server1:8080", "key1")
		require.NoError(t, err)
		err = saveCredential("http://server2:8080", "key2")
		require.NoError(t, err)

		creds, err := loadCredentials()
		require.NoError(t, err)
		assert.Len(t, creds.Servers, 3) // Including test:8080 from previous test
	})
}

func TestProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)
	os.Chdir(tmpDir)

	t.Run("no config file", func(t *testing.T) {
		_, _, err := loadProjectConfig()
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("valid config file", func(t *testing.T) {
		content := `server = "http://test:8080"
default_deposit = 250
default_expires = "48h"
`
		require.NoError(t, os.WriteFile("sealreg.toml", []byte(content), 0644))

		loaded, path, err := loadProjectConfig()
		require.NoError(t, err)
		assert.Equal(t, "sealreg.toml", path)
		assert.Equal(t, "http://test:8080", loaded.Server)
		assert.Equal(t, uint64(250), loaded.DefaultDeposit)

		d, ok := loaded.defaultExpires()
		require.True(t, ok)
		assert.Equal(t, "48h0m0s", d.String())
	})

	t.Run("bad default_expires ignored", func(t *testing.T) {
		cfg := &ProjectConfig{DefaultExpires: "soon"}
		_, ok := cfg.defaultExpires()
		assert.False(t, ok)
	})
}
