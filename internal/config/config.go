package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the server
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Sealing   SealingConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Proxy     ProxyConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	IdleTimeout    int // seconds
	RequestTimeout int // seconds
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string // "memory", "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	Type string // "none" or "api-key"
}

// SealingConfig identifies this registry instance and the decryption oracle
// whose attestations it accepts. Sealed amounts are bound to InstanceID and
// attestations must verify against OraclePublicKey.
type SealingConfig struct {
	Backend         string // sealing backend name, "x25519" by default
	InstanceID      string // hex, 16 bytes
	OraclePublicKey string // hex, ed25519 attestation key (32 bytes)
	OracleBoxKey    string // hex, x25519 key amounts are sealed to (32 bytes)
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// MetricsConfig holds Prometheus metrics settings
type MetricsConfig struct {
	Enabled     bool
	ServiceName string
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int
}

// SecurityConfig holds security filter settings
type SecurityConfig struct {
	FilterEnabled bool
	MaxBodySizeMB int
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool
	TrustedProxies []string // CIDR notation
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("PORT", 8080),
			Host:           getEnv("HOST", "0.0.0.0"),
			ReadTimeout:    getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:   getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:    getEnvInt("SERVER_IDLE_TIMEOUT", 120),
			RequestTimeout: getEnvInt("SERVER_REQUEST_TIMEOUT", 30),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/sealreg.db"),
			},
		},
		Auth: AuthConfig{
			Type: getEnv("AUTH_TYPE", "api-key"),
		},
		Sealing: SealingConfig{
			Backend:         getEnv("SEALING_BACKEND", "x25519"),
			InstanceID:      getEnv("SEALING_INSTANCE_ID", ""),
			OraclePublicKey: getEnv("ORACLE_PUBLIC_KEY", ""),
			OracleBoxKey:    getEnv("ORACLE_BOX_KEY", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled:     getEnvBool("METRICS_ENABLED", true),
			ServiceName: getEnv("METRICS_SERVICE_NAME", "sealreg"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 300),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 50),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Security: SecurityConfig{
			FilterEnabled: getEnvBool("SECURITY_FILTER_ENABLED", true),
			MaxBodySizeMB: getEnvInt("SECURITY_MAX_BODY_SIZE_MB", 1),
		},
		Proxy: ProxyConfig{
			TrustProxy:     getEnvBool("TRUST_PROXY", false),
			TrustedProxies: getEnvStringSlice("TRUSTED_PROXIES", []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}),
		},
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	if err := cfg.Sealing.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that sealing identifiers decode to the expected lengths.
// Empty values pass; `serve` refuses to start without them, but key and
// account subcommands only touch storage.
func (c SealingConfig) Validate() error {
	if c.InstanceID != "" {
		if b, err := hex.DecodeString(c.InstanceID); err != nil || len(b) != 16 {
			return fmt.Errorf("SEALING_INSTANCE_ID must be 16 hex-encoded bytes")
		}
	}
	if c.OraclePublicKey != "" {
		if b, err := hex.DecodeString(c.OraclePublicKey); err != nil || len(b) != 32 {
			return fmt.Errorf("ORACLE_PUBLIC_KEY must be 32 hex-encoded bytes")
		}
	}
	if c.OracleBoxKey != "" {
		if b, err := hex.DecodeString(c.OracleBoxKey); err != nil || len(b) != 32 {
			return fmt.Errorf("ORACLE_BOX_KEY must be 32 hex-encoded bytes")
		}
	}
	return nil
}

// InstanceIDBytes decodes the configured instance ID.
func (c SealingConfig) InstanceIDBytes() ([]byte, error) {
	if c.InstanceID == "" {
		return nil, fmt.Errorf("SEALING_INSTANCE_ID is required")
	}
	return hex.DecodeString(c.InstanceID)
}

// OraclePublicKeyBytes decodes the oracle's attestation public key.
func (c SealingConfig) OraclePublicKeyBytes() ([]byte, error) {
	if c.OraclePublicKey == "" {
		return nil, fmt.Errorf("ORACLE_PUBLIC_KEY is required")
	}
	return hex.DecodeString(c.OraclePublicKey)
}

// OracleBoxKeyBytes decodes the oracle's X25519 sealing key.
func (c SealingConfig) OracleBoxKeyBytes() ([]byte, error) {
	if c.OracleBoxKey == "" {
		return nil, fmt.Errorf("ORACLE_BOX_KEY is required")
	}
	return hex.DecodeString(c.OracleBoxKey)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
