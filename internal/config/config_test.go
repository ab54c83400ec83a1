package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Vault.PublicKey = "pub"
	cfg.Vault.EncryptedKeypair = "blob"
	cfg.Vault.KeypairPassword = "pw"
	cfg.Vault.EncryptionSecret = "secret"
	return cfg
}

func TestDefaultsValidateWithVaultFields(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Addr = ""
	cfg.Vault.EncryptionSecret = ""
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "encryption_secret")
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidateChainNeedsRPCUnlessSimulated(t *testing.T) {
	cfg := validConfig()
	cfg.Chain.Simulate = false
	cfg.Chain.RPCURL = ""
	require.Error(t, cfg.Validate())

	cfg.Chain.Simulate = true
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
log_level = "debug"

[postgres]
host = "db.internal"
port = 6432

[rewards]
drain_interval = "30s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 6432, cfg.Postgres.Port)
	assert.Equal(t, 30*time.Second, cfg.Rewards.DrainInterval)
	// Untouched fields keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[redis]\naddr = \"file:6379\"\n"), 0o600))

	t.Setenv("LLLX_REDIS_ADDR", "env:6379")
	t.Setenv("LLLX_VAULT_ENCRYPTION_SECRET", "env-secret")
	t.Setenv("LLLX_CHAIN_SIMULATE", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env:6379", cfg.Redis.Addr)
	assert.Equal(t, "env-secret", cfg.Vault.EncryptionSecret)
	assert.False(t, cfg.Chain.Simulate)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "pg-pass"
	cfg.Redis.Password = "redis-pass"

	redacted := RedactedConfig(&cfg)
	assert.Equal(t, "***", redacted.Postgres.Password)
	assert.Equal(t, "***", redacted.Redis.Password)
	assert.Equal(t, "***", redacted.Vault.EncryptionSecret)
	assert.Equal(t, "***", redacted.Vault.EncryptedKeypair)
	// The original is untouched.
	assert.Equal(t, "pg-pass", cfg.Postgres.Password)
	// Non-secret fields pass through.
	assert.Equal(t, cfg.Postgres.Host, redacted.Postgres.Host)
}
