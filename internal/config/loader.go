package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LLLX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LLLX_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// --- Postgres ---
	setStr(&cfg.Postgres.DSN, "LLLX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "LLLX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LLLX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LLLX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LLLX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LLLX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LLLX_POSTGRES_SSLMODE")

	// --- Redis ---
	setStr(&cfg.Redis.Addr, "LLLX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LLLX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LLLX_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "LLLX_REDIS_TLS_ENABLED")

	// --- Vault ---
	setStr(&cfg.Vault.PublicKey, "LLLX_VAULT_PUBLIC_KEY")
	setStr(&cfg.Vault.EncryptedKeypair, "LLLX_VAULT_ENCRYPTED_KEYPAIR")
	setStr(&cfg.Vault.KeypairPassword, "LLLX_VAULT_KEYPAIR_PASSWORD")
	setStr(&cfg.Vault.EncryptionSecret, "LLLX_VAULT_ENCRYPTION_SECRET")

	// --- Chain ---
	setStr(&cfg.Chain.RPCURL, "LLLX_CHAIN_RPC_URL")
	setStr(&cfg.Chain.TokenMint, "LLLX_CHAIN_TOKEN_MINT")
	setBool(&cfg.Chain.Simulate, "LLLX_CHAIN_SIMULATE")
	setDuration(&cfg.Chain.Timeout, "LLLX_CHAIN_TIMEOUT")

	// --- Rewards ---
	setDuration(&cfg.Rewards.DrainInterval, "LLLX_REWARDS_DRAIN_INTERVAL")
	setInt(&cfg.Rewards.DrainBatchSize, "LLLX_REWARDS_DRAIN_BATCH_SIZE")

	// --- Misc ---
	setStr(&cfg.LogLevel, "LLLX_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
