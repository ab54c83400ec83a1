// Package config defines the top-level configuration for the exchange ledger
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LLLX_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Vault    VaultConfig    `toml:"vault"`
	Chain    ChainConfig    `toml:"chain"`
	Rewards  RewardsConfig  `toml:"rewards"`
	Markets  MarketsConfig  `toml:"markets"`
	Orders   OrdersConfig   `toml:"orders"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// VaultConfig holds the platform escrow wallet credentials and the
// process-wide secret used to encrypt custodial private keys at rest.
type VaultConfig struct {
	PublicKey        string `toml:"public_key"`
	EncryptedKeypair string `toml:"encrypted_keypair"`
	KeypairPassword  string `toml:"keypair_password"`
	EncryptionSecret string `toml:"encryption_secret"`
}

// ChainConfig holds token network parameters.
type ChainConfig struct {
	RPCURL    string        `toml:"rpc_url"`
	TokenMint string        `toml:"token_mint"`
	Simulate  bool          `toml:"simulate"`
	Timeout   time.Duration `toml:"timeout"`
}

// RewardsConfig holds the distribution worker and crediting parameters.
type RewardsConfig struct {
	DrainInterval     time.Duration `toml:"drain_interval"`
	DrainBatchSize    int           `toml:"drain_batch_size"`
	SignupBonus       float64       `toml:"signup_bonus"`
	DailyLoginBonus   float64       `toml:"daily_login_bonus"`
	TradingRebateRate float64       `toml:"trading_rebate_rate"`
	ProfitBonusRate   float64       `toml:"profit_bonus_rate"`
}

// MarketsConfig holds market creation limits.
type MarketsConfig struct {
	MaxPerCreatorPerDay int     `toml:"max_per_creator_per_day"`
	MinCreatorBalance   float64 `toml:"min_creator_balance"`
}

// OrdersConfig holds the order placement rate limit.
type OrdersConfig struct {
	RateLimit       int           `toml:"rate_limit"`
	RateLimitWindow time.Duration `toml:"rate_limit_window"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "lllx",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Chain: ChainConfig{
			RPCURL:    "https://api.devnet.solana.com",
			TokenMint: "8ynUJf6w6FMgAknquPXRciK5kvV1Qs1FML94q8GzMsw2",
			Simulate:  true,
			Timeout:   10 * time.Second,
		},
		Rewards: RewardsConfig{
			DrainInterval:     time.Minute,
			DrainBatchSize:    100,
			SignupBonus:       100,
			DailyLoginBonus:   5,
			TradingRebateRate: 0.01,
			ProfitBonusRate:   0.10,
		},
		Markets: MarketsConfig{
			MaxPerCreatorPerDay: 1,
			MinCreatorBalance:   10,
		},
		Orders: OrdersConfig{
			RateLimit:       10,
			RateLimitWindow: time.Second,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for inconsistencies that would prevent
// the application from starting.
func (c *Config) Validate() error {
	var problems []string

	if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "") {
		problems = append(problems, "postgres: either dsn or host/database/user must be set")
	}
	if c.Redis.Addr == "" {
		problems = append(problems, "redis: addr must be set")
	}
	if c.Vault.PublicKey == "" {
		problems = append(problems, "vault: public_key must be set")
	}
	if c.Vault.EncryptedKeypair == "" {
		problems = append(problems, "vault: encrypted_keypair must be set")
	}
	if c.Vault.KeypairPassword == "" {
		problems = append(problems, "vault: keypair_password must be set")
	}
	if c.Vault.EncryptionSecret == "" {
		problems = append(problems, "vault: encryption_secret must be set")
	}
	if c.Chain.RPCURL == "" && !c.Chain.Simulate {
		problems = append(problems, "chain: rpc_url must be set unless simulate is enabled")
	}
	if c.Rewards.DrainInterval <= 0 {
		problems = append(problems, "rewards: drain_interval must be positive")
	}
	if c.Rewards.DrainBatchSize <= 0 {
		problems = append(problems, "rewards: drain_batch_size must be positive")
	}
	if c.Markets.MaxPerCreatorPerDay <= 0 {
		problems = append(problems, "markets: max_per_creator_per_day must be positive")
	}
	if c.Orders.RateLimit <= 0 || c.Orders.RateLimitWindow <= 0 {
		problems = append(problems, "orders: rate_limit and rate_limit_window must be positive")
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level: unknown level %q", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
