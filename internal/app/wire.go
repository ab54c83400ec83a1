package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/lllfutures/exchange/internal/cache/redis"
	"github.com/lllfutures/exchange/internal/chain/solana"
	"github.com/lllfutures/exchange/internal/config"
	"github.com/lllfutures/exchange/internal/domain"
	"github.com/lllfutures/exchange/internal/service"
	"github.com/lllfutures/exchange/internal/store/postgres"
	"github.com/lllfutures/exchange/internal/vault"
	"github.com/lllfutures/exchange/internal/worker"
)

// Dependencies bundles every constructed component the application runs on.
// Wire builds it and the returned cleanup function tears it down.
type Dependencies struct {
	Store       domain.Store
	Chain       domain.ChainClient
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	Keeper      *vault.Keeper
	Vault       *vault.Credentials

	Users      *service.UserService
	Markets    *service.MarketService
	Orders     *service.OrderService
	Settlement *service.SettlementService
	Rewards    *service.RewardService
	Staking    *service.StakingService
	Sync       *service.SyncService

	Distributor *worker.Distributor
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that must
// be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.Store = postgres.NewStore(pgClient.Pool())

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)

	// --- Chain client ---
	chainClient, err := solana.New(solana.ClientConfig{
		RPCURL:           cfg.Chain.RPCURL,
		TokenMint:        cfg.Chain.TokenMint,
		Timeout:          cfg.Chain.Timeout,
		Simulate:         cfg.Chain.Simulate,
		SimulatedBalance: decimal.NewFromInt(1_000_000),
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain client: %w", err)
	}
	deps.Chain = chainClient

	// --- Vault ---
	keeper, err := vault.NewKeeper(deps.Store.Wallets(), cfg.Vault.EncryptionSecret, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: vault keeper: %w", err)
	}
	deps.Keeper = keeper

	creds, err := vault.LoadCredentials(cfg.Vault.PublicKey, cfg.Vault.EncryptedKeypair, cfg.Vault.KeypairPassword)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: vault credentials: %w", err)
	}
	closers = append(closers, creds.Close)
	deps.Vault = creds

	// --- Services ---
	deps.Users = service.NewUserService(deps.Store, keeper,
		decimal.NewFromFloat(cfg.Rewards.SignupBonus), logger)
	deps.Markets = service.NewMarketService(deps.Store, service.MarketConfig{
		MaxPerCreatorPerDay: cfg.Markets.MaxPerCreatorPerDay,
		MinCreatorBalance:   decimal.NewFromFloat(cfg.Markets.MinCreatorBalance),
	}, logger)
	deps.Orders = service.NewOrderService(deps.Store, deps.RateLimiter, keeper, chainClient, creds,
		service.OrderConfig{
			RateLimit:         cfg.Orders.RateLimit,
			RateLimitWindow:   cfg.Orders.RateLimitWindow,
			TradingRebateRate: decimal.NewFromFloat(cfg.Rewards.TradingRebateRate),
		}, logger)
	deps.Settlement = service.NewSettlementService(deps.Store, deps.LockManager,
		decimal.NewFromFloat(cfg.Rewards.ProfitBonusRate), logger)
	deps.Rewards = service.NewRewardService(deps.Store, chainClient, keeper, creds, logger)
	deps.Staking = service.NewStakingService(deps.Store, chainClient, keeper, creds,
		service.StakingConfig{DailyLoginBonus: decimal.NewFromFloat(cfg.Rewards.DailyLoginBonus)}, logger)
	deps.Sync = service.NewSyncService(deps.Store, chainClient, decimal.Zero, logger)

	// --- Workers ---
	deps.Distributor = worker.NewDistributor(deps.Rewards,
		cfg.Rewards.DrainInterval, cfg.Rewards.DrainBatchSize, logger)

	return deps, cleanup, nil
}
