package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lllfutures/exchange/internal/domain"
)

// OrderConfig tunes order placement.
type OrderConfig struct {
	// RateLimit and RateLimitWindow gate placements per user. A zero limit
	// disables rate limiting.
	RateLimit       int
	RateLimitWindow time.Duration
	// TradingRebateRate queues a reward of rate*stake for every placed
	// order. Zero disables rebates.
	TradingRebateRate decimal.Decimal
}

// OrderService handles fixed-odds order placement. The balance debit is
// transactional; the on-chain escrow transfer that follows is best effort
// and its failure never rolls the order back.
type OrderService struct {
	store   domain.Store
	limiter domain.RateLimiter
	keeper  KeyCustodian
	chain   domain.ChainClient
	vault   OperatorCredentials
	cfg     OrderConfig
	logger  *slog.Logger
}

// NewOrderService creates an OrderService. Limiter, keeper, chain and vault
// may each be nil; escrow is skipped when any of the last three is missing.
func NewOrderService(
	store domain.Store,
	limiter domain.RateLimiter,
	keeper KeyCustodian,
	chain domain.ChainClient,
	vault OperatorCredentials,
	cfg OrderConfig,
	logger *slog.Logger,
) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		store:   store,
		limiter: limiter,
		keeper:  keeper,
		chain:   chain,
		vault:   vault,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "order_service")),
	}
}

// PlaceOrderRequest describes a stake against one side of a market.
type PlaceOrderRequest struct {
	UserID   string
	MarketID string
	Side     domain.OrderSide
	Stake    decimal.Decimal
}

// PlaceOrder places a fixed-odds order: it validates the market, debits the
// stake under a row lock, snapshots the odds, records the audit entry and
// accumulates market volume, all in one transaction. After commit it attempts
// the escrow transfer from the user's custodial wallet to the vault.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.PlacedOrder, error) {
	if req.Side != domain.SideYes && req.Side != domain.SideNo {
		return domain.PlacedOrder{}, fmt.Errorf("order_service: invalid side %q", req.Side)
	}
	if !req.Stake.IsPositive() {
		return domain.PlacedOrder{}, domain.ErrInvalidStake
	}

	if s.limiter != nil && s.cfg.RateLimit > 0 {
		allowed, err := s.limiter.Allow(ctx, "orders:"+req.UserID, s.cfg.RateLimit, s.cfg.RateLimitWindow)
		if err != nil {
			return domain.PlacedOrder{}, fmt.Errorf("order_service: rate limiter: %w", err)
		}
		if !allowed {
			return domain.PlacedOrder{}, domain.ErrRateLimited
		}
	}

	var order domain.Order
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		market, err := tx.Markets().GetByID(ctx, req.MarketID)
		if err != nil {
			return fmt.Errorf("order_service: loading market %s: %w", req.MarketID, err)
		}
		if market.Status != domain.MarketStatusActive {
			return domain.ErrMarketNotActive
		}
		if !market.ExpiresAt.IsZero() && !market.ExpiresAt.After(time.Now().UTC()) {
			return domain.ErrMarketNotActive
		}

		user, err := tx.Users().GetByID(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("order_service: loading user %s: %w", req.UserID, err)
		}

		odds := market.OddsFor(req.Side)
		now := time.Now().UTC()
		order = domain.Order{
			ID:              uuid.NewString(),
			UserID:          req.UserID,
			MarketID:        req.MarketID,
			WalletAddress:   user.WalletAddress,
			Side:            req.Side,
			StakeAmount:     req.Stake,
			Odds:            odds,
			PotentialPayout: req.Stake.Mul(odds),
			Status:          domain.OrderStatusOpen,
			CreatedAt:       now,
		}

		desc := fmt.Sprintf("bet %s on %s", req.Side, market.Title)
		if _, err := applyBalanceChange(ctx, tx, req.UserID, req.Stake.Neg(),
			domain.TxBetPlaced, desc, &order.ID, &order.MarketID); err != nil {
			return err
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("order_service: creating order: %w", err)
		}
		if err := tx.Markets().AddVolume(ctx, req.MarketID, req.Stake, req.Side); err != nil {
			return fmt.Errorf("order_service: accumulating volume: %w", err)
		}

		if s.cfg.TradingRebateRate.IsPositive() {
			rebate := req.Stake.Mul(s.cfg.TradingRebateRate)
			reward := domain.Reward{
				ID:        uuid.NewString(),
				UserID:    req.UserID,
				Amount:    rebate,
				Reason:    domain.RewardReasonTradingRebate,
				Status:    domain.RewardPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Rewards().Create(ctx, reward); err != nil {
				return fmt.Errorf("order_service: queueing trading rebate: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.PlacedOrder{}, err
	}

	placed := domain.PlacedOrder{Order: order, Escrow: domain.EscrowSkipped}
	placed.Escrow, placed.EscrowSignature = s.escrowStake(ctx, order)

	s.logger.Info("order placed",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.String("market_id", order.MarketID),
		slog.String("side", string(order.Side)),
		slog.String("stake", order.StakeAmount.String()),
		slog.String("escrow", string(placed.Escrow)))
	return placed, nil
}

// escrowStake moves the stake from the user's custodial wallet into the
// vault. The committed ledger debit stands no matter what happens here, so a
// failure is logged for reconciliation rather than returned as an error.
func (s *OrderService) escrowStake(ctx context.Context, order domain.Order) (domain.EscrowStatus, string) {
	if s.keeper == nil || s.chain == nil || s.vault == nil || order.WalletAddress == "" {
		return domain.EscrowSkipped, ""
	}

	var signature string
	err := s.keeper.UseKeypair(ctx, order.UserID, func(keypair ed25519.PrivateKey) error {
		var err error
		signature, err = s.chain.Transfer(ctx, keypair, order.WalletAddress, s.vault.PublicKey(), order.StakeAmount)
		return err
	})
	if err != nil {
		s.logger.Error("escrow transfer failed",
			slog.String("order_id", order.ID),
			slog.String("wallet", order.WalletAddress),
			slog.String("error", err.Error()))
		return domain.EscrowFailed, ""
	}
	return domain.EscrowConfirmed, signature
}

// GetOrder returns an order by id.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	o, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("order_service: loading order %s: %w", orderID, err)
	}
	return o, nil
}

// UserOrders returns all orders placed by the user, newest first.
func (s *OrderService) UserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.store.Orders().ListByUser(ctx, userID)
}
