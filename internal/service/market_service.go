package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lllfutures/exchange/internal/domain"
)

// MarketConfig tunes market creation limits.
type MarketConfig struct {
	// MaxPerCreatorPerDay caps markets created per user per rolling 24h.
	// Zero disables the cap.
	MaxPerCreatorPerDay int
	// MinCreatorBalance is the balance a user must hold to create markets.
	MinCreatorBalance decimal.Decimal
}

// MarketService owns the market lifecycle outside of settlement: creation
// with anti-spam limits, closing, cancellation with refunds, and listing.
type MarketService struct {
	store  domain.Store
	cfg    MarketConfig
	logger *slog.Logger
}

// NewMarketService creates a MarketService.
func NewMarketService(store domain.Store, cfg MarketConfig, logger *slog.Logger) *MarketService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketService{
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "market_service")),
	}
}

// CreateMarketRequest describes a new binary market.
type CreateMarketRequest struct {
	CreatorID   string
	Title       string
	Description string
	YesOdds     decimal.Decimal
	NoOdds      decimal.Decimal
	ExpiresAt   time.Time
}

// CreateMarket creates a market after checking the creator's daily cap and
// minimum balance. Odds are payout multipliers and must exceed 1.
func (s *MarketService) CreateMarket(ctx context.Context, req CreateMarketRequest) (domain.Market, error) {
	if req.Title == "" {
		return domain.Market{}, fmt.Errorf("market_service: title must not be empty")
	}
	one := decimal.NewFromInt(1)
	if !req.YesOdds.GreaterThan(one) || !req.NoOdds.GreaterThan(one) {
		return domain.Market{}, fmt.Errorf("market_service: odds must be greater than 1, got yes=%s no=%s", req.YesOdds, req.NoOdds)
	}
	now := time.Now().UTC()
	if !req.ExpiresAt.After(now) {
		return domain.Market{}, fmt.Errorf("market_service: expiry %s is in the past", req.ExpiresAt)
	}

	creator, err := s.store.Users().GetByID(ctx, req.CreatorID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: loading creator %s: %w", req.CreatorID, err)
	}
	if creator.Balance.LessThan(s.cfg.MinCreatorBalance) {
		return domain.Market{}, fmt.Errorf("market_service: creating markets requires a balance of %s: %w",
			s.cfg.MinCreatorBalance, domain.ErrInsufficientBalance)
	}

	if s.cfg.MaxPerCreatorPerDay > 0 {
		count, err := s.store.Markets().CountByCreatorSince(ctx, req.CreatorID, now.Add(-24*time.Hour))
		if err != nil {
			return domain.Market{}, fmt.Errorf("market_service: counting creator markets: %w", err)
		}
		if count >= int64(s.cfg.MaxPerCreatorPerDay) {
			return domain.Market{}, fmt.Errorf("market_service: creator %s reached the daily limit of %d markets: %w",
				req.CreatorID, s.cfg.MaxPerCreatorPerDay, domain.ErrRateLimited)
		}
	}

	market := domain.Market{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Description:   req.Description,
		CreatorID:     req.CreatorID,
		Status:        domain.MarketStatusActive,
		ExpiresAt:     req.ExpiresAt.UTC(),
		YesOdds:       req.YesOdds,
		NoOdds:        req.NoOdds,
		TotalYesStake: decimal.Zero,
		TotalNoStake:  decimal.Zero,
		TotalVolume:   decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Markets().Create(ctx, market); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: creating market: %w", err)
	}

	s.logger.Info("market created",
		slog.String("market_id", market.ID),
		slog.String("creator_id", req.CreatorID),
		slog.String("title", req.Title))
	return market, nil
}

// CloseMarket stops a market from accepting orders. Only active markets can
// close; the market stays closed until settlement resolves it.
func (s *MarketService) CloseMarket(ctx context.Context, marketID string) error {
	return s.store.WithTx(ctx, func(tx domain.Tx) error {
		market, err := tx.Markets().GetByID(ctx, marketID)
		if err != nil {
			return fmt.Errorf("market_service: loading market %s: %w", marketID, err)
		}
		if market.Status != domain.MarketStatusActive {
			return domain.ErrMarketNotActive
		}
		if err := tx.Markets().SetStatus(ctx, marketID, domain.MarketStatusClosed); err != nil {
			return fmt.Errorf("market_service: closing market %s: %w", marketID, err)
		}
		return nil
	})
}

// CancelMarket cancels a market and refunds every open order's stake, the
// same treatment a void settlement gives. Settled and already cancelled
// markets return ErrMarketSettled.
func (s *MarketService) CancelMarket(ctx context.Context, marketID string) error {
	var refunded int
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		market, err := tx.Markets().GetByID(ctx, marketID)
		if err != nil {
			return fmt.Errorf("market_service: loading market %s: %w", marketID, err)
		}
		if market.Status == domain.MarketStatusSettled || market.Status == domain.MarketStatusCancelled {
			return domain.ErrMarketSettled
		}

		orders, err := tx.Orders().ListOpenByMarket(ctx, marketID)
		if err != nil {
			return fmt.Errorf("market_service: listing open orders for %s: %w", marketID, err)
		}

		now := time.Now().UTC()
		for _, order := range orders {
			if _, err := applyBalanceChange(ctx, tx, order.UserID, order.StakeAmount,
				domain.TxBetRefund, "market cancelled, stake refunded", &order.ID, &order.MarketID); err != nil {
				return fmt.Errorf("market_service: refunding order %s: %w", order.ID, err)
			}
			if err := tx.Orders().Cancel(ctx, order.ID, now); err != nil {
				return fmt.Errorf("market_service: cancelling order %s: %w", order.ID, err)
			}
		}
		refunded = len(orders)

		if err := tx.Markets().SetStatus(ctx, marketID, domain.MarketStatusCancelled); err != nil {
			return fmt.Errorf("market_service: cancelling market %s: %w", marketID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("market cancelled",
		slog.String("market_id", marketID),
		slog.Int("orders_refunded", refunded))
	return nil
}

// GetMarket returns a market by id.
func (s *MarketService) GetMarket(ctx context.Context, marketID string) (domain.Market, error) {
	return s.store.Markets().GetByID(ctx, marketID)
}

// ListActive returns all markets currently accepting orders.
func (s *MarketService) ListActive(ctx context.Context) ([]domain.Market, error) {
	return s.store.Markets().ListActive(ctx)
}
