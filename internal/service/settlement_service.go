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

// settlementLockTTL bounds how long a settlement pass may hold the
// distributed lock before it expires on its own.
const settlementLockTTL = 2 * time.Minute

// SettlementService resolves markets and pays out their orders. A market
// settles exactly once: the distributed lock keeps concurrent calls out of
// each other's way and the conditional outcome stamp makes the guarantee
// hold even without the lock.
type SettlementService struct {
	store           domain.Store
	locks           domain.LockManager
	profitBonusRate decimal.Decimal
	logger          *slog.Logger
}

// NewSettlementService creates a SettlementService. The lock manager may be
// nil; single-instance deployments are safe on the database guard alone.
func NewSettlementService(store domain.Store, locks domain.LockManager, profitBonusRate decimal.Decimal, logger *slog.Logger) *SettlementService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementService{
		store:           store,
		locks:           locks,
		profitBonusRate: profitBonusRate,
		logger:          logger.With(slog.String("component", "settlement_service")),
	}
}

// SettleMarket resolves the market with the given outcome and settles every
// open order against it in one transaction. Winners are credited their
// snapshotted payout, losers get a zero-amount closing entry, and a void
// outcome refunds every stake regardless of side. Settling an already
// settled market returns ErrMarketSettled.
func (s *SettlementService) SettleMarket(ctx context.Context, marketID string, outcome domain.MarketOutcome) (domain.SettlementSummary, error) {
	switch outcome {
	case domain.OutcomeYes, domain.OutcomeNo, domain.OutcomeVoid:
	default:
		return domain.SettlementSummary{}, fmt.Errorf("settlement_service: invalid outcome %q", outcome)
	}

	if s.locks != nil {
		release, err := s.locks.Acquire(ctx, "settlement:"+marketID, settlementLockTTL)
		if err != nil {
			return domain.SettlementSummary{}, fmt.Errorf("settlement_service: acquiring lock for %s: %w", marketID, err)
		}
		defer release()
	}

	summary := domain.SettlementSummary{MarketID: marketID, Outcome: outcome, TotalPayout: decimal.Zero}
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		now := time.Now().UTC()
		if err := tx.Markets().BeginSettlement(ctx, marketID, outcome, now); err != nil {
			return fmt.Errorf("settlement_service: stamping outcome for %s: %w", marketID, err)
		}

		orders, err := tx.Orders().ListOpenByMarket(ctx, marketID)
		if err != nil {
			return fmt.Errorf("settlement_service: listing open orders for %s: %w", marketID, err)
		}

		for _, order := range orders {
			if err := s.settleOrder(ctx, tx, order, outcome, now, &summary); err != nil {
				return err
			}
		}

		if err := tx.Markets().MarkSettled(ctx, marketID); err != nil {
			return fmt.Errorf("settlement_service: marking %s settled: %w", marketID, err)
		}
		summary.OrdersClosed = len(orders)
		return nil
	})
	if err != nil {
		return domain.SettlementSummary{}, err
	}

	s.logger.Info("market settled",
		slog.String("market_id", marketID),
		slog.String("outcome", string(outcome)),
		slog.Int("orders_closed", summary.OrdersClosed),
		slog.Int("winners", summary.Winners),
		slog.Int("losers", summary.Losers),
		slog.Int("refunded", summary.Refunded),
		slog.String("total_payout", summary.TotalPayout.String()))
	return summary, nil
}

func (s *SettlementService) settleOrder(
	ctx context.Context,
	tx domain.Tx,
	order domain.Order,
	outcome domain.MarketOutcome,
	now time.Time,
	summary *domain.SettlementSummary,
) error {
	var (
		settled decimal.Decimal
		txType  domain.TransactionType
		desc    string
	)

	switch {
	case outcome == domain.OutcomeVoid:
		settled = order.StakeAmount
		txType = domain.TxBetRefund
		desc = "market voided, stake refunded"
		summary.Refunded++
	case string(order.Side) == string(outcome):
		settled = order.PotentialPayout
		txType = domain.TxBetWon
		desc = fmt.Sprintf("bet won at odds %s", order.Odds)
		summary.Winners++
	default:
		settled = decimal.Zero
		txType = domain.TxBetLost
		desc = "bet lost"
		summary.Losers++
	}

	if settled.IsPositive() {
		if _, err := applyBalanceChange(ctx, tx, order.UserID, settled, txType, desc, &order.ID, &order.MarketID); err != nil {
			return fmt.Errorf("settlement_service: crediting order %s: %w", order.ID, err)
		}
		summary.TotalPayout = summary.TotalPayout.Add(settled)
	} else {
		// Losses move no funds; the entry closes the audit trail.
		entry := domain.Transaction{
			ID:          uuid.NewString(),
			UserID:      order.UserID,
			Type:        txType,
			Amount:      decimal.Zero,
			Description: desc,
			OrderID:     &order.ID,
			MarketID:    &order.MarketID,
			CreatedAt:   now,
		}
		balance, err := tx.Users().LockBalance(ctx, order.UserID)
		if err != nil {
			return fmt.Errorf("settlement_service: reading balance for %s: %w", order.UserID, err)
		}
		entry.BalanceBefore = balance
		entry.BalanceAfter = balance
		if err := tx.Transactions().Append(ctx, entry); err != nil {
			return fmt.Errorf("settlement_service: recording loss for order %s: %w", order.ID, err)
		}
	}

	if err := tx.Orders().Settle(ctx, order.ID, settled, now); err != nil {
		return fmt.Errorf("settlement_service: settling order %s: %w", order.ID, err)
	}

	if txType == domain.TxBetWon && s.profitBonusRate.IsPositive() {
		profit := settled.Sub(order.StakeAmount)
		if profit.IsPositive() {
			reward := domain.Reward{
				ID:        uuid.NewString(),
				UserID:    order.UserID,
				Amount:    profit.Mul(s.profitBonusRate),
				Reason:    domain.RewardReasonProfitBonus,
				Status:    domain.RewardPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Rewards().Create(ctx, reward); err != nil {
				return fmt.Errorf("settlement_service: queueing profit bonus for %s: %w", order.UserID, err)
			}
		}
	}
	return nil
}
