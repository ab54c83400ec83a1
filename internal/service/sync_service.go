package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lllfutures/exchange/internal/domain"
)

// BalanceDrift reports the difference between a user's ledger balance and
// the wallet's on-chain balance at one point in time.
type BalanceDrift struct {
	UserID        string
	WalletAddress string
	Ledger        decimal.Decimal
	OnChain       decimal.Decimal
	Drift         decimal.Decimal
	CheckedAt     time.Time
}

// InSync reports whether the ledger and chain agree within tolerance.
func (d BalanceDrift) InSync(tolerance decimal.Decimal) bool {
	return d.Drift.Abs().LessThanOrEqual(tolerance)
}

// SyncService reconciles the database ledger against the chain. The ledger
// is authoritative; the chain view trails escrow and reward transfers, so
// drift is reported for operators rather than auto-corrected.
type SyncService struct {
	store     domain.Store
	chain     domain.ChainClient
	tolerance decimal.Decimal
	logger    *slog.Logger
}

// NewSyncService creates a SyncService. Tolerance is the drift magnitude
// below which no warning is logged.
func NewSyncService(store domain.Store, chain domain.ChainClient, tolerance decimal.Decimal, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		store:     store,
		chain:     chain,
		tolerance: tolerance,
		logger:    logger.With(slog.String("component", "sync_service")),
	}
}

// CheckUser compares one user's ledger balance with their wallet's on-chain
// balance. Users without a provisioned wallet return ErrWalletMissing.
func (s *SyncService) CheckUser(ctx context.Context, userID string) (BalanceDrift, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return BalanceDrift{}, fmt.Errorf("sync_service: loading user %s: %w", userID, err)
	}
	if user.WalletAddress == "" {
		return BalanceDrift{}, domain.ErrWalletMissing
	}

	onChain, err := s.chain.GetBalance(ctx, user.WalletAddress)
	if err != nil {
		return BalanceDrift{}, fmt.Errorf("sync_service: reading chain balance for %s: %w", user.WalletAddress, err)
	}

	drift := BalanceDrift{
		UserID:        userID,
		WalletAddress: user.WalletAddress,
		Ledger:        user.Balance,
		OnChain:       onChain,
		Drift:         user.Balance.Sub(onChain),
		CheckedAt:     time.Now().UTC(),
	}
	if !drift.InSync(s.tolerance) {
		s.logger.Warn("ledger and chain disagree",
			slog.String("user_id", userID),
			slog.String("wallet", user.WalletAddress),
			slog.String("ledger", drift.Ledger.String()),
			slog.String("on_chain", drift.OnChain.String()),
			slog.String("drift", drift.Drift.String()))
	}
	return drift, nil
}

// CheckUsers reconciles a batch of users, skipping those without wallets.
// It returns only the entries that drifted beyond tolerance.
func (s *SyncService) CheckUsers(ctx context.Context, userIDs []string) ([]BalanceDrift, error) {
	var drifted []BalanceDrift
	for _, id := range userIDs {
		drift, err := s.CheckUser(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrWalletMissing) || errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return drifted, err
		}
		if !drift.InSync(s.tolerance) {
			drifted = append(drifted, drift)
		}
	}
	return drifted, nil
}
