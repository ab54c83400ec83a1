// Package service implements the exchange's business operations on top of
// the domain stores: order placement, settlement, reward distribution,
// staking, market administration and balance reconciliation.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lllfutures/exchange/internal/domain"
)

// applyBalanceChange mutates a user's balance inside the caller's transaction
// and appends the matching audit entry. The row lock taken by LockBalance
// serializes concurrent mutations per user. Delta is signed; a delta that
// would drive the balance negative is rejected before anything is written.
func applyBalanceChange(
	ctx context.Context,
	tx domain.Tx,
	userID string,
	delta decimal.Decimal,
	txType domain.TransactionType,
	description string,
	orderID, marketID *string,
) (domain.Transaction, error) {
	before, err := tx.Users().LockBalance(ctx, userID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("service: locking balance for %s: %w", userID, err)
	}

	after := before.Add(delta)
	if after.IsNegative() {
		return domain.Transaction{}, fmt.Errorf("service: balance of %s would go negative (%s %s): %w",
			userID, before, delta, domain.ErrInsufficientBalance)
	}

	if err := tx.Users().SetBalance(ctx, userID, after); err != nil {
		return domain.Transaction{}, fmt.Errorf("service: updating balance for %s: %w", userID, err)
	}

	entry := domain.Transaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          txType,
		Amount:        delta,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
		OrderID:       orderID,
		MarketID:      marketID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.Transactions().Append(ctx, entry); err != nil {
		return domain.Transaction{}, fmt.Errorf("service: appending transaction for %s: %w", userID, err)
	}
	return entry, nil
}
