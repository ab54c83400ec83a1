package postgres

import (
	"context"
	"fmt"

	"github.com/lllfutures/exchange/internal/domain"
)

// TransactionStore implements domain.TransactionStore, the append-only audit
// ledger. Rows are never updated or deleted.
type TransactionStore struct {
	q querier
}

// Append writes one audit entry.
func (s *TransactionStore) Append(ctx context.Context, t domain.Transaction) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO transactions (
			id, user_id, type, amount, balance_before, balance_after,
			description, order_id, market_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.UserID, string(t.Type),
		t.Amount.String(), t.BalanceBefore.String(), t.BalanceAfter.String(),
		t.Description, t.OrderID, t.MarketID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append transaction %s: %w", t.ID, err)
	}
	return nil
}

// ListByUser returns the user's most recent audit entries.
func (s *TransactionStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, type, amount::text, balance_before::text, balance_after::text,
		       description, order_id, market_id, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var typ, amount, before, after string

		if err := rows.Scan(
			&t.ID, &t.UserID, &typ, &amount, &before, &after,
			&t.Description, &t.OrderID, &t.MarketID, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}

		t.Type = domain.TransactionType(typ)
		if t.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		if t.BalanceBefore, err = parseDecimal(before); err != nil {
			return nil, err
		}
		if t.BalanceAfter, err = parseDecimal(after); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
