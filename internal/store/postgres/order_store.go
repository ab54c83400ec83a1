package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lllfutures/exchange/internal/domain"
)

// OrderStore implements domain.OrderStore.
type OrderStore struct {
	q querier
}

const orderSelectCols = `id, user_id, market_id, wallet_address, side,
	stake_amount::text, odds::text, potential_payout::text,
	status, settled_amount::text, settled_at, created_at`

// Create inserts a new order.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO orders (
			id, user_id, market_id, wallet_address, side,
			stake_amount, odds, potential_payout, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.UserID, o.MarketID, o.WalletAddress, string(o.Side),
		o.StakeAmount.String(), o.Odds.String(), o.PotentialPayout.String(),
		string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}
	return nil
}

func scanOrderFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Order, error) {
	var o domain.Order
	var side, status string
	var stake, odds, payout string
	var settledAmount *string

	err := scanner.Scan(
		&o.ID, &o.UserID, &o.MarketID, &o.WalletAddress, &side,
		&stake, &odds, &payout,
		&status, &settledAmount, &o.SettledAt, &o.CreatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)

	if o.StakeAmount, err = parseDecimal(stake); err != nil {
		return domain.Order{}, err
	}
	if o.Odds, err = parseDecimal(odds); err != nil {
		return domain.Order{}, err
	}
	if o.PotentialPayout, err = parseDecimal(payout); err != nil {
		return domain.Order{}, err
	}
	if o.SettledAmount, err = parseDecimalPtr(settledAmount); err != nil {
		return domain.Order{}, err
	}

	return o, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetByID retrieves a single order.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	row := s.q.QueryRow(ctx, `SELECT `+orderSelectCols+` FROM orders WHERE id = $1`, id)

	o, err := scanOrderFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

// ListOpenByMarket returns every open order against the market, oldest first
// so settlement processes placements in order.
func (s *OrderStore) ListOpenByMarket(ctx context.Context, marketID string) ([]domain.Order, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE market_id = $1 AND status = 'open'
		 ORDER BY created_at ASC`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders for market %s: %w", marketID, err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open orders: %w", err)
	}
	return orders, nil
}

// ListByUser returns the user's orders, newest first.
func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders for user %s: %w", userID, err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan user orders: %w", err)
	}
	return orders, nil
}

// Settle transitions an open order to settled with its final amount. The
// status guard makes the open -> settled transition one-way.
func (s *OrderStore) Settle(ctx context.Context, id string, amount decimal.Decimal, settledAt time.Time) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE orders
		 SET status = 'settled', settled_amount = $1, settled_at = $2
		 WHERE id = $3 AND status = 'open'`,
		amount.String(), settledAt, id,
	)
	if err != nil {
		return fmt.Errorf("postgres: settle order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Cancel transitions an open order to cancelled.
func (s *OrderStore) Cancel(ctx context.Context, id string, cancelledAt time.Time) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE orders
		 SET status = 'cancelled', settled_at = $1
		 WHERE id = $2 AND status = 'open'`,
		cancelledAt, id,
	)
	if err != nil {
		return fmt.Errorf("postgres: cancel order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
