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

// MarketStore implements domain.MarketStore.
type MarketStore struct {
	q querier
}

const marketSelectCols = `id, title, description, creator_id, status, expires_at,
	yes_odds::text, no_odds::text, total_yes_stake::text, total_no_stake::text, total_volume::text,
	outcome, settled_at, created_at, updated_at`

// Create inserts a new market.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO markets (
			id, title, description, creator_id, status, expires_at,
			yes_odds, no_odds, total_yes_stake, total_no_stake, total_volume,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())`,
		m.ID, m.Title, m.Description, m.CreatorID, string(m.Status), m.ExpiresAt,
		m.YesOdds.String(), m.NoOdds.String(),
		m.TotalYesStake.String(), m.TotalNoStake.String(), m.TotalVolume.String(),
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}
	return nil
}

func scanMarketFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Market, error) {
	var m domain.Market
	var status string
	var outcome *string
	var yesOdds, noOdds, yesStake, noStake, volume string

	err := scanner.Scan(
		&m.ID, &m.Title, &m.Description, &m.CreatorID, &status, &m.ExpiresAt,
		&yesOdds, &noOdds, &yesStake, &noStake, &volume,
		&outcome, &m.SettledAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}

	m.Status = domain.MarketStatus(status)
	if outcome != nil {
		o := domain.MarketOutcome(*outcome)
		m.Outcome = &o
	}

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&m.YesOdds, yesOdds},
		{&m.NoOdds, noOdds},
		{&m.TotalYesStake, yesStake},
		{&m.TotalNoStake, noStake},
		{&m.TotalVolume, volume},
	} {
		d, err := parseDecimal(f.src)
		if err != nil {
			return domain.Market{}, err
		}
		*f.dst = d
	}

	return m, nil
}

// GetByID retrieves a single market.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.q.QueryRow(ctx, `SELECT `+marketSelectCols+` FROM markets WHERE id = $1`, id)

	m, err := scanMarketFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// ListActive returns all markets accepting orders.
func (s *MarketStore) ListActive(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE status = 'active' ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarketFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan active markets: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// CountByCreatorSince counts markets a creator opened after the given time.
func (s *MarketStore) CountByCreatorSince(ctx context.Context, creatorID string, since time.Time) (int64, error) {
	var n int64
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM markets WHERE creator_id = $1 AND created_at >= $2`,
		creatorID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets by creator %s: %w", creatorID, err)
	}
	return n, nil
}

// AddVolume accumulates total volume and the side-specific stake.
func (s *MarketStore) AddVolume(ctx context.Context, id string, amount decimal.Decimal, side domain.OrderSide) error {
	col := "total_no_stake"
	if side == domain.SideYes {
		col = "total_yes_stake"
	}

	tag, err := s.q.Exec(ctx,
		`UPDATE markets
		 SET total_volume = total_volume + $1::numeric,
		     `+col+` = `+col+` + $1::numeric,
		     updated_at = NOW()
		 WHERE id = $2`,
		amount.String(), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: add volume to market %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// BeginSettlement conditionally transitions the market to closed and stamps
// the outcome. The WHERE clause makes the transition winnable by exactly one
// caller: a settled or cancelled market yields zero rows.
func (s *MarketStore) BeginSettlement(ctx context.Context, id string, outcome domain.MarketOutcome, settledAt time.Time) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE markets
		 SET status = 'closed', outcome = $1, settled_at = $2, updated_at = NOW()
		 WHERE id = $3 AND status IN ('active', 'closed') AND outcome IS NULL`,
		string(outcome), settledAt, id,
	)
	if err != nil {
		return fmt.Errorf("postgres: begin settlement of market %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing or cancelled market from a lost settlement race.
		var status string
		err := s.q.QueryRow(ctx, `SELECT status FROM markets WHERE id = $1`, id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: begin settlement of market %s: %w", id, err)
		}
		if status == string(domain.MarketStatusCancelled) {
			return domain.ErrMarketNotActive
		}
		return domain.ErrMarketSettled
	}
	return nil
}

// MarkSettled finalizes the settlement after every order has been processed.
func (s *MarketStore) MarkSettled(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE markets SET status = 'settled', updated_at = NOW() WHERE id = $1 AND status = 'closed'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark market %s settled: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetStatus writes a new lifecycle status.
func (s *MarketStore) SetStatus(ctx context.Context, id string, status domain.MarketStatus) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE markets SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: set market %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
