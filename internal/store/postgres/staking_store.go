package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lllfutures/exchange/internal/domain"
)

// StakingStore implements domain.StakingStore.
type StakingStore struct {
	q querier
}

// GetBalance retrieves the wallet-scoped token balance. A wallet with no row
// yet returns domain.ErrNotFound; callers seed via UpsertBalance.
func (s *StakingStore) GetBalance(ctx context.Context, walletAddress string) (domain.TokenBalance, error) {
	var b domain.TokenBalance
	var spendable, staked, earned string

	err := s.q.QueryRow(ctx, `
		SELECT wallet_address, spendable::text, staked::text, total_earned::text, updated_at
		FROM token_balances WHERE wallet_address = $1`, walletAddress,
	).Scan(&b.WalletAddress, &spendable, &staked, &earned, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenBalance{}, domain.ErrNotFound
		}
		return domain.TokenBalance{}, fmt.Errorf("postgres: get token balance %s: %w", walletAddress, err)
	}

	if b.Spendable, err = parseDecimal(spendable); err != nil {
		return domain.TokenBalance{}, err
	}
	if b.Staked, err = parseDecimal(staked); err != nil {
		return domain.TokenBalance{}, err
	}
	if b.TotalEarned, err = parseDecimal(earned); err != nil {
		return domain.TokenBalance{}, err
	}
	return b, nil
}

// UpsertBalance writes the wallet-scoped token balance.
func (s *StakingStore) UpsertBalance(ctx context.Context, b domain.TokenBalance) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO token_balances (wallet_address, spendable, staked, total_earned, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (wallet_address) DO UPDATE
		SET spendable = EXCLUDED.spendable,
		    staked = EXCLUDED.staked,
		    total_earned = EXCLUDED.total_earned,
		    updated_at = NOW()`,
		b.WalletAddress, b.Spendable.String(), b.Staked.String(), b.TotalEarned.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert token balance %s: %w", b.WalletAddress, err)
	}
	return nil
}

// AppendRecord writes one staking ledger entry.
func (s *StakingStore) AppendRecord(ctx context.Context, r domain.StakingRecord) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO staking_records (id, wallet_address, amount, action, tx_signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.WalletAddress, r.Amount.String(), string(r.Action), r.TxSignature, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append staking record %s: %w", r.ID, err)
	}
	return nil
}

// ListRecords returns the wallet's staking history, newest first.
func (s *StakingStore) ListRecords(ctx context.Context, walletAddress string) ([]domain.StakingRecord, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, wallet_address, amount::text, action, tx_signature, created_at
		FROM staking_records
		WHERE wallet_address = $1
		ORDER BY created_at DESC`, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("postgres: list staking records %s: %w", walletAddress, err)
	}
	defer rows.Close()

	var records []domain.StakingRecord
	for rows.Next() {
		var r domain.StakingRecord
		var amount, action string

		if err := rows.Scan(&r.ID, &r.WalletAddress, &amount, &action, &r.TxSignature, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan staking record: %w", err)
		}
		r.Action = domain.StakingAction(action)
		if r.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// AppendTradingReward records a claimed trading reward.
func (s *StakingStore) AppendTradingReward(ctx context.Context, r domain.TradingReward) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO trading_rewards (id, wallet_address, amount, reward_type, tx_signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.WalletAddress, r.Amount.String(), string(r.Type), r.TxSignature, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append trading reward %s: %w", r.ID, err)
	}
	return nil
}

// CountTradingRewardsSince counts rewards of one type claimed after since.
// Used to enforce the once-per-day login bonus.
func (s *StakingStore) CountTradingRewardsSince(ctx context.Context, walletAddress string, typ domain.TradingRewardType, since time.Time) (int64, error) {
	var n int64
	err := s.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM trading_rewards
		WHERE wallet_address = $1 AND reward_type = $2 AND created_at >= $3`,
		walletAddress, string(typ), since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count trading rewards %s: %w", walletAddress, err)
	}
	return n, nil
}
