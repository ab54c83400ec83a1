package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lllfutures/exchange/internal/domain"
)

// RewardStore implements domain.RewardStore.
type RewardStore struct {
	q querier
}

const rewardSelectCols = `id, user_id, amount::text, reason, status,
	tx_signature, error_message, created_at, updated_at`

// Create persists a new pending reward.
func (s *RewardStore) Create(ctx context.Context, r domain.Reward) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO rewards (id, user_id, amount, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		r.ID, r.UserID, r.Amount.String(), r.Reason, string(r.Status), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create reward %s: %w", r.ID, err)
	}
	return nil
}

func scanRewardFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Reward, error) {
	var r domain.Reward
	var amount, status string

	err := scanner.Scan(
		&r.ID, &r.UserID, &amount, &r.Reason, &status,
		&r.TxSignature, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return domain.Reward{}, err
	}

	r.Status = domain.RewardStatus(status)
	if r.Amount, err = parseDecimal(amount); err != nil {
		return domain.Reward{}, err
	}
	return r, nil
}

// GetByID retrieves a single reward record.
func (s *RewardStore) GetByID(ctx context.Context, id string) (domain.Reward, error) {
	row := s.q.QueryRow(ctx, `SELECT `+rewardSelectCols+` FROM rewards WHERE id = $1`, id)

	r, err := scanRewardFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reward{}, domain.ErrNotFound
		}
		return domain.Reward{}, fmt.Errorf("postgres: get reward %s: %w", id, err)
	}
	return r, nil
}

func (s *RewardStore) listByStatus(ctx context.Context, status domain.RewardStatus, where, tail string, args ...any) ([]domain.Reward, error) {
	query := `SELECT ` + rewardSelectCols + ` FROM rewards WHERE status = $1` + where + ` ORDER BY created_at ASC` + tail

	rows, err := s.q.Query(ctx, query, append([]any{string(status)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s rewards: %w", status, err)
	}
	defer rows.Close()

	var rewards []domain.Reward
	for rows.Next() {
		r, err := scanRewardFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan reward: %w", err)
		}
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}

// ListPending returns the oldest pending rewards, capped at limit.
func (s *RewardStore) ListPending(ctx context.Context, limit int) ([]domain.Reward, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.listByStatus(ctx, domain.RewardPending, ``, ` LIMIT $2`, limit)
}

// Claim conditionally takes ownership of a pending record by moving it to
// processing. The status guard means exactly one drain pass can win; the
// caller must observe the returned bool before attempting a transfer.
func (s *RewardStore) Claim(ctx context.Context, id string) (bool, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE rewards SET status = 'processing', updated_at = NOW()
		 WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("postgres: claim reward %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompleted finalizes a distributed reward with its chain signature.
func (s *RewardStore) MarkCompleted(ctx context.Context, id, txSignature string) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE rewards SET status = 'completed', tx_signature = $1, error_message = NULL, updated_at = NOW()
		 WHERE id = $2 AND status = 'processing'`,
		txSignature, id)
	if err != nil {
		return fmt.Errorf("postgres: complete reward %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkFailed records the distribution error. Failed records stay failed until
// an operator requeues them.
func (s *RewardStore) MarkFailed(ctx context.Context, id, errorMessage string) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE rewards SET status = 'failed', error_message = $1, updated_at = NOW()
		 WHERE id = $2 AND status IN ('pending', 'processing')`,
		errorMessage, id)
	if err != nil {
		return fmt.Errorf("postgres: fail reward %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Requeue moves a failed record back to pending for one more attempt.
func (s *RewardStore) Requeue(ctx context.Context, id string) (bool, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE rewards SET status = 'pending', error_message = NULL, updated_at = NOW()
		 WHERE id = $1 AND status = 'failed'`, id)
	if err != nil {
		return false, fmt.Errorf("postgres: requeue reward %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListStuckProcessing surfaces records still in processing after olderThan,
// i.e. a drain pass claimed them and never finished.
func (s *RewardStore) ListStuckProcessing(ctx context.Context, olderThan time.Time) ([]domain.Reward, error) {
	return s.listByStatus(ctx, domain.RewardProcessing, ` AND updated_at < $2`, ``, olderThan)
}
