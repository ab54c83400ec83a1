package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lllfutures/exchange/internal/domain"
)

// UserStore implements domain.UserStore, the balance ledger.
type UserStore struct {
	q querier
}

const userSelectCols = `id, username, balance::text, COALESCE(wallet_address, ''), created_at, updated_at`

// Create inserts a new user row.
func (s *UserStore) Create(ctx context.Context, u domain.User) error {
	var wallet *string
	if u.WalletAddress != "" {
		wallet = &u.WalletAddress
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO users (id, username, balance, wallet_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		u.ID, u.Username, u.Balance.String(), wallet, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create user %s: %w", u.ID, err)
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	var balance string

	if err := row.Scan(&u.ID, &u.Username, &balance, &u.WalletAddress, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, err
	}

	var err error
	u.Balance, err = parseDecimal(balance)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := s.q.QueryRow(ctx, `SELECT `+userSelectCols+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", id, err)
	}
	return u, nil
}

// GetByWallet retrieves a user by custodial wallet address.
func (s *UserStore) GetByWallet(ctx context.Context, walletAddress string) (domain.User, error) {
	row := s.q.QueryRow(ctx, `SELECT `+userSelectCols+` FROM users WHERE wallet_address = $1`, walletAddress)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user by wallet %s: %w", walletAddress, err)
	}
	return u, nil
}

// LockBalance reads the user's balance under FOR UPDATE. Inside a
// transaction this serializes every later mutation of the same row, so
// concurrent placement, settlement and reward credits queue FIFO on the row
// lock instead of racing into a lost update.
func (s *UserStore) LockBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	var balance string
	err := s.q.QueryRow(ctx,
		`SELECT balance::text FROM users WHERE id = $1 FOR UPDATE`, id,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, domain.ErrNotFound
		}
		return decimal.Decimal{}, fmt.Errorf("postgres: lock balance %s: %w", id, err)
	}
	return parseDecimal(balance)
}

// SetBalance writes a new balance value.
func (s *UserStore) SetBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE users SET balance = $1, updated_at = NOW() WHERE id = $2`,
		balance.String(), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: set balance %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetWalletAddress records the provisioned custodial wallet on the user row.
func (s *UserStore) SetWalletAddress(ctx context.Context, id, walletAddress string) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE users SET wallet_address = $1, updated_at = NOW() WHERE id = $2`,
		walletAddress, id,
	)
	if err != nil {
		return fmt.Errorf("postgres: set wallet address %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
