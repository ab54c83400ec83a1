package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lllfutures/exchange/internal/domain"
)

// WalletStore implements domain.WalletStore. The encrypted_private_key column
// only ever holds the AES-GCM blob; nothing in this package can decrypt it.
type WalletStore struct {
	q querier
}

const walletSelectCols = `id, user_id, public_key, encrypted_private_key, created_at, updated_at`

// Create inserts a custodial wallet record. The unique constraint on user_id
// surfaces duplicate provisioning as domain.ErrAlreadyExists.
func (s *WalletStore) Create(ctx context.Context, w domain.WalletRecord) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO wallets (id, user_id, public_key, encrypted_private_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		w.ID, w.UserID, w.PublicKey, w.EncryptedPrivateKey, w.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create wallet for user %s: %w", w.UserID, err)
	}
	return nil
}

func scanWallet(row pgx.Row) (domain.WalletRecord, error) {
	var w domain.WalletRecord
	err := row.Scan(&w.ID, &w.UserID, &w.PublicKey, &w.EncryptedPrivateKey, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

// GetByUser retrieves the user's wallet record.
func (s *WalletStore) GetByUser(ctx context.Context, userID string) (domain.WalletRecord, error) {
	row := s.q.QueryRow(ctx, `SELECT `+walletSelectCols+` FROM wallets WHERE user_id = $1`, userID)

	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WalletRecord{}, domain.ErrNotFound
		}
		return domain.WalletRecord{}, fmt.Errorf("postgres: get wallet for user %s: %w", userID, err)
	}
	return w, nil
}

// GetByPublicKey retrieves a wallet record by address.
func (s *WalletStore) GetByPublicKey(ctx context.Context, publicKey string) (domain.WalletRecord, error) {
	row := s.q.QueryRow(ctx, `SELECT `+walletSelectCols+` FROM wallets WHERE public_key = $1`, publicKey)

	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WalletRecord{}, domain.ErrNotFound
		}
		return domain.WalletRecord{}, fmt.Errorf("postgres: get wallet %s: %w", publicKey, err)
	}
	return w, nil
}
