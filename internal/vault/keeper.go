package vault

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lllfutures/exchange/internal/domain"
)

// Keeper provisions custodial wallets and performs signing on their behalf.
// Private keys are persisted only in encrypted form; decryption is scoped to
// a single call and the plaintext is zeroed before returning.
type Keeper struct {
	wallets domain.WalletStore
	secret  string
	logger  *slog.Logger
}

// NewKeeper creates a Keeper backed by the given wallet store. The secret is
// the process-level encryption password for key material at rest.
func NewKeeper(wallets domain.WalletStore, secret string, logger *slog.Logger) (*Keeper, error) {
	if secret == "" {
		return nil, errors.New("vault: keeper requires a non-empty secret")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Keeper{
		wallets: wallets,
		secret:  secret,
		logger:  logger.With(slog.String("component", "vault")),
	}, nil
}

// CreateWallet provisions a custodial wallet for the user. The call is
// idempotent: if the user already has a wallet, the existing record is
// returned unchanged and no new key is generated.
func (k *Keeper) CreateWallet(ctx context.Context, userID string) (domain.WalletRecord, error) {
	existing, err := k.wallets.GetByUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.WalletRecord{}, fmt.Errorf("vault: checking existing wallet: %w", err)
	}

	pubKey, keypair, err := GenerateKeypair()
	if err != nil {
		return domain.WalletRecord{}, err
	}
	defer zero(keypair)

	encrypted, err := EncryptKeypair(keypair, k.secret)
	if err != nil {
		return domain.WalletRecord{}, err
	}

	now := time.Now().UTC()
	record := domain.WalletRecord{
		ID:                  uuid.NewString(),
		UserID:              userID,
		PublicKey:           pubKey,
		EncryptedPrivateKey: encrypted,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := k.wallets.Create(ctx, record); err != nil {
		// Lost a provisioning race; the winner's wallet is the wallet.
		if errors.Is(err, domain.ErrAlreadyExists) {
			return k.wallets.GetByUser(ctx, userID)
		}
		return domain.WalletRecord{}, fmt.Errorf("vault: storing wallet: %w", err)
	}

	k.logger.Info("custodial wallet created",
		slog.String("user_id", userID),
		slog.String("public_key", pubKey))

	return record, nil
}

// GetWallet returns the user's wallet record.
func (k *Keeper) GetWallet(ctx context.Context, userID string) (domain.WalletRecord, error) {
	rec, err := k.wallets.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.WalletRecord{}, domain.ErrWalletMissing
		}
		return domain.WalletRecord{}, fmt.Errorf("vault: loading wallet: %w", err)
	}
	return rec, nil
}

// UseKeypair decrypts the user's keypair and passes it to fn. The plaintext
// is zeroed once fn returns, so fn must not retain the slice.
func (k *Keeper) UseKeypair(ctx context.Context, userID string, fn func(keypair ed25519.PrivateKey) error) error {
	rec, err := k.GetWallet(ctx, userID)
	if err != nil {
		return err
	}
	keypair, err := DecryptKeypair(rec.EncryptedPrivateKey, k.secret)
	if err != nil {
		return err
	}
	defer zero(keypair)
	return fn(keypair)
}

// Sign produces an ed25519 signature over message with the user's key.
func (k *Keeper) Sign(ctx context.Context, userID string, message []byte) ([]byte, error) {
	var sig []byte
	err := k.UseKeypair(ctx, userID, func(keypair ed25519.PrivateKey) error {
		sig = ed25519.Sign(keypair, message)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sig, nil
}
