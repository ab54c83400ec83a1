package service

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lllfutures/exchange/internal/domain"
)

// KeyCustodian provisions custodial wallets and scopes access to their
// private keys, so services never depend on the concrete vault.
type KeyCustodian interface {
	CreateWallet(ctx context.Context, userID string) (domain.WalletRecord, error)
	GetWallet(ctx context.Context, userID string) (domain.WalletRecord, error)
	UseKeypair(ctx context.Context, userID string, fn func(keypair ed25519.PrivateKey) error) error
}

// OperatorCredentials exposes the exchange's own wallet for vault-side
// transfers.
type OperatorCredentials interface {
	PublicKey() string
	UseKeypair(fn func(keypair ed25519.PrivateKey) error) error
}

// UserService owns account registration and direct balance mutations.
type UserService struct {
	store       domain.Store
	keeper      KeyCustodian
	signupBonus decimal.Decimal
	logger      *slog.Logger
}

// NewUserService creates a UserService. The keeper may be nil, in which case
// registration skips wallet provisioning.
func NewUserService(store domain.Store, keeper KeyCustodian, signupBonus decimal.Decimal, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		store:       store,
		keeper:      keeper,
		signupBonus: signupBonus,
		logger:      logger.With(slog.String("component", "user_service")),
	}
}

// Register creates an account with a zero balance, provisions its custodial
// wallet, and queues the signup bonus for asynchronous distribution.
func (s *UserService) Register(ctx context.Context, username string) (domain.User, error) {
	if username == "" {
		return domain.User{}, fmt.Errorf("user_service: username must not be empty")
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("user_service: creating user: %w", err)
	}

	if s.keeper != nil {
		wallet, err := s.keeper.CreateWallet(ctx, user.ID)
		if err != nil {
			// The account exists; wallet provisioning can be retried later.
			s.logger.Error("wallet provisioning failed",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()))
		} else {
			if err := s.store.Users().SetWalletAddress(ctx, user.ID, wallet.PublicKey); err != nil {
				return domain.User{}, fmt.Errorf("user_service: linking wallet: %w", err)
			}
			user.WalletAddress = wallet.PublicKey
		}
	}

	if s.signupBonus.IsPositive() {
		reward := domain.Reward{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			Amount:    s.signupBonus,
			Reason:    domain.RewardReasonSignupBonus,
			Status:    domain.RewardPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.Rewards().Create(ctx, reward); err != nil {
			s.logger.Error("queueing signup bonus failed",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()))
		}
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", username),
		slog.String("wallet", user.WalletAddress))
	return user, nil
}

// Get returns the user by id.
func (s *UserService) Get(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("user_service: loading user %s: %w", userID, err)
	}
	return u, nil
}

// UpdateBalance applies a signed delta to the user's balance and records the
// audit entry, all within one transaction. A delta that would drive the
// balance negative fails with ErrInsufficientBalance and nothing is written.
func (s *UserService) UpdateBalance(
	ctx context.Context,
	userID string,
	delta decimal.Decimal,
	txType domain.TransactionType,
	description string,
) (domain.Transaction, error) {
	var entry domain.Transaction
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		entry, err = applyBalanceChange(ctx, tx, userID, delta, txType, description, nil, nil)
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return entry, nil
}

// Deposit credits the user's balance.
func (s *UserService) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, fmt.Errorf("user_service: deposit amount must be positive")
	}
	return s.UpdateBalance(ctx, userID, amount, domain.TxDeposit, "deposit")
}

// Withdraw debits the user's balance.
func (s *UserService) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, fmt.Errorf("user_service: withdrawal amount must be positive")
	}
	return s.UpdateBalance(ctx, userID, amount.Neg(), domain.TxWithdrawal, "withdrawal")
}

// Transactions returns the user's most recent ledger entries.
func (s *UserService) Transactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.Transactions().ListByUser(ctx, userID, limit)
}
