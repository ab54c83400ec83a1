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

// RewardService owns the asynchronous reward queue: crediting paths enqueue,
// the distribution worker drains. Each reward is paid from the vault wallet
// to the user's custodial wallet and mirrored into the balance ledger.
type RewardService struct {
	store  domain.Store
	chain  domain.ChainClient
	keeper KeyCustodian
	vault  OperatorCredentials
	logger *slog.Logger
}

// NewRewardService creates a RewardService.
func NewRewardService(store domain.Store, chain domain.ChainClient, keeper KeyCustodian, vault OperatorCredentials, logger *slog.Logger) *RewardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RewardService{
		store:  store,
		chain:  chain,
		keeper: keeper,
		vault:  vault,
		logger: logger.With(slog.String("component", "reward_service")),
	}
}

// Enqueue queues a reward for asynchronous distribution.
func (s *RewardService) Enqueue(ctx context.Context, userID string, amount decimal.Decimal, reason string) (domain.Reward, error) {
	if !amount.IsPositive() {
		return domain.Reward{}, fmt.Errorf("reward_service: amount must be positive, got %s", amount)
	}
	now := time.Now().UTC()
	reward := domain.Reward{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		Status:    domain.RewardPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Rewards().Create(ctx, reward); err != nil {
		return domain.Reward{}, fmt.Errorf("reward_service: queueing reward: %w", err)
	}
	return reward, nil
}

// DrainPending distributes up to batchSize pending rewards. One reward's
// failure marks that record failed and the pass moves on: amounts differ per
// record, so a vault too thin for one reward may still cover the next.
// Returns how many rewards completed and how many failed.
func (s *RewardService) DrainPending(ctx context.Context, batchSize int) (completed, failed int, err error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	pending, err := s.store.Rewards().ListPending(ctx, batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("reward_service: listing pending rewards: %w", err)
	}

	for _, reward := range pending {
		claimed, err := s.store.Rewards().Claim(ctx, reward.ID)
		if err != nil {
			return completed, failed, fmt.Errorf("reward_service: claiming reward %s: %w", reward.ID, err)
		}
		if !claimed {
			// Another drain pass owns this record.
			continue
		}

		if err := s.distribute(ctx, reward); err != nil {
			s.markFailed(ctx, reward.ID, err.Error())
			failed++
			s.logger.Error("reward distribution failed",
				slog.String("reward_id", reward.ID),
				slog.String("user_id", reward.UserID),
				slog.String("error", err.Error()))
			continue
		}
		completed++
	}

	if completed > 0 || failed > 0 {
		s.logger.Info("drain pass finished",
			slog.Int("completed", completed),
			slog.Int("failed", failed))
	}
	return completed, failed, nil
}

// distribute pays one claimed reward: vault funds check, chain transfer,
// then the ledger credit and completion stamp in one transaction.
func (s *RewardService) distribute(ctx context.Context, reward domain.Reward) error {
	wallet, err := s.keeper.GetWallet(ctx, reward.UserID)
	if err != nil {
		return fmt.Errorf("loading wallet: %w", err)
	}

	vaultBalance, err := s.chain.GetBalance(ctx, s.vault.PublicKey())
	if err != nil {
		return fmt.Errorf("checking vault balance: %w", err)
	}
	if vaultBalance.LessThan(reward.Amount) {
		return fmt.Errorf("vault holds %s, reward needs %s: %w", vaultBalance, reward.Amount, domain.ErrVaultUnderfunded)
	}

	var signature string
	err = s.vault.UseKeypair(func(keypair ed25519.PrivateKey) error {
		var err error
		signature, err = s.chain.Transfer(ctx, keypair, s.vault.PublicKey(), wallet.PublicKey, reward.Amount)
		return err
	})
	if err != nil {
		return fmt.Errorf("transferring reward: %w", err)
	}

	err = s.store.WithTx(ctx, func(tx domain.Tx) error {
		desc := "reward: " + reward.Reason
		if _, err := applyBalanceChange(ctx, tx, reward.UserID, reward.Amount, domain.TxReward, desc, nil, nil); err != nil {
			return err
		}
		if err := tx.Rewards().MarkCompleted(ctx, reward.ID, signature); err != nil {
			return fmt.Errorf("marking reward %s completed: %w", reward.ID, err)
		}
		return nil
	})
	if err != nil {
		// The transfer went out but the credit did not commit; flag for
		// reconciliation rather than retrying the transfer.
		return fmt.Errorf("crediting reward after transfer %s: %w", signature, err)
	}

	s.logger.Info("reward distributed",
		slog.String("reward_id", reward.ID),
		slog.String("user_id", reward.UserID),
		slog.String("reason", reward.Reason),
		slog.String("amount", reward.Amount.String()),
		slog.String("signature", signature))
	return nil
}

func (s *RewardService) markFailed(ctx context.Context, rewardID, message string) {
	if err := s.store.Rewards().MarkFailed(ctx, rewardID, message); err != nil {
		s.logger.Error("marking reward failed did not stick",
			slog.String("reward_id", rewardID),
			slog.String("error", err.Error()))
	}
}

// Requeue moves a failed reward back to pending for another distribution
// attempt. Rewards in any other state return ErrRewardNotRetryable.
func (s *RewardService) Requeue(ctx context.Context, rewardID string) error {
	ok, err := s.store.Rewards().Requeue(ctx, rewardID)
	if err != nil {
		return fmt.Errorf("reward_service: requeueing %s: %w", rewardID, err)
	}
	if !ok {
		return domain.ErrRewardNotRetryable
	}
	return nil
}

// StuckProcessing lists rewards orphaned in processing state, usually after
// a crash between claim and transfer. They need operator review: the
// transfer may or may not have happened.
func (s *RewardService) StuckProcessing(ctx context.Context, olderThan time.Duration) ([]domain.Reward, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	return s.store.Rewards().ListStuckProcessing(ctx, cutoff)
}
