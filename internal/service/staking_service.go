package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lllfutures/exchange/internal/domain"
)

// StakingConfig tunes the token reward parameters.
type StakingConfig struct {
	DailyLoginBonus decimal.Decimal
}

// StakingService manages the wallet-scoped token ledger: staking, unstaking
// and instantly-claimed trading rewards such as the daily login bonus.
type StakingService struct {
	store  domain.Store
	chain  domain.ChainClient
	keeper KeyCustodian
	vault  OperatorCredentials
	cfg    StakingConfig
	logger *slog.Logger
}

// NewStakingService creates a StakingService.
func NewStakingService(store domain.Store, chain domain.ChainClient, keeper KeyCustodian, vault OperatorCredentials, cfg StakingConfig, logger *slog.Logger) *StakingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StakingService{
		store:  store,
		chain:  chain,
		keeper: keeper,
		vault:  vault,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "staking_service")),
	}
}

func (s *StakingService) walletFor(ctx context.Context, userID string) (domain.WalletRecord, error) {
	wallet, err := s.keeper.GetWallet(ctx, userID)
	if err != nil {
		return domain.WalletRecord{}, err
	}
	return wallet, nil
}

// Stake moves amount from the wallet's spendable token balance into its
// staked balance, escrowing the tokens in the vault on chain.
func (s *StakingService) Stake(ctx context.Context, userID string, amount decimal.Decimal) (domain.StakingRecord, error) {
	if !amount.IsPositive() {
		return domain.StakingRecord{}, fmt.Errorf("staking_service: stake amount must be positive")
	}
	wallet, err := s.walletFor(ctx, userID)
	if err != nil {
		return domain.StakingRecord{}, err
	}

	balance, err := s.tokenBalance(ctx, wallet.PublicKey)
	if err != nil {
		return domain.StakingRecord{}, err
	}
	if balance.Spendable.LessThan(amount) {
		return domain.StakingRecord{}, domain.ErrInsufficientBalance
	}

	var signature string
	err = s.keeper.UseKeypair(ctx, userID, func(keypair ed25519.PrivateKey) error {
		var err error
		signature, err = s.chain.Transfer(ctx, keypair, wallet.PublicKey, s.vault.PublicKey(), amount)
		return err
	})
	if err != nil {
		return domain.StakingRecord{}, fmt.Errorf("staking_service: escrowing stake: %w", err)
	}

	balance.Spendable = balance.Spendable.Sub(amount)
	balance.Staked = balance.Staked.Add(amount)
	record, err := s.commitStakingMove(ctx, balance, amount, domain.StakingStake, signature)
	if err != nil {
		return domain.StakingRecord{}, err
	}

	s.logger.Info("tokens staked",
		slog.String("wallet", wallet.PublicKey),
		slog.String("amount", amount.String()),
		slog.String("signature", signature))
	return record, nil
}

// Unstake returns amount from the staked balance to the spendable balance,
// releasing the tokens from the vault on chain.
func (s *StakingService) Unstake(ctx context.Context, userID string, amount decimal.Decimal) (domain.StakingRecord, error) {
	if !amount.IsPositive() {
		return domain.StakingRecord{}, fmt.Errorf("staking_service: unstake amount must be positive")
	}
	wallet, err := s.walletFor(ctx, userID)
	if err != nil {
		return domain.StakingRecord{}, err
	}

	balance, err := s.tokenBalance(ctx, wallet.PublicKey)
	if err != nil {
		return domain.StakingRecord{}, err
	}
	if balance.Staked.LessThan(amount) {
		return domain.StakingRecord{}, domain.ErrInsufficientStake
	}

	var signature string
	err = s.vault.UseKeypair(func(keypair ed25519.PrivateKey) error {
		var err error
		signature, err = s.chain.Transfer(ctx, keypair, s.vault.PublicKey(), wallet.PublicKey, amount)
		return err
	})
	if err != nil {
		return domain.StakingRecord{}, fmt.Errorf("staking_service: releasing stake: %w", err)
	}

	balance.Staked = balance.Staked.Sub(amount)
	balance.Spendable = balance.Spendable.Add(amount)
	record, err := s.commitStakingMove(ctx, balance, amount, domain.StakingUnstake, signature)
	if err != nil {
		return domain.StakingRecord{}, err
	}

	s.logger.Info("tokens unstaked",
		slog.String("wallet", wallet.PublicKey),
		slog.String("amount", amount.String()),
		slog.String("signature", signature))
	return record, nil
}

func (s *StakingService) commitStakingMove(
	ctx context.Context,
	balance domain.TokenBalance,
	amount decimal.Decimal,
	action domain.StakingAction,
	signature string,
) (domain.StakingRecord, error) {
	now := time.Now().UTC()
	balance.UpdatedAt = now
	record := domain.StakingRecord{
		ID:            uuid.NewString(),
		WalletAddress: balance.WalletAddress,
		Amount:        amount,
		Action:        action,
		TxSignature:   signature,
		CreatedAt:     now,
	}
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		if err := tx.Staking().UpsertBalance(ctx, balance); err != nil {
			return fmt.Errorf("staking_service: updating token balance: %w", err)
		}
		if err := tx.Staking().AppendRecord(ctx, record); err != nil {
			return fmt.Errorf("staking_service: recording %s: %w", action, err)
		}
		return nil
	})
	if err != nil {
		return domain.StakingRecord{}, err
	}
	return record, nil
}

// ClaimDailyLogin pays the daily login bonus straight into the wallet's
// spendable token balance. One claim per wallet per UTC day; a second claim
// returns ErrAlreadyClaimed.
func (s *StakingService) ClaimDailyLogin(ctx context.Context, userID string) (domain.TradingReward, error) {
	wallet, err := s.walletFor(ctx, userID)
	if err != nil {
		return domain.TradingReward{}, err
	}

	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	claims, err := s.store.Staking().CountTradingRewardsSince(ctx, wallet.PublicKey, domain.TradingRewardDailyLogin, startOfDay)
	if err != nil {
		return domain.TradingReward{}, fmt.Errorf("staking_service: checking today's claims: %w", err)
	}
	if claims > 0 {
		return domain.TradingReward{}, domain.ErrAlreadyClaimed
	}

	amount := s.cfg.DailyLoginBonus
	if !amount.IsPositive() {
		return domain.TradingReward{}, fmt.Errorf("staking_service: daily login bonus is not configured")
	}

	var signature string
	err = s.vault.UseKeypair(func(keypair ed25519.PrivateKey) error {
		var err error
		signature, err = s.chain.Transfer(ctx, keypair, s.vault.PublicKey(), wallet.PublicKey, amount)
		return err
	})
	if err != nil {
		return domain.TradingReward{}, fmt.Errorf("staking_service: paying daily login bonus: %w", err)
	}

	reward := domain.TradingReward{
		ID:            uuid.NewString(),
		WalletAddress: wallet.PublicKey,
		Amount:        amount,
		Type:          domain.TradingRewardDailyLogin,
		TxSignature:   signature,
		CreatedAt:     now,
	}
	err = s.store.WithTx(ctx, func(tx domain.Tx) error {
		balance, err := s.tokenBalanceTx(ctx, tx, wallet.PublicKey)
		if err != nil {
			return err
		}
		balance.Spendable = balance.Spendable.Add(amount)
		balance.TotalEarned = balance.TotalEarned.Add(amount)
		balance.UpdatedAt = now
		if err := tx.Staking().UpsertBalance(ctx, balance); err != nil {
			return fmt.Errorf("staking_service: crediting token balance: %w", err)
		}
		if err := tx.Staking().AppendTradingReward(ctx, reward); err != nil {
			return fmt.Errorf("staking_service: recording daily login claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.TradingReward{}, err
	}

	s.logger.Info("daily login bonus claimed",
		slog.String("wallet", wallet.PublicKey),
		slog.String("amount", amount.String()))
	return reward, nil
}

// Info returns the wallet's full staking picture, including the live
// on-chain balance.
func (s *StakingService) Info(ctx context.Context, userID string) (domain.StakingInfo, error) {
	wallet, err := s.walletFor(ctx, userID)
	if err != nil {
		return domain.StakingInfo{}, err
	}

	balance, err := s.tokenBalance(ctx, wallet.PublicKey)
	if err != nil {
		return domain.StakingInfo{}, err
	}
	history, err := s.store.Staking().ListRecords(ctx, wallet.PublicKey)
	if err != nil {
		return domain.StakingInfo{}, fmt.Errorf("staking_service: listing staking history: %w", err)
	}
	onChain, err := s.chain.GetBalance(ctx, wallet.PublicKey)
	if err != nil {
		return domain.StakingInfo{}, fmt.Errorf("staking_service: reading on-chain balance: %w", err)
	}

	return domain.StakingInfo{
		WalletAddress: wallet.PublicKey,
		Spendable:     balance.Spendable,
		Staked:        balance.Staked,
		TotalEarned:   balance.TotalEarned,
		OnChain:       onChain,
		History:       history,
	}, nil
}

// tokenBalance loads the wallet's token balance, treating a missing row as a
// zeroed ledger.
func (s *StakingService) tokenBalance(ctx context.Context, walletAddress string) (domain.TokenBalance, error) {
	return s.tokenBalanceTx(ctx, s.store, walletAddress)
}

func (s *StakingService) tokenBalanceTx(ctx context.Context, tx domain.Tx, walletAddress string) (domain.TokenBalance, error) {
	balance, err := tx.Staking().GetBalance(ctx, walletAddress)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TokenBalance{
				WalletAddress: walletAddress,
				Spendable:     decimal.Zero,
				Staked:        decimal.Zero,
				TotalEarned:   decimal.Zero,
			}, nil
		}
		return domain.TokenBalance{}, fmt.Errorf("staking_service: loading token balance: %w", err)
	}
	return balance, nil
}
