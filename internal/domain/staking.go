package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenBalance is the wallet-scoped token ledger used by staking and trading
// rewards. It is reconciled against the user ledger and the chain by the
// sync service.
type TokenBalance struct {
	WalletAddress string
	Spendable     decimal.Decimal
	Staked        decimal.Decimal
	TotalEarned   decimal.Decimal
	UpdatedAt     time.Time
}

// StakingAction classifies a staking ledger entry.
type StakingAction string

const (
	StakingStake       StakingAction = "stake"
	StakingUnstake     StakingAction = "unstake"
	StakingRewardClaim StakingAction = "reward_claim"
)

// StakingRecord is an append-only staking ledger entry with the chain
// signature of the corresponding transfer.
type StakingRecord struct {
	ID            string
	WalletAddress string
	Amount        decimal.Decimal
	Action        StakingAction
	TxSignature   string
	CreatedAt     time.Time
}

// TradingRewardType classifies an instantly-claimed trading reward.
type TradingRewardType string

const (
	TradingRewardDailyLogin TradingRewardType = "daily_login"
	TradingRewardTrading    TradingRewardType = "trading"
	TradingRewardChallenge  TradingRewardType = "challenge"
)

// TradingReward records a claimed trading reward.
type TradingReward struct {
	ID            string
	WalletAddress string
	Amount        decimal.Decimal
	Type          TradingRewardType
	TxSignature   string
	CreatedAt     time.Time
}

// StakingInfo is the typed aggregate returned by the staking info query:
// balances, history and the on-chain view, with named fields throughout.
type StakingInfo struct {
	WalletAddress string
	Spendable     decimal.Decimal
	Staked        decimal.Decimal
	TotalEarned   decimal.Decimal
	OnChain       decimal.Decimal
	History       []StakingRecord
}
