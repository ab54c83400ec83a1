package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Tx exposes every aggregate store. Obtained either directly from a Store
// (auto-commit access) or inside Store.WithTx, where all calls share one
// database transaction.
type Tx interface {
	Users() UserStore
	Markets() MarketStore
	Orders() OrderStore
	Transactions() TransactionStore
	Rewards() RewardStore
	Wallets() WalletStore
	Staking() StakingStore
}

// Store is the persistence root. WithTx runs fn inside a single transaction,
// committing if fn returns nil and rolling back otherwise.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// UserStore owns the balance ledger.
type UserStore interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByWallet(ctx context.Context, walletAddress string) (User, error)
	// LockBalance reads the user's balance under a row lock. The lock is only
	// meaningful inside WithTx; it serializes all balance mutations per user.
	LockBalance(ctx context.Context, id string) (decimal.Decimal, error)
	SetBalance(ctx context.Context, id string, balance decimal.Decimal) error
	SetWalletAddress(ctx context.Context, id, walletAddress string) error
}

// MarketStore persists market aggregates.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	ListActive(ctx context.Context) ([]Market, error)
	CountByCreatorSince(ctx context.Context, creatorID string, since time.Time) (int64, error)
	AddVolume(ctx context.Context, id string, amount decimal.Decimal, side OrderSide) error
	// BeginSettlement conditionally moves the market to closed and stamps
	// outcome and settledAt. It returns ErrMarketSettled when the market has
	// already been settled or cancelled, so only one settlement can win.
	BeginSettlement(ctx context.Context, id string, outcome MarketOutcome, settledAt time.Time) error
	MarkSettled(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status MarketStatus) error
}

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, o Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	ListOpenByMarket(ctx context.Context, marketID string) ([]Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// Settle transitions open -> settled with the settled amount. Settling a
	// non-open order returns ErrNotFound.
	Settle(ctx context.Context, id string, amount decimal.Decimal, settledAt time.Time) error
	Cancel(ctx context.Context, id string, cancelledAt time.Time) error
}

// TransactionStore is the append-only audit ledger.
type TransactionStore interface {
	Append(ctx context.Context, t Transaction) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Transaction, error)
}

// RewardStore persists queued rewards.
type RewardStore interface {
	Create(ctx context.Context, r Reward) error
	GetByID(ctx context.Context, id string) (Reward, error)
	ListPending(ctx context.Context, limit int) ([]Reward, error)
	// Claim conditionally moves pending -> processing. It reports false when
	// another drain pass already owns the record.
	Claim(ctx context.Context, id string) (bool, error)
	MarkCompleted(ctx context.Context, id, txSignature string) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
	// Requeue moves failed -> pending for an explicit operator retry.
	Requeue(ctx context.Context, id string) (bool, error)
	// ListStuckProcessing surfaces records orphaned in processing (crash
	// between claim and transfer) for manual inspection.
	ListStuckProcessing(ctx context.Context, olderThan time.Time) ([]Reward, error)
}

// WalletStore persists custodial wallet records.
type WalletStore interface {
	Create(ctx context.Context, w WalletRecord) error
	GetByUser(ctx context.Context, userID string) (WalletRecord, error)
	GetByPublicKey(ctx context.Context, publicKey string) (WalletRecord, error)
}

// StakingStore persists the wallet-scoped token ledger plus staking and
// trading-reward history.
type StakingStore interface {
	GetBalance(ctx context.Context, walletAddress string) (TokenBalance, error)
	UpsertBalance(ctx context.Context, b TokenBalance) error
	AppendRecord(ctx context.Context, r StakingRecord) error
	ListRecords(ctx context.Context, walletAddress string) ([]StakingRecord, error)
	AppendTradingReward(ctx context.Context, r TradingReward) error
	CountTradingRewardsSince(ctx context.Context, walletAddress string, typ TradingRewardType, since time.Time) (int64, error)
}
