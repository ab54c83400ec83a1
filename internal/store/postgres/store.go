package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lllfutures/exchange/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every aggregate
// store works identically inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.Store over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	txBundle
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:     pool,
		txBundle: newTxBundle(pool),
	}
}

// WithTx runs fn inside a single database transaction. Every store obtained
// from the domain.Tx passed to fn shares that transaction, so row locks taken
// via UserStore.LockBalance serialize concurrent balance mutations per user.
func (s *Store) WithTx(ctx context.Context, fn func(domain.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	if err := fn(newTxBundle(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("postgres: rollback after %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// txBundle groups the per-aggregate stores over one querier.
type txBundle struct {
	users        *UserStore
	markets      *MarketStore
	orders       *OrderStore
	transactions *TransactionStore
	rewards      *RewardStore
	wallets      *WalletStore
	staking      *StakingStore
}

func newTxBundle(q querier) txBundle {
	return txBundle{
		users:        &UserStore{q: q},
		markets:      &MarketStore{q: q},
		orders:       &OrderStore{q: q},
		transactions: &TransactionStore{q: q},
		rewards:      &RewardStore{q: q},
		wallets:      &WalletStore{q: q},
		staking:      &StakingStore{q: q},
	}
}

func (b txBundle) Users() domain.UserStore               { return b.users }
func (b txBundle) Markets() domain.MarketStore           { return b.markets }
func (b txBundle) Orders() domain.OrderStore             { return b.orders }
func (b txBundle) Transactions() domain.TransactionStore { return b.transactions }
func (b txBundle) Rewards() domain.RewardStore           { return b.rewards }
func (b txBundle) Wallets() domain.WalletStore           { return b.wallets }
func (b txBundle) Staking() domain.StakingStore          { return b.staking }

// Compile-time interface check.
var _ domain.Store = (*Store)(nil)
