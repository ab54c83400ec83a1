package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllfutures/exchange/internal/domain"
)

func TestRegisterProvisionsWalletAndQueuesBonus(t *testing.T) {
	store := newMemStore()
	svc := NewUserService(store, &fakeKeeper{store: store}, decimal.NewFromInt(100), testLogger())

	user, err := svc.Register(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, user.Balance.IsZero())
	assert.Equal(t, "wallet-"+user.ID, user.WalletAddress)
	assert.Equal(t, user.WalletAddress, store.users[user.ID].WalletAddress)

	require.Len(t, store.rewards, 1)
	for _, reward := range store.rewards {
		assert.Equal(t, user.ID, reward.UserID)
		assert.Equal(t, domain.RewardReasonSignupBonus, reward.Reason)
		assert.Equal(t, domain.RewardPending, reward.Status)
		assert.True(t, reward.Amount.Equal(decimal.NewFromInt(100)))
	}
}

func TestRegisterWithoutKeeper(t *testing.T) {
	store := newMemStore()
	svc := NewUserService(store, nil, decimal.Zero, testLogger())

	user, err := svc.Register(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, user.WalletAddress)
	assert.Empty(t, store.rewards)
}

func TestUpdateBalanceGuardsAgainstNegative(t *testing.T) {
	store := newMemStore()
	store.seedUser("u1", decimal.NewFromInt(30))
	svc := NewUserService(store, nil, decimal.Zero, testLogger())
	ctx := context.Background()

	_, err := svc.UpdateBalance(ctx, "u1", decimal.NewFromInt(-50), domain.TxWithdrawal, "too much")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, store.users["u1"].Balance.Equal(decimal.NewFromInt(30)))
	assert.Empty(t, store.txns)
}

func TestDepositAndWithdraw(t *testing.T) {
	store := newMemStore()
	store.seedUser("u1", decimal.NewFromInt(100))
	svc := NewUserService(store, nil, decimal.Zero, testLogger())
	ctx := context.Background()

	entry, err := svc.Deposit(ctx, "u1", decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Equal(t, domain.TxDeposit, entry.Type)
	assert.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(150)))

	entry, err = svc.Withdraw(ctx, "u1", decimal.NewFromInt(120))
	require.NoError(t, err)
	assert.Equal(t, domain.TxWithdrawal, entry.Type)
	assert.True(t, entry.Amount.Equal(decimal.NewFromInt(-120)))
	assert.True(t, store.users["u1"].Balance.Equal(decimal.NewFromInt(30)))

	_, err = svc.Deposit(ctx, "u1", decimal.Zero)
	assert.Error(t, err)
	_, err = svc.Withdraw(ctx, "u1", decimal.NewFromInt(-1))
	assert.Error(t, err)
}

func TestTransactionsNewestFirst(t *testing.T) {
	store := newMemStore()
	store.seedUser("u1", decimal.NewFromInt(0))
	svc := NewUserService(store, nil, decimal.Zero, testLogger())
	ctx := context.Background()

	_, err := svc.Deposit(ctx, "u1", decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, "u1", decimal.NewFromInt(20))
	require.NoError(t, err)

	entries, err := svc.Transactions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(20)))
	assert.True(t, entries[1].Amount.Equal(decimal.NewFromInt(10)))
}
