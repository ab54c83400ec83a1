package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllfutures/exchange/internal/domain"
)

func TestCheckUserReportsDrift(t *testing.T) {
	store := newMemStore()
	store.seedUser("u1", decimal.NewFromInt(1000))
	chain := newFakeChain()
	chain.balances["wallet-u1"] = decimal.NewFromInt(900)

	svc := NewSyncService(store, chain, decimal.Zero, testLogger())
	drift, err := svc.CheckUser(context.Background(), "u1")
	require.NoError(t, err)

	assert.True(t, drift.Ledger.Equal(decimal.NewFromInt(1000)))
	assert.True(t, drift.OnChain.Equal(decimal.NewFromInt(900)))
	assert.True(t, drift.Drift.Equal(decimal.NewFromInt(100)))
	assert.False(t, drift.InSync(decimal.Zero))
	assert.True(t, drift.InSync(decimal.NewFromInt(100)))
}

func TestCheckUserWithoutWallet(t *testing.T) {
	store := newMemStore()
	store.users["nowallet"] = domain.User{ID: "nowallet", Balance: decimal.NewFromInt(10)}

	svc := NewSyncService(store, newFakeChain(), decimal.Zero, testLogger())
	_, err := svc.CheckUser(context.Background(), "nowallet")
	assert.ErrorIs(t, err, domain.ErrWalletMissing)
}

func TestCheckUsersReturnsOnlyDrifted(t *testing.T) {
	store := newMemStore()
	store.seedUser("synced", decimal.NewFromInt(100))
	store.seedUser("drifted", decimal.NewFromInt(100))
	store.users["nowallet"] = domain.User{ID: "nowallet", Balance: decimal.NewFromInt(10)}
	chain := newFakeChain()
	chain.balances["wallet-synced"] = decimal.NewFromInt(100)
	chain.balances["wallet-drifted"] = decimal.NewFromInt(40)

	svc := NewSyncService(store, chain, decimal.NewFromFloat(0.01), testLogger())
	drifted, err := svc.CheckUsers(context.Background(), []string{"synced", "drifted", "nowallet", "missing"})
	require.NoError(t, err)

	require.Len(t, drifted, 1)
	assert.Equal(t, "drifted", drifted[0].UserID)
	assert.True(t, drifted[0].Drift.Equal(decimal.NewFromInt(60)))
}
