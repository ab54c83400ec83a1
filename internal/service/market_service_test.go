package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllfutures/exchange/internal/domain"
)

func validCreateRequest(creatorID string) CreateMarketRequest {
	return CreateMarketRequest{
		CreatorID: creatorID,
		Title:     "will it rain tomorrow",
		YesOdds:   decimal.NewFromFloat(2.0),
		NoOdds:    decimal.NewFromFloat(1.8),
		ExpiresAt: time.Now().UTC().Add(48 * time.Hour),
	}
}

func TestCreateMarket(t *testing.T) {
	store := newMemStore()
	store.seedUser("creator", decimal.NewFromInt(500))
	svc := NewMarketService(store, MarketConfig{MinCreatorBalance: decimal.NewFromInt(100)}, testLogger())

	market, err := svc.CreateMarket(context.Background(), validCreateRequest("creator"))
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusActive, market.Status)
	assert.True(t, market.TotalVolume.IsZero())
	assert.Contains(t, store.markets, market.ID)
}

func TestCreateMarketRequiresMinimumBalance(t *testing.T) {
	store := newMemStore()
	store.seedUser("poor", decimal.NewFromInt(10))
	svc := NewMarketService(store, MarketConfig{MinCreatorBalance: decimal.NewFromInt(100)}, testLogger())

	_, err := svc.CreateMarket(context.Background(), validCreateRequest("poor"))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestCreateMarketDailyCap(t *testing.T) {
	store := newMemStore()
	store.seedUser("creator", decimal.NewFromInt(500))
	svc := NewMarketService(store, MarketConfig{MaxPerCreatorPerDay: 2}, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.CreateMarket(ctx, validCreateRequest("creator"))
		require.NoError(t, err)
	}

	_, err := svc.CreateMarket(ctx, validCreateRequest("creator"))
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestCreateMarketValidation(t *testing.T) {
	store := newMemStore()
	store.seedUser("creator", decimal.NewFromInt(500))
	svc := NewMarketService(store, MarketConfig{}, testLogger())
	ctx := context.Background()

	req := validCreateRequest("creator")
	req.Title = ""
	_, err := svc.CreateMarket(ctx, req)
	assert.Error(t, err)

	req = validCreateRequest("creator")
	req.YesOdds = decimal.NewFromInt(1)
	_, err = svc.CreateMarket(ctx, req)
	assert.Error(t, err)

	req = validCreateRequest("creator")
	req.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	_, err = svc.CreateMarket(ctx, req)
	assert.Error(t, err)
}

func TestCloseMarketOnlyWhenActive(t *testing.T) {
	store := newMemStore()
	store.seedMarket("m1", decimal.NewFromFloat(2.0), decimal.NewFromFloat(1.5))
	svc := NewMarketService(store, MarketConfig{}, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.CloseMarket(ctx, "m1"))
	assert.Equal(t, domain.MarketStatusClosed, store.markets["m1"].Status)

	err := svc.CloseMarket(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrMarketNotActive)
}

func TestCancelMarketRefundsOpenOrders(t *testing.T) {
	store := newMemStore()
	store.seedUser("u1", decimal.NewFromInt(1000))
	store.seedUser("u2", decimal.NewFromInt(1000))
	store.seedMarket("m1", decimal.NewFromFloat(2.0), decimal.NewFromFloat(1.5))

	o1 := placeBet(t, store, "u1", "m1", domain.SideYes, 100)
	o2 := placeBet(t, store, "u2", "m1", domain.SideNo, 200)

	svc := NewMarketService(store, MarketConfig{}, testLogger())
	require.NoError(t, svc.CancelMarket(context.Background(), "m1"))

	assert.True(t, store.users["u1"].Balance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, store.users["u2"].Balance.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, domain.OrderStatusCancelled, store.orders[o1.ID].Status)
	assert.Equal(t, domain.OrderStatusCancelled, store.orders[o2.ID].Status)
	assert.Equal(t, domain.MarketStatusCancelled, store.markets["m1"].Status)
}

func TestCancelMarketTerminalStates(t *testing.T) {
	store := newMemStore()
	market := store.seedMarket("m1", decimal.NewFromFloat(2.0), decimal.NewFromFloat(1.5))
	market.Status = domain.MarketStatusSettled
	store.markets["m1"] = market

	svc := NewMarketService(store, MarketConfig{}, testLogger())
	err := svc.CancelMarket(context.Background(), "m1")
	assert.ErrorIs(t, err, domain.ErrMarketSettled)
}
