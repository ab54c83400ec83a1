package service

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lllfutures/exchange/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory domain.Store. WithTx snapshots all state up
// front and restores it when fn fails, mirroring a database rollback.
type memStore struct {
	mu             sync.Mutex
	users          map[string]domain.User
	markets        map[string]domain.Market
	orders         map[string]domain.Order
	txns           []domain.Transaction
	rewards        map[string]domain.Reward
	wallets        map[string]domain.WalletRecord
	tokenBalances  map[string]domain.TokenBalance
	stakingRecords []domain.StakingRecord
	tradingRewards []domain.TradingReward
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[string]domain.User),
		markets:       make(map[string]domain.Market),
		orders:        make(map[string]domain.Order),
		rewards:       make(map[string]domain.Reward),
		wallets:       make(map[string]domain.WalletRecord),
		tokenBalances: make(map[string]domain.TokenBalance),
	}
}

var _ domain.Store = (*memStore)(nil)

func (m *memStore) Users() domain.UserStore               { return memUsers{m} }
func (m *memStore) Markets() domain.MarketStore           { return memMarkets{m} }
func (m *memStore) Orders() domain.OrderStore             { return memOrders{m} }
func (m *memStore) Transactions() domain.TransactionStore { return memTxns{m} }
func (m *memStore) Rewards() domain.RewardStore           { return memRewards{m} }
func (m *memStore) Wallets() domain.WalletStore           { return memWallets{m} }
func (m *memStore) Staking() domain.StakingStore          { return memStaking{m} }

func (m *memStore) WithTx(_ context.Context, fn func(domain.Tx) error) error {
	snapshot := m.clone()
	if err := fn(m); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *memStore) clone() *memStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := newMemStore()
	for k, v := range m.users {
		c.users[k] = v
	}
	for k, v := range m.markets {
		c.markets[k] = v
	}
	for k, v := range m.orders {
		c.orders[k] = v
	}
	for k, v := range m.rewards {
		c.rewards[k] = v
	}
	for k, v := range m.wallets {
		c.wallets[k] = v
	}
	for k, v := range m.tokenBalances {
		c.tokenBalances[k] = v
	}
	c.txns = append([]domain.Transaction(nil), m.txns...)
	c.stakingRecords = append([]domain.StakingRecord(nil), m.stakingRecords...)
	c.tradingRewards = append([]domain.TradingReward(nil), m.tradingRewards...)
	return c
}

func (m *memStore) restore(snapshot *memStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = snapshot.users
	m.markets = snapshot.markets
	m.orders = snapshot.orders
	m.rewards = snapshot.rewards
	m.wallets = snapshot.wallets
	m.tokenBalances = snapshot.tokenBalances
	m.txns = snapshot.txns
	m.stakingRecords = snapshot.stakingRecords
	m.tradingRewards = snapshot.tradingRewards
}

// seedUser inserts a user with the given balance and a linked wallet.
func (m *memStore) seedUser(id string, balance decimal.Decimal) domain.User {
	u := domain.User{
		ID:            id,
		Username:      id,
		Balance:       balance,
		WalletAddress: "wallet-" + id,
		CreatedAt:     time.Now().UTC(),
	}
	m.users[id] = u
	m.wallets[id] = domain.WalletRecord{
		ID:        uuid.NewString(),
		UserID:    id,
		PublicKey: "wallet-" + id,
	}
	return u
}

// seedMarket inserts an active market with the given payout odds.
func (m *memStore) seedMarket(id string, yesOdds, noOdds decimal.Decimal) domain.Market {
	mk := domain.Market{
		ID:        id,
		Title:     "market " + id,
		Status:    domain.MarketStatusActive,
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
		YesOdds:   yesOdds,
		NoOdds:    noOdds,
		CreatedAt: time.Now().UTC(),
	}
	m.markets[id] = mk
	return mk
}

type memUsers struct{ m *memStore }

func (s memUsers) Create(_ context.Context, u domain.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[u.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.m.users[u.ID] = u
	return nil
}

func (s memUsers) GetByID(_ context.Context, id string) (domain.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s memUsers) GetByWallet(_ context.Context, walletAddress string) (domain.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if u.WalletAddress == walletAddress {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s memUsers) LockBalance(_ context.Context, id string) (decimal.Decimal, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return decimal.Zero, domain.ErrNotFound
	}
	return u.Balance, nil
}

func (s memUsers) SetBalance(_ context.Context, id string, balance decimal.Decimal) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Balance = balance
	s.m.users[id] = u
	return nil
}

func (s memUsers) SetWalletAddress(_ context.Context, id, walletAddress string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.WalletAddress = walletAddress
	s.m.users[id] = u
	return nil
}

type memMarkets struct{ m *memStore }

func (s memMarkets) Create(_ context.Context, mk domain.Market) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.markets[mk.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.m.markets[mk.ID] = mk
	return nil
}

func (s memMarkets) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	mk, ok := s.m.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return mk, nil
}

func (s memMarkets) ListActive(_ context.Context) ([]domain.Market, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.Market
	for _, mk := range s.m.markets {
		if mk.Status == domain.MarketStatusActive {
			out = append(out, mk)
		}
	}
	return out, nil
}

func (s memMarkets) CountByCreatorSince(_ context.Context, creatorID string, since time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for _, mk := range s.m.markets {
		if mk.CreatorID == creatorID && mk.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (s memMarkets) AddVolume(_ context.Context, id string, amount decimal.Decimal, side domain.OrderSide) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	mk, ok := s.m.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	mk.TotalVolume = mk.TotalVolume.Add(amount)
	if side == domain.SideYes {
		mk.TotalYesStake = mk.TotalYesStake.Add(amount)
	} else {
		mk.TotalNoStake = mk.TotalNoStake.Add(amount)
	}
	s.m.markets[id] = mk
	return nil
}

func (s memMarkets) BeginSettlement(_ context.Context, id string, outcome domain.MarketOutcome, settledAt time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	mk, ok := s.m.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if mk.Status == domain.MarketStatusCancelled {
		return domain.ErrMarketNotActive
	}
	if mk.Outcome != nil || (mk.Status != domain.MarketStatusActive && mk.Status != domain.MarketStatusClosed) {
		return domain.ErrMarketSettled
	}
	mk.Status = domain.MarketStatusClosed
	mk.Outcome = &outcome
	mk.SettledAt = &settledAt
	s.m.markets[id] = mk
	return nil
}

func (s memMarkets) MarkSettled(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	mk, ok := s.m.markets[id]
	if !ok || mk.Status != domain.MarketStatusClosed {
		return domain.ErrNotFound
	}
	mk.Status = domain.MarketStatusSettled
	s.m.markets[id] = mk
	return nil
}

func (s memMarkets) SetStatus(_ context.Context, id string, status domain.MarketStatus) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	mk, ok := s.m.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	mk.Status = status
	s.m.markets[id] = mk
	return nil
}

type memOrders struct{ m *memStore }

func (s memOrders) Create(_ context.Context, o domain.Order) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.orders[o.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.m.orders[o.ID] = o
	return nil
}

func (s memOrders) GetByID(_ context.Context, id string) (domain.Order, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	o, ok := s.m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s memOrders) ListOpenByMarket(_ context.Context, marketID string) ([]domain.Order, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.Order
	for _, o := range s.m.orders {
		if o.MarketID == marketID && o.Status == domain.OrderStatusOpen {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s memOrders) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.Order
	for _, o := range s.m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s memOrders) Settle(_ context.Context, id string, amount decimal.Decimal, settledAt time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	o, ok := s.m.orders[id]
	if !ok || o.Status != domain.OrderStatusOpen {
		return domain.ErrNotFound
	}
	o.Status = domain.OrderStatusSettled
	o.SettledAmount = &amount
	o.SettledAt = &settledAt
	s.m.orders[id] = o
	return nil
}

func (s memOrders) Cancel(_ context.Context, id string, cancelledAt time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	o, ok := s.m.orders[id]
	if !ok || o.Status != domain.OrderStatusOpen {
		return domain.ErrNotFound
	}
	o.Status = domain.OrderStatusCancelled
	o.SettledAt = &cancelledAt
	s.m.orders[id] = o
	return nil
}

type memTxns struct{ m *memStore }

func (s memTxns) Append(_ context.Context, t domain.Transaction) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.txns = append(s.m.txns, t)
	return nil
}

func (s memTxns) ListByUser(_ context.Context, userID string, limit int) ([]domain.Transaction, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.Transaction
	for i := len(s.m.txns) - 1; i >= 0 && len(out) < limit; i-- {
		if s.m.txns[i].UserID == userID {
			out = append(out, s.m.txns[i])
		}
	}
	return out, nil
}

type memRewards struct{ m *memStore }

func (s memRewards) Create(_ context.Context, r domain.Reward) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.rewards[r.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.m.rewards[r.ID] = r
	return nil
}

func (s memRewards) GetByID(_ context.Context, id string) (domain.Reward, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.rewards[id]
	if !ok {
		return domain.Reward{}, domain.ErrNotFound
	}
	return r, nil
}

func (s memRewards) ListPending(_ context.Context, limit int) ([]domain.Reward, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.Reward
	for _, r := range s.m.rewards {
		if r.Status == domain.RewardPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memRewards) Claim(_ context.Context, id string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.rewards[id]
	if !ok || r.Status != domain.RewardPending {
		return false, nil
	}
	r.Status = domain.RewardProcessing
	r.UpdatedAt = time.Now().UTC()
	s.m.rewards[id] = r
	return true, nil
}

func (s memRewards) MarkCompleted(_ context.Context, id, txSignature string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.rewards[id]
	if !ok || r.Status != domain.RewardProcessing {
		return domain.ErrNotFound
	}
	r.Status = domain.RewardCompleted
	r.TxSignature = &txSignature
	s.m.rewards[id] = r
	return nil
}

func (s memRewards) MarkFailed(_ context.Context, id, errorMessage string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.rewards[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = domain.RewardFailed
	r.ErrorMessage = &errorMessage
	s.m.rewards[id] = r
	return nil
}

func (s memRewards) Requeue(_ context.Context, id string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.rewards[id]
	if !ok || r.Status != domain.RewardFailed {
		return false, nil
	}
	r.Status = domain.RewardPending
	r.ErrorMessage = nil
	s.m.rewards[id] = r
	return true, nil
}

func (s memRewards) ListStuckProcessing(_ context.Context, olderThan time.Time) ([]domain.Reward, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.Reward
	for _, r := range s.m.rewards {
		if r.Status == domain.RewardProcessing && r.UpdatedAt.Before(olderThan) {
			out = append(out, r)
		}
	}
	return out, nil
}

type memWallets struct{ m *memStore }

func (s memWallets) Create(_ context.Context, w domain.WalletRecord) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.wallets[w.UserID]; ok {
		return domain.ErrAlreadyExists
	}
	s.m.wallets[w.UserID] = w
	return nil
}

func (s memWallets) GetByUser(_ context.Context, userID string) (domain.WalletRecord, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	w, ok := s.m.wallets[userID]
	if !ok {
		return domain.WalletRecord{}, domain.ErrNotFound
	}
	return w, nil
}

func (s memWallets) GetByPublicKey(_ context.Context, publicKey string) (domain.WalletRecord, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, w := range s.m.wallets {
		if w.PublicKey == publicKey {
			return w, nil
		}
	}
	return domain.WalletRecord{}, domain.ErrNotFound
}

type memStaking struct{ m *memStore }

func (s memStaking) GetBalance(_ context.Context, walletAddress string) (domain.TokenBalance, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	b, ok := s.m.tokenBalances[walletAddress]
	if !ok {
		return domain.TokenBalance{}, domain.ErrNotFound
	}
	return b, nil
}

func (s memStaking) UpsertBalance(_ context.Context, b domain.TokenBalance) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.tokenBalances[b.WalletAddress] = b
	return nil
}

func (s memStaking) AppendRecord(_ context.Context, r domain.StakingRecord) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.stakingRecords = append(s.m.stakingRecords, r)
	return nil
}

func (s memStaking) ListRecords(_ context.Context, walletAddress string) ([]domain.StakingRecord, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.StakingRecord
	for _, r := range s.m.stakingRecords {
		if r.WalletAddress == walletAddress {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s memStaking) AppendTradingReward(_ context.Context, r domain.TradingReward) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.tradingRewards = append(s.m.tradingRewards, r)
	return nil
}

func (s memStaking) CountTradingRewardsSince(_ context.Context, walletAddress string, typ domain.TradingRewardType, since time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for _, r := range s.m.tradingRewards {
		if r.WalletAddress == walletAddress && r.Type == typ && r.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

// fakeChain is a controllable domain.ChainClient.
type fakeChain struct {
	mu        sync.Mutex
	balances  map[string]decimal.Decimal
	failNext  error
	transfers []fakeTransfer
}

type fakeTransfer struct {
	From, To string
	Amount   decimal.Decimal
}

func newFakeChain() *fakeChain {
	return &fakeChain{balances: make(map[string]decimal.Decimal)}
}

func (c *fakeChain) GetBalance(_ context.Context, publicKey string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[publicKey], nil
}

func (c *fakeChain) GetLatestBlockhash(context.Context) (string, error) {
	return "blockhash", nil
}

func (c *fakeChain) Transfer(_ context.Context, _ []byte, from, to string, amount decimal.Decimal) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext != nil {
		err := c.failNext
		c.failNext = nil
		return "", err
	}
	c.transfers = append(c.transfers, fakeTransfer{From: from, To: to, Amount: amount})
	return fmt.Sprintf("sig-%d", len(c.transfers)), nil
}

// fakeKeeper hands out keys for wallets seeded in the store.
type fakeKeeper struct {
	store *memStore
}

func (k *fakeKeeper) CreateWallet(_ context.Context, userID string) (domain.WalletRecord, error) {
	k.store.mu.Lock()
	defer k.store.mu.Unlock()
	if w, ok := k.store.wallets[userID]; ok {
		return w, nil
	}
	w := domain.WalletRecord{ID: uuid.NewString(), UserID: userID, PublicKey: "wallet-" + userID}
	k.store.wallets[userID] = w
	return w, nil
}

func (k *fakeKeeper) GetWallet(_ context.Context, userID string) (domain.WalletRecord, error) {
	k.store.mu.Lock()
	defer k.store.mu.Unlock()
	w, ok := k.store.wallets[userID]
	if !ok {
		return domain.WalletRecord{}, domain.ErrWalletMissing
	}
	return w, nil
}

func (k *fakeKeeper) UseKeypair(_ context.Context, userID string, fn func(ed25519.PrivateKey) error) error {
	k.store.mu.Lock()
	_, ok := k.store.wallets[userID]
	k.store.mu.Unlock()
	if !ok {
		return domain.ErrWalletMissing
	}
	return fn(make(ed25519.PrivateKey, ed25519.PrivateKeySize))
}

// fakeVault is a fixed operator wallet.
type fakeVault struct{}

func (fakeVault) PublicKey() string { return "vault-pub" }

func (fakeVault) UseKeypair(fn func(ed25519.PrivateKey) error) error {
	return fn(make(ed25519.PrivateKey, ed25519.PrivateKeySize))
}

// fakeLimiter allows or denies everything.
type fakeLimiter struct {
	allowed bool
	calls   int
}

func (l *fakeLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	l.calls++
	return l.allowed, nil
}

// fakeLocks tracks held keys with try-once semantics.
type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]bool)}
}

func (l *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}
