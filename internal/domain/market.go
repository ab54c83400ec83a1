package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus represents the lifecycle state of a market. Transitions are
// monotonic: active -> closed -> settled; cancelled is terminal from either
// active or closed and never reaches settlement.
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "active"
	MarketStatusClosed    MarketStatus = "closed"
	MarketStatusSettled   MarketStatus = "settled"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// MarketOutcome is the resolved result of a market. It is unset until
// settlement.
type MarketOutcome string

const (
	OutcomeYes  MarketOutcome = "yes"
	OutcomeNo   MarketOutcome = "no"
	OutcomeVoid MarketOutcome = "void"
)

// Market is a binary prediction market with fixed odds. YesOdds and NoOdds
// are payout multipliers set at creation and never change; stake totals and
// volume accumulate as orders are placed.
type Market struct {
	ID            string
	Title         string
	Description   string
	CreatorID     string
	Status        MarketStatus
	ExpiresAt     time.Time
	YesOdds       decimal.Decimal
	NoOdds        decimal.Decimal
	TotalYesStake decimal.Decimal
	TotalNoStake  decimal.Decimal
	TotalVolume   decimal.Decimal
	Outcome       *MarketOutcome
	SettledAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OddsFor returns the fixed payout multiplier for the given side.
func (m Market) OddsFor(side OrderSide) decimal.Decimal {
	if side == SideYes {
		return m.YesOdds
	}
	return m.NoOdds
}

// SettlementSummary reports what a settlement pass did, for logging and the
// admin surface.
type SettlementSummary struct {
	MarketID     string
	Outcome      MarketOutcome
	Winners      int
	Losers       int
	Refunded     int
	TotalPayout  decimal.Decimal
	OrdersClosed int
}
