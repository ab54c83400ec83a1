package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the outcome a stake backs.
type OrderSide string

const (
	SideYes OrderSide = "yes"
	SideNo  OrderSide = "no"
)

// OrderStatus tracks the order lifecycle. open -> settled is one-way; an
// order is settled exactly once.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusSettled   OrderStatus = "settled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a fixed-odds stake against one market. Odds and PotentialPayout
// are snapshotted at placement and immutable thereafter; SettledAmount is nil
// until the market resolves.
type Order struct {
	ID              string
	UserID          string
	MarketID        string
	WalletAddress   string
	Side            OrderSide
	StakeAmount     decimal.Decimal
	Odds            decimal.Decimal
	PotentialPayout decimal.Decimal
	Status          OrderStatus
	SettledAmount   *decimal.Decimal
	SettledAt       *time.Time
	CreatedAt       time.Time
}

// EscrowStatus reports the outcome of the best-effort escrow transfer that
// follows order placement. The ledger debit commits regardless; escrow is a
// settlement mechanism, not a precondition.
type EscrowStatus string

const (
	EscrowConfirmed EscrowStatus = "confirmed"
	EscrowFailed    EscrowStatus = "failed"
	EscrowSkipped   EscrowStatus = "skipped"
)

// PlacedOrder wraps the result of a successful placement.
type PlacedOrder struct {
	Order           Order
	Escrow          EscrowStatus
	EscrowSignature string
}
