package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the ledger-side view of an account holder. Balance is the
// authoritative spendable LLL balance; the custodial wallet address is empty
// until a wallet has been provisioned for the user.
type User struct {
	ID            string
	Username      string
	Balance       decimal.Decimal
	WalletAddress string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
