package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a balance mutation.
type TransactionType string

const (
	TxDeposit    TransactionType = "deposit"
	TxWithdrawal TransactionType = "withdrawal"
	TxBetPlaced  TransactionType = "bet_placed"
	TxBetWon     TransactionType = "bet_won"
	TxBetLost    TransactionType = "bet_lost"
	TxBetRefund  TransactionType = "bet_refund"
	TxReward     TransactionType = "reward"
)

// Transaction is an immutable audit entry recorded alongside every balance
// mutation. Amount is signed: debits are negative, credits positive.
type Transaction struct {
	ID            string
	UserID        string
	Type          TransactionType
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string
	OrderID       *string
	MarketID      *string
	CreatedAt     time.Time
}
