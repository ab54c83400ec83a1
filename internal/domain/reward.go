package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RewardStatus is the distribution state of a queued reward. Completed and
// failed are terminal; failed records are only retried through an explicit
// requeue, never by the drain loop itself.
type RewardStatus string

const (
	RewardPending    RewardStatus = "pending"
	RewardProcessing RewardStatus = "processing"
	RewardCompleted  RewardStatus = "completed"
	RewardFailed     RewardStatus = "failed"
)

// Reward reason codes used by the crediting paths.
const (
	RewardReasonSignupBonus   = "signup_bonus"
	RewardReasonDailyLogin    = "daily_login"
	RewardReasonTradingRebate = "trading_rebate"
	RewardReasonProfitBonus   = "profit_bonus"
)

// Reward is a queued asynchronous credit paid from the vault wallet to a
// user's custodial wallet, distinct from order settlement.
type Reward struct {
	ID           string
	UserID       string
	Amount       decimal.Decimal
	Reason       string
	Status       RewardStatus
	TxSignature  *string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
