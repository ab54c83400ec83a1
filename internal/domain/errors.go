package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrMarketNotActive     = errors.New("market is not active")
	ErrMarketSettled       = errors.New("market already settled")
	ErrInvalidStake        = errors.New("stake amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientStake   = errors.New("insufficient staked amount")
	ErrVaultUnderfunded    = errors.New("vault has insufficient balance")
	ErrWalletMissing       = errors.New("custodial wallet not provisioned")
	ErrRateLimited         = errors.New("rate limited")
	ErrLockHeld            = errors.New("lock already held")
	ErrAlreadyClaimed      = errors.New("reward already claimed today")
	ErrRewardNotRetryable  = errors.New("reward is not in a retryable state")
)
