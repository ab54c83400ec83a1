package domain

import (
	"context"
	"time"
)

// RateLimiter gates request-path operations per key.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under a sliding
	// window of limit requests per window, counting the request if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed mutual exclusion per key. Acquire is
// try-once: contenders get ErrLockHeld instead of queueing.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
