package domain

import (
	"context"
	"time"
)

// TokenCache is a read-through cache over the token mapping. The mapping
// is append-only, so cached entries never need invalidation.
type TokenCache interface {
	Set(ctx context.Context, m TokenMapping) error
	Get(ctx context.Context, tokenID string) (TokenMapping, error)
}

// LockManager provides distributed locks so at most one ledger build runs
// per source at a time. Acquire returns ErrLockHeld when another holder
// owns the lock; the returned function releases it and is safe to call
// more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
