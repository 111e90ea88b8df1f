package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AllocationLockKey builds redis keys for per-batch allocation critical sections.
func AllocationLockKey(batchID string) string {
	return fmt.Sprintf("roasting:batch:%s:alloc", batchID)
}

// Mutex is a best-effort advisory lock on top of Redis SETNX. The database
// row lock remains the correctness guard; this only keeps two sessions from
// queueing on the same batch.
type Mutex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMutex constructs a Mutex with the given lease duration.
func NewMutex(client *redis.Client, ttl time.Duration) *Mutex {
	return &Mutex{client: client, ttl: ttl}
}

// ErrLockHeld indicates the key is currently locked by another holder.
var ErrLockHeld = fmt.Errorf("lock already held")

// Acquire takes the lock or returns ErrLockHeld.
func (m *Mutex) Acquire(ctx context.Context, key string) error {
	if m == nil || m.client == nil {
		return nil
	}
	ok, err := m.client.SetNX(ctx, key, "1", m.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// Release drops the lock. Safe to call when the lease already expired.
func (m *Mutex) Release(ctx context.Context, key string) {
	if m == nil || m.client == nil {
		return
	}
	_ = m.client.Del(ctx, key).Err()
}
