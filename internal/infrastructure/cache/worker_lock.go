package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseLockScript deletes the lock only when the caller still owns it, so a
// slow holder cannot release a lock that already expired and was re-acquired.
var releaseLockScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// WorkerLock is a best-effort cross-process claim for singleton background
// work. With a nil client every TryAcquire succeeds (single-process mode).
type WorkerLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	holder string
}

func NewWorkerLock(client *redis.Client, key string, ttl time.Duration) *WorkerLock {
	return &WorkerLock{
		client: client,
		key:    key,
		ttl:    ttl,
		holder: uuid.New().String(),
	}
}

// TryAcquire claims the lock for one tick. Redis errors are treated as "not
// acquired" rather than fatal.
func (l *WorkerLock) TryAcquire(ctx context.Context) bool {
	if l.client == nil {
		return true
	}
	ok, err := l.client.SetNX(ctx, l.key, l.holder, l.ttl).Result()
	return err == nil && ok
}

// Release drops the claim if still held.
func (l *WorkerLock) Release(ctx context.Context) {
	if l.client == nil {
		return
	}
	_ = releaseLockScript.Run(ctx, l.client, []string{l.key}, l.holder).Err()
}
