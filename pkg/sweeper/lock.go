package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker keeps sweeps on different instances from overlapping.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// LockClient is the part of a redis client RedisLocker needs.
type LockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// unlockScript deletes the key only if this instance still owns it.
const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`

// RedisLocker is a Locker backed by SET NX with an expiry.
type RedisLocker struct {
	client LockClient
	owner  string
}

// NewRedisLocker creates a RedisLocker with a unique owner token.
func NewRedisLocker(client LockClient) *RedisLocker {
	return &RedisLocker{client: client, owner: uuid.NewString()}
}

// Make sure we conform to the interface
var _ Locker = (*RedisLocker)(nil)

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return ok, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key string) error {
	if err := l.client.Eval(ctx, unlockScript, []string{key}, l.owner).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
