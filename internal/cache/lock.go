package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker grants short-lived exclusive ownership of a key.
type Locker interface {
	// TryLock returns ok=false without error when someone else holds the key.
	// The returned release func is safe to call once the lock has expired.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// releaseScript deletes the key only when it still holds our token, so a
// holder whose lock expired cannot release the next owner's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Compile-time check to verify that RedisLocker implements Locker.
var _ Locker = (*RedisLocker)(nil)

// RedisLocker implements Locker with SET NX PX and a token.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	if client == nil {
		panic("cache: redis client cannot be nil")
	}
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	fullKey := l.prefix + ":" + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %q: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
