package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still belongs to this holder,
// so an expired lease can never release a newer holder's lock.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`

const acquireRetryInterval = 50 * time.Millisecond

// RedisLocker is a lease-based distributed instance locker for multi-process
// deployments. Acquisition polls SetNX until the key is obtained or the
// context ends; the ttl bounds how long a crashed holder keeps the lease.
type RedisLocker struct {
	client redis.Cmdable
	logger *slog.Logger
}

// NewRedisLocker creates a Redis-backed instance locker.
func NewRedisLocker(client redis.Cmdable, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		logger: logger.With("module", "redis-lock"),
	}
}

func (l *RedisLocker) Synchronized(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	token := uuid.New().String()

	for {
		acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrLockHeld, key)
		case <-time.After(acquireRetryInterval):
		}
	}

	defer l.release(key, token)

	return fn(ctx)
}

func (l *RedisLocker) release(key, token string) {
	// The caller's context may already be cancelled; the release must still
	// go out, so it runs on a fresh context.
	reply, err := l.client.Eval(context.Background(), releaseScript, []string{key}, token).Result()
	if err != nil {
		l.logger.Error("Failed to release instance lock", "key", key, "error", err)

		return
	}

	if deleted, ok := reply.(int64); !ok || deleted != 1 {
		l.logger.Warn("Instance lock lease expired before release", "key", key)
	}
}
