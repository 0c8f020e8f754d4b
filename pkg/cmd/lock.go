package cmd

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/gateflow/gateflow/pkg/lock"
)

// NewInstanceLocker creates the per-instance locker. With a Redis URL the
// lock is shared across processes; without one it is process-local, which is
// only safe when a single engine process owns all instances.
func NewInstanceLocker(redisURL string, logger *slog.Logger) lock.InstanceLocker {
	if redisURL == "" {
		return lock.NewLocalLocker()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("invalid redis URL: %w", err))
	}

	return lock.NewRedisLocker(redis.NewClient(opts), logger)
}
