// Package lock serializes workflow operations per instance. Every engine
// mutation runs inside Synchronized with the instance's key; operations on
// different instances proceed fully in parallel.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned when a non-blocking locker cannot acquire the key.
var ErrLockHeld = errors.New("instance lock already held")

// InstanceLocker runs fn while holding an exclusive lock on key. The ttl
// bounds how long a crashed holder can block others in distributed
// implementations; local implementations may ignore it.
type InstanceLocker interface {
	Synchronized(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}
