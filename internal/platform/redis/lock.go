package redis

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld reports that another instance holds the lock.
var ErrLockHeld = errors.New("lock held by another instance")

// Lock is an acquired lease.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out short leases so only one replica runs a singleton job.
type Locker struct {
	client *redislock.Client
}

func NewLocker(rdb redis.UniversalClient) *Locker {
	return &Locker{client: redislock.New(rdb)}
}

// Obtain takes key for ttl or returns ErrLockHeld.
func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}
