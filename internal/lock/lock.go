package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var ErrNotObtained = errors.New("lock not obtained")

// Locker hands out mutually exclusive leases on a key.
type Locker interface {
	Obtain(ctx context.Context, key string) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}

// NewNoop returns a Locker for single-instance deployments, where the
// database transaction is the only serialization needed.
func NewNoop() Locker {
	return noopLocker{}
}

type noopLocker struct{}

func (noopLocker) Obtain(ctx context.Context, key string) (Lease, error) {
	return noopLease{}, nil
}

type noopLease struct{}

func (noopLease) Release(ctx context.Context) error { return nil }

type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

// NewRedis returns a Locker backed by redislock. Obtain retries for up to
// roughly retries*backoff before giving up with ErrNotObtained.
func NewRedis(rdb *redis.Client, ttl time.Duration, backoff time.Duration, retries int) Locker {
	return &redisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(backoff), retries),
	}
}

func (l *redisLocker) Obtain(ctx context.Context, key string) (Lease, error) {
	lk, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, err
	}
	return lk, nil
}
