package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	ctx := context.Background()
	l := NewNoop()

	first, err := l.Obtain(ctx, "pricing:a")
	require.NoError(t, err)
	// no exclusion without a shared backend
	second, err := l.Obtain(ctx, "pricing:a")
	require.NoError(t, err)

	assert.NoError(t, first.Release(ctx))
	assert.NoError(t, second.Release(ctx))
}

func TestRedis_UnreachableServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewRedis(rdb, time.Second, 10*time.Millisecond, 3)
	_, err := l.Obtain(context.Background(), "pricing:a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotObtained)
}
