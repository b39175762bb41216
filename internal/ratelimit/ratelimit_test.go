package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newMemoryLimiter(limit int, window time.Duration) (*Limiter, *MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.SetClock(clock.Now)
	return NewLimiter(store, limit, window), store, clock
}

func TestLimiterCapsWithinWindow(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newMemoryLimiter(3, time.Minute)

	for i := 1; i <= 3; i++ {
		count, allowed, err := l.CheckAndIncrement(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, count)
	}

	count, allowed, err := l.CheckAndIncrement(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 3, count)

	// other keys are independent
	_, allowed, err = l.CheckAndIncrement(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiterRejectionDoesNotExtendWindow(t *testing.T) {
	ctx := context.Background()
	l, _, clock := newMemoryLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		_, _, err := l.CheckAndIncrement(ctx, "alice")
		require.NoError(t, err)
	}

	clock.Advance(30 * time.Second)
	_, allowed, _ := l.CheckAndIncrement(ctx, "alice")
	assert.False(t, allowed)

	// 60s after the last accepted write the counter is gone
	clock.Advance(30 * time.Second)
	count, allowed, err := l.CheckAndIncrement(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)
}

func TestLimiterWindowResetsOnWrite(t *testing.T) {
	ctx := context.Background()
	l, _, clock := newMemoryLimiter(3, time.Minute)

	_, _, _ = l.CheckAndIncrement(ctx, "alice")
	clock.Advance(50 * time.Second)
	_, _, _ = l.CheckAndIncrement(ctx, "alice")
	clock.Advance(50 * time.Second)

	// the second write pushed expiry to t=110s, so the counter survives t=100s
	count, allowed, err := l.CheckAndIncrement(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 3, count)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (int, error) { return 0, errors.New("down") }
func (failingStore) Set(context.Context, string, int, time.Duration) error {
	return errors.New("down")
}

func TestLimiterPropagatesStoreErrors(t *testing.T) {
	l := NewLimiter(failingStore{}, 3, time.Minute)
	_, allowed, err := l.CheckAndIncrement(context.Background(), "alice")
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	_, store, clock := newMemoryLimiter(3, time.Minute)

	require.NoError(t, store.Set(ctx, "a", 1, 10*time.Second))
	require.NoError(t, store.Set(ctx, "b", 1, time.Minute))

	clock.Advance(20 * time.Second)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	n, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStoreJanitorStops(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client, "friends:")
	l := NewLimiter(store, 3, time.Minute)

	n, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for i := 0; i < 3; i++ {
		_, allowed, err := l.CheckAndIncrement(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	_, allowed, err := l.CheckAndIncrement(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.True(t, mr.Exists("friends:alice"))
	assert.Equal(t, time.Minute, mr.TTL("friends:alice"))

	mr.FastForward(61 * time.Second)
	count, allowed, err := l.CheckAndIncrement(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	client.Close()

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
