package kafka

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

type fakeRedis struct {
	keys   map[string]time.Duration
	getErr error
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: map[string]time.Duration{}}
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	if f.getErr != nil {
		return redis.NewIntResult(0, f.getErr)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, _ any, ttl time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.keys[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Add(context.Background(), "e-1"))
	seen, err := s.Contains(context.Background(), "e-1")
	require.NoError(t, err)
	assert.True(t, seen)

	now = now.Add(2 * time.Minute)
	seen, err = s.Contains(context.Background(), "e-1")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryIdempotencyStore_AddSweepsExpired(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Add(context.Background(), "old"))
	now = now.Add(time.Hour)
	require.NoError(t, s.Add(context.Background(), "new"))
	assert.Equal(t, 1, s.Len())
}

func TestRedisIdempotencyStore(t *testing.T) {
	client := newFakeRedis()
	s := NewRedisIdempotencyStore(client, "webstore:events", 24*time.Hour)

	seen, err := s.Contains(context.Background(), "e-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.Add(context.Background(), "e-1"))
	assert.Equal(t, 24*time.Hour, client.keys["webstore:events:e-1"])

	seen, err = s.Contains(context.Background(), "e-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRedisIdempotencyStore_Errors(t *testing.T) {
	client := newFakeRedis()
	client.getErr = errors.New("redis down")
	client.setErr = errors.New("redis down")
	s := NewRedisIdempotencyStore(client, "p", time.Hour)

	_, err := s.Contains(context.Background(), "e-1")
	assert.Error(t, err)
	assert.Error(t, s.Add(context.Background(), "e-1"))
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	calls := 0
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		return nil
	}, quietLogger())

	e := &Event{EventID: "e-1", EventType: "warehouse.stock_received"}
	require.NoError(t, h(context.Background(), e))
	require.NoError(t, h(context.Background(), e))
	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_FailureIsNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	fail := true
	calls := 0
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		if fail {
			return errors.New("transient")
		}
		return nil
	}, quietLogger())

	e := &Event{EventID: "e-2"}
	assert.Error(t, h(context.Background(), e))
	fail = false
	assert.NoError(t, h(context.Background(), e))
	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_StoreErrorStillProcesses(t *testing.T) {
	client := newFakeRedis()
	client.getErr = errors.New("redis down")
	calls := 0
	h := IdempotentHandler(NewRedisIdempotencyStore(client, "p", time.Hour), func(context.Context, *Event) error {
		calls++
		return nil
	}, quietLogger())

	require.NoError(t, h(context.Background(), &Event{EventID: "e-3"}))
	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_NoEventIDPassesThrough(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	calls := 0
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		return nil
	}, quietLogger())

	require.NoError(t, h(context.Background(), &Event{}))
	require.NoError(t, h(context.Background(), &Event{}))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, store.Len())
}

func TestRedisIdempotencyStore_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := NewRedisIdempotencyStore(client, "webstore:idempotency", time.Hour)

	seen, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Add(ctx, "evt-1"))
	assert.True(t, mr.Exists("webstore:idempotency:evt-1"))
	assert.Equal(t, time.Hour, mr.TTL("webstore:idempotency:evt-1"))

	seen, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(2 * time.Hour)
	seen, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
}
