package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Pilar-d/pendientesd/internal/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, NewBreaker(&BreakerConfig{MaxFailures: 2, Timeout: time.Minute, HalfOpenSuccesses: 1})), mr
}

func TestRedisStore_SaveGetDelete(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	sess := &Session{
		ID:        "abc",
		UserID:    7,
		Username:  "ana",
		Flashes:   []Flash{{Kind: FlashSuccess, Message: "hola"}},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Save(ctx, sess))
	assert.True(t, mr.Exists(redisKeyPrefix+"abc"))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL(redisKeyPrefix+"abc").Seconds(), 5)

	loaded, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, uint(7), loaded.UserID)
	assert.Equal(t, "ana", loaded.Username)
	assert.Equal(t, sess.Flashes, loaded.Flashes)
	assert.True(t, loaded.Persisted())

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRedisStore_ExpiresWithSession(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Session{ID: "short", UserID: 1, ExpiresAt: time.Now().Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, store.Save(ctx, &Session{ID: "stale", ExpiresAt: time.Now().Add(-time.Second)}))
	assert.False(t, mr.Exists(redisKeyPrefix+"stale"))
}

func TestRedisStore_BreakerOpensWhenRedisIsDown(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))
	mr.Close()

	_, err := store.Get(ctx, "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoSession))

	store.Get(ctx, "x")
	assert.Equal(t, BreakerOpen, store.breaker.State())

	_, err = store.Get(ctx, "x")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Error(t, store.Ping(ctx))
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &config.Config{Redis: config.RedisConfig{URL: "redis://" + mr.Addr() + "/2", PoolSize: 3}}
	client, err := NewRedisClient(cfg)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, mr.Addr(), client.Options().Addr)
	assert.Equal(t, 2, client.Options().DB)
	assert.Equal(t, 3, client.Options().PoolSize)
	assert.NoError(t, client.Ping(context.Background()).Err())

	cfg = &config.Config{Redis: config.RedisConfig{Host: "cache", Port: "6380"}}
	client, err = NewRedisClient(cfg)
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, "cache:6380", client.Options().Addr)

	_, err = NewRedisClient(&config.Config{Redis: config.RedisConfig{URL: "http://nope"}})
	assert.Error(t, err)
}
