package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedis(rdb, "test", time.Minute, nil), mr
}

func TestRedisCacheRoundTripAndInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, token, ok := c.Get(ctx, 1, "/about/")
	assert.False(t, ok)

	c.Set(ctx, token, 1, "/about/", []byte("<p>about</p>"))
	body, _, ok := c.Get(ctx, 1, "/about/")
	require.True(t, ok)
	assert.Equal(t, "<p>about</p>", string(body))
	assert.True(t, mr.Exists("test:0:1:/about/"))

	_, _, ok = c.Get(ctx, 2, "/about/")
	assert.False(t, ok, "entries are per site")

	require.NoError(t, c.Invalidate(ctx))
	_, token, ok = c.Get(ctx, 1, "/about/")
	assert.False(t, ok)

	c.Set(ctx, token, 1, "/about/", []byte("fresh"))
	assert.True(t, mr.Exists("test:1:1:/about/"))
}

func TestRedisCacheSetKeepsGenerationOfLookup(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, token, ok := c.Get(ctx, 1, "/about/")
	require.False(t, ok)
	require.NoError(t, c.Invalidate(ctx))

	c.Set(ctx, token, 1, "/about/", []byte("rendered before the edit"))
	_, _, ok = c.Get(ctx, 1, "/about/")
	assert.False(t, ok)
	assert.False(t, mr.Exists("test:1:1:/about/"))

	c.Set(ctx, Token{}, 1, "/contact/", []byte("no generation"))
	assert.False(t, mr.Exists("test:0:1:/contact/"))
	assert.False(t, mr.Exists("test:1:1:/contact/"))
}

func TestRedisCacheExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, token, _ := c.Get(ctx, 1, "/")
	c.Set(ctx, token, 1, "/", []byte("home"))
	mr.FastForward(2 * time.Minute)
	_, _, ok := c.Get(ctx, 1, "/")
	assert.False(t, ok)
}

func TestRedisCacheDegradesWhenServerIsGone(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	core, logs := observer.New(zapcore.WarnLevel)
	c := NewRedis(rdb, "", time.Minute, zap.New(core))

	ctx := context.Background()
	_, token, _ := c.Get(ctx, 1, "/")
	mr.Close()

	c.Set(ctx, token, 1, "/", []byte("home"))
	_, token, ok := c.Get(ctx, 1, "/")
	assert.False(t, ok)
	assert.Equal(t, Token{}, token)
	assert.Error(t, c.Invalidate(ctx))
	assert.GreaterOrEqual(t, logs.Len(), 2)
}

func TestNopCache(t *testing.T) {
	var c PageCache = Nop{}
	c.Set(context.Background(), Token{}, 1, "/", []byte("x"))
	_, _, ok := c.Get(context.Background(), 1, "/")
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(context.Background()))
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect("not a url")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	rdb, err := Connect("redis://" + mr.Addr())
	require.NoError(t, err)
	rdb.Close()
}
