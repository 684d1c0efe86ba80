// Package cache stores rendered pages in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PageCache stores rendered page bodies keyed by site and path. Get reports
// the cache generation it looked in; a body rendered after a miss is stored
// under that Token, so an Invalidate that lands mid-render leaves it unreachable.
type PageCache interface {
	Get(ctx context.Context, siteID uint, path string) ([]byte, Token, bool)
	Set(ctx context.Context, token Token, siteID uint, path string, body []byte)
	Invalidate(ctx context.Context) error
}

// Token is the cache generation observed by a Get. The zero Token is never stored.
type Token struct {
	version int64
	valid   bool
}

// Nop never stores anything.
type Nop struct{}

// Get always misses.
func (Nop) Get(context.Context, uint, string) ([]byte, Token, bool) { return nil, Token{}, false }

// Set discards body.
func (Nop) Set(context.Context, Token, uint, string, []byte) {}

// Invalidate does nothing.
func (Nop) Invalidate(context.Context) error { return nil }

// Connect creates a Redis client from url and verifies connectivity.
func Connect(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// Redis is a PageCache backed by a Redis server. Entries are namespaced by a
// version counter; Invalidate bumps the counter so every entry goes stale at
// once and expires by TTL. Redis failures are logged and treated as misses.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedis wraps rdb. prefix defaults to "simplecms".
func NewRedis(rdb *redis.Client, prefix string, ttl time.Duration, log *zap.Logger) *Redis {
	if prefix == "" {
		prefix = "simplecms"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl, log: log}
}

func (r *Redis) versionKey() string {
	return r.prefix + ":version"
}

func (r *Redis) version(ctx context.Context) (int64, error) {
	raw, err := r.rdb.Get(ctx, r.versionKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (r *Redis) key(version int64, siteID uint, path string) string {
	return fmt.Sprintf("%s:%d:%d:%s", r.prefix, version, siteID, path)
}

// Get returns the cached body for path on site and the generation it read.
func (r *Redis) Get(ctx context.Context, siteID uint, path string) ([]byte, Token, bool) {
	version, err := r.version(ctx)
	if err != nil {
		r.log.Warn("page cache version lookup failed", zap.Error(err))
		return nil, Token{}, false
	}
	token := Token{version: version, valid: true}
	body, err := r.rdb.Get(ctx, r.key(version, siteID, path)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("page cache get failed", zap.String("path", path), zap.Error(err))
		}
		return nil, token, false
	}
	return body, token, true
}

// Set stores body for path on site under the generation of token.
func (r *Redis) Set(ctx context.Context, token Token, siteID uint, path string, body []byte) {
	if !token.valid {
		return
	}
	if err := r.rdb.Set(ctx, r.key(token.version, siteID, path), body, r.ttl).Err(); err != nil {
		r.log.Warn("page cache set failed", zap.String("path", path), zap.Error(err))
	}
}

// Invalidate makes every cached page stale.
func (r *Redis) Invalidate(ctx context.Context) error {
	if err := r.rdb.Incr(ctx, r.versionKey()).Err(); err != nil {
		return fmt.Errorf("bump page cache version: %w", err)
	}
	return nil
}
