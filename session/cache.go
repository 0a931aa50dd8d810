package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheUnavailable is returned when the cache backend cannot be reached.
var ErrCacheUnavailable = errors.New("session cache unavailable")

// Cache persists the current session so it survives a restart. Load returns
// (nil, nil) when nothing is cached.
type Cache interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

// RedisCache stores one session blob under a fixed key.
type RedisCache struct {
	redis redis.UniversalClient
	key   string
	grace time.Duration
	now   func() time.Time
}

// NewRedisCache creates a [RedisCache]. The blob expires grace after the
// access token does, which leaves the refresh token usable after a restart.
func NewRedisCache(client redis.UniversalClient, key string, grace time.Duration) *RedisCache {
	if key == "" {
		key = "gs:session"
	}
	return &RedisCache{
		redis: client,
		key:   key,
		grace: grace,
		now:   time.Now,
	}
}

// Key returns the Redis key the session is stored under.
func (c *RedisCache) Key() string {
	return c.key
}

func (c *RedisCache) Load(ctx context.Context) (*Session, error) {
	data, err := c.redis.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	s, err := Decode(data)
	if err != nil {
		// A blob this build cannot read is useless; drop it.
		_ = c.redis.Del(ctx, c.key).Err()
		return nil, err
	}
	return s, nil
}

func (c *RedisCache) Save(ctx context.Context, s *Session) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	ttl := c.grace
	if !s.ExpiresAt.IsZero() {
		ttl += s.ExpiresAt.Sub(c.now())
	}
	if ttl <= 0 {
		return c.Clear(ctx)
	}

	if err := c.redis.Set(ctx, c.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	if err := c.redis.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// MemoryCache keeps the session in process memory.
type MemoryCache struct {
	mu      sync.Mutex
	session *Session
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Load(context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone(), nil
}

func (c *MemoryCache) Save(_ context.Context, s *Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s.Clone()
	return nil
}

func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	return nil
}
