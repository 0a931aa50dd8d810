package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCacheTest(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb, "test:session", time.Hour), mr
}

func testSession(now time.Time) *Session {
	confirmed := now.Add(-24 * time.Hour).UTC()
	return &Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "bearer",
		ExpiresAt:    now.Add(time.Hour).UTC(),
		Identity: Identity{
			ID:               "u-1",
			Email:            "user@example.com",
			EmailConfirmedAt: &confirmed,
			Metadata:         map[string]any{"business_name": "Acme"},
		},
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, _ := newRedisCacheTest(t)
	ctx := context.Background()

	got, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty cache loads nothing")

	want := testSession(time.Now())
	require.NoError(t, cache.Save(ctx, want))

	got, err = cache.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.Identity.ID, got.Identity.ID)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, "Acme", got.Identity.MetadataString("business_name"))
}

func TestRedisCacheTTLCoversGrace(t *testing.T) {
	cache, mr := newRedisCacheTest(t)
	require.NoError(t, cache.Save(context.Background(), testSession(time.Now())))

	ttl := mr.TTL(cache.Key())
	assert.Greater(t, ttl, time.Hour+50*time.Minute)
	assert.LessOrEqual(t, ttl, 2*time.Hour)

	mr.FastForward(2*time.Hour + time.Second)
	got, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCacheClear(t *testing.T) {
	cache, mr := newRedisCacheTest(t)
	ctx := context.Background()
	require.NoError(t, cache.Save(ctx, testSession(time.Now())))
	require.NoError(t, cache.Clear(ctx))
	assert.False(t, mr.Exists(cache.Key()))

	require.NoError(t, cache.Clear(ctx), "clearing twice is not an error")
}

func TestRedisCacheDropsUnreadableBlob(t *testing.T) {
	cache, mr := newRedisCacheTest(t)
	require.NoError(t, mr.Set(cache.Key(), "\x63garbage"))

	_, err := cache.Load(context.Background())
	require.ErrorIs(t, err, ErrUnsupportedSchema)
	assert.False(t, mr.Exists(cache.Key()))
}

func TestRedisCacheUnavailable(t *testing.T) {
	cache, mr := newRedisCacheTest(t)
	mr.Close()

	_, err := cache.Load(context.Background())
	assert.ErrorIs(t, err, ErrCacheUnavailable)
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	s := testSession(time.Now())
	require.NoError(t, cache.Save(ctx, s))

	s.Identity.Metadata["business_name"] = "Changed"
	got, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Identity.MetadataString("business_name"))

	require.NoError(t, cache.Clear(ctx))
	got, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
