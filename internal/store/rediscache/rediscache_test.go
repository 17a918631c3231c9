package rediscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"unfollowninja/internal/model"
	"unfollowninja/internal/store/rediscache"
)

func setupCache(t *testing.T) (*rediscache.Cache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	cache := rediscache.New(client, zap.NewNop())
	t.Cleanup(cache.Close)
	return cache, mr
}

func TestCachedUsernameMiss(t *testing.T) {
	cache, _ := setupCache(t)

	name, err := cache.CachedUsername(context.Background(), "42")
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestCacheUsernamesRoundTrip(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	err := cache.CacheUsernames(ctx, []model.User{
		{ID: "1", Username: "alice"},
		{ID: "2", Username: ""},
		{ID: "", Username: "ghost"},
		{ID: "3", Username: "carol"},
	})
	require.NoError(t, err)

	name, err := cache.CachedUsername(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	name, err = cache.CachedUsername(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, "carol", name)

	assert.False(t, mr.Exists(rediscache.UsernameKeyPrefix+"2"))
	assert.Zero(t, mr.TTL(rediscache.UsernameKeyPrefix+"1"), "usernames never expire")
}

func TestCachedUsernameSurvivesLongIdle(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.CacheUsernames(ctx, []model.User{{ID: "1", Username: "alice"}}))
	mr.FastForward(5 * 365 * 24 * time.Hour)

	name, err := cache.CachedUsername(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
}

func TestCacheUsernamesOverwrites(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.CacheUsernames(ctx, []model.User{{ID: "1", Username: "old"}}))
	require.NoError(t, cache.CacheUsernames(ctx, []model.User{{ID: "1", Username: "new"}}))

	name, err := cache.CachedUsername(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "new", name)
}

func TestCacheUsernamesEmpty(t *testing.T) {
	cache, _ := setupCache(t)
	require.NoError(t, cache.CacheUsernames(context.Background(), nil))
}
