package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/mongomart/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCache(client, 10*time.Minute), mr
}

func testCart(userID string) *domain.Cart {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Cart{
		UserID: userID,
		Items: []domain.CartItem{
			{ItemID: 1, Name: "Mug", Price: decimal.RequireFromString("12.50"), Quantity: 2, AddedAt: now},
			{ItemID: 2, Name: "Ball", Price: decimal.RequireFromString("5"), Quantity: 3, AddedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestGet_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()
	userID := "user123"

	cartJSON, err := json.Marshal(testCart(userID))
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey(userID), string(cartJSON)))

	result, err := cache.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, result.UserID)
	require.Len(t, result.Items, 2)
	assert.True(t, decimal.RequireFromString("12.50").Equal(result.Items[0].Price))
	assert.Equal(t, 3, result.Items[1].Quantity)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	result, err := cache.Get(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey("user123"), "not json"))

	_, err := cache.Get(context.Background(), "user123")

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSetIfVersion_WithJitteredTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	stored, err := cache.SetIfVersion(ctx, "user123", testCart("user123"), 0)
	require.NoError(t, err)
	assert.True(t, stored)

	assert.True(t, mr.Exists(cacheKey("user123")))
	ttl := mr.TTL(cacheKey("user123"))
	assert.GreaterOrEqual(t, ttl, 10*time.Minute)
	assert.Less(t, ttl, 12*time.Minute)

	mr.FastForward(13 * time.Minute)
	_, err = cache.Get(ctx, "user123")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestInvalidate(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	version, err := cache.Version(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)

	_, err = cache.SetIfVersion(ctx, "user123", testCart("user123"), version)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "user123"))
	assert.False(t, mr.Exists(cacheKey("user123")))

	version, err = cache.Version(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.Greater(t, mr.TTL(versionKey("user123")), time.Duration(0))

	// invalidating a user with nothing cached is not an error
	require.NoError(t, cache.Invalidate(ctx, "user123"))
	version, err = cache.Version(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}

func TestSetIfVersion_StaleVersionIsDropped(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	seen, err := cache.Version(ctx, "user123")
	require.NoError(t, err)

	// a mutation lands between the version read and the write
	require.NoError(t, cache.Invalidate(ctx, "user123"))

	stored, err := cache.SetIfVersion(ctx, "user123", testCart("user123"), seen)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists(cacheKey("user123")))

	current, err := cache.Version(ctx, "user123")
	require.NoError(t, err)
	stored, err = cache.SetIfVersion(ctx, "user123", testCart("user123"), current)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestKeysShareHashTag(t *testing.T) {
	assert.Equal(t, "mongomart:cart:{user123}", cacheKey("user123"))
	assert.Equal(t, "mongomart:cart:{user123}:version", versionKey("user123"))
}

func TestRedisDown(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "user123")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
