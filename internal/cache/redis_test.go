package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/domain"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisCache(client), mr
}

func TestGet_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	userID := primitive.NewObjectID()
	cart := &domain.Cart{
		UserID: userID,
		Items: []domain.CartItem{
			{ProductID: primitive.NewObjectID(), Quantity: 2},
			{ProductID: primitive.NewObjectID(), Quantity: 3},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	cartJSON, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey(userID.Hex()), string(cartJSON)))

	result, err := cache.Get(ctx, userID.Hex())
	require.NoError(t, err)
	assert.Equal(t, userID, result.UserID)
	assert.Len(t, result.Items, 2)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	result, err := cache.Get(context.Background(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)

	userID := primitive.NewObjectID()
	require.NoError(t, mr.Set(cacheKey(userID.Hex()), `{"items": [truncated`))

	_, err := cache.Get(context.Background(), userID.Hex())
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestSet_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)

	userID := primitive.NewObjectID()
	cart := &domain.Cart{
		UserID: userID,
		Items:  []domain.CartItem{{ProductID: primitive.NewObjectID(), Quantity: 5}},
	}

	require.NoError(t, cache.Set(context.Background(), userID.Hex(), cart))

	stored, err := mr.Get(cacheKey(userID.Hex()))
	require.NoError(t, err)

	var storedCart domain.Cart
	require.NoError(t, json.Unmarshal([]byte(stored), &storedCart))
	assert.Equal(t, userID, storedCart.UserID)
	assert.Len(t, storedCart.Items, 1)
}

func TestSet_WithTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)

	userID := primitive.NewObjectID()
	require.NoError(t, cache.Set(context.Background(), userID.Hex(), &domain.Cart{UserID: userID}))

	ttl := mr.TTL(cacheKey(userID.Hex()))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute, "TTL should be at least base TTL")
	assert.LessOrEqual(t, ttl, 20*time.Minute, "TTL should be base + max jitter")
}

func TestDelete_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)

	userID := primitive.NewObjectID()
	require.NoError(t, mr.Set(cacheKey(userID.Hex()), `{}`))
	require.True(t, mr.Exists(cacheKey(userID.Hex())))

	require.NoError(t, cache.Delete(context.Background(), userID.Hex()))
	assert.False(t, mr.Exists(cacheKey(userID.Hex())))
}

func TestDelete_NonExistentKey(t *testing.T) {
	cache, _ := setupTestRedis(t)
	assert.NoError(t, cache.Delete(context.Background(), "nonexistent"))
}

func TestCacheKey_Format(t *testing.T) {
	assert.Equal(t, "cart:abc123", cacheKey("abc123"))
}
