package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/connection-engine/internal/config"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

type testStruct struct {
	Name string
	Age  int
}

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		Addr: mr.Addr(),
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	expected := testStruct{Name: "Alice", Age: 30}
	require.NoError(t, cache.Set(ctx, "user:1", expected, time.Minute))

	var actual testStruct
	found, err := cache.Get(ctx, "user:1", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out testStruct
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "key"))

	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetInvalidJSON(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Db.Set(ctx, "bad", []byte("not-json"), time.Minute).Err())

	var out testStruct
	found, err := cache.Get(ctx, "bad", &out)
	assert.False(t, found)
	assert.Error(t, err)
}

func TestEntitlementRoundTripAndExpiry(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	ent := &models.Entitlement{
		ID:             "ent-1",
		PaymentID:      "pay_1",
		Status:         models.EntitlementStatusVerified,
		Name:           "Gold",
		MaxConnections: 10,
		DurationMonths: 3,
	}
	require.NoError(t, cache.SetEntitlement(ctx, ent, time.Hour))
	assert.True(t, mr.Exists("entitlement:ent-1"))

	got, found, err := cache.GetEntitlement(ctx, "ent-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10, got.MaxConnections)

	mr.FastForward(2 * time.Hour)
	got, found, err = cache.GetEntitlement(ctx, "ent-1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestGetUnavailable(t *testing.T) {
	cache, mr := setupTestCache(t)
	mr.Close()

	_, _, err := cache.GetEntitlement(context.Background(), "ent-1")
	assert.Error(t, err)
}

func TestInitServerInvalidAddr(t *testing.T) {
	cfg := config.RedisConnection{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	}

	cache, err := InitServer(context.Background(), cfg)
	assert.Nil(t, cache)
	assert.Error(t, err)
}
