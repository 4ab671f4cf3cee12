package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilpatel/fieldflow/internal/cache"
	"github.com/nikhilpatel/fieldflow/pkg/models"
)

// setupRedis starts an in-process Redis and returns a connected RedisCache.
func setupRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { rc.Close() })
	return rc, mr
}

func TestPing(t *testing.T) {
	rc, _ := setupRedis(t)
	assert.NoError(t, rc.Ping(context.Background()))
}

func TestSetGet_Roundtrip(t *testing.T) {
	rc, _ := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "k1", []byte("hello"), time.Minute))

	val, found, err := rc.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), val)
}

func TestGet_Missing(t *testing.T) {
	rc, _ := setupRedis(t)

	_, found, err := rc.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDelete(t *testing.T) {
	rc, _ := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "k1", []byte("v"), time.Minute))
	require.NoError(t, rc.Delete(ctx, "k1"))

	_, found, err := rc.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestJobStatus_Roundtrip(t *testing.T) {
	rc, _ := setupRedis(t)
	ctx := context.Background()
	jobID := uuid.New()

	require.NoError(t, rc.SetJobStatus(ctx, jobID, models.StatusTravelling, time.Minute))

	status, found, err := rc.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.StatusTravelling, status)
}

func TestJobStatus_Missing(t *testing.T) {
	rc, _ := setupRedis(t)

	_, found, err := rc.GetJobStatus(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIncrWithExpiry_Counts(t *testing.T) {
	rc, mr := setupRedis(t)
	ctx := context.Background()
	key := cache.RateLimitKey("ff_abcde")

	for want := int64(1); want <= 3; want++ {
		count, err := rc.IncrWithExpiry(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	// The key expires once the window passes.
	mr.FastForward(2 * time.Minute)
	count, err := rc.IncrWithExpiry(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
