package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/voiceover/internal/cache"
	"github.com/nikhilbhutani/voiceover/internal/models"
)

// newTestCache connects to the Redis named by TEST_REDIS_ADDR, skipping when
// it is unset or unreachable.
func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.NewCache(client, "test:"+uuid.NewString()+":")
	if err := c.Ping(context.Background()); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	return c
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))

	var got map[string]int
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 1, got["a"])

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), cache.ErrMiss)
}

func TestJobStore(t *testing.T) {
	store := cache.NewJobStore(newTestCache(t), time.Minute)
	ctx := context.Background()

	id := uuid.New()
	_, err := store.Get(ctx, id)
	assert.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, store.Put(ctx, models.AlignJob{ID: id, Status: models.JobStatusPending, Examples: 2}))

	job, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 2, job.Examples)
}
