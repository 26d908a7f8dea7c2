// internal/jobstatus/cache_test.go
package jobstatus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-workers/internal/models"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCache(client, time.Hour), mr
}

func TestCache_SetAndGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	rec := &Record{
		JobID:    "job-1",
		Status:   models.JobQueued,
		Attempts: 0,
	}
	require.NoError(t, cache.Set(ctx, "session-abc", rec))

	got, err := cache.Get(ctx, "session-abc")
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, models.JobQueued, got.Status)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestCache_Get_Missing(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Get(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCache_WritesRefreshTTL(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "session-abc", &Record{JobID: "job-1", Status: models.JobQueued}))

	mr.FastForward(30 * time.Minute)
	require.NoError(t, cache.Set(ctx, "session-abc", &Record{JobID: "job-1", Status: models.JobProcessing}))

	// The first write's TTL would expire here, the refreshed one does not.
	mr.FastForward(45 * time.Minute)
	got, err := cache.Get(ctx, "session-abc")
	require.NoError(t, err)
	assert.Equal(t, models.JobProcessing, got.Status)
}

func TestCache_RecordExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "session-abc", &Record{JobID: "job-1", Status: models.JobCompleted}))

	mr.FastForward(2 * time.Hour)
	_, err := cache.Get(ctx, "session-abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCache_Cancel(t *testing.T) {
	t.Run("cancels a pending job", func(t *testing.T) {
		cache, _ := newTestCache(t)
		ctx := context.Background()

		require.NoError(t, cache.Set(ctx, "session-abc", &Record{JobID: "job-1", Status: models.JobRetrying}))
		require.NoError(t, cache.Cancel(ctx, "session-abc"))

		got, err := cache.Get(ctx, "session-abc")
		require.NoError(t, err)
		assert.Equal(t, models.JobCancelled, got.Status)

		cancelled, err := cache.IsCancelled(ctx, "session-abc")
		require.NoError(t, err)
		assert.True(t, cancelled)
	})

	t.Run("terminal jobs stay terminal", func(t *testing.T) {
		cache, _ := newTestCache(t)
		ctx := context.Background()

		require.NoError(t, cache.Set(ctx, "session-abc", &Record{JobID: "job-1", Status: models.JobCompleted}))

		err := cache.Cancel(ctx, "session-abc")
		assert.ErrorIs(t, err, ErrTerminal)

		got, err := cache.Get(ctx, "session-abc")
		require.NoError(t, err)
		assert.Equal(t, models.JobCompleted, got.Status)
	})

	t.Run("missing record", func(t *testing.T) {
		cache, _ := newTestCache(t)

		err := cache.Cancel(context.Background(), "no-such-session")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCache_IsCancelled_MissingRecord(t *testing.T) {
	cache, _ := newTestCache(t)

	cancelled, err := cache.IsCancelled(context.Background(), "no-such-session")
	require.NoError(t, err)
	assert.False(t, cancelled)
}
