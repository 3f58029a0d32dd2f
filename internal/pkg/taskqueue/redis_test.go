package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisc "github.com/forumhub/core/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisQueue(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	q := NewRedis(redisc.Wrap(rdb))
	// BRPOP timeouts are whole seconds.
	q.pollWait = time.Second
	return q
}

func TestRedisFIFO(t *testing.T) {
	q := newRedisQueue(t)
	ctx := context.Background()

	for i, title := range []string{"a", "b", "c"} {
		_, err := q.Enqueue(ctx, "page_created", samplePayload{PageID: int64(i + 1), Title: title})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, q.Len())

	for i, title := range []string{"a", "b", "c"} {
		task, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, "page_created", task.Type)
		var p samplePayload
		require.NoError(t, task.Decode(&p))
		assert.Equal(t, int64(i+1), p.PageID)
		assert.Equal(t, title, p.Title)
	}
	assert.Zero(t, q.Len())
}

func TestRedisDequeueWaitsForProducer(t *testing.T) {
	q := newRedisQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = q.Enqueue(context.Background(), "page_created", samplePayload{PageID: 7})
	}()
	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	var p samplePayload
	require.NoError(t, task.Decode(&p))
	assert.Equal(t, int64(7), p.PageID)
}

func TestRedisDequeueStopsWithContext(t *testing.T) {
	q := newRedisQueue(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := q.Dequeue(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)

	done, cancelDone := context.WithCancel(context.Background())
	cancelDone()
	_, err = q.Dequeue(done)
	assert.ErrorIs(t, err, context.Canceled)
}
