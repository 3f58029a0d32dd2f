package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	PageID int64  `json:"pageId"`
	Title  string `json:"title"`
}

func TestMemoryFIFO(t *testing.T) {
	q := NewMemory(4)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "page_created", samplePayload{PageID: 1, Title: "a"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "page_created", samplePayload{PageID: 2, Title: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, q.Len())

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	var p samplePayload
	require.NoError(t, first.Decode(&p))
	assert.Equal(t, "page_created", first.Type)
	assert.Equal(t, int64(1), p.PageID)
	assert.NotEmpty(t, first.ID)

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Decode(&p))
	assert.Equal(t, int64(2), p.PageID)
}

func TestMemoryFullAndCancel(t *testing.T) {
	q := NewMemory(1)
	ctx := context.Background()
	_, err := q.Enqueue(ctx, "x", 1)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "x", 2)
	assert.ErrorIs(t, err, ErrFull)

	_, err = q.Dequeue(ctx)
	require.NoError(t, err)

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = q.Dequeue(cctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
