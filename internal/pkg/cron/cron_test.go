package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNowRecordsStatus(t *testing.T) {
	s := New(nil)
	s.Register(Job{Name: "ok", Interval: time.Hour, Fn: func(context.Context) error { return nil }})
	s.Register(Job{Name: "bad", Interval: time.Hour, Fn: func(context.Context) error { return errors.New("boom") }})

	require.NoError(t, s.RunNow(context.Background(), "ok"))
	err := s.RunNow(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Error(t, s.RunNow(context.Background(), "missing"))

	items := s.List()
	require.Len(t, items, 2)
	assert.Equal(t, "bad", items[0].Name)
	assert.Equal(t, StatusReject, items[0].Status)
	assert.Equal(t, "boom", items[0].Message)
	assert.Equal(t, StatusFulfill, items[1].Status)
	assert.NotNil(t, items[1].LastRunAt)
}

func TestStartRunsUntilCancelled(t *testing.T) {
	var runs int32
	s := New(nil)
	s.Register(Job{Name: "tick", Interval: 5 * time.Millisecond, Fn: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
}
