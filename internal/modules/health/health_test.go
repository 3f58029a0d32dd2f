package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/forumhub/core/internal/database/dbtest"
	"github.com/forumhub/core/internal/pkg/cron"
	"github.com/forumhub/core/internal/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckReportsDatabaseAndBacklog(t *testing.T) {
	queue := taskqueue.NewMemory(4)
	_, err := queue.Enqueue(context.Background(), "page.created", map[string]int{"pageId": 1})
	require.NoError(t, err)

	sched := cron.New(nil)
	sched.Register(cron.Job{Name: "noop", Interval: time.Hour, Fn: func(context.Context) error { return nil }})

	r := NewChecker(dbtest.Open(t), nil, queue, sched).Check(context.Background())
	assert.Equal(t, "ok", r.Status)
	assert.True(t, r.Database)
	assert.Nil(t, r.Redis)
	require.NotNil(t, r.Backlog)
	assert.Equal(t, 1, *r.Backlog)
	require.Len(t, r.Jobs, 1)
	assert.Equal(t, "noop", r.Jobs[0].Name)
}

func TestHealthEndpointDegradesWhenDatabaseIsGone(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	r := gin.New()
	NewChecker(db, nil, nil, nil).RegisterRoutes(r.Group(""))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var rep Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, "degraded", rep.Status)
	assert.False(t, rep.Database)
}
