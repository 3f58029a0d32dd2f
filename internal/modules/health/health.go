// Package health reports whether the process can serve upserts and deliver
// notifications.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/forumhub/core/internal/pkg/cron"
	pkgredis "github.com/forumhub/core/internal/pkg/redis"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const pingTimeout = 2 * time.Second

// Backlog is implemented by queues that can report their length.
type Backlog interface {
	Len() int
}

type Checker struct {
	db    *gorm.DB
	rc    *pkgredis.Client
	queue interface{}
	sched *cron.Scheduler
}

// NewChecker builds a Checker. rc may be nil when Redis is disabled; queue is
// reported only when it implements Backlog.
func NewChecker(db *gorm.DB, rc *pkgredis.Client, queue interface{}, sched *cron.Scheduler) *Checker {
	return &Checker{db: db, rc: rc, queue: queue, sched: sched}
}

type Report struct {
	Status   string          `json:"status"`
	Database bool            `json:"database"`
	Redis    *bool           `json:"redis,omitempty"`
	Backlog  *int            `json:"queueBacklog,omitempty"`
	Jobs     []cron.ListItem `json:"jobs,omitempty"`
}

// Check pings the database and, when configured, Redis.
func (h *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	r := Report{Status: "ok"}
	if sqlDB, err := h.db.DB(); err == nil {
		r.Database = sqlDB.PingContext(ctx) == nil
	}
	if !r.Database {
		r.Status = "degraded"
	}
	if h.rc != nil {
		ok := h.rc.Raw().Ping(ctx).Err() == nil
		r.Redis = &ok
		if !ok {
			r.Status = "degraded"
		}
	}
	if b, ok := h.queue.(Backlog); ok {
		n := b.Len()
		r.Backlog = &n
	}
	if h.sched != nil {
		r.Jobs = h.sched.List()
	}
	return r
}

func (h *Checker) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", func(c *gin.Context) {
		r := h.Check(c.Request.Context())
		code := http.StatusOK
		if r.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, r)
	})
}
