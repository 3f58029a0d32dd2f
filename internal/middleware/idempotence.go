package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	redisc "github.com/forumhub/core/internal/pkg/redis"
	"github.com/forumhub/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	IdempotenceHeader = "X-Idempotence-Key"
	idempotenceTTL    = 60 * time.Second
	maxIdempotenceKey = 200
)

// Idempotence rejects a repeated mutating request carrying the same
// X-Idempotence-Key within idempotenceTTL. Requests without the header pass
// through; upserts are idempotent by ext id regardless.
func Idempotence(rc *redisc.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotenceHeader))
		if rc == nil || key == "" || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		if len(key) > maxIdempotenceKey {
			response.BadRequest(c, IdempotenceHeader+" is too long")
			return
		}

		rdb := rc.Raw()
		scope := c.Request.Host + c.Request.URL.Path
		redisKey := redisc.Key("idempotence", scope, key)
		ctx := c.Request.Context()

		ok, err := rdb.SetNX(ctx, redisKey, "0", idempotenceTTL).Result()
		if err != nil {
			c.Next()
			return
		}
		if !ok {
			msg := "The same request already succeeded, retry after 60 seconds"
			if val, getErr := rdb.Get(ctx, redisKey).Result(); errors.Is(getErr, redis.Nil) || val == "0" {
				msg = "The same request is still being processed"
			}
			response.Conflict(c, msg)
			return
		}

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			rdb.Set(ctx, redisKey, "1", redis.KeepTTL)
		} else {
			rdb.Del(ctx, redisKey)
		}
	}
}
