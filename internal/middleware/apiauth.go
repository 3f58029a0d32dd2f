package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/pkg/apperr"
	"github.com/forumhub/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	ContextKeyRequesterID = "requester_id"
	requesterIDPrefix     = "tyid="
)

// SecretChecker verifies a site-scoped API credential.
type SecretChecker interface {
	CheckAPISecret(ctx context.Context, site *models.SiteModel, requesterID int64, secret string) error
}

// APIAuth requires HTTP Basic credentials: the username is the requester's
// member id ("tyid=2" or "2"), the password the API secret. Must run after Site.
func APIAuth(checker SecretChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID, err := authenticate(c, checker)
		if err != nil {
			if apperr.Is(err, apperr.KindAuth) {
				c.Header("WWW-Authenticate", `Basic realm="api"`)
			}
			response.Error(c, err)
			return
		}
		c.Set(ContextKeyRequesterID, requesterID)
		c.Next()
	}
}

// OptionalAPIAuth sets the requester when valid credentials are present,
// but does not block the request otherwise.
func OptionalAPIAuth(checker SecretChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, ok := c.Request.BasicAuth(); ok {
			if requesterID, err := authenticate(c, checker); err == nil {
				c.Set(ContextKeyRequesterID, requesterID)
			}
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, checker SecretChecker) (int64, error) {
	site := CurrentSite(c)
	if site == nil {
		return 0, apperr.Auth("no site")
	}
	user, secret, ok := c.Request.BasicAuth()
	if !ok {
		return 0, apperr.Auth("API credentials missing, use HTTP Basic auth")
	}
	requesterID, err := ParseRequesterID(user)
	if err != nil {
		return 0, err
	}
	if err := checker.CheckAPISecret(c.Request.Context(), site, requesterID, secret); err != nil {
		return 0, err
	}
	return requesterID, nil
}

// ParseRequesterID reads "tyid=<id>" or "<id>".
func ParseRequesterID(user string) (int64, error) {
	s := strings.TrimPrefix(strings.TrimSpace(user), requesterIDPrefix)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, apperr.Auth("bad API requester id %q", user)
	}
	return id, nil
}

// RequesterID returns the authenticated API requester, if any.
func RequesterID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextKeyRequesterID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// IsAuthenticated reports whether the request carries a valid API requester.
func IsAuthenticated(c *gin.Context) bool {
	_, ok := RequesterID(c)
	return ok
}
