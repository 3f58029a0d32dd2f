package middleware

import (
	"crypto/subtle"

	"github.com/forumhub/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const HeaderTestSecret = "X-E2E-Test-Secret"

// TestSecret guards test-support endpoints. The secret comes from the
// X-E2E-Test-Secret header or the e2eTestSecret query parameter. An empty
// configured secret disables the endpoints.
func TestSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			response.NotFound(c)
			return
		}
		given := c.GetHeader(HeaderTestSecret)
		if given == "" {
			given = c.Query("e2eTestSecret")
		}
		if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
			response.Forbidden(c, "Bad e2e test secret")
			return
		}
		c.Next()
	}
}
