package middleware

import (
	"context"

	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const ContextKeySite = "site"

// SiteResolver finds the site a request is addressed to.
type SiteResolver interface {
	GetByHostname(ctx context.Context, hostname string) (*models.SiteModel, error)
	GetByID(ctx context.Context, id int64) (*models.SiteModel, error)
}

// Site resolves the request's Host to a site, falling back to
// defaultSiteID when no site has that hostname.
func Site(resolver SiteResolver, defaultSiteID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		site, err := resolver.GetByHostname(ctx, c.Request.Host)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		if site == nil && defaultSiteID > 0 {
			if site, err = resolver.GetByID(ctx, defaultSiteID); err != nil {
				response.InternalError(c, err)
				return
			}
		}
		if site == nil {
			response.NotFoundMsg(c, "No site at this address")
			return
		}
		c.Set(ContextKeySite, site)
		c.Next()
	}
}

// CurrentSite returns the site set by Site, or nil.
func CurrentSite(c *gin.Context) *models.SiteModel {
	v, ok := c.Get(ContextKeySite)
	if !ok {
		return nil
	}
	site, _ := v.(*models.SiteModel)
	return site
}
