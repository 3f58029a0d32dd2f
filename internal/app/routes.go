package app

import (
	"net/http"
	"time"

	"github.com/forumhub/core/internal/middleware"
	"github.com/forumhub/core/internal/modules/category"
	"github.com/forumhub/core/internal/modules/emails"
	"github.com/forumhub/core/internal/modules/form"
	"github.com/forumhub/core/internal/modules/health"
	"github.com/forumhub/core/internal/modules/notfprefs"
	"github.com/forumhub/core/internal/modules/page"
	"github.com/forumhub/core/internal/modules/site"
	"github.com/forumhub/core/internal/modules/upsert"
	"github.com/forumhub/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const apiPrefix = "/-/v0"

var appInfo = gin.H{
	"name":    "forumhub-core",
	"version": "0.1.0",
}

var processStart = time.Now()

func (a *App) registerRoutes() {
	r := a.router
	svc := a.svc

	siteMW := middleware.Site(svc.Sites, a.cfg.DefaultSiteID)
	authMW := middleware.APIAuth(svc.Sites)
	optionalAuthMW := middleware.OptionalAPIAuth(svc.Sites)
	limiter := middleware.NewRateLimiter(a.cfg.API.RatePerSecond, a.cfg.API.Burst)

	pageHandler := page.NewHandler(svc.Pages)

	r.NoRoute(siteMW, func(c *gin.Context) {
		if pageHandler.ServeByPath(c) {
			return
		}
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	// Test support sits outside the site middleware: import-site creates
	// the site the Host header would name.
	if a.cfg.TestEndpointsEnabled() {
		test := r.Group(apiPrefix+"/test", middleware.TestSecret(a.cfg.E2ETestSecret))
		site.NewHandler(svc.Sites).RegisterTestRoutes(test)
		emails.NewHandler(svc.Outbox).RegisterTestRoutes(test)
		test.GET("/cron-jobs", func(c *gin.Context) {
			response.OK(c, a.sched.List())
		})
		test.POST("/cron-jobs/:name/run", func(c *gin.Context) {
			if err := a.sched.RunNow(c.Request.Context(), c.Param("name")); err != nil {
				response.BadRequest(c, err.Error())
				return
			}
			response.NoContent(c)
		})
	}

	// Health checks answer on any Host.
	health.NewChecker(a.db, a.rc, a.queue, a.sched).RegisterRoutes(r.Group(apiPrefix))

	api := r.Group(apiPrefix, siteMW, middleware.Idempotence(a.rc))
	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		uptime := time.Since(processStart)
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptime.Milliseconds(),
			"humanize":  humanizeDuration(uptime),
		})
	})

	upsert.NewHandler(svc.Upsert).RegisterRoutes(api, authMW, limiter.Middleware())
	category.NewHandler(svc.Categories).RegisterRoutes(api, authMW)
	pageHandler.RegisterRoutes(api)
	notfprefs.NewHandler(svc.Prefs, svc.Members, svc.Categories).RegisterRoutes(api, authMW)

	forms := r.Group("/-", siteMW)
	form.NewHandler(svc.Forms, svc.Pages).RegisterRoutes(forms, optionalAuthMW)
}
