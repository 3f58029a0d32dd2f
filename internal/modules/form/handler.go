package form

import (
	"errors"
	"net/http"

	"github.com/forumhub/core/internal/middleware"
	"github.com/forumhub/core/internal/modules/page"
	"github.com/forumhub/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const maxFormMemory = 8 << 20

type Handler struct {
	svc   *Service
	pages *page.Service
}

func NewHandler(svc *Service, pages *page.Service) *Handler {
	return &Handler{svc: svc, pages: pages}
}

// RegisterRoutes mounts the form endpoints on rg, which serves "/-".
// authMW should let anonymous requests through.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.POST("/submit-form", authMW, h.submit)
	rg.GET("/redir-to-my-last-topic", authMW, h.redirToMyLastTopic)
}

// POST /-/submit-form, urlencoded or multipart.
func (h *Handler) submit(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		response.BadRequest(c, "Bad form data: "+err.Error())
		return
	}
	sub := Submission{Fields: c.Request.PostForm}
	if id, ok := middleware.RequesterID(c); ok {
		sub.RequesterID = id
		sub.Authenticated = true
	}
	out, err := h.svc.Submit(c.Request.Context(), middleware.CurrentSite(c), sub)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}

// GET /-/redir-to-my-last-topic
func (h *Handler) redirToMyLastTopic(c *gin.Context) {
	requesterID, ok := middleware.RequesterID(c)
	if !ok {
		response.Unauthorized(c, "")
		return
	}
	p, err := h.pages.LatestByAuthor(c.Request.Context(), middleware.CurrentSite(c).ID, requesterID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if p == nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.Redirect(http.StatusFound, page.CanonicalPath(p.ID, p.Slug))
}
