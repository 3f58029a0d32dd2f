package page

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/forumhub/core/internal/middleware"
	"github.com/forumhub/core/internal/pkg/pagination"
	"github.com/forumhub/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

// pagePathRe matches "/-<id>" and "/-<id>/<slug>".
var pagePathRe = regexp.MustCompile(`^/-(\d+)(?:/([^/]*))?/?$`)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	pages := rg.Group("/pages")
	pages.GET("", h.listByCategory)
	pages.GET("/:id", h.get)
}

func (h *Handler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid page id")
		return
	}
	h.respondPage(c, id)
}

func (h *Handler) respondPage(c *gin.Context, id int64) {
	siteID := middleware.CurrentSite(c).ID
	p, err := h.svc.GetByID(c.Request.Context(), siteID, id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if p == nil {
		response.NotFoundMsg(c, "Page not found")
		return
	}
	replies, err := h.svc.ListReplies(c.Request.Context(), siteID, id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := DetailView{View: ToView(p), Replies: make([]ReplyView, 0, len(replies))}
	for _, r := range replies {
		out.Replies = append(out.Replies, ReplyView{Nr: r.Nr, AuthorID: r.AuthorID, BodyHTML: r.BodyHTML, CreatedAt: r.CreatedAt})
	}
	response.OK(c, out)
}

func (h *Handler) listByCategory(c *gin.Context) {
	categoryID, err := strconv.ParseInt(c.Query("categoryId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "categoryId is required")
		return
	}
	pages, pg, err := h.svc.ListByCategory(c.Request.Context(), middleware.CurrentSite(c).ID, categoryID, pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	views := make([]View, 0, len(pages))
	for i := range pages {
		views = append(views, ToView(&pages[i]))
	}
	response.Paged(c, views, pg)
}

// ServeByPath handles GET /-<id>[/<slug>]: any non-canonical form redirects
// to the canonical path, the canonical path returns the page. It reports
// false when the path is not a page path.
func (h *Handler) ServeByPath(c *gin.Context) bool {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		return false
	}
	m := pagePathRe.FindStringSubmatch(c.Request.URL.Path)
	if m == nil {
		return false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return false
	}

	p, err := h.svc.GetByID(c.Request.Context(), middleware.CurrentSite(c).ID, id)
	if err != nil {
		response.InternalError(c, err)
		return true
	}
	if p == nil {
		response.NotFoundMsg(c, "Page not found")
		return true
	}
	canonical := CanonicalPath(p.ID, p.Slug)
	if c.Request.URL.Path != canonical {
		c.Redirect(http.StatusFound, canonical)
		return true
	}
	h.respondPage(c, id)
	return true
}
