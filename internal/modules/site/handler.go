package site

import (
	"strconv"

	"github.com/forumhub/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterTestRoutes mounts the test-support endpoints on rg, which must
// already be guarded.
func (h *Handler) RegisterTestRoutes(rg *gin.RouterGroup) {
	rg.POST("/import-site", h.importSite)
	rg.GET("/export-site", h.exportSite)
}

func (h *Handler) importSite(c *gin.Context) {
	var data SiteData
	if err := c.ShouldBindJSON(&data); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	addr, err := h.svc.Import(c.Request.Context(), data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, addr)
}

func (h *Handler) exportSite(c *gin.Context) {
	siteID, err := strconv.ParseInt(c.Query("siteId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "siteId is required")
		return
	}
	data, err := h.svc.Export(c.Request.Context(), siteID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, data)
}
