package upsert

import (
	"github.com/forumhub/core/internal/middleware"
	"github.com/forumhub/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the upsert endpoint. mws run before the handler,
// after authentication.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, mws ...gin.HandlerFunc) {
	handlers := append([]gin.HandlerFunc{authMW}, mws...)
	handlers = append(handlers, h.upsertSimple)
	rg.POST("/upsert-simple", handlers...)
}

// POST /upsert-simple
func (h *Handler) upsertSimple(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Bad upsert request: "+err.Error())
		return
	}
	requesterID, _ := middleware.RequesterID(c)
	resp, err := h.svc.Upsert(c.Request.Context(), middleware.CurrentSite(c), requesterID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}
