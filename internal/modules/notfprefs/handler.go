package notfprefs

import (
	"strconv"
	"time"

	"github.com/forumhub/core/internal/middleware"
	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/modules/category"
	"github.com/forumhub/core/internal/modules/member"
	"github.com/forumhub/core/internal/pkg/apperr"
	"github.com/forumhub/core/internal/pkg/jwt"
	"github.com/forumhub/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const unsubscribeTTL = 365 * 24 * time.Hour

// UnsubscribeToken signs the token an email's unsubscribe link carries.
func UnsubscribeToken(siteID, memberID int64, scope Scope) (string, error) {
	return jwt.Sign(jwt.Claims{
		Purpose:    jwt.PurposeUnsubscribe,
		SiteID:     siteID,
		MemberID:   memberID,
		CategoryID: scope.CategoryID,
	}, unsubscribeTTL)
}

type Handler struct {
	svc        *Service
	members    *member.Service
	categories *category.Service
}

func NewHandler(svc *Service, members *member.Service, categories *category.Service) *Handler {
	return &Handler{svc: svc, members: members, categories: categories}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	prefs := rg.Group("/notf-prefs", authMW)
	prefs.GET("", h.list)
	prefs.PUT("", h.set)
	prefs.DELETE("", h.remove)

	rg.GET("/unsubscribe", h.unsubscribe)
}

type SetPrefDTO struct {
	MemberID   int64            `json:"memberId"`
	NotfLevel  models.NotfLevel `json:"notfLevel"`
	WholeSite  bool             `json:"wholeSite"`
	CategoryID int64            `json:"categoryId"`
}

// targetMember returns whose preferences the request is about. Only the
// sysbot may act on other members.
func (h *Handler) targetMember(c *gin.Context, memberID int64) (int64, error) {
	requesterID, _ := middleware.RequesterID(c)
	if memberID == 0 {
		return requesterID, nil
	}
	if memberID != requesterID && requesterID != models.SysbotUserID {
		return 0, apperr.Forbidden("may not change the notification preferences of member %d", memberID)
	}
	m, err := h.members.GetByID(c.Request.Context(), middleware.CurrentSite(c).ID, memberID)
	if err != nil {
		return 0, err
	}
	if m == nil || m.IsDeleted {
		return 0, apperr.NotFound("member %d not found", memberID)
	}
	return memberID, nil
}

func (h *Handler) scope(c *gin.Context, wholeSite bool, categoryID int64) (Scope, error) {
	if wholeSite {
		return WholeSite(), nil
	}
	if categoryID <= 0 {
		return Scope{}, apperr.Validation("categoryId", "required unless wholeSite is set")
	}
	cat, err := h.categories.GetByID(c.Request.Context(), middleware.CurrentSite(c).ID, categoryID)
	if err != nil {
		return Scope{}, err
	}
	if cat == nil {
		return Scope{}, apperr.NotFound("category %d not found", categoryID)
	}
	return Category(categoryID), nil
}

func (h *Handler) list(c *gin.Context) {
	memberID, _ := strconv.ParseInt(c.Query("memberId"), 10, 64)
	memberID, err := h.targetMember(c, memberID)
	if err != nil {
		response.Error(c, err)
		return
	}
	prefs, err := h.svc.ListForMember(c.Request.Context(), middleware.CurrentSite(c).ID, memberID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, prefs)
}

func (h *Handler) set(c *gin.Context) {
	var dto SetPrefDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	memberID, err := h.targetMember(c, dto.MemberID)
	if err != nil {
		response.Error(c, err)
		return
	}
	scope, err := h.scope(c, dto.WholeSite, dto.CategoryID)
	if err != nil {
		response.Error(c, err)
		return
	}
	pref, err := h.svc.Set(c.Request.Context(), middleware.CurrentSite(c).ID, memberID, dto.NotfLevel, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pref)
}

func (h *Handler) remove(c *gin.Context) {
	memberID, _ := strconv.ParseInt(c.Query("memberId"), 10, 64)
	memberID, err := h.targetMember(c, memberID)
	if err != nil {
		response.Error(c, err)
		return
	}
	categoryID, _ := strconv.ParseInt(c.Query("categoryId"), 10, 64)
	scope := WholeSite()
	if categoryID > 0 {
		scope = Category(categoryID)
	}
	found, err := h.svc.Delete(c.Request.Context(), middleware.CurrentSite(c).ID, memberID, scope)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !found {
		response.NotFoundMsg(c, "No such preference")
		return
	}
	response.NoContent(c)
}

// GET /unsubscribe?token=... lowers the linked preference to Normal.
func (h *Handler) unsubscribe(c *gin.Context) {
	claims, err := jwt.Parse(c.Query("token"))
	if err != nil || claims.Purpose != jwt.PurposeUnsubscribe {
		response.BadRequest(c, "Invalid or expired unsubscribe link")
		return
	}
	site := middleware.CurrentSite(c)
	if claims.SiteID != site.ID {
		response.BadRequest(c, "Unsubscribe link belongs to another site")
		return
	}
	scope := Category(claims.CategoryID)
	if _, err := h.svc.Set(c.Request.Context(), site.ID, claims.MemberID, models.NotfLevelNormal, scope); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"ok": 1, "message": "Unsubscribed"})
}
