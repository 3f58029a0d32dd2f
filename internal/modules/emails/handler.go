package emails

import (
	"strconv"
	"strings"

	"github.com/forumhub/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterTestRoutes mounts the outbox inspection endpoint used by
// end-to-end tests on an already guarded group.
func (h *Handler) RegisterTestRoutes(rg *gin.RouterGroup) {
	rg.GET("/sent-emails", h.listSent)
}

type sentEmailView struct {
	ID         string `json:"id"`
	ToMemberID int64  `json:"toMemberId"`
	ToAddress  string `json:"toAddress"`
	PageID     int64  `json:"pageId"`
	Subject    string `json:"subject"`
	BodyHTML   string `json:"bodyHtml"`
}

// GET /sent-emails?siteId=1[&sentTo=a@x,b@y]
func (h *Handler) listSent(c *gin.Context) {
	siteID, err := strconv.ParseInt(c.Query("siteId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "siteId is required")
		return
	}
	var addrs []string
	if raw := strings.TrimSpace(c.Query("sentTo")); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(a); a != "" {
				addrs = append(addrs, a)
			}
		}
	}
	sent, err := h.svc.ListSentTo(c.Request.Context(), siteID, addrs)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]sentEmailView, 0, len(sent))
	for _, e := range sent {
		out = append(out, sentEmailView{
			ID:         e.ID,
			ToMemberID: e.ToMemberID,
			ToAddress:  e.ToAddress,
			PageID:     e.PageID,
			Subject:    e.Subject,
			BodyHTML:   e.BodyHTML,
		})
	}
	response.OK(c, out)
}
