package page

import (
	"strconv"
	"time"

	"github.com/forumhub/core/internal/models"
)

type URLPaths struct {
	Canonical string `json:"canonical"`
}

// View is the JSON shape of a page. Ids are strings on the wire.
type View struct {
	ID         string          `json:"id"`
	ExtID      *string         `json:"extId,omitempty"`
	PageType   models.PageType `json:"pageType"`
	URLPaths   URLPaths        `json:"urlPaths"`
	CategoryID int64           `json:"categoryId"`
	AuthorID   int64           `json:"authorId"`
	Title      string          `json:"title"`
	BodyHTML   string          `json:"bodyHtml,omitempty"`
	Version    int             `json:"version"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func ToView(p *models.PageModel) View {
	return View{
		ID:         strconv.FormatInt(p.ID, 10),
		ExtID:      p.ExtID,
		PageType:   p.PageType,
		URLPaths:   URLPaths{Canonical: CanonicalPath(p.ID, p.Slug)},
		CategoryID: p.CategoryID,
		AuthorID:   p.AuthorID,
		Title:      p.Title,
		BodyHTML:   p.BodyHTML,
		Version:    p.Version,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

type ReplyView struct {
	Nr        int       `json:"nr"`
	AuthorID  int64     `json:"authorId"`
	BodyHTML  string    `json:"bodyHtml"`
	CreatedAt time.Time `json:"createdAt"`
}

// DetailView is a page with its replies.
type DetailView struct {
	View
	Replies []ReplyView `json:"replies"`
}
