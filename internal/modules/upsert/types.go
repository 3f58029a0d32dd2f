package upsert

import (
	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/modules/page"
)

type Options struct {
	SendNotifications bool `json:"sendNotifications"`
}

// PageInput is one page to create or update, keyed by ExtID.
type PageInput struct {
	ExtID       string          `json:"extId"`
	PageType    models.PageType `json:"pageType"`
	CategoryRef string          `json:"categoryRef"`
	AuthorRef   string          `json:"authorRef"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
}

type Request struct {
	UpsertOptions Options     `json:"upsertOptions"`
	Pages         []PageInput `json:"pages"`
}

// PageResult is a stored page as returned to the caller.
type PageResult struct {
	page.View
	// Created is false when the ext id already existed.
	Created bool `json:"created"`
	// Changed is false when an existing page already had this content.
	Changed bool `json:"changed"`
}

type Response struct {
	Pages []PageResult `json:"pages"`
}
