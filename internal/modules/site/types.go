package site

import "github.com/forumhub/core/internal/models"

// SiteData is the import/export document of one site.
type SiteData struct {
	Site          SiteMeta        `json:"site"`
	Settings      Settings        `json:"settings"`
	Members       []MemberData    `json:"members"`
	Categories    []CategoryData  `json:"categories"`
	APISecrets    []APISecretData `json:"apiSecrets"`
	PageNotfPrefs []NotfPrefData  `json:"pageNotfPrefs"`
	Pages         []PageData      `json:"pages"`
}

type SiteMeta struct {
	ID       int64  `json:"id"`
	Hostname string `json:"hostname"`
	Origin   string `json:"origin"`
	Name     string `json:"name"`
}

type Settings struct {
	EnableAPI bool `json:"enableApi"`
}

type MemberData struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FullName     string `json:"fullName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
	IsDeleted    bool   `json:"isDeleted,omitempty"`
}

type CategoryData struct {
	ID          int64   `json:"id"`
	ExtID       *string `json:"extId,omitempty"`
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
}

// APISecretData carries either a plaintext SecretKey (import only) or the
// stored SecretHash (export).
type APISecretData struct {
	Nr         int    `json:"nr"`
	UserID     int64  `json:"userId"`
	CreatedAt  int64  `json:"createdAt"`
	DeletedAt  *int64 `json:"deletedAt,omitempty"`
	IsDeleted  bool   `json:"isDeleted"`
	SecretKey  string `json:"secretKey,omitempty"`
	SecretHash string `json:"secretHash,omitempty"`
}

type NotfPrefData struct {
	MemberID   int64            `json:"memberId"`
	NotfLevel  models.NotfLevel `json:"notfLevel"`
	WholeSite  bool             `json:"wholeSite,omitempty"`
	CategoryID *int64           `json:"categoryId,omitempty"`
}

type PageData struct {
	ID         int64           `json:"id"`
	ExtID      *string         `json:"extId,omitempty"`
	PageType   models.PageType `json:"pageType"`
	CategoryID int64           `json:"categoryId"`
	AuthorID   int64           `json:"authorId"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
}

// IDAddress is what an import returns: where the site can be reached.
type IDAddress struct {
	ID       int64  `json:"id"`
	Hostname string `json:"hostname"`
	Origin   string `json:"origin"`
}
