package models

import "time"

// CategoryModel is a forum category. ExtID is an optional caller-assigned id.
type CategoryModel struct {
	SiteID      int64     `json:"siteId"      gorm:"primaryKey;autoIncrement:false;uniqueIndex:idx_categories_site_ext,priority:1;uniqueIndex:idx_categories_site_slug,priority:1"`
	ID          int64     `json:"id"          gorm:"primaryKey;autoIncrement:false"`
	ExtID       *string   `json:"extId"       gorm:"uniqueIndex:idx_categories_site_ext,priority:2"`
	Slug        string    `json:"slug"        gorm:"not null;uniqueIndex:idx_categories_site_slug,priority:2"`
	Name        string    `json:"name"        gorm:"not null"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (CategoryModel) TableName() string { return "categories" }

// PageModel is a topic: title + body, optionally keyed by an external id.
type PageModel struct {
	SiteID      int64     `json:"siteId"     gorm:"primaryKey;autoIncrement:false;uniqueIndex:idx_pages_site_ext,priority:1;index:idx_pages_site_category,priority:1"`
	ID          int64     `json:"id"         gorm:"primaryKey;autoIncrement:false"`
	ExtID       *string   `json:"extId"      gorm:"uniqueIndex:idx_pages_site_ext,priority:2"`
	PageType    PageType  `json:"pageType"   gorm:"column:page_type;not null"`
	CategoryID  int64     `json:"categoryId" gorm:"not null;index:idx_pages_site_category,priority:2"`
	AuthorID    int64     `json:"authorId"   gorm:"not null"`
	Title       string    `json:"title"      gorm:"not null"`
	Body        string    `json:"body"       gorm:"type:longtext"`
	BodyHTML    string    `json:"bodyHtml"   gorm:"column:body_html;type:longtext"`
	Slug        string    `json:"slug"`
	ContentHash string    `json:"-"          gorm:"column:content_hash;type:char(64)"`
	Version     int       `json:"version"    gorm:"not null;default:1"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (PageModel) TableName() string { return "pages" }

// PostModel is a reply on a page. Nr 0 and 1 are the page title and body,
// which live on PageModel, so replies start at FirstReplyNr.
type PostModel struct {
	SiteID    int64     `json:"siteId"   gorm:"primaryKey;autoIncrement:false"`
	PageID    int64     `json:"pageId"   gorm:"primaryKey;autoIncrement:false"`
	Nr        int       `json:"nr"       gorm:"primaryKey;autoIncrement:false"`
	AuthorID  int64     `json:"authorId" gorm:"not null"`
	Body      string    `json:"body"     gorm:"type:longtext"`
	BodyHTML  string    `json:"bodyHtml" gorm:"column:body_html;type:longtext"`
	CreatedAt time.Time `json:"createdAt"`
}

func (PostModel) TableName() string { return "posts" }

const FirstReplyNr = 2
