package page

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/forumhub/core/internal/database"
	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/pkg/apperr"
	"github.com/forumhub/core/internal/pkg/markdown"
	"github.com/forumhub/core/internal/pkg/pagination"
	"github.com/forumhub/core/internal/pkg/response"
	"github.com/forumhub/core/internal/pkg/slug"
	"gorm.io/gorm"
)

// Content is everything about a page a writer controls.
type Content struct {
	PageType   models.PageType
	CategoryID int64
	AuthorID   int64
	Title      string
	Body       string
}

// Hash identifies Content; equal hashes mean nothing to save.
func (c Content) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%d\x00%d\x00%d\x00%s\x00%s", c.PageType, c.CategoryID, c.AuthorID, c.Title, c.Body)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalPath is "/-<id>/<slug>", or "/-<id>" for an empty slug.
func CanonicalPath(id int64, pageSlug string) string {
	p := "/-" + strconv.FormatInt(id, 10)
	if pageSlug != "" {
		p += "/" + pageSlug
	}
	return p
}

// IDPath is the slug-free path emails link to; it stays valid across renames.
func IDPath(id int64) string {
	return CanonicalPath(id, "")
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// WithTx returns a Service whose queries run in tx.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx}
}

func (s *Service) first(ctx context.Context, query string, args ...interface{}) (*models.PageModel, error) {
	var p models.PageModel
	if err := s.db.WithContext(ctx).Where(query, args...).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) GetByID(ctx context.Context, siteID, id int64) (*models.PageModel, error) {
	return s.first(ctx, "site_id = ? AND id = ?", siteID, id)
}

func (s *Service) GetByExtID(ctx context.Context, siteID int64, extID string) (*models.PageModel, error) {
	return s.first(ctx, "site_id = ? AND ext_id = ?", siteID, extID)
}

// Create inserts a page with the next free page id of the site. A taken
// ext id yields a conflict error.
func (s *Service) Create(ctx context.Context, siteID int64, extID *string, content Content) (*models.PageModel, error) {
	bodyHTML, err := markdown.ToHTML(content.Body)
	if err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}

	var created *models.PageModel
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := allocatePageID(tx, siteID)
		if err != nil {
			return err
		}
		p := &models.PageModel{
			SiteID:      siteID,
			ID:          id,
			ExtID:       extID,
			PageType:    content.PageType,
			CategoryID:  content.CategoryID,
			AuthorID:    content.AuthorID,
			Title:       content.Title,
			Body:        content.Body,
			BodyHTML:    bodyHTML,
			Slug:        slug.Make(content.Title),
			ContentHash: content.Hash(),
			Version:     1,
		}
		if err := tx.Create(p).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return apperr.Conflict("extId", "a page with ext id %q already exists", derefOr(extID, ""))
			}
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// allocatePageID bumps the site's page id counter. The UPDATE row-locks the
// site until tx ends, so concurrent creators get distinct ids.
func allocatePageID(tx *gorm.DB, siteID int64) (int64, error) {
	res := tx.Model(&models.SiteModel{}).
		Where("id = ?", siteID).
		UpdateColumn("next_page_id", gorm.Expr("next_page_id + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("allocate page id: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, apperr.NotFound("site %d not found", siteID)
	}
	var site models.SiteModel
	if err := tx.Select("next_page_id").First(&site, "id = ?", siteID).Error; err != nil {
		return 0, fmt.Errorf("read page id: %w", err)
	}
	return site.NextPageID, nil
}

// Update saves content onto p in place. It reports false, and writes
// nothing, when content equals what p already holds.
func (s *Service) Update(ctx context.Context, p *models.PageModel, content Content) (bool, error) {
	hash := content.Hash()
	if hash == p.ContentHash {
		return false, nil
	}
	bodyHTML, err := markdown.ToHTML(content.Body)
	if err != nil {
		return false, fmt.Errorf("render body: %w", err)
	}

	newSlug := slug.Make(content.Title)
	err = s.db.WithContext(ctx).Model(&models.PageModel{}).
		Where("site_id = ? AND id = ?", p.SiteID, p.ID).
		Updates(map[string]interface{}{
			"page_type":    content.PageType,
			"category_id":  content.CategoryID,
			"author_id":    content.AuthorID,
			"title":        content.Title,
			"body":         content.Body,
			"body_html":    bodyHTML,
			"slug":         newSlug,
			"content_hash": hash,
			"version":      gorm.Expr("version + 1"),
		}).Error
	if err != nil {
		return false, err
	}

	p.PageType = content.PageType
	p.CategoryID = content.CategoryID
	p.AuthorID = content.AuthorID
	p.Title = content.Title
	p.Body = content.Body
	p.BodyHTML = bodyHTML
	p.Slug = newSlug
	p.ContentHash = hash
	p.Version++
	return true, nil
}

// ListByCategory returns a category's pages, newest first.
func (s *Service) ListByCategory(ctx context.Context, siteID, categoryID int64, q pagination.Query) ([]models.PageModel, response.Pagination, error) {
	var pages []models.PageModel
	db := s.db.WithContext(ctx).Model(&models.PageModel{}).
		Where("site_id = ? AND category_id = ?", siteID, categoryID).
		Order("created_at DESC, id DESC")
	pg, err := pagination.Paginate(db, q, &pages)
	return pages, pg, err
}

// AddReply appends a post to a page and returns it with its number.
func (s *Service) AddReply(ctx context.Context, siteID, pageID, authorID int64, body string) (*models.PostModel, error) {
	bodyHTML, err := markdown.ToHTML(body)
	if err != nil {
		return nil, fmt.Errorf("render reply: %w", err)
	}

	var post *models.PostModel
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Bumping the page row serializes concurrent repliers.
		res := tx.Model(&models.PageModel{}).
			Where("site_id = ? AND id = ?", siteID, pageID).
			UpdateColumn("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("page %d not found", pageID)
		}

		var maxNr int
		if err := tx.Model(&models.PostModel{}).
			Where("site_id = ? AND page_id = ?", siteID, pageID).
			Select("COALESCE(MAX(nr), 0)").Scan(&maxNr).Error; err != nil {
			return err
		}
		nr := models.FirstReplyNr
		if maxNr >= nr {
			nr = maxNr + 1
		}

		post = &models.PostModel{
			SiteID:   siteID,
			PageID:   pageID,
			Nr:       nr,
			AuthorID: authorID,
			Body:     body,
			BodyHTML: bodyHTML,
		}
		return tx.Create(post).Error
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// LatestByAuthor returns the most recently created page of authorID, or nil.
func (s *Service) LatestByAuthor(ctx context.Context, siteID, authorID int64) (*models.PageModel, error) {
	var p models.PageModel
	err := s.db.WithContext(ctx).
		Where("site_id = ? AND author_id = ?", siteID, authorID).
		Order("created_at DESC, id DESC").
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) ListReplies(ctx context.Context, siteID, pageID int64) ([]models.PostModel, error) {
	var posts []models.PostModel
	return posts, s.db.WithContext(ctx).
		Where("site_id = ? AND page_id = ?", siteID, pageID).
		Order("nr ASC").
		Find(&posts).Error
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
