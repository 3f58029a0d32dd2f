package upsert

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/modules/category"
	"github.com/forumhub/core/internal/modules/fanout"
	"github.com/forumhub/core/internal/modules/member"
	"github.com/forumhub/core/internal/modules/page"
	"github.com/forumhub/core/internal/pkg/apperr"
	"github.com/forumhub/core/internal/pkg/keylock"
	"github.com/forumhub/core/internal/pkg/ref"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultMaxPages = 100
	maxExtIDLen     = 128
	maxTitleLen     = 200
)

// defaultPageType applies to new pages sent without a pageType.
const defaultPageType = models.PageTypeDiscussion

// Notifier receives page creations once they are committed.
type Notifier interface {
	Notify(ctx context.Context, ev fanout.PageCreatedEvent) error
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	MaxPages int
	Logger   *zap.Logger
}

type Service struct {
	db         *gorm.DB
	pages      *page.Service
	categories *category.Service
	members    *member.Service
	locks      keylock.Locker
	notifier   Notifier
	maxPages   int
	logger     *zap.Logger
}

func NewService(db *gorm.DB, pages *page.Service, categories *category.Service, members *member.Service, locks keylock.Locker, notifier Notifier, opts ServiceOptions) *Service {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		db:         db,
		pages:      pages,
		categories: categories,
		members:    members,
		locks:      locks,
		notifier:   notifier,
		maxPages:   opts.MaxPages,
		logger:     opts.Logger.Named("upsert"),
	}
}

// parsedInput is a PageInput whose refs have been parsed but not resolved.
type parsedInput struct {
	PageInput
	categoryRef ref.Ref
	authorRef   ref.Ref
	// typeGiven is false when the caller left pageType out.
	typeGiven bool
}

// validate checks the batch without touching storage.
func (s *Service) validate(req *Request) ([]parsedInput, error) {
	if len(req.Pages) == 0 {
		return nil, apperr.Validation("pages", "no pages to upsert")
	}
	if len(req.Pages) > s.maxPages {
		return nil, apperr.Validation("pages", "at most %d pages per request, got %d", s.maxPages, len(req.Pages))
	}

	out := make([]parsedInput, len(req.Pages))
	seen := make(map[string]int, len(req.Pages))
	for i, in := range req.Pages {
		field := func(name string) string { return fmt.Sprintf("pages[%d].%s", i, name) }

		in.ExtID = strings.TrimSpace(in.ExtID)
		in.Title = strings.TrimSpace(in.Title)
		switch {
		case in.ExtID == "":
			return nil, apperr.Validation(field("extId"), "required")
		case len(in.ExtID) > maxExtIDLen:
			return nil, apperr.Validation(field("extId"), "longer than %d characters", maxExtIDLen)
		}
		if prev, dup := seen[in.ExtID]; dup {
			return nil, apperr.Validation(field("extId"), "%q also used by pages[%d]", in.ExtID, prev)
		}
		seen[in.ExtID] = i

		typeGiven := in.PageType != 0
		if !typeGiven {
			in.PageType = defaultPageType
		}
		if !in.PageType.Valid() || !in.PageType.IsTopic() {
			return nil, apperr.Validation(field("pageType"), "cannot upsert pages of type %d", in.PageType)
		}
		if in.Title == "" {
			return nil, apperr.Validation(field("title"), "required")
		}
		if utf8.RuneCountInString(in.Title) > maxTitleLen {
			return nil, apperr.Validation(field("title"), "longer than %d characters", maxTitleLen)
		}
		if strings.TrimSpace(in.Body) == "" {
			return nil, apperr.Validation(field("body"), "required")
		}

		catRef, err := ref.Parse(field("categoryRef"), in.CategoryRef)
		if err != nil {
			return nil, err
		}
		authorRef, err := ref.Parse(field("authorRef"), in.AuthorRef)
		if err != nil {
			return nil, err
		}
		out[i] = parsedInput{PageInput: in, categoryRef: catRef, authorRef: authorRef, typeGiven: typeGiven}
	}
	return out, nil
}

func lockKey(siteID int64, extID string) string {
	return "page-ext:" + strconv.FormatInt(siteID, 10) + ":" + extID
}

// Upsert creates or updates every page of req in one transaction, keyed by
// ext id, and returns them in request order. Either all pages are stored or
// none is. Created pages are handed to the notifier after commit when the
// request asks for notifications.
func (s *Service) Upsert(ctx context.Context, site *models.SiteModel, requesterID int64, req Request) (*Response, error) {
	inputs, err := s.validate(&req)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(inputs))
	for i, in := range inputs {
		keys[i] = lockKey(site.ID, in.ExtID)
	}
	unlock, err := keylock.LockAll(ctx, s.locks, keys)
	if err != nil {
		return nil, fmt.Errorf("lock ext ids: %w", err)
	}
	defer unlock()

	results := make([]PageResult, len(inputs))
	var created []fanout.PageCreatedEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pages := s.pages.WithTx(tx)
		cats := s.categories.WithTx(tx)
		members := s.members.WithTx(tx)
		created = created[:0]

		for i, in := range inputs {
			cat, err := cats.Resolve(ctx, site.ID, in.categoryRef, fmt.Sprintf("pages[%d].categoryRef", i))
			if err != nil {
				return err
			}
			author, err := members.Resolve(ctx, site.ID, in.authorRef, fmt.Sprintf("pages[%d].authorRef", i))
			if err != nil {
				return err
			}
			if author.ID != requesterID && requesterID != models.SysbotUserID {
				return apperr.Forbidden("pages[%d]: only the sysbot may post as another member", i)
			}

			content := page.Content{
				PageType:   in.PageType,
				CategoryID: cat.ID,
				AuthorID:   author.ID,
				Title:      in.Title,
				Body:       in.Body,
			}
			existing, err := pages.GetByExtID(ctx, site.ID, in.ExtID)
			if err != nil {
				return err
			}
			if existing != nil {
				if requesterID != models.SysbotUserID && existing.AuthorID != requesterID {
					return apperr.Forbidden("pages[%d]: page %d belongs to another member", i, existing.ID)
				}
				if !in.typeGiven {
					content.PageType = existing.PageType
				}
				changed, err := pages.Update(ctx, existing, content)
				if err != nil {
					return err
				}
				results[i] = PageResult{View: page.ToView(existing), Changed: changed}
				continue
			}

			extID := in.ExtID
			p, err := pages.Create(ctx, site.ID, &extID, content)
			if err != nil {
				return err
			}
			results[i] = PageResult{View: page.ToView(p), Created: true, Changed: true}
			created = append(created, fanout.PageCreatedEvent{
				SiteID:     site.ID,
				PageID:     p.ID,
				PageType:   p.PageType,
				CategoryID: p.CategoryID,
				AuthorID:   p.AuthorID,
				Title:      p.Title,
				Body:       p.Body,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("upserted",
		zap.Int64("site_id", site.ID),
		zap.Int64("requester_id", requesterID),
		zap.Int("pages", len(results)),
		zap.Int("created", len(created)))

	if req.UpsertOptions.SendNotifications && s.notifier != nil {
		for _, ev := range created {
			// The pages are committed; a lost notification is logged, not returned.
			if err := s.notifier.Notify(ctx, ev); err != nil {
				s.logger.Error("notify failed", zap.Int64("site_id", ev.SiteID), zap.Int64("page_id", ev.PageID), zap.Error(err))
			}
		}
	}
	return &Response{Pages: results}, nil
}
