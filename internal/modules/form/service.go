package form

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/modules/category"
	"github.com/forumhub/core/internal/modules/fanout"
	"github.com/forumhub/core/internal/modules/page"
	"github.com/forumhub/core/internal/pkg/apperr"
	"go.uber.org/zap"
)

const (
	FieldDoWhat       = "doWhat"
	FieldCategorySlug = "categorySlug"
	FieldTitle        = "title"
	FieldPageTypeID   = "pageTypeId"
	FieldPageID       = "pageId"
	FieldWebsite      = "websiteAddress"

	RedirToMyLastTopic = "/-/redir-to-my-last-topic"
	ThanksHTML         = `<p class="esFormThanks">Thank you.</p>`

	LoginReasonSignUp = "SignUp"

	defaultUtxCategorySlug = "usability-testing"
)

// Fields that steer the dispatcher and are not copied into page bodies.
var controlFields = map[string]bool{
	FieldDoWhat:       true,
	FieldCategorySlug: true,
	FieldTitle:        true,
	FieldPageTypeID:   true,
	FieldPageID:       true,
}

type OutcomeKind string

const (
	OutcomePageCreated   OutcomeKind = "pageCreated"
	OutcomeLoginRequired OutcomeKind = "loginRequired"
	OutcomeRedirect      OutcomeKind = "redirect"
	OutcomeReplaceForm   OutcomeKind = "replaceForm"
)

// Outcome tells the client what to do after a submission.
type Outcome struct {
	Kind               OutcomeKind `json:"kind"`
	Action             string      `json:"action"`
	PageID             string      `json:"pageId,omitempty"`
	URLPath            string      `json:"urlPath,omitempty"`
	PostNr             int         `json:"postNr,omitempty"`
	LoginReason        string      `json:"loginReason,omitempty"`
	AfterLoginRedirect string      `json:"afterLoginRedirect,omitempty"`
	RedirectTo         string      `json:"redirectTo,omitempty"`
	HTML               string      `json:"html,omitempty"`
}

// Submission is one posted custom form.
type Submission struct {
	Fields url.Values
	// RequesterID is set when Authenticated.
	RequesterID   int64
	Authenticated bool
}

func (sub Submission) authorID() int64 {
	if sub.Authenticated {
		return sub.RequesterID
	}
	return models.UnknownUserID
}

// Notifier receives pages created from forms.
type Notifier interface {
	Notify(ctx context.Context, ev fanout.PageCreatedEvent) error
}

type handlerFunc func(s *Service, ctx context.Context, site *models.SiteModel, sub Submission) (*Outcome, error)

// handlers has exactly one entry per Action.
var handlers = [numActions]handlerFunc{
	ActionCreateTopic:      (*Service).createTopic,
	ActionSignUp:           (*Service).signUp,
	ActionSignUpSubmitUtx:  (*Service).signUpSubmitUtx,
	ActionSubmitToThisPage: (*Service).submitToThisPage,
}

type Service struct {
	pages      *page.Service
	categories *category.Service
	notifier   Notifier
	logger     *zap.Logger
}

func NewService(pages *page.Service, categories *category.Service, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{pages: pages, categories: categories, notifier: notifier, logger: logger.Named("form")}
}

// Submit runs the one handler selected by the doWhat field. A submission
// without doWhat is not a custom form.
func (s *Service) Submit(ctx context.Context, site *models.SiteModel, sub Submission) (*Outcome, error) {
	if _, ok := sub.Fields[FieldDoWhat]; !ok {
		return nil, apperr.Validation(FieldDoWhat, "missing, not a custom form")
	}
	action, err := ParseAction(sub.Fields.Get(FieldDoWhat))
	if err != nil {
		return nil, err
	}
	out, err := handlers[action](s, ctx, site, sub)
	if err != nil {
		return nil, err
	}
	out.Action = action.String()
	return out, nil
}

func (s *Service) createTopic(ctx context.Context, site *models.SiteModel, sub Submission) (*Outcome, error) {
	catSlug := strings.TrimSpace(sub.Fields.Get(FieldCategorySlug))
	if catSlug == "" {
		return nil, apperr.Validation(FieldCategorySlug, "required")
	}
	title := strings.TrimSpace(sub.Fields.Get(FieldTitle))
	if title == "" {
		return nil, apperr.Validation(FieldTitle, "required")
	}
	pageType := models.PageTypeDiscussion
	if raw := strings.TrimSpace(sub.Fields.Get(FieldPageTypeID)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !models.PageType(n).IsTopic() {
			return nil, apperr.Validation(FieldPageTypeID, "not a topic page type: %q", raw)
		}
		pageType = models.PageType(n)
	}
	return s.createPage(ctx, site, sub, catSlug, pageType, title)
}

func (s *Service) signUp(_ context.Context, _ *models.SiteModel, _ Submission) (*Outcome, error) {
	return &Outcome{Kind: OutcomeLoginRequired, LoginReason: LoginReasonSignUp}, nil
}

// signUpSubmitUtx asks for a usability test of the submitter's website. The
// submitter must be logged in and is then sent to the new topic.
func (s *Service) signUpSubmitUtx(ctx context.Context, site *models.SiteModel, sub Submission) (*Outcome, error) {
	if !sub.Authenticated {
		return &Outcome{
			Kind:               OutcomeLoginRequired,
			LoginReason:        LoginReasonSignUp,
			AfterLoginRedirect: RedirToMyLastTopic,
		}, nil
	}
	catSlug := strings.TrimSpace(sub.Fields.Get(FieldCategorySlug))
	if catSlug == "" {
		catSlug = defaultUtxCategorySlug
	}
	title := "Usability testing request"
	if website := strings.TrimSpace(sub.Fields.Get(FieldWebsite)); website != "" {
		title = "Usability testing: " + website
	}
	out, err := s.createPage(ctx, site, sub, catSlug, models.PageTypeUsabilityTesting, title)
	if err != nil {
		return nil, err
	}
	out.Kind = OutcomeRedirect
	out.RedirectTo = RedirToMyLastTopic
	return out, nil
}

func (s *Service) submitToThisPage(ctx context.Context, site *models.SiteModel, sub Submission) (*Outcome, error) {
	raw := strings.TrimSpace(sub.Fields.Get(FieldPageID))
	pageID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || pageID <= 0 {
		return nil, apperr.Validation(FieldPageID, "not a page id: %q", raw)
	}
	post, err := s.pages.AddReply(ctx, site.ID, pageID, sub.authorID(), FormatFields(sub.Fields))
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Kind:   OutcomeReplaceForm,
		PageID: strconv.FormatInt(pageID, 10),
		PostNr: post.Nr,
		HTML:   ThanksHTML,
	}, nil
}

func (s *Service) createPage(ctx context.Context, site *models.SiteModel, sub Submission, catSlug string, pageType models.PageType, title string) (*Outcome, error) {
	cat, err := s.categories.GetBySlug(ctx, site.ID, catSlug)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, apperr.Resolution(FieldCategorySlug, "no category with slug %q", catSlug)
	}

	p, err := s.pages.Create(ctx, site.ID, nil, page.Content{
		PageType:   pageType,
		CategoryID: cat.ID,
		AuthorID:   sub.authorID(),
		Title:      title,
		Body:       FormatFields(sub.Fields),
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		ev := fanout.PageCreatedEvent{
			SiteID:     site.ID,
			PageID:     p.ID,
			PageType:   p.PageType,
			CategoryID: p.CategoryID,
			AuthorID:   p.AuthorID,
			Title:      p.Title,
			Body:       p.Body,
		}
		if err := s.notifier.Notify(ctx, ev); err != nil {
			s.logger.Error("notify failed", zap.Int64("site_id", site.ID), zap.Int64("page_id", p.ID), zap.Error(err))
		}
	}
	return &Outcome{
		Kind:    OutcomePageCreated,
		PageID:  strconv.FormatInt(p.ID, 10),
		URLPath: page.CanonicalPath(p.ID, p.Slug),
	}, nil
}

// FormatFields renders the non-control fields as markdown, one paragraph
// per field in name order.
func FormatFields(fields url.Values) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if !controlFields[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		values := fields[name]
		if len(values) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "**%s**: %s", name, strings.Join(values, ", "))
	}
	return b.String()
}
