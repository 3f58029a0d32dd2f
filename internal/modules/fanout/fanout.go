package fanout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/modules/emails"
	"github.com/forumhub/core/internal/modules/member"
	"github.com/forumhub/core/internal/modules/notfprefs"
	"github.com/forumhub/core/internal/modules/page"
	"github.com/forumhub/core/internal/modules/site"
	"github.com/forumhub/core/internal/pkg/mail"
	"github.com/forumhub/core/internal/pkg/markdown"
	"github.com/forumhub/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

const (
	TaskPageCreated = "page.created"

	excerptRunes   = 300
	processTimeout = time.Minute
)

// PageCreatedEvent describes a newly created page. It is queued as JSON.
type PageCreatedEvent struct {
	SiteID     int64           `json:"siteId"`
	PageID     int64           `json:"pageId"`
	PageType   models.PageType `json:"pageType"`
	CategoryID int64           `json:"categoryId"`
	AuthorID   int64           `json:"authorId"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
}

// Recipient is a member to notify and the preference scope that matched.
type Recipient struct {
	MemberID int64
	Scope    notfprefs.Scope
}

// SelectRecipients returns who should hear about ev, ascending by member id.
func SelectRecipients(prefs []models.PageNotfPrefModel, ev PageCreatedEvent) []int64 {
	rs := selectRecipients(prefs, ev)
	ids := make([]int64, len(rs))
	for i, r := range rs {
		ids[i] = r.MemberID
	}
	return ids
}

// selectRecipients takes the union of site-wide and category preferences at
// the new-topics level or above, without the author. A member matched by
// both scopes keeps the site-wide one.
func selectRecipients(prefs []models.PageNotfPrefModel, ev PageCreatedEvent) []Recipient {
	byMember := make(map[int64]notfprefs.Scope)
	for _, p := range prefs {
		if p.SiteID != ev.SiteID || p.MemberID == ev.AuthorID || !p.NotfLevel.WantsNewTopics() {
			continue
		}
		scope := notfprefs.ScopeOf(p)
		if !scope.IsWholeSite() && scope.CategoryID != ev.CategoryID {
			continue
		}
		if prev, ok := byMember[p.MemberID]; ok && prev.IsWholeSite() {
			continue
		}
		byMember[p.MemberID] = scope
	}
	out := make([]Recipient, 0, len(byMember))
	for id, scope := range byMember {
		out = append(out, Recipient{MemberID: id, Scope: scope})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out
}

type Service struct {
	sites   *site.Service
	members *member.Service
	prefs   *notfprefs.Service
	outbox  *emails.Service
	queue   taskqueue.Queue
	logger  *zap.Logger
}

func NewService(sites *site.Service, members *member.Service, prefs *notfprefs.Service, outbox *emails.Service, queue taskqueue.Queue, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sites:   sites,
		members: members,
		prefs:   prefs,
		outbox:  outbox,
		queue:   queue,
		logger:  logger.Named("fanout"),
	}
}

// Notify queues ev for the workers. It does not wait for delivery.
func (s *Service) Notify(ctx context.Context, ev PageCreatedEvent) error {
	task, err := s.queue.Enqueue(ctx, TaskPageCreated, ev)
	if err != nil {
		return fmt.Errorf("enqueue page %d: %w", ev.PageID, err)
	}
	s.logger.Debug("queued", zap.String("task_id", task.ID), zap.Int64("site_id", ev.SiteID), zap.Int64("page_id", ev.PageID))
	return nil
}

// Run consumes the queue until ctx is done.
func (s *Service) Run(ctx context.Context) {
	for {
		task, err := s.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if task == nil {
			continue
		}
		s.handle(ctx, task)
	}
}

func (s *Service) handle(ctx context.Context, task *taskqueue.Task) {
	if task.Type != TaskPageCreated {
		s.logger.Warn("unknown task type", zap.String("type", task.Type), zap.String("task_id", task.ID))
		return
	}
	var ev PageCreatedEvent
	if err := task.Decode(&ev); err != nil {
		s.logger.Error("bad task payload", zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	pctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()
	sent, err := s.Process(pctx, ev)
	if err != nil {
		s.logger.Error("fan-out failed", zap.Int64("site_id", ev.SiteID), zap.Int64("page_id", ev.PageID), zap.Error(err))
		return
	}
	s.logger.Info("fan-out done", zap.Int64("site_id", ev.SiteID), zap.Int64("page_id", ev.PageID), zap.Int("emails", sent))
}

// Process records and sends one email per recipient of ev and returns how
// many were recorded. Members already emailed about the page are skipped, so
// a redelivered event notifies nobody twice. Send failures stay in the
// outbox for retry and are not returned.
func (s *Service) Process(ctx context.Context, ev PageCreatedEvent) (int, error) {
	st, err := s.sites.GetByID(ctx, ev.SiteID)
	if err != nil {
		return 0, err
	}
	if st == nil {
		return 0, fmt.Errorf("site %d not found", ev.SiteID)
	}
	prefs, err := s.prefs.ListForNewTopic(ctx, ev.SiteID, ev.CategoryID)
	if err != nil {
		return 0, err
	}
	recipients := selectRecipients(prefs, ev)
	if len(recipients) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(recipients))
	for i, r := range recipients {
		ids[i] = r.MemberID
	}
	members, err := s.members.ListByIDs(ctx, ev.SiteID, append(ids, ev.AuthorID))
	if err != nil {
		return 0, err
	}
	byID := make(map[int64]models.MemberModel, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	authorName := byID[ev.AuthorID].Username

	recorded := 0
	var errs []error
	for _, r := range recipients {
		m, ok := byID[r.MemberID]
		if !ok || m.EmailAddr == "" {
			s.logger.Debug("skip recipient without address", zap.Int64("member_id", r.MemberID))
			continue
		}
		done, err := s.outbox.Exists(ctx, ev.SiteID, ev.PageID, m.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			continue
		}
		email, err := s.buildEmail(st, m, r.Scope, authorName, ev)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.outbox.Record(ctx, email); err != nil {
			// Another worker got there first.
			if !errors.Is(err, emails.ErrAlreadyRecorded) {
				errs = append(errs, err)
			}
			continue
		}
		recorded++
		// Failures are kept in the outbox for the retry job.
		_ = s.outbox.Deliver(ctx, email)
	}
	return recorded, errors.Join(errs...)
}

func (s *Service) buildEmail(st *models.SiteModel, m models.MemberModel, scope notfprefs.Scope, authorName string, ev PageCreatedEvent) (*models.SentEmailModel, error) {
	token, err := notfprefs.UnsubscribeToken(st.ID, m.ID, scope)
	if err != nil {
		return nil, fmt.Errorf("sign unsubscribe token: %w", err)
	}
	bodyHTML, err := markdown.ToHTML(ev.Body)
	if err != nil {
		return nil, err
	}
	subject, html, err := mail.RenderNewTopic(mail.NewTopicData{
		SiteName:          st.Name,
		RecipientUsername: m.Username,
		AuthorUsername:    authorName,
		Title:             ev.Title,
		Excerpt:           markdown.Excerpt(bodyHTML, excerptRunes),
		PageURL:           st.Origin + page.IDPath(ev.PageID),
		UnsubscribeURL:    st.Origin + "/-/v0/unsubscribe?token=" + url.QueryEscape(token),
	})
	if err != nil {
		return nil, fmt.Errorf("render email: %w", err)
	}
	return &models.SentEmailModel{
		SiteID:     st.ID,
		ToMemberID: m.ID,
		ToAddress:  m.EmailAddr,
		PageID:     ev.PageID,
		Subject:    subject,
		BodyHTML:   html,
	}, nil
}
