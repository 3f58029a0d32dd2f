package upsert

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/forumhub/core/internal/database/dbtest"
	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/modules/category"
	"github.com/forumhub/core/internal/modules/fanout"
	"github.com/forumhub/core/internal/modules/member"
	"github.com/forumhub/core/internal/modules/page"
	"github.com/forumhub/core/internal/modules/site/sitetest"
	"github.com/forumhub/core/internal/pkg/apperr"
	"github.com/forumhub/core/internal/pkg/keylock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []fanout.PageCreatedEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev fanout.PageCreatedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type fixture struct {
	db       *gorm.DB
	site     *models.SiteModel
	svc      *Service
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	db := dbtest.Open(t)
	st := sitetest.Import(t, db)
	cats := category.NewService(db)
	_, err := cats.SetExtID(context.Background(), st.ID, sitetest.CategoryAID, "cat_ext_id")
	require.NoError(t, err)

	n := &recordingNotifier{}
	svc := NewService(db, page.NewService(db), cats, member.NewService(db), keylock.NewLocal(), n, ServiceOptions{MaxPages: 5})
	return &fixture{db: db, site: st, svc: svc, notifier: n}
}

func pageOne() PageInput {
	return PageInput{
		ExtID:       "ups_page_one_ext_id",
		PageType:    models.PageTypeIdea,
		CategoryRef: "extid:cat_ext_id",
		AuthorRef:   "username:corax",
		Title:       "UpsPageOneTitle",
		Body:        "UpsPageOneBody",
	}
}

func notifying(pages ...PageInput) Request {
	return Request{UpsertOptions: Options{SendNotifications: true}, Pages: pages}
}

func (f *fixture) pageCount(t *testing.T) int64 {
	var n int64
	require.NoError(t, f.db.Model(&models.PageModel{}).Where("site_id = ?", f.site.ID).Count(&n).Error)
	return n
}

func TestUpsertCreatesThenIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(pageOne()))
	require.NoError(t, err)
	require.Len(t, resp.Pages, 1)
	got := resp.Pages[0]
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, "/-1/upspageonetitle", got.URLPaths.Canonical)
	assert.Equal(t, models.PageTypeIdea, got.PageType)
	assert.Equal(t, sitetest.CategoryAID, got.CategoryID)
	assert.Equal(t, sitetest.CoraxID, got.AuthorID)
	assert.True(t, got.Created)
	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, fanout.PageCreatedEvent{
		SiteID: sitetest.SiteID, PageID: 1, PageType: models.PageTypeIdea, CategoryID: sitetest.CategoryAID,
		AuthorID: sitetest.CoraxID, Title: "UpsPageOneTitle", Body: "UpsPageOneBody",
	}, f.notifier.events[0])

	again, err := f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(pageOne()))
	require.NoError(t, err)
	assert.Equal(t, "1", again.Pages[0].ID)
	assert.False(t, again.Pages[0].Created)
	assert.False(t, again.Pages[0].Changed)
	assert.Equal(t, 1, again.Pages[0].Version)
	assert.Equal(t, 1, f.notifier.count(), "re-submitting must not notify again")
	assert.Equal(t, int64(1), f.pageCount(t))
}

func TestUpsertShortTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := category.NewService(f.db).SetExtID(ctx, f.site.ID, sitetest.CategoryBID, "catA")
	require.NoError(t, err)

	in := PageInput{ExtID: "p1", CategoryRef: "extid:catA", AuthorRef: "username:corax", Title: "T", Body: "B"}
	resp, err := f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(in))
	require.NoError(t, err)
	assert.Equal(t, "1", resp.Pages[0].ID)
	assert.Equal(t, "/-1/t", resp.Pages[0].URLPaths.Canonical)
	assert.Equal(t, models.PageTypeDiscussion, resp.Pages[0].PageType)

	resp, err = f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(in))
	require.NoError(t, err)
	assert.Equal(t, "1", resp.Pages[0].ID)
	assert.Equal(t, 1, f.notifier.count())
}

func TestUpsertUpdatesChangedContentWithoutNotifying(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(pageOne()))
	require.NoError(t, err)

	edited := pageOne()
	edited.Title = "Edited Title"
	edited.CategoryRef = fmt.Sprint(sitetest.CategoryBID)
	resp, err := f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(edited))
	require.NoError(t, err)
	got := resp.Pages[0]
	assert.Equal(t, "1", got.ID)
	assert.False(t, got.Created)
	assert.True(t, got.Changed)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "/-1/edited-title", got.URLPaths.Canonical)
	assert.Equal(t, sitetest.CategoryBID, got.CategoryID)
	assert.Equal(t, 1, f.notifier.count())
}

func TestUpsertPreservesRequestOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing := pageOne()
	existing.ExtID = "b"
	_, err := f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(existing))
	require.NoError(t, err)

	var batch []PageInput
	for _, ext := range []string{"c", "b", "a"} {
		in := pageOne()
		in.ExtID = ext
		in.Title = "Title " + ext
		batch = append(batch, in)
	}
	resp, err := f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(batch...))
	require.NoError(t, err)
	require.Len(t, resp.Pages, 3)
	for i, ext := range []string{"c", "b", "a"} {
		require.NotNil(t, resp.Pages[i].ExtID)
		assert.Equal(t, ext, *resp.Pages[i].ExtID)
		assert.Equal(t, "Title "+ext, resp.Pages[i].Title)
	}
	assert.Equal(t, "2", resp.Pages[0].ID)
	assert.Equal(t, "1", resp.Pages[1].ID)
	assert.Equal(t, "3", resp.Pages[2].ID)
	assert.Equal(t, 3, f.notifier.count())
}

func TestUpsertResolutionFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	good := pageOne()
	bad := pageOne()
	bad.ExtID = "second"
	bad.AuthorRef = "username:nobody"

	_, err := f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(good, bad))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindResolution))
	assert.Contains(t, err.Error(), "pages[1].authorRef")
	assert.Contains(t, err.Error(), "username:nobody")
	assert.Zero(t, f.pageCount(t))
	assert.Zero(t, f.notifier.count())

	var st models.SiteModel
	require.NoError(t, f.db.First(&st, f.site.ID).Error)
	assert.Zero(t, st.NextPageID, "the page id counter rolls back too")

	badCat := pageOne()
	badCat.CategoryRef = "extid:no_such_cat"
	_, err = f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(badCat))
	assert.True(t, apperr.Is(err, apperr.KindResolution))

	memberByExtID := pageOne()
	memberByExtID.AuthorRef = "extid:corax"
	_, err = f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(memberByExtID))
	assert.True(t, apperr.Is(err, apperr.KindResolution))
}

func TestUpsertValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mutate := func(fn func(*PageInput)) PageInput {
		in := pageOne()
		fn(&in)
		return in
	}
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"no pages", Request{}, "pages"},
		{"too many pages", Request{Pages: make([]PageInput, 6)}, "pages"},
		{"missing ext id", notifying(mutate(func(in *PageInput) { in.ExtID = " " })), "pages[0].extId"},
		{"duplicate ext id", notifying(pageOne(), pageOne()), "pages[1].extId"},
		{"section page type", notifying(mutate(func(in *PageInput) { in.PageType = models.PageTypeForum })), "pages[0].pageType"},
		{"unknown page type", notifying(mutate(func(in *PageInput) { in.PageType = 99 })), "pages[0].pageType"},
		{"missing title", notifying(mutate(func(in *PageInput) { in.Title = "" })), "pages[0].title"},
		{"missing body", notifying(mutate(func(in *PageInput) { in.Body = "\n" })), "pages[0].body"},
		{"empty category ref", notifying(mutate(func(in *PageInput) { in.CategoryRef = "" })), "pages[0].categoryRef"},
		{"malformed author ref", notifying(mutate(func(in *PageInput) { in.AuthorRef = "corax" })), "pages[0].authorRef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Upsert(ctx, f.site, models.SysbotUserID, tt.req)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation), err.Error())
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
	assert.Zero(t, f.pageCount(t))
}

func TestUpsertOnBehalfOfOthersNeedsSysbot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, f.site, sitetest.MajaID, notifying(pageOne()))
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	resp, err := f.svc.Upsert(ctx, f.site, sitetest.CoraxID, notifying(pageOne()))
	require.NoError(t, err)
	assert.True(t, resp.Pages[0].Created)
}

func TestUpsertOmittedPageTypeKeepsExistingType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(pageOne()))
	require.NoError(t, err)

	in := pageOne()
	in.PageType = 0
	resp, err := f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(in))
	require.NoError(t, err)
	assert.Equal(t, models.PageTypeIdea, resp.Pages[0].PageType)
	assert.False(t, resp.Pages[0].Changed)
}

func TestUpsertCannotTakeOverAnotherMembersPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(pageOne()))
	require.NoError(t, err)

	hijack := pageOne()
	hijack.AuthorRef = "username:maja"
	hijack.Title = "Hijacked"
	_, err = f.svc.Upsert(ctx, f.site, sitetest.MajaID, notifying(hijack))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindForbidden), err.Error())

	p, err := page.NewService(f.db).GetByExtID(ctx, f.site.ID, "ups_page_one_ext_id")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, sitetest.CoraxID, p.AuthorID)
	assert.Equal(t, "UpsPageOneTitle", p.Title)

	// The author may still edit their own page.
	own := pageOne()
	own.Title = "Edited By Corax"
	resp, err := f.svc.Upsert(ctx, f.site, sitetest.CoraxID, notifying(own))
	require.NoError(t, err)
	assert.True(t, resp.Pages[0].Changed)
}

func TestUpsertWithoutNotifications(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Upsert(context.Background(), f.site, models.SysbotUserID, Request{Pages: []PageInput{pageOne()}})
	require.NoError(t, err)
	assert.Zero(t, f.notifier.count())
}

func TestConcurrentUpsertsOfOneExtIDCreateOnePage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.svc.Upsert(ctx, f.site, models.SysbotUserID, notifying(pageOne()))
			errs[i] = err
			if err == nil {
				ids[i] = resp.Pages[0].ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "1", ids[i])
	}
	assert.Equal(t, int64(1), f.pageCount(t))
	assert.Equal(t, 1, f.notifier.count())
}
