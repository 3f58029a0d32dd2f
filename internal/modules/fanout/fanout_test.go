package fanout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/forumhub/core/internal/database/dbtest"
	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/modules/emails"
	"github.com/forumhub/core/internal/modules/member"
	"github.com/forumhub/core/internal/modules/notfprefs"
	"github.com/forumhub/core/internal/modules/site"
	"github.com/forumhub/core/internal/modules/site/sitetest"
	"github.com/forumhub/core/internal/pkg/mail/mailtest"
	"github.com/forumhub/core/internal/pkg/taskqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func pref(memberID int64, level models.NotfLevel, categoryID int64) models.PageNotfPrefModel {
	p := models.PageNotfPrefModel{SiteID: 1, MemberID: memberID, NotfLevel: level}
	if categoryID == 0 {
		p.WholeSite = true
	} else {
		p.CategoryID = &categoryID
	}
	p.ScopeKey = models.NotfScopeKey(p.WholeSite, p.CategoryID)
	return p
}

func TestSelectRecipients(t *testing.T) {
	ev := PageCreatedEvent{SiteID: 1, PageID: 1, CategoryID: 2, AuthorID: 101}

	tests := []struct {
		name  string
		prefs []models.PageNotfPrefModel
		want  []int64
	}{
		{
			name:  "site and category subscribers",
			prefs: []models.PageNotfPrefModel{pref(100, models.NotfLevelNewTopics, 0), pref(102, models.NotfLevelNewTopics, 2)},
			want:  []int64{100, 102},
		},
		{
			name:  "author is never notified",
			prefs: []models.PageNotfPrefModel{pref(101, models.NotfLevelEveryPost, 0), pref(101, models.NotfLevelNewTopics, 2)},
			want:  []int64{},
		},
		{
			name:  "both scopes yield one notification",
			prefs: []models.PageNotfPrefModel{pref(102, models.NotfLevelNewTopics, 2), pref(102, models.NotfLevelEveryPost, 0)},
			want:  []int64{102},
		},
		{
			name:  "levels below new topics do not match",
			prefs: []models.PageNotfPrefModel{pref(100, models.NotfLevelTracking, 0), pref(102, models.NotfLevelNormal, 2), pref(103, models.NotfLevelMuted, 2)},
			want:  []int64{},
		},
		{
			name:  "other categories do not match",
			prefs: []models.PageNotfPrefModel{pref(103, models.NotfLevelEveryPost, 3)},
			want:  []int64{},
		},
		{
			name:  "sorted ascending",
			prefs: []models.PageNotfPrefModel{pref(104, models.NotfLevelTopicSolved, 2), pref(100, models.NotfLevelTopicProgress, 0), pref(103, models.NotfLevelNewTopics, 0)},
			want:  []int64{100, 103, 104},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectRecipients(tt.prefs, ev))
		})
	}

	otherSite := pref(100, models.NotfLevelNewTopics, 0)
	otherSite.SiteID = 2
	assert.Empty(t, SelectRecipients([]models.PageNotfPrefModel{otherSite}, ev))
}

type fixture struct {
	db     *gorm.DB
	svc    *Service
	outbox *emails.Service
	rec    *mailtest.Recorder
	queue  *taskqueue.Memory
}

func newFixture(t *testing.T) *fixture {
	db := dbtest.Open(t)
	sitetest.Import(t, db)
	prefs := notfprefs.NewService(db)
	_, err := prefs.Set(context.Background(), sitetest.SiteID, sitetest.MajaID, models.NotfLevelNewTopics, notfprefs.Category(sitetest.CategoryAID))
	require.NoError(t, err)

	rec := &mailtest.Recorder{}
	outbox := emails.NewService(db, rec, nil)
	queue := taskqueue.NewMemory(8)
	svc := NewService(site.NewService(db), member.NewService(db), prefs, outbox, queue, nil)
	return &fixture{db: db, svc: svc, outbox: outbox, rec: rec, queue: queue}
}

func upsertedPageEvent() PageCreatedEvent {
	return PageCreatedEvent{
		SiteID:     sitetest.SiteID,
		PageID:     1,
		PageType:   models.PageTypeIdea,
		CategoryID: sitetest.CategoryAID,
		AuthorID:   sitetest.CoraxID,
		Title:      "UpsPageOneTitle",
		Body:       "UpsPageOneBody",
	}
}

func TestProcessSendsOneEmailPerSubscriber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.Process(ctx, upsertedPageEvent())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msgs := f.rec.Messages()
	require.Len(t, msgs, 2)
	assert.Empty(t, f.rec.SentTo("corax@example.com"))

	for _, who := range []string{"owen_owner", "maja"} {
		got := f.rec.SentTo(who + "@example.com")
		require.Len(t, got, 1, who)
		html := got[0].HTML
		assert.Contains(t, html, who)
		assert.Contains(t, html, "UpsPageOneTitle")
		assert.Contains(t, html, "UpsPageOneBody")
		assert.Contains(t, html, sitetest.Origin+"/-1")
		assert.Contains(t, html, "/-/v0/unsubscribe?token=")
		assert.Contains(t, got[0].Subject, "UpsPageOneTitle")
	}

	// A redelivered event notifies nobody again.
	n, err = f.svc.Process(ctx, upsertedPageEvent())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.rec.Messages(), 2)

	count, err := f.outbox.CountSent(ctx, sitetest.SiteID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestConcurrentProcessOfOneEventEmailsEachMemberOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 6
	counts := make([]int, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counts[i], errs[i] = f.svc.Process(ctx, upsertedPageEvent())
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		total += counts[i]
	}
	assert.Equal(t, 2, total)
	assert.Len(t, f.rec.Messages(), 2)
}

func TestProcessKeepsFailedEmailsForRetry(t *testing.T) {
	f := newFixture(t)
	f.rec.Failures = 1
	ctx := context.Background()

	n, err := f.svc.Process(ctx, upsertedPageEvent())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, f.rec.Messages(), 1)

	retried, err := f.outbox.RetryFailed(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, retried)
	assert.Len(t, f.rec.Messages(), 2)
}

func TestNotifyAndRun(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.svc.Notify(ctx, upsertedPageEvent()))
	assert.Equal(t, 1, f.queue.Len())
	assert.Empty(t, f.rec.Messages(), "Notify does not send by itself")

	done := make(chan struct{})
	go func() {
		f.svc.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(f.rec.Messages()) == 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestProcessWithoutSubscribers(t *testing.T) {
	f := newFixture(t)
	ev := upsertedPageEvent()
	ev.CategoryID = sitetest.CategoryBID
	ev.AuthorID = sitetest.OwenID

	n, err := f.svc.Process(context.Background(), ev)
	require.NoError(t, err)
	assert.Zero(t, n)
}
