package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/forumhub/core/internal/config"
	"github.com/forumhub/core/internal/database/dbtest"
	"github.com/forumhub/core/internal/middleware"
	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/modules/site"
	"github.com/forumhub/core/internal/modules/site/sitetest"
	"github.com/forumhub/core/internal/pkg/mail/mailtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "e2e-secret"

type harness struct {
	t      *testing.T
	app    *App
	sender *mailtest.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg, err := config.Parse([]byte("env: test\ne2e_test_secret: " + testSecret + "\n"))
	require.NoError(t, err)

	sender := &mailtest.Recorder{}
	a, err := NewWithDeps(nil, cfg, Deps{DB: dbtest.Open(t), Sender: sender})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Services().Fanout.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{t: t, app: a, sender: sender}
}

func (h *harness) do(method, target string, body interface{}, setup func(*http.Request)) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Host = sitetest.Hostname
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if setup != nil {
		setup(req)
	}
	w := httptest.NewRecorder()
	h.app.Router().ServeHTTP(w, req)
	return w
}

func withTestSecret(req *http.Request) { req.Header.Set(middleware.HeaderTestSecret, testSecret) }
func asSysbot(req *http.Request)        { req.SetBasicAuth("tyid=2", sitetest.SecretKey) }

func (h *harness) importForum() {
	h.t.Helper()
	data := sitetest.Forum()
	extID := "cat_ext_id"
	data.Categories[0].ExtID = &extID
	catA := sitetest.CategoryAID
	data.PageNotfPrefs = append(data.PageNotfPrefs, site.NotfPrefData{
		MemberID: sitetest.MajaID, NotfLevel: models.NotfLevelNewTopics, CategoryID: &catA,
	})
	w := h.do(http.MethodPost, apiPrefix+"/test/import-site", data, withTestSecret)
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
}

type sentEmail struct {
	ToMemberID int64  `json:"toMemberId"`
	ToAddress  string `json:"toAddress"`
	PageID     int64  `json:"pageId"`
	Subject    string `json:"subject"`
	BodyHTML   string `json:"bodyHtml"`
}

func (h *harness) sentEmails(addrs ...string) []sentEmail {
	h.t.Helper()
	q := url.Values{"siteId": {"1"}}
	if len(addrs) > 0 {
		q.Set("sentTo", strings.Join(addrs, ","))
	}
	w := h.do(http.MethodGet, apiPrefix+"/test/sent-emails?"+q.Encode(), nil, withTestSecret)
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data []sentEmail `json:"data"`
	}
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func upsertBody(notify bool) obj {
	return obj{
		"upsertOptions": obj{"sendNotifications": notify},
		"pages": []obj{{
			"extId":       "ups_page_one_ext_id",
			"pageType":    models.PageTypeIdea,
			"categoryRef": "extid:cat_ext_id",
			"authorRef":   "username:corax",
			"title":       "UpsPageOneTitle",
			"body":        "UpsPageOneBody",
		}},
	}
}

type obj = map[string]interface{}

func TestUpsertNotifiesSubscribersEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.importForum()

	w := h.do(http.MethodPost, apiPrefix+"/upsert-simple", upsertBody(true), asSysbot)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"/-1/upspageonetitle"`)

	var emails []sentEmail
	require.Eventually(t, func() bool {
		emails = h.sentEmails()
		return len(emails) == 2
	}, 5*time.Second, 20*time.Millisecond)

	owen := h.sentEmails("owen_owner@example.com")
	maja := h.sentEmails("maja@example.com")
	require.Len(t, owen, 1)
	require.Len(t, maja, 1)
	assert.Empty(t, h.sentEmails("corax@example.com"), "the author is never notified")
	assert.Empty(t, h.sentEmails("maria@example.com", "michael@example.com"))

	for _, e := range append(owen, maja...) {
		assert.EqualValues(t, 1, e.PageID)
		assert.Contains(t, e.BodyHTML, "UpsPageOneTitle")
		assert.Contains(t, e.BodyHTML, "UpsPageOneBody")
		assert.Contains(t, e.BodyHTML, sitetest.Origin+"/-1")
	}
	assert.Len(t, h.sender.Messages(), 2)

	// Same content again: no change and no new emails.
	w = h.do(http.MethodPost, apiPrefix+"/upsert-simple", upsertBody(true), asSysbot)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"created":false`)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, h.sentEmails(), 2)
}

var unsubscribeRe = regexp.MustCompile(`/-/v0/unsubscribe\?token=([A-Za-z0-9_.\-]+)`)

func TestUnsubscribeLinkFromEmail(t *testing.T) {
	h := newHarness(t)
	h.importForum()

	w := h.do(http.MethodPost, apiPrefix+"/upsert-simple", upsertBody(true), asSysbot)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var owen []sentEmail
	require.Eventually(t, func() bool {
		owen = h.sentEmails("owen_owner@example.com")
		return len(owen) == 1
	}, 5*time.Second, 20*time.Millisecond)

	m := unsubscribeRe.FindStringSubmatch(owen[0].BodyHTML)
	require.NotNil(t, m, "email carries an unsubscribe link")
	w = h.do(http.MethodGet, apiPrefix+"/unsubscribe?token="+m[1], nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	prefs, err := h.app.Services().Prefs.ListForMember(context.Background(), sitetest.SiteID, sitetest.OwenID)
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, models.NotfLevelNormal, prefs[0].NotfLevel)
}

func TestUpsertWithoutNotifications(t *testing.T) {
	h := newHarness(t)
	h.importForum()

	w := h.do(http.MethodPost, apiPrefix+"/upsert-simple", upsertBody(false), asSysbot)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.sentEmails())
}

func TestPagePathsRedirectToCanonical(t *testing.T) {
	h := newHarness(t)
	h.importForum()
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, apiPrefix+"/upsert-simple", upsertBody(false), asSysbot).Code)

	w := h.do(http.MethodGet, "/-1", nil, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/-1/upspageonetitle", w.Header().Get("Location"))

	w = h.do(http.MethodGet, "/-1/upspageonetitle", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "UpsPageOneTitle")

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/-99", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/nowhere", nil, nil).Code)
}

func TestTestEndpointsNeedSecret(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, apiPrefix+"/test/import-site", sitetest.Forum(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodGet, apiPrefix+"/test/cron-jobs", nil, withTestSecret)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), JobRetryFailedEmails)
	assert.Contains(t, w.Body.String(), JobPurgeSentEmails)
	assert.NotContains(t, w.Body.String(), JobBackupSites+`"`, "s3 backup is off by default")
}

func TestRetryJobRedeliversFailedEmails(t *testing.T) {
	h := newHarness(t)
	h.importForum()
	h.sender.Failures = 2

	w := h.do(http.MethodPost, apiPrefix+"/upsert-simple", upsertBody(true), asSysbot)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	outbox := h.app.Services().Outbox
	require.Eventually(t, func() bool {
		var n int64
		h.app.db.Model(&models.SentEmailModel{}).Count(&n)
		return n == 2
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		var failed int64
		h.app.db.Model(&models.SentEmailModel{}).Where("status = ?", models.EmailFailed).Count(&failed)
		return failed == 2
	}, 5*time.Second, 20*time.Millisecond)

	w = h.do(http.MethodPost, apiPrefix+"/test/cron-jobs/"+JobRetryFailedEmails+"/run", nil, withTestSecret)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	n, err := outbox.CountSent(context.Background(), sitetest.SiteID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestOriginPatterns(t *testing.T) {
	tests := []struct {
		pattern, origin string
		want            bool
	}{
		{"forum.example.com", "https://forum.example.com", true},
		{"forum.example.com", "https://Forum.Example.com", true},
		{"*.example.com", "https://a.example.com", true},
		{"*.example.com", "https://example.org", false},
		{"localhost:*", "http://localhost:3000", true},
		{"localhost:*", "http://localhostx:3000", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchOriginPattern(tt.pattern, extractOriginHost(tt.origin)), tt.pattern+" "+tt.origin)
	}
}

func TestHumanizeDuration(t *testing.T) {
	assert.Equal(t, "42s", humanizeDuration(42*time.Second+300*time.Millisecond))
	assert.Equal(t, "5m0s", humanizeDuration(5*time.Minute+20*time.Second))
	assert.Equal(t, "3h0m0s", humanizeDuration(3*time.Hour+59*time.Minute))
	assert.Equal(t, "48h0m0s", humanizeDuration(50*time.Hour))
}

func TestHealthAnswersWithoutSite(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, apiPrefix+"/health", nil)
	req.Host = "unknown.example"
	w := httptest.NewRecorder()
	h.app.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"database":true`)
}
