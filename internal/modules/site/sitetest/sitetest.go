// Package sitetest builds the small forum most service tests run against.
package sitetest

import (
	"context"
	"testing"

	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/modules/site"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	SiteID    int64 = 1
	Hostname        = "site-1.localhost"
	Origin          = "http://site-1.localhost"
	SecretKey       = "publicE2eTestSecretKeyAbc123"

	OwenID    int64 = 100
	CoraxID   int64 = 101
	MajaID    int64 = 102
	MariaID   int64 = 103
	MichaelID int64 = 104

	CategoryAID int64 = 2
	CategoryBID int64 = 3
)

// Forum returns a site with five members, two categories, an API secret for
// the sysbot, and Owen subscribed to new topics site wide.
func Forum() site.SiteData {
	member := func(id int64, username string) site.MemberData {
		return site.MemberData{ID: id, Username: username, FullName: username, EmailAddress: username + "@example.com"}
	}
	return site.SiteData{
		Site:     site.SiteMeta{ID: SiteID, Hostname: Hostname, Origin: Origin, Name: "Ups Pages E2E Test"},
		Settings: site.Settings{EnableAPI: true},
		Members: []site.MemberData{
			member(OwenID, "owen_owner"),
			member(CoraxID, "corax"),
			member(MajaID, "maja"),
			member(MariaID, "maria"),
			member(MichaelID, "michael"),
		},
		Categories: []site.CategoryData{
			{ID: CategoryAID, Slug: "category-a", Name: "CategoryA"},
			{ID: CategoryBID, Slug: "category-b", Name: "CategoryB"},
		},
		APISecrets: []site.APISecretData{
			{Nr: 1, UserID: models.SysbotUserID, CreatedAt: 1, SecretKey: SecretKey},
		},
		PageNotfPrefs: []site.NotfPrefData{
			{MemberID: OwenID, NotfLevel: models.NotfLevelNewTopics, WholeSite: true},
		},
	}
}

// Import loads Forum() into db and returns the site row.
func Import(t testing.TB, db *gorm.DB) *models.SiteModel {
	t.Helper()
	svc := site.NewService(db)
	ctx := context.Background()
	_, err := svc.Import(ctx, Forum())
	require.NoError(t, err)
	st, err := svc.GetByID(ctx, SiteID)
	require.NoError(t, err)
	require.NotNil(t, st)
	return st
}
