package notfprefs

import (
	"context"
	"time"

	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/pkg/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope is what a preference covers: the whole site when CategoryID is
// zero, otherwise one category.
type Scope struct {
	CategoryID int64
}

func WholeSite() Scope                { return Scope{} }
func Category(categoryID int64) Scope { return Scope{CategoryID: categoryID} }

func (s Scope) IsWholeSite() bool { return s.CategoryID == 0 }

func (s Scope) key() string {
	return models.NotfScopeKey(s.IsWholeSite(), s.categoryPtr())
}

func (s Scope) categoryPtr() *int64 {
	if s.IsWholeSite() {
		return nil
	}
	id := s.CategoryID
	return &id
}

// ScopeOf returns the scope a stored preference covers.
func ScopeOf(p models.PageNotfPrefModel) Scope {
	if p.WholeSite || p.CategoryID == nil {
		return WholeSite()
	}
	return Category(*p.CategoryID)
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx}
}

// Set creates or replaces memberID's preference for scope.
func (s *Service) Set(ctx context.Context, siteID, memberID int64, level models.NotfLevel, scope Scope) (*models.PageNotfPrefModel, error) {
	if !level.Valid() {
		return nil, apperr.Validation("notfLevel", "unknown notification level %d", level)
	}
	pref := &models.PageNotfPrefModel{
		SiteID:     siteID,
		MemberID:   memberID,
		ScopeKey:   scope.key(),
		NotfLevel:  level,
		WholeSite:  scope.IsWholeSite(),
		CategoryID: scope.categoryPtr(),
		UpdatedAt:  time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "site_id"}, {Name: "member_id"}, {Name: "scope_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"notf_level", "updated_at"}),
	}).Create(pref).Error
	if err != nil {
		return nil, err
	}
	return pref, nil
}

// ListForSite returns every preference of a site, ordered by member.
func (s *Service) ListForSite(ctx context.Context, siteID int64) ([]models.PageNotfPrefModel, error) {
	var prefs []models.PageNotfPrefModel
	return prefs, s.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("member_id ASC, scope_key ASC").
		Find(&prefs).Error
}

// ListForNewTopic returns the site-wide preferences and those on
// categoryID, the only ones that can match a new page in that category.
func (s *Service) ListForNewTopic(ctx context.Context, siteID, categoryID int64) ([]models.PageNotfPrefModel, error) {
	var prefs []models.PageNotfPrefModel
	return prefs, s.db.WithContext(ctx).
		Where("site_id = ? AND (whole_site = ? OR category_id = ?)", siteID, true, categoryID).
		Order("member_id ASC").
		Find(&prefs).Error
}

func (s *Service) ListForMember(ctx context.Context, siteID, memberID int64) ([]models.PageNotfPrefModel, error) {
	var prefs []models.PageNotfPrefModel
	return prefs, s.db.WithContext(ctx).
		Where("site_id = ? AND member_id = ?", siteID, memberID).
		Order("scope_key ASC").
		Find(&prefs).Error
}

// Delete removes a preference and reports whether one existed.
func (s *Service) Delete(ctx context.Context, siteID, memberID int64, scope Scope) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("site_id = ? AND member_id = ? AND scope_key = ?", siteID, memberID, scope.key()).
		Delete(&models.PageNotfPrefModel{})
	return res.RowsAffected > 0, res.Error
}
