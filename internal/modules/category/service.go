package category

import (
	"context"
	"errors"
	"strings"

	"github.com/forumhub/core/internal/database"
	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/pkg/apperr"
	"github.com/forumhub/core/internal/pkg/ref"
	"gorm.io/gorm"
)

const maxExtIDLen = 128

type UpdateCategoryDTO struct {
	// ExtID set to "" clears the ext id.
	ExtID       *string `json:"extId"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
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

func (s *Service) first(ctx context.Context, query string, args ...interface{}) (*models.CategoryModel, error) {
	var cat models.CategoryModel
	if err := s.db.WithContext(ctx).Where(query, args...).First(&cat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cat, nil
}

func (s *Service) GetByID(ctx context.Context, siteID, id int64) (*models.CategoryModel, error) {
	return s.first(ctx, "site_id = ? AND id = ?", siteID, id)
}

func (s *Service) GetByExtID(ctx context.Context, siteID int64, extID string) (*models.CategoryModel, error) {
	return s.first(ctx, "site_id = ? AND ext_id = ?", siteID, extID)
}

func (s *Service) GetBySlug(ctx context.Context, siteID int64, slug string) (*models.CategoryModel, error) {
	return s.first(ctx, "site_id = ? AND slug = ?", siteID, strings.TrimSpace(slug))
}

// Resolve looks up a category by internal id or ext id. Failures are
// resolution errors naming field.
func (s *Service) Resolve(ctx context.Context, siteID int64, r ref.Ref, field string) (*models.CategoryModel, error) {
	var (
		cat *models.CategoryModel
		err error
	)
	switch r.Kind {
	case ref.KindInternalID:
		cat, err = s.GetByID(ctx, siteID, r.ID)
	case ref.KindExternalID:
		cat, err = s.GetByExtID(ctx, siteID, r.Value)
	default:
		return nil, apperr.Resolution(field, "categories cannot be referenced by %s: %q", r.Kind, r.String())
	}
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, apperr.Resolution(field, "no category matches %q", r.String())
	}
	return cat, nil
}

func (s *Service) List(ctx context.Context, siteID int64) ([]models.CategoryModel, error) {
	var cats []models.CategoryModel
	return cats, s.db.WithContext(ctx).Where("site_id = ?", siteID).Order("id ASC").Find(&cats).Error
}

// SetExtID assigns or clears (extID == "") a category's ext id. Ext ids are
// unique per site.
func (s *Service) SetExtID(ctx context.Context, siteID, id int64, extID string) (*models.CategoryModel, error) {
	return s.Update(ctx, siteID, id, &UpdateCategoryDTO{ExtID: &extID})
}

// Update returns (nil, nil) when the category does not exist.
func (s *Service) Update(ctx context.Context, siteID, id int64, dto *UpdateCategoryDTO) (*models.CategoryModel, error) {
	cat, err := s.GetByID(ctx, siteID, id)
	if err != nil || cat == nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if dto.ExtID != nil {
		extID := strings.TrimSpace(*dto.ExtID)
		if len(extID) > maxExtIDLen {
			return nil, apperr.Validation("extId", "longer than %d characters", maxExtIDLen)
		}
		if extID == "" {
			updates["ext_id"] = nil
		} else {
			other, err := s.GetByExtID(ctx, siteID, extID)
			if err != nil {
				return nil, err
			}
			if other != nil && other.ID != id {
				return nil, apperr.Validation("extId", "%q is already used by category %d", extID, other.ID)
			}
			updates["ext_id"] = extID
		}
	}
	if dto.Name != nil {
		name := strings.TrimSpace(*dto.Name)
		if name == "" {
			return nil, apperr.Validation("name", "must not be empty")
		}
		updates["name"] = name
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if len(updates) == 0 {
		return cat, nil
	}

	err = s.db.WithContext(ctx).Model(&models.CategoryModel{}).
		Where("site_id = ? AND id = ?", siteID, id).
		Updates(updates).Error
	if database.IsDuplicateKey(err) {
		return nil, apperr.Validation("extId", "already used by another category")
	}
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, siteID, id)
}
