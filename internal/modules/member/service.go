package member

import (
	"context"
	"errors"
	"strings"

	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/pkg/apperr"
	"github.com/forumhub/core/internal/pkg/ref"
	"gorm.io/gorm"
)

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

func (s *Service) GetByID(ctx context.Context, siteID, id int64) (*models.MemberModel, error) {
	var m models.MemberModel
	if err := s.db.WithContext(ctx).First(&m, "site_id = ? AND id = ?", siteID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// GetByUsername matches case-insensitively.
func (s *Service) GetByUsername(ctx context.Context, siteID int64, username string) (*models.MemberModel, error) {
	var m models.MemberModel
	err := s.db.WithContext(ctx).
		Where("site_id = ? AND LOWER(username) = ?", siteID, strings.ToLower(strings.TrimSpace(username))).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// Resolve looks up an active member by internal id or username. Members
// have no ext ids. Failures are resolution errors naming field.
func (s *Service) Resolve(ctx context.Context, siteID int64, r ref.Ref, field string) (*models.MemberModel, error) {
	var (
		m   *models.MemberModel
		err error
	)
	switch r.Kind {
	case ref.KindInternalID:
		m, err = s.GetByID(ctx, siteID, r.ID)
	case ref.KindUsername:
		m, err = s.GetByUsername(ctx, siteID, r.Value)
	default:
		return nil, apperr.Resolution(field, "members cannot be referenced by %s: %q", r.Kind, r.String())
	}
	if err != nil {
		return nil, err
	}
	if m == nil || m.IsDeleted {
		return nil, apperr.Resolution(field, "no member matches %q", r.String())
	}
	return m, nil
}

// ListByIDs returns the non-deleted members among ids, ordered by id.
func (s *Service) ListByIDs(ctx context.Context, siteID int64, ids []int64) ([]models.MemberModel, error) {
	var members []models.MemberModel
	if len(ids) == 0 {
		return members, nil
	}
	err := s.db.WithContext(ctx).
		Where("site_id = ? AND id IN ? AND is_deleted = ?", siteID, ids, false).
		Order("id ASC").
		Find(&members).Error
	return members, err
}
