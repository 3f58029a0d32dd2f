package emails

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forumhub/core/internal/database"
	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/pkg/mail"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const retryBatchSize = 100

// ErrAlreadyRecorded means the member already has an email about the page.
var ErrAlreadyRecorded = errors.New("email already recorded")

// Service is the outbox of notification emails. Every email is recorded
// before it is sent, so a failed send can be retried.
type Service struct {
	db     *gorm.DB
	sender mail.Sender
	logger *zap.Logger
}

func NewService(db *gorm.DB, sender mail.Sender, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, sender: sender, logger: logger.Named("emails")}
}

// Record stores e as pending. At most one email per site, page and member is
// ever stored; a second one fails with ErrAlreadyRecorded.
func (s *Service) Record(ctx context.Context, e *models.SentEmailModel) error {
	e.Status = models.EmailPending
	e.Attempts = 0
	err := s.db.WithContext(ctx).Create(e).Error
	if database.IsDuplicateKey(err) {
		return ErrAlreadyRecorded
	}
	return err
}

// Exists reports whether memberID was already emailed about pageID.
func (s *Service) Exists(ctx context.Context, siteID, pageID, memberID int64) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.SentEmailModel{}).
		Where("site_id = ? AND page_id = ? AND to_member_id = ?", siteID, pageID, memberID).
		Count(&n).Error
	return n > 0, err
}

func (s *Service) MarkSent(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.SentEmailModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.EmailSent,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": "",
			"sent_at":    &now,
		}).Error
}

func (s *Service) MarkFailed(ctx context.Context, id string, sendErr error) error {
	return s.db.WithContext(ctx).Model(&models.SentEmailModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.EmailFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": sendErr.Error(),
		}).Error
}

// Deliver sends a recorded email and stores the outcome. The send error, if
// any, is returned after the row is marked failed.
func (s *Service) Deliver(ctx context.Context, e *models.SentEmailModel) error {
	sendErr := s.sender.Send(ctx, mail.Message{
		To:      []string{e.ToAddress},
		Subject: e.Subject,
		HTML:    e.BodyHTML,
	})
	if sendErr != nil {
		s.logger.Warn("send failed",
			zap.String("email_id", e.ID),
			zap.String("to", e.ToAddress),
			zap.Int("attempt", e.Attempts+1),
			zap.Error(sendErr))
		if err := s.MarkFailed(ctx, e.ID, sendErr); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		e.Status = models.EmailFailed
		e.Attempts++
		return sendErr
	}
	if err := s.MarkSent(ctx, e.ID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	e.Status = models.EmailSent
	e.Attempts++
	return nil
}

// RetryFailed resends failed emails with fewer than maxAttempts attempts and
// returns how many went out this time.
func (s *Service) RetryFailed(ctx context.Context, maxAttempts int) (int, error) {
	var failed []models.SentEmailModel
	err := s.db.WithContext(ctx).
		Where("status = ? AND attempts < ?", models.EmailFailed, maxAttempts).
		Order("created_at ASC").
		Limit(retryBatchSize).
		Find(&failed).Error
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range failed {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if err := s.Deliver(ctx, &failed[i]); err == nil {
			sent++
		}
	}
	return sent, nil
}

// ListSentTo returns a site's sent emails, oldest first. With addrs given,
// only emails to those addresses.
func (s *Service) ListSentTo(ctx context.Context, siteID int64, addrs []string) ([]models.SentEmailModel, error) {
	var out []models.SentEmailModel
	q := s.db.WithContext(ctx).Where("site_id = ? AND status = ?", siteID, models.EmailSent)
	if len(addrs) > 0 {
		q = q.Where("to_address IN ?", addrs)
	}
	return out, q.Order("created_at ASC").Find(&out).Error
}

func (s *Service) CountSent(ctx context.Context, siteID int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.SentEmailModel{}).
		Where("site_id = ? AND status = ?", siteID, models.EmailSent).
		Count(&n).Error
	return n, err
}

// Purge deletes sent emails older than before.
func (s *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Unscoped().
		Where("status = ? AND sent_at < ?", models.EmailSent, before).
		Delete(&models.SentEmailModel{})
	return res.RowsAffected, res.Error
}
