package app

import (
	"context"
	"time"

	"github.com/forumhub/core/internal/config"
	"github.com/forumhub/core/internal/modules/site"
	pkgcron "github.com/forumhub/core/internal/pkg/cron"
	"go.uber.org/zap"
)

const (
	JobRetryFailedEmails = "retry_failed_emails"
	JobPurgeSentEmails   = "purge_sent_emails"
	JobBackupSites       = "backup_sites"
	JobBackupSitesLocal  = "backup_sites_local"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, svc *Services, cfg *config.AppConfig, logger *zap.Logger) {
	cronLogger := logger.Named("CronService")

	sched.Register(pkgcron.Job{
		Name:        JobRetryFailedEmails,
		Description: "Resend notification emails whose delivery failed",
		Interval:    time.Minute,
		Fn: func(ctx context.Context) error {
			n, err := svc.Outbox.RetryFailed(ctx, cfg.Fanout.MaxEmailAttempts)
			if err != nil {
				return err
			}
			if n > 0 {
				cronLogger.Info("retried failed emails", zap.Int("sent", n))
			}
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        JobPurgeSentEmails,
		Description: "Delete sent emails older than the retention window",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			before := time.Now().AddDate(0, 0, -cfg.Fanout.KeepSentDays)
			n, err := svc.Outbox.Purge(ctx, before)
			if err != nil {
				return err
			}
			cronLogger.Info("purged sent emails", zap.Int64("deleted", n), zap.Time("before", before))
			return nil
		},
	})

	backupJob := func(store site.ObjectStore, target string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			n, err := svc.Sites.BackupAll(ctx, store, time.Now())
			if err != nil {
				cronLogger.Warn("site backup failed", zap.String("target", target), zap.Int("written", n), zap.Error(err))
				return err
			}
			cronLogger.Info("site backup done", zap.String("target", target), zap.Int("sites", n))
			return nil
		}
	}

	sched.Register(pkgcron.Job{
		Name:        JobBackupSitesLocal,
		Description: "Export every site to the local backup directory",
		Interval:    cfg.Backup.Interval,
		Fn:          backupJob(site.NewLocalStore(cfg.BackupDir()), "local"),
	})

	if !cfg.Backup.Enable {
		return
	}
	store, err := site.NewS3Store(cfg.Backup)
	if err != nil {
		cronLogger.Warn("s3 backup disabled", zap.Error(err))
		return
	}
	sched.Register(pkgcron.Job{
		Name:        JobBackupSites,
		Description: "Export every site to S3",
		Interval:    cfg.Backup.Interval,
		Fn:          backupJob(store, "s3"),
	})
}
