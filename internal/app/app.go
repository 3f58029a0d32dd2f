package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/forumhub/core/internal/config"
	"github.com/forumhub/core/internal/database"
	"github.com/forumhub/core/internal/middleware"
	"github.com/forumhub/core/internal/modules/category"
	"github.com/forumhub/core/internal/modules/emails"
	"github.com/forumhub/core/internal/modules/fanout"
	"github.com/forumhub/core/internal/modules/form"
	"github.com/forumhub/core/internal/modules/member"
	"github.com/forumhub/core/internal/modules/notfprefs"
	"github.com/forumhub/core/internal/modules/page"
	"github.com/forumhub/core/internal/modules/site"
	"github.com/forumhub/core/internal/modules/upsert"
	pkgcron "github.com/forumhub/core/internal/pkg/cron"
	"github.com/forumhub/core/internal/pkg/keylock"
	"github.com/forumhub/core/internal/pkg/mail"
	pkgredis "github.com/forumhub/core/internal/pkg/redis"
	"github.com/forumhub/core/internal/pkg/taskqueue"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// lockTTL bounds how long a crashed process can hold an ext id lock.
const lockTTL = 30 * time.Second

// Services are the domain services shared by routes, workers and cron jobs.
type Services struct {
	Sites      *site.Service
	Members    *member.Service
	Categories *category.Service
	Pages      *page.Service
	Prefs      *notfprefs.Service
	Outbox     *emails.Service
	Fanout     *fanout.Service
	Upsert     *upsert.Service
	Forms      *form.Service
}

// Deps are the infrastructure handles New would otherwise open itself.
// Tests pass an in-memory database and a recording mail sender.
type Deps struct {
	DB *gorm.DB
	// Redis is optional. Without it locks and the task queue stay in process.
	Redis  *pkgredis.Client
	Sender mail.Sender
}

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	queue  taskqueue.Queue
	svc    *Services
	logger *zap.Logger
	sched  *pkgcron.Scheduler
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New initializes the application: config → DB → Redis → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg, logger); err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var rc *pkgredis.Client
	if cfg.Redis.Enable {
		if rc, err = pkgredis.Connect(cfg.RedisURL); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	return NewWithDeps(logger, cfg, Deps{DB: db, Redis: rc, Sender: newMailTransport(cfg.Mail)})
}

// NewWithDeps builds the application around already opened infrastructure.
func NewWithDeps(logger *zap.Logger, cfg *config.AppConfig, deps Deps) (*App, error) {
	if deps.DB == nil {
		return nil, errors.New("database is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Sender == nil {
		deps.Sender = mail.New(mail.Config{})
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.IdempotenceHeader, middleware.HeaderTestSecret},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	router.Use(cors.New(corsConfig))

	app := &App{
		cfg:    cfg,
		router: router,
		db:     deps.DB,
		rc:     deps.Redis,
		logger: logger,
		sched:  pkgcron.New(logger),
	}
	app.svc = app.buildServices(deps.Sender)
	registerCronJobs(app.sched, app.svc, cfg, logger)
	app.registerRoutes()
	return app, nil
}

func (a *App) buildServices(sender mail.Sender) *Services {
	var (
		locks keylock.Locker
		queue taskqueue.Queue
	)
	if a.rc != nil {
		locks = keylock.NewRedis(a.rc.Raw(), lockTTL)
		queue = taskqueue.NewRedis(a.rc)
	} else {
		locks = keylock.NewLocal()
		queue = taskqueue.NewMemory(a.cfg.Fanout.QueueSize)
	}
	a.queue = queue

	s := &Services{
		Sites:      site.NewService(a.db),
		Members:    member.NewService(a.db),
		Categories: category.NewService(a.db),
		Pages:      page.NewService(a.db),
		Prefs:      notfprefs.NewService(a.db),
		Outbox:     emails.NewService(a.db, sender, a.logger),
	}
	s.Fanout = fanout.NewService(s.Sites, s.Members, s.Prefs, s.Outbox, queue, a.logger)
	s.Upsert = upsert.NewService(a.db, s.Pages, s.Categories, s.Members, locks, s.Fanout, upsert.ServiceOptions{
		MaxPages: a.cfg.API.MaxPagesPerCall,
		Logger:   a.logger,
	})
	s.Forms = form.NewService(s.Pages, s.Categories, s.Fanout, a.logger)
	return s
}

func newMailTransport(cfg config.MailRuntimeConfig) *mail.Transport {
	return mail.New(mail.Config{
		Enable:    cfg.Enable,
		Host:      cfg.Host,
		Port:      cfg.Port,
		User:      cfg.User,
		Pass:      cfg.Pass,
		From:      cfg.From,
		ReplyTo:   cfg.ReplyTo,
		UseResend: cfg.ResendKey != "",
		ResendKey: cfg.ResendKey,
	})
}

// Start launches the fanout workers and the cron scheduler.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	workers := a.cfg.Fanout.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.svc.Fanout.Run(ctx)
		}()
	}
	go a.sched.Start(ctx)
	a.logger.Info("background workers started", zap.Int("fanout_workers", workers))
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Services exposes the wired domain services.
func (a *App) Services() *Services { return a.svc }

// Scheduler exposes the cron scheduler.
func (a *App) Scheduler() *pkgcron.Scheduler { return a.sched }

// Shutdown stops background goroutines and waits for in-flight fanout tasks.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.rc != nil {
		_ = a.rc.Close()
	}
}
