package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "taskflow/docs"
	"taskflow/internal/config"
	"taskflow/internal/database"
	"taskflow/internal/events"
	"taskflow/internal/handlers"
	"taskflow/internal/lifecycle"
	"taskflow/internal/middleware"
	"taskflow/internal/notify"
	"taskflow/internal/pdf"
	"taskflow/internal/realtime"
	"taskflow/internal/repositories"
	"taskflow/internal/routes"
	"taskflow/internal/services"
	"taskflow/internal/storage"
	"taskflow/internal/worker"
)

// fontPath is a UTF-8 TTF used for PDF reports when present.
const fontPath = "assets/fonts/DejaVuSans.ttf"

// App owns the process-wide resources of the server.
type App struct {
	cfg       *config.Config
	log       *zap.Logger
	db        *sql.DB
	store     repositories.Store
	publisher events.Publisher
	hub       *realtime.Hub
	reminder  *worker.Reminder

	Auth   services.AuthService
	Users  services.UserService
	router *gin.Engine
}

// New connects to the database and wires every component. Optional
// integrations without configuration fall back to no-ops.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, log: log, db: db}
	a.store = repositories.NewStore(db)
	a.wire()
	return a, nil
}

// NewWithStore wires the app over an existing store without a database
// connection.
func NewWithStore(cfg *config.Config, log *zap.Logger, store repositories.Store) *App {
	a := &App{cfg: cfg, log: log, store: store}
	a.wire()
	return a
}

func (a *App) wire() {
	cfg, log := a.cfg, a.log

	a.hub = realtime.NewHub(log)
	a.publisher = events.Fanout(a.newPublisher(), a.hub)

	var (
		senders []notify.Sender
		replier services.ChatReplier
	)
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegramSender(cfg.Telegram.BotToken)
		if err != nil {
			log.Warn("[app][telegram][disabled]", zap.Error(err))
		} else {
			senders = append(senders, tg)
			replier = tg
		}
	}
	if cfg.Email.SMTPHost != "" {
		senders = append(senders, notify.NewEmailSender(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromEmail,
		))
	}
	notifier := notify.NewNotifier(a.store.Users(), log, senders...)

	deps := services.Deps{
		Store:    a.store,
		Events:   a.publisher,
		Notifier: notifier,
		Policy:   lifecycle.Policy{AllowReopen: cfg.Lifecycle.AllowReopen},
		Clock:    time.Now,
		Logger:   log,
	}
	a.Auth = services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, time.Now)
	a.Users = services.NewUserService(a.store, a.Auth, time.Now, log)
	taskService := services.NewTaskService(deps)
	assignService := services.NewAssignmentService(deps)
	linkService := services.NewTelegramLinkService(a.store, replier, cfg.Telegram.LinkCodeTTL, time.Now, log)

	files := storage.NewLocalFileStorage(cfg.Files.RootDir, cfg.Files.PublicPrefix, log)

	h := routes.Handlers{
		Auth: handlers.NewAuthHandler(a.Users, a.Auth, handlers.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure,
		}, log),
		Users:    handlers.NewUserHandler(a.Users, linkService, log),
		Tasks:    handlers.NewTaskHandler(taskService, assignService, a.store.Users(), pdf.NewDocumentGenerator(fontPath), log),
		Upload:   handlers.NewUploadHandler(files, cfg.Files.MaxUploadMB, log),
		Realtime: handlers.NewRealtimeHandler(a.hub, log),
	}
	if cfg.Telegram.BotToken != "" {
		h.Integrations = handlers.NewIntegrationsHandler(linkService, cfg.Telegram.WebhookSecret, log)
	}

	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(corsMiddleware())
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.Static(cfg.Files.PublicPrefix, cfg.Files.RootDir)
	routes.SetupRoutes(router, h, a.Auth, cfg.Auth.CookieName)
	a.router = router

	if cfg.Reminders.Enabled {
		a.reminder = worker.NewReminder(a.store.Tasks(), notifier, cfg.Reminders.Interval, cfg.Reminders.BatchSize, log)
	}
}

func (a *App) newPublisher() events.Publisher {
	if a.cfg.RabbitMQ.URL == "" {
		return events.NopPublisher{}
	}
	p, err := events.NewRabbitMQPublisher(a.cfg.RabbitMQ.URL, a.cfg.RabbitMQ.Queue, a.log)
	if err != nil {
		a.log.Warn("[app][rabbitmq][disabled]", zap.Error(err))
		return events.NopPublisher{}
	}
	return p
}

func (a *App) Router() http.Handler { return a.router }

// DB is nil for apps built with NewWithStore.
func (a *App) DB() *sql.DB { return a.db }

// Migrate applies pending schema migrations.
func (a *App) Migrate() error {
	if a.db == nil {
		return errors.New("no database connection")
	}
	return database.Migrate(a.db)
}

// EnsureAdmin seeds the configured administrator, if any.
func (a *App) EnsureAdmin(ctx context.Context) error {
	adm := a.cfg.Admin
	if adm.Username == "" || adm.Password == "" {
		return nil
	}
	u, created, err := a.Users.EnsureAdmin(ctx, adm.Username, adm.Email, adm.Password)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	if created {
		a.log.Info("[app][admin][created]", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	}
	return nil
}

// Run serves HTTP and the reminder worker until ctx is cancelled, then shuts
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.Files.RootDir, 0o755); err != nil {
		return fmt.Errorf("create files dir: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if a.reminder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.reminder.Run(workerCtx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("[app][http][listen]", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = err
	}

	a.log.Info("[app][shutdown]")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	stopWorker()
	wg.Wait()
	return runErr
}

// Close disconnects live subscribers and releases the broker connection and
// the database pool.
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("[app][rabbitmq][close][err]", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("[app][db][close][err]", zap.Error(err))
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
