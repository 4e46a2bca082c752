// Package app assembles stores, services and the HTTP server from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/feedback-service/internal/api/http"
	"github.com/spec-kit/feedback-service/internal/api/http/handlers"
	"github.com/spec-kit/feedback-service/internal/auth"
	"github.com/spec-kit/feedback-service/internal/config"
	"github.com/spec-kit/feedback-service/internal/events"
	"github.com/spec-kit/feedback-service/internal/notify"
	"github.com/spec-kit/feedback-service/internal/observability"
	"github.com/spec-kit/feedback-service/internal/persistence"
	"github.com/spec-kit/feedback-service/internal/repository"
	"github.com/spec-kit/feedback-service/internal/service"
)

// Backend holds the opened storage handles.
type Backend struct {
	Stores  repository.Stores
	Redis   *persistence.Redis
	Checks  map[string]handlers.Pinger
	closers []func()
}

// OpenBackend connects the configured store driver and, when configured,
// Redis. The card sequence lives in Redis only when asked for.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	b := &Backend{Checks: map[string]handlers.Pinger{}}

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				b.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		b.Stores = repository.NewPostgresStores(pg.PoolHandle())
		b.Checks["postgres"] = pg
	case config.StoreDriverSQLite:
		db, err := persistence.OpenSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = db.Close() })
		b.Stores = repository.NewSQLiteStores(db.DB)
		b.Checks["sqlite"] = db
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	b.Redis = persistence.NewRedis(cfg.Redis, logger)
	if b.Redis.Enabled() {
		b.closers = append(b.closers, b.Redis.Close)
		b.Checks["redis"] = b.Redis
	}
	if cfg.Ticket.CardCounter == config.CardCounterRedis {
		if !b.Redis.Enabled() {
			b.Close()
			return nil, persistence.ErrRedisDisabled
		}
		b.Stores.Cards = repository.NewRedisCardSequence(b.Redis.Client, cfg.Ticket.CardRedisKey)
	}
	return b, nil
}

// Close releases every handle in reverse order.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Services is the wired service layer.
type Services struct {
	Auth        *service.AuthService
	Tickets     *service.TicketService
	Categories  *service.CategoryService
	Stats       *service.StatsService
	Attachments *service.AttachmentStore
	Dispatcher  *events.Dispatcher
	Failures    notify.FailureStore
}

// NewServices builds the service layer and seeds the card allocator.
func NewServices(ctx context.Context, cfg *config.Config, backend *Backend, logger *zap.Logger, metrics *observability.Metrics) (*Services, error) {
	stores := backend.Stores

	var failures notify.FailureStore
	if backend.Redis.Enabled() {
		failures = notify.NewRedisFailureSink(backend.Redis.Client, cfg.Notification.FailedListKey, cfg.Notification.FailedListMaxLen)
	} else {
		failures = notify.NewMemoryFailureSink(int(cfg.Notification.FailedListMaxLen))
	}

	transport := notify.NewTransport(cfg.Notification, notify.NewLogTransport(logger))
	mailer := notify.NewMailer(notify.NewRenderer(cfg.Notification.FrontendURL, cfg.Notification.AdminURL), transport)
	dispatcher := events.NewDispatcher(mailer, logger,
		events.WithFailureSink(failures),
		events.WithRecorder(metrics))

	cards := service.NewCardAllocator(cfg.Ticket.CardPrefix, stores.Cards, logger)
	if err := cards.Initialize(ctx, stores.Tickets); err != nil {
		return nil, err
	}

	categories := service.NewCategoryService(stores.Categories, logger)
	return &Services{
		Auth:       service.NewAuthService(cfg.Auth, stores.Users, logger),
		Categories: categories,
		Stats:      service.NewStatsService(stores.Tickets),
		Tickets: service.NewTicketService(service.TicketDependencies{
			TicketRepo:    stores.Tickets,
			Categories:    categories,
			Cards:         cards,
			Notifier:      service.NewNotificationService(dispatcher, cfg.Notification.AdminEmail, logger),
			Logger:        logger,
			CreateRetries: cfg.Ticket.CreateRetries,
		}),
		Attachments: service.NewAttachmentStore(cfg.Uploads, logger),
		Dispatcher:  dispatcher,
		Failures:    failures,
	}, nil
}

// NewServer builds the fiber app with middlewares and routes.
func NewServer(cfg *config.Config, backend *Backend, services *Services, logger *zap.Logger, metrics *observability.Metrics) *fiber.App {
	bodyLimit := 4*1024*1024 + int(cfg.Uploads.MaxFileBytes)*cfg.Uploads.MaxFiles
	server := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: bodyLimit,
	})
	httptransport.RegisterMiddlewares(server, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, backend.Checks),
		Users:          handlers.NewUsersHandler(services.Auth),
		Tickets:        handlers.NewTicketsHandler(services.Tickets, services.Stats, services.Attachments),
		Admin:          handlers.NewAdminHandler(services.Tickets, services.Stats, services.Failures),
		Categories:     handlers.NewCategoriesHandler(services.Categories),
		AuthMiddleware: auth.NewAuthMiddleware(services.Auth.TokenManager(), backend.Stores.Users),
		UploadsPath:    cfg.Uploads.PublicPath,
		UploadsDir:     cfg.Uploads.Dir,
	})
	return server
}
