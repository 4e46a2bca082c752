package main

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/app"
	"github.com/spec-kit/feedback-service/internal/config"
	"github.com/spec-kit/feedback-service/internal/observability"
)

// commandContext lazily loads configuration and opens the backend once per
// invocation.
type commandContext struct {
	once    sync.Once
	config  *config.Config
	logger  *zap.Logger
	backend *app.Backend
	err     error

	// forceMigrations applies the Postgres schema even when
	// POSTGRES_RUN_MIGRATIONS is off.
	forceMigrations bool
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) open(ctx context.Context) (*app.Backend, error) {
	c.once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.err = err
			return
		}
		if c.forceMigrations {
			cfg.Postgres.RunMigrations = true
		}
		logger, err := observability.NewLogger(cfg.Logger, cfg.App)
		if err != nil {
			c.err = err
			return
		}
		c.config, c.logger = cfg, logger
		c.backend, c.err = app.OpenBackend(ctx, cfg, logger)
	})
	return c.backend, c.err
}

func (c *commandContext) close() {
	if c.backend != nil {
		c.backend.Close()
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}
