// Package app owns the application lifecycle: it wires the stores, caches,
// chain client, vault and services together, runs the background workers,
// and tears everything down in reverse order on shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lllfutures/exchange/internal/config"
)

// App is the root application object.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the reward distributor, and blocks
// until the context is cancelled or a worker fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting exchange",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Bool("chain_simulate", a.cfg.Chain.Simulate))

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	defer cleanup()

	err = deps.Distributor.Run(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("app: reward distributor: %w", err)
	}

	a.logger.Info("exchange stopped")
	return nil
}
