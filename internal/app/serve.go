package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/api"
	"github.com/golf-qa/backend/pkg/config"
	"github.com/golf-qa/backend/pkg/logger"
)

// Serve runs the HTTP API and the update scheduler until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Config) error {
	application, err := New(ctx, cfg, Options{})
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer application.Close()

	if cfg.Scheduler.InitializeOnBoot {
		if result, err := application.Updater.InitializeData(ctx); err != nil {
			logger.Warn("Initial data load failed", zap.Error(err))
		} else if result != nil && !result.Success {
			logger.Warn("Initial data load incomplete", zap.String("error", result.Error))
		}
	}

	if cfg.Scheduler.Enabled {
		handle, err := application.Updater.Schedule(cfg.Scheduler.Cron)
		if err != nil {
			return err
		}
		defer handle.Stop()
	}

	deps := api.Dependencies{
		Engine:  application.Engine,
		Updater: application.Updater,
		Courses: application.Store,
		Store:   application.Store,
	}
	if application.Cache != nil {
		deps.Cache = application.Cache
	}
	server := api.NewServer(cfg.Server, deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.App.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Server shutting down gracefully...")
	if err := server.Close(); err != nil {
		logger.Warn("Shutdown error", zap.Error(err))
	}
	logger.Info("Server stopped")
	return nil
}
