// Package app runs the long-lived components of the service (the HTTP API,
// the optional Telegram bridge and the maintenance scheduler) and owns their
// shared shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner is a component that serves until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// App manages the lifecycle of its components.
type App struct {
	logger    *slog.Logger
	server    Runner
	bridge    Runner
	scheduler *Scheduler
}

// New creates an App. bridge may be nil when Telegram is disabled.
func New(logger *slog.Logger, server, bridge Runner, scheduler *Scheduler) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		logger:    logger.With("component", "app"),
		server:    server,
		bridge:    bridge,
		scheduler: scheduler,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails, in which case the rest are stopped too.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting components...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.server.Run(gCtx); err != nil {
			return err
		}
		return stoppedEarly(gCtx, "http server")
	})

	if a.bridge != nil {
		g.Go(func() error {
			if err := a.bridge.Run(gCtx); err != nil {
				return fmt.Errorf("telegram bridge failed: %w", err)
			}
			return stoppedEarly(gCtx, "telegram bridge")
		})
	}

	if a.scheduler != nil {
		g.Go(func() error {
			if err := a.scheduler.Start(gCtx); err != nil {
				a.logger.Error("Failed to start scheduler", "error", err)
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			a.logger.Info("Shutdown signal received, stopping scheduler...")
			if err := a.scheduler.Stop(); err != nil {
				a.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	a.logger.Info("Components running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Stopped gracefully.")
	return nil
}

// stoppedEarly reports a component that returned before shutdown was asked for.
func stoppedEarly(ctx context.Context, name string) error {
	if ctx.Err() == nil {
		return fmt.Errorf("%s stopped unexpectedly", name)
	}
	return nil
}
