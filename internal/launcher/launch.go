// Package launcher starts the terminal board.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/sync/errgroup"

	"github.com/thenoetrevino/livekanban/internal/app"
	"github.com/thenoetrevino/livekanban/internal/config"
	"github.com/thenoetrevino/livekanban/internal/engine"
	"github.com/thenoetrevino/livekanban/internal/logging"
	"github.com/thenoetrevino/livekanban/internal/tui"
)

// Options controls logging for a launch.
type Options struct {
	LogPath  string // defaults to ~/.livekanban/logs/livekanban.log
	LogLevel slog.Level
}

// Launch runs the board until the user quits or the process is signalled.
func Launch(cfg *config.Config, opts Options) error {
	// Initialize logging to file before anything else
	if opts.LogPath == "" {
		opts.LogPath = logging.DefaultPath(config.DataDir())
	}
	logFile, err := logging.Init(opts.LogPath, opts.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logFile.Close()

	// Create root context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			slog.Error("error closing application", "error", err)
		}
	}()

	eng := engine.New(application.Store, application.Transport, engine.Config{
		ProjectID:      cfg.ProjectID,
		Channel:        cfg.Channel,
		LocalActor:     application.Actor,
		SearchDebounce: cfg.Timing.SearchDebounce,
		PresenceWindow: cfg.Timing.PresenceWindow,
		AdvisoryWindow: cfg.Timing.AdvisoryWindow,
	})

	slog.Info("starting board",
		"actor", application.Actor,
		"project_id", cfg.ProjectID,
		"transport", cfg.Transport.Kind,
		"backend", cfg.Backend.Kind,
	)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	model := tui.New(gctx, eng, application.Store, cfg, tui.WithRequestTimeout(cfg.Timing.RequestTimeout))
	p := tea.NewProgram(model, tea.WithContext(gctx))

	g.Go(func() error {
		return eng.Run(gctx)
	})
	g.Go(func() error {
		// Quitting the program stops the engine
		defer stop()
		_, err := p.Run()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("error running program: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if ctx.Err() != nil {
		slog.Info("shutdown signal received, cleaning up")
	}
	return nil
}
