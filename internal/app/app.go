// Package app builds the board's dependencies from the configuration: the
// task store, the live-update transport and the publisher that announces
// local writes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/thenoetrevino/livekanban/internal/api"
	"github.com/thenoetrevino/livekanban/internal/config"
	"github.com/thenoetrevino/livekanban/internal/database"
	"github.com/thenoetrevino/livekanban/internal/events"
	"github.com/thenoetrevino/livekanban/internal/events/redisbus"
	"github.com/thenoetrevino/livekanban/internal/models"
	"github.com/thenoetrevino/livekanban/internal/user"
)

// Store is a board backend that can also save the task form.
type Store interface {
	FetchTasks(ctx context.Context, projectID string) ([]models.Task, error)
	FetchProjects(ctx context.Context) ([]models.ProjectSummary, error)
	PersistColumnChange(ctx context.Context, taskID string, target models.ColumnName) error
	CreateTask(ctx context.Context, in database.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, taskID string, in database.TaskInput) (*models.Task, error)
}

// App holds the wired dependencies. Transport is nil when live updates are
// turned off.
type App struct {
	Config    *config.Config
	Actor     string
	Store     Store
	Transport events.Transport

	// Repo is set for the sqlite backend.
	Repo *database.Repository

	logger  *slog.Logger
	closers []func() error
}

// New wires the application for cfg. A hub daemon that cannot be reached is
// not an error: the board works without live updates.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config: cfg,
		Actor:  user.ActorID(cfg.ActorID),
		logger: o.logger,
	}

	pub := a.connectTransport(ctx)

	if err := a.openStore(ctx, pub); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// connectTransport sets up live updates and returns the publisher local
// writes should be announced through, if any.
func (a *App) connectTransport(ctx context.Context) events.Publisher {
	cfg := a.Config
	switch cfg.Transport.Kind {
	case config.TransportSocket:
		a.Transport = a.track(events.NewSocketTransport(cfg.Transport.SocketPath, a.logger))

		client := events.NewClient(cfg.Transport.SocketPath, events.WithClientLogger(a.logger))
		if err := client.Connect(ctx); err != nil {
			de := events.ClassifyDaemonError(err)
			a.logger.Warn("failed to connect to daemon", "message", de.Message, "hint", de.Hint)
			a.logger.Info("continuing without publishing local changes")
			_ = client.Close()
			return nil
		}
		a.closers = append(a.closers, client.Close)
		return client

	case config.TransportRedis:
		rc := redis.NewClient(&redis.Options{Addr: cfg.Transport.RedisAddr})
		a.closers = append(a.closers, rc.Close)
		bus := redisbus.New(rc, redisbus.WithLogger(a.logger))
		a.Transport = a.track(bus)
		return bus
	}
	return nil
}

// openStore opens the task store. Only the sqlite store publishes; the HTTP
// server announces its own writes.
func (a *App) openStore(ctx context.Context, pub events.Publisher) error {
	cfg := a.Config
	switch cfg.Backend.Kind {
	case config.BackendHTTP:
		a.Store = api.NewClient(cfg.Backend.BaseURL, a.Actor, api.WithTimeout(cfg.Timing.RequestTimeout))
		return nil

	default:
		db, err := database.Open(ctx, cfg.Backend.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		repoOpts := []database.Option{
			database.WithActor(a.Actor),
			database.WithLogger(a.logger),
		}
		if pub != nil {
			repoOpts = append(repoOpts, database.WithPublisher(pub, cfg.Channel))
		}
		a.Repo = database.NewRepository(db, repoOpts...)
		a.Store = a.Repo
		return nil
	}
}

type closableTransport interface {
	events.Transport
	Close() error
}

func (a *App) track(t closableTransport) events.Transport {
	a.closers = append(a.closers, t.Close)
	return t
}

// Close releases everything New opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
