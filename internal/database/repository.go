package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/thenoetrevino/livekanban/internal/events"
	"github.com/thenoetrevino/livekanban/internal/models"
)

var (
	// ErrProjectNotFound indicates an unknown project id
	ErrProjectNotFound = errors.New("project not found")

	// ErrNameRequired indicates an empty task or project name
	ErrNameRequired = errors.New("name is required")
)

// Repository provides a unified interface to all data operations.
// It composes domain-specific repositories using struct embedding and acts
// as a board backend for a fixed local actor.
type Repository struct {
	*ProjectRepo
	*TaskRepo
	actor string
}

// Option configures a Repository.
type Option func(*repoConfig)

type repoConfig struct {
	actor   string
	clock   clockwork.Clock
	notify  notifier
	channel string
}

// WithActor sets the actor id stamped on changes made through the Backend
// methods.
func WithActor(actor string) Option {
	return func(c *repoConfig) { c.actor = actor }
}

// WithPublisher announces every successful write on channel.
func WithPublisher(pub events.Publisher, channel string) Option {
	return func(c *repoConfig) {
		c.notify.pub = pub
		c.channel = channel
	}
}

// WithLogger sets the logger used for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *repoConfig) { c.notify.logger = logger }
}

// WithClock sets the clock used for timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(c *repoConfig) { c.clock = clock }
}

// NewRepository creates a new Repository instance wrapping the given database connection.
func NewRepository(db *sql.DB, opts ...Option) *Repository {
	cfg := repoConfig{
		clock:   clockwork.NewRealClock(),
		channel: events.DefaultChannel,
	}
	cfg.notify.logger = slog.Default()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.notify.channel = cfg.channel

	projects := &ProjectRepo{db: db, clock: cfg.clock}
	notify := cfg.notify
	return &Repository{
		ProjectRepo: projects,
		TaskRepo: &TaskRepo{
			db:       db,
			clock:    cfg.clock,
			projects: projects,
			notify:   &notify,
		},
		actor: cfg.actor,
	}
}

// ProjectRepo and TaskRepo share method names; call those through the
// named fields.

// FetchTasks returns the board of a project.
func (r *Repository) FetchTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	return r.TaskRepo.GetByProject(ctx, projectID)
}

// FetchProjects lists projects for the selector.
func (r *Repository) FetchProjects(ctx context.Context) ([]models.ProjectSummary, error) {
	return r.ProjectRepo.GetAll(ctx)
}

// PersistColumnChange moves a task as the repository's actor.
func (r *Repository) PersistColumnChange(ctx context.Context, taskID string, target models.ColumnName) error {
	return r.TaskRepo.MoveToColumn(ctx, r.actor, taskID, target)
}

// CreateTask creates a task as the repository's actor.
func (r *Repository) CreateTask(ctx context.Context, in TaskInput) (*models.Task, error) {
	return r.TaskRepo.Create(ctx, r.actor, in)
}

// UpdateTask updates a task as the repository's actor.
func (r *Repository) UpdateTask(ctx context.Context, taskID string, in TaskInput) (*models.Task, error) {
	return r.TaskRepo.Update(ctx, r.actor, taskID, in)
}

// Actor returns the actor id stamped on changes.
func (r *Repository) Actor() string {
	return r.actor
}
