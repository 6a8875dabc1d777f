// Package engine wires the board store, reconciler, mutation coordinator,
// presence tracker and search filter onto one event loop and exposes them to
// a host as a set of commands and an ordered message stream.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thenoetrevino/livekanban/internal/board"
	"github.com/thenoetrevino/livekanban/internal/events"
	"github.com/thenoetrevino/livekanban/internal/loop"
	"github.com/thenoetrevino/livekanban/internal/models"
	"github.com/thenoetrevino/livekanban/internal/mutation"
	"github.com/thenoetrevino/livekanban/internal/presence"
	"github.com/thenoetrevino/livekanban/internal/reconcile"
	"github.com/thenoetrevino/livekanban/internal/search"
)

// AdvisoryText is shown while the board is being refreshed after someone
// else moved a task.
const AdvisoryText = "The board was updated by another user"

// Backend is the remote store the engine reads from and writes to.
type Backend interface {
	FetchTasks(ctx context.Context, projectID string) ([]models.Task, error)
	FetchProjects(ctx context.Context) ([]models.ProjectSummary, error)
	PersistColumnChange(ctx context.Context, taskID string, target models.ColumnName) error
}

// Config holds the engine settings. Zero durations use package defaults.
type Config struct {
	ProjectID      string
	Channel        string
	LocalActor     string
	SearchDebounce time.Duration
	PresenceWindow time.Duration
	AdvisoryWindow time.Duration
	MessageBuffer  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLoop runs the engine on an existing loop, typically one with a fake
// clock.
func WithLoop(l *loop.Loop) Option {
	return func(e *Engine) { e.loop = l }
}

// Engine is the client-side sync engine for one board. Its exported methods
// are safe to call from any goroutine except the loop itself.
type Engine struct {
	cfg       Config
	backend   Backend
	transport events.Transport
	logger    *slog.Logger

	loop       *loop.Loop
	store      *board.Store
	presence   *presence.Tracker
	filter     *search.Filter
	reconciler *reconcile.Reconciler
	coord      *mutation.Coordinator

	msgs chan Message
	ctx  context.Context

	// Loop-owned state
	project     string
	reloadGen   uint64
	projectsGen uint64
	boardErr    *models.FetchError
	loading     bool
}

// New builds an engine. transport may be nil, in which case the board only
// changes through local actions and manual refreshes.
func New(backend Backend, transport events.Transport, cfg Config, opts ...Option) *Engine {
	if cfg.MessageBuffer <= 0 {
		cfg.MessageBuffer = 256
	}
	if cfg.Channel == "" {
		cfg.Channel = events.DefaultChannel
	}

	e := &Engine{
		cfg:       cfg,
		backend:   backend,
		transport: transport,
		logger:    slog.Default(),
		msgs:      make(chan Message, cfg.MessageBuffer),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.loop == nil {
		e.loop = loop.New(loop.WithLogger(e.logger))
	}

	e.store = board.NewStore()
	e.presence = presence.NewTracker(e.loop, e.loop.Clock().Now, cfg.PresenceWindow, e.onPresenceExpired)
	e.store.SetAnnotator(e.presence)
	e.filter = search.NewFilter(e.loop, cfg.SearchDebounce, e.onSearchApplied)
	e.reconciler = reconcile.New(e.loop, transport, reconcile.Hooks{
		Reload:   e.reload,
		Mark:     e.onRemoteEdit,
		Advisory: e.onAdvisory,
	}, reconcile.Config{
		Channel:        cfg.Channel,
		LocalActor:     cfg.LocalActor,
		AdvisoryWindow: cfg.AdvisoryWindow,
		Logger:         e.logger,
	})
	e.coord = mutation.New(e.loop, e.store, backend, mutation.Hooks{
		Moved:     e.onMoved,
		Succeeded: e.onMoveSucceeded,
		Failed:    e.onMoveFailed,
		Reload:    e.reload,
	}, e.logger)

	return e
}

// Messages returns the ordered message stream. It is closed when Run returns.
func (e *Engine) Messages() <-chan Message {
	return e.msgs
}

// Run drives the engine until ctx is cancelled. It loads the configured
// project, or the project list when none is configured, and subscribes to
// remote events. A failed subscription is logged and the board keeps working
// without live updates.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	defer close(e.msgs)

	if e.cfg.ProjectID != "" {
		e.SelectProject(e.cfg.ProjectID)
	} else {
		e.loop.Post(e.loadProjects)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.loop.Run(gctx)
	})
	g.Go(func() error {
		if err := e.reconciler.Mount(gctx); err != nil {
			e.logger.Warn("live updates unavailable", "error", err)
		}
		return nil
	})

	err := g.Wait()
	e.reconciler.Unmount()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// post queues fn on the loop, logging when the engine has stopped.
func (e *Engine) post(op string, fn func()) {
	if !e.loop.Post(fn) {
		e.logger.Debug("engine stopped, dropping command", "op", op)
	}
}

// emit delivers a message to the host without blocking the loop.
func (e *Engine) emit(msg Message) {
	select {
	case e.msgs <- msg:
	default:
		e.logger.Warn("message buffer full, dropping message", "type", fmt.Sprintf("%T", msg))
	}
}

// setLoading emits a LoadingMsg when the indicator changes.
func (e *Engine) setLoading(loading bool) {
	if e.loading == loading {
		return
	}
	e.loading = loading
	e.emit(LoadingMsg{Loading: loading})
}

// board renders the current view. Loop only.
func (e *Engine) board() Board {
	b := Board{
		ProjectID: e.project,
		Columns:   e.store.View(e.filter.Predicate()),
		Term:      e.filter.Term(),
		InFlight:  e.coord.InFlight(),
	}
	if e.boardErr != nil {
		b.Err = e.boardErr
	}
	return b
}

// ============================================================================
// Project selection
// ============================================================================

// SelectProject loads the board of projectID.
func (e *Engine) SelectProject(projectID string) {
	e.post("select_project", func() {
		if projectID == "" {
			e.enterSelector()
			return
		}
		e.switchProject(projectID)
		e.setLoading(true)
		e.reload()
	})
}

// ChangeProject returns to the project selector and reloads the project list.
func (e *Engine) ChangeProject() {
	e.post("change_project", e.enterSelector)
}

// RetryProjects fetches the project list again after a failure.
func (e *Engine) RetryProjects() {
	e.post("retry_projects", e.loadProjects)
}

func (e *Engine) switchProject(projectID string) {
	e.project = projectID
	e.reconciler.SetProject(projectID)
	e.store.Reset()
	e.presence.ClearAll()
	e.coord.Reset()
	e.boardErr = nil
	// Results of loads for the previous project are stale now
	e.reloadGen++
}

func (e *Engine) enterSelector() {
	e.switchProject("")
	e.emit(BoardReloadedMsg{Board: e.board()})
	e.loadProjects()
}

func (e *Engine) loadProjects() {
	e.projectsGen++
	gen := e.projectsGen

	e.setLoading(true)
	loop.Await(e.ctx, e.loop, "fetch_projects", e.backend.FetchProjects, func(projects []models.ProjectSummary, err error) {
		if gen != e.projectsGen {
			return
		}
		e.setLoading(false)
		if err != nil {
			fe := &models.FetchError{Err: err}
			e.logger.Error("failed to load projects", "error", err)
			e.emit(ProjectsErrorMsg{Err: fe})
			return
		}
		e.emit(ProjectsLoadedMsg{Projects: projects})
	})
}

// ============================================================================
// Reload
// ============================================================================

// Refresh re-fetches the current board.
func (e *Engine) Refresh() {
	e.post("refresh", func() {
		if e.project == "" {
			e.loadProjects()
			return
		}
		e.setLoading(true)
		e.reload()
	})
}

// reload fetches the current project. Only the most recently issued reload
// may write the store; older results are dropped when they arrive.
func (e *Engine) reload() {
	if e.project == "" {
		return
	}
	e.reloadGen++
	gen := e.reloadGen
	project := e.project

	loop.Await(e.ctx, e.loop, "fetch_tasks", func(ctx context.Context) ([]models.Task, error) {
		return e.backend.FetchTasks(ctx, project)
	}, func(tasks []models.Task, err error) {
		if gen != e.reloadGen {
			e.logger.Debug("dropping stale board load", "project_id", project, "generation", gen)
			return
		}
		e.setLoading(false)

		if err != nil {
			e.boardErr = &models.FetchError{ProjectID: project, Err: err}
			e.store.Reset()
			e.logger.Error("failed to load board", "project_id", project, "error", err)
			e.emit(BoardErrorMsg{Err: e.boardErr, Board: e.board()})
			return
		}

		e.boardErr = nil
		e.store.Load(tasks)
		if n := e.coord.Overlay(); n > 0 {
			e.logger.Debug("re-applied pending moves after load", "count", n)
		}
		e.emit(BoardReloadedMsg{Board: e.board()})
	})
}

// ============================================================================
// Mutations
// ============================================================================

// MoveTask moves a task to target. The board changes immediately; the
// outcome of persisting arrives later as MoveSucceededMsg or MoveFailedMsg.
// A *models.ValidationError means the move was rejected locally.
func (e *Engine) MoveTask(ctx context.Context, taskID string, target models.ColumnName) error {
	var moveErr error
	err := e.loop.Do(ctx, func() {
		if e.project == "" {
			moveErr = &models.ValidationError{Op: "move task", Err: models.ErrNoProject}
			return
		}
		moveErr = e.coord.MoveTask(e.ctx, taskID, target)
	})
	if err != nil {
		return err
	}
	return moveErr
}

func (e *Engine) onMoved(taskID string, from, to models.ColumnName) {
	e.emit(TaskMovedMsg{TaskID: taskID, From: from, To: to, Board: e.board()})
}

func (e *Engine) onMoveSucceeded(taskID string, column models.ColumnName) {
	e.emit(MoveSucceededMsg{TaskID: taskID, Column: column})
}

func (e *Engine) onMoveFailed(err *models.PersistError) {
	e.emit(MoveFailedMsg{Err: err})
}

// ============================================================================
// Task save flow
// ============================================================================

// RequestNewTask asks the host to open a form for a new task in column. An
// empty or unknown column falls back to the default column.
func (e *Engine) RequestNewTask(column models.ColumnName) {
	e.post("request_new_task", func() {
		if models.ColumnIndex(column) < 0 {
			column = models.DefaultColumn()
		}
		e.emit(TaskSaveRequestedMsg{DefaultColumn: column})
	})
}

// RequestEditTask asks the host to open a form for an existing task.
func (e *Engine) RequestEditTask(taskID string) {
	e.post("request_edit_task", func() {
		task, ok := e.store.Task(taskID)
		if !ok {
			e.logger.Debug("edit requested for unknown task", "task_id", taskID)
			return
		}
		e.emit(TaskSaveRequestedMsg{TaskID: taskID, DefaultColumn: task.ColumnName()})
	})
}

// TaskSaved reports that the host saved a task. The board is reloaded.
func (e *Engine) TaskSaved(created bool) {
	e.post("task_saved", func() {
		msg := "Task updated successfully"
		if created {
			msg = "Task created successfully"
		}
		e.emit(TaskSaveCompletedMsg{Message: msg})
		e.reload()
	})
}

// TaskSaveFailed reports that the host could not save a task.
func (e *Engine) TaskSaveFailed(message string) {
	e.post("task_save_failed", func() {
		e.emit(TaskSaveFailedMsg{Message: message})
	})
}

// ============================================================================
// Search and presence
// ============================================================================

// Search filters the board by term once typing pauses.
func (e *Engine) Search(term string) {
	e.post("search", func() { e.filter.Search(term) })
}

func (e *Engine) onSearchApplied(term string) {
	e.emit(SearchAppliedMsg{Term: term, Board: e.board()})
}

func (e *Engine) onRemoteEdit(taskID string) {
	e.presence.Mark(taskID)
	e.emit(PresenceChangedMsg{TaskID: taskID, Editing: true, Board: e.board()})
}

func (e *Engine) onPresenceExpired(taskID string) {
	e.emit(PresenceChangedMsg{TaskID: taskID, Editing: false, Board: e.board()})
}

func (e *Engine) onAdvisory(visible bool) {
	msg := AdvisoryMsg{Visible: visible}
	if visible {
		msg.Text = AdvisoryText
	}
	e.emit(msg)
}

// ============================================================================
// Queries
// ============================================================================

// Snapshot returns the current board.
func (e *Engine) Snapshot(ctx context.Context) (Board, error) {
	var b Board
	err := e.loop.Do(ctx, func() { b = e.board() })
	return b, err
}

// HandleRemoteEvent feeds an event to the reconciler as if it arrived from
// the transport.
func (e *Engine) HandleRemoteEvent(ev models.RemoteEvent) {
	e.post("remote_event", func() { e.reconciler.Handle(ev) })
}
