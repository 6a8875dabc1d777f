// Package mutation applies local column moves optimistically and persists
// them in the background.
package mutation

import (
	"context"
	"log/slog"

	"github.com/thenoetrevino/livekanban/internal/board"
	"github.com/thenoetrevino/livekanban/internal/loop"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// Persister saves a column change remotely.
type Persister interface {
	PersistColumnChange(ctx context.Context, taskID string, target models.ColumnName) error
}

// Hooks are the effects of a move. They run on the loop.
type Hooks struct {
	Moved     func(taskID string, from, to models.ColumnName)
	Succeeded func(taskID string, to models.ColumnName)
	Failed    func(err *models.PersistError)
	Reload    func()
}

// intent is the persist state of one task. target is the latest requested
// column; pending means target was requested while a call was in flight and
// still has to be issued. A discarded intent only tracks a call issued
// before Reset; its result is dropped but it still blocks new calls for the
// task until it resolves.
type intent struct {
	ctx       context.Context
	target    models.ColumnName
	inflight  models.ColumnName
	busy      bool
	pending   bool
	discarded bool
}

// Coordinator owns the in-flight moves. It must only be used on the loop.
type Coordinator struct {
	loop    *loop.Loop
	store   *board.Store
	backend Persister
	hooks   Hooks
	logger  *slog.Logger
	intents map[string]*intent
}

// New creates a coordinator writing to store and persisting through backend.
func New(l *loop.Loop, store *board.Store, backend Persister, hooks Hooks, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		loop:    l,
		store:   store,
		backend: backend,
		hooks:   hooks,
		logger:  logger,
		intents: make(map[string]*intent),
	}
}

// MoveTask moves taskID to target immediately and persists the change.
// Persist calls for one task never overlap: a move requested while another
// is in flight is issued once that call resolves, and only the most recent
// target is issued. Illegal moves return a *models.ValidationError and make
// no remote call.
func (c *Coordinator) MoveTask(ctx context.Context, taskID string, target models.ColumnName) error {
	if models.ColumnIndex(target) < 0 {
		return &models.ValidationError{Op: "move task", Err: models.ErrUnknownColumn}
	}
	task, ok := c.store.Task(taskID)
	if !ok {
		return &models.ValidationError{Op: "move task", Err: models.ErrTaskNotFound}
	}
	from := task.ColumnName()
	if from == target {
		return &models.ValidationError{Op: "move task", Err: models.ErrSameColumn}
	}

	if err := c.store.ApplyLocalMove(taskID, target); err != nil {
		return &models.ValidationError{Op: "move task", Err: err}
	}
	if c.hooks.Moved != nil {
		c.hooks.Moved(taskID, from, target)
	}

	in, ok := c.intents[taskID]
	if !ok {
		in = &intent{}
		c.intents[taskID] = in
	}
	in.ctx = ctx
	in.target = target
	in.discarded = false

	if in.busy {
		in.pending = true
		c.logger.Debug("move superseded while persisting",
			"task_id", taskID, "in_flight", in.inflight, "target", target)
		return nil
	}
	c.issue(taskID, in)
	return nil
}

func (c *Coordinator) issue(taskID string, in *intent) {
	target := in.target
	in.busy = true
	in.pending = false
	in.inflight = target

	c.logger.Debug("persisting column change", "task_id", taskID, "column", target)
	loop.AwaitErr(in.ctx, c.loop, "persist_column_change",
		func(ctx context.Context) error {
			return c.backend.PersistColumnChange(ctx, taskID, target)
		},
		func(err error) {
			c.resolve(taskID, in, target, err)
		})
}

func (c *Coordinator) resolve(taskID string, in *intent, target models.ColumnName, err error) {
	if c.intents[taskID] != in {
		c.logger.Debug("dropping persist result for discarded move", "task_id", taskID, "column", target, "error", err)
		return
	}
	in.busy = false

	if in.discarded {
		delete(c.intents, taskID)
		c.logger.Debug("dropping persist result for discarded move", "task_id", taskID, "column", target, "error", err)
		return
	}

	if in.pending {
		if err != nil {
			c.logger.Warn("superseded column change failed", "task_id", taskID, "column", target, "error", err)
		} else {
			c.logger.Debug("superseded column change persisted", "task_id", taskID, "column", target)
		}
		c.issue(taskID, in)
		return
	}

	delete(c.intents, taskID)

	if err != nil {
		perr := models.NewPersistError(taskID, target, err)
		c.logger.Error("column change rejected", "task_id", taskID, "column", target, "error", err)
		if c.hooks.Failed != nil {
			c.hooks.Failed(perr)
		}
	} else {
		c.logger.Info("column change persisted", "task_id", taskID, "column", target)
		if c.hooks.Succeeded != nil {
			c.hooks.Succeeded(taskID, target)
		}
	}
	if c.hooks.Reload != nil {
		c.hooks.Reload()
	}
}

// Overlay re-applies moves that are still being persisted on top of a freshly
// loaded snapshot, so a reload cannot visually undo them. It returns how many
// tasks were moved.
func (c *Coordinator) Overlay() int {
	n := 0
	for id, in := range c.intents {
		if in.discarded {
			continue
		}
		task, ok := c.store.Task(id)
		if !ok || task.ColumnName() == in.target {
			continue
		}
		if err := c.store.ApplyLocalMove(id, in.target); err != nil {
			c.logger.Warn("failed to re-apply pending move", "task_id", id, "error", err)
			continue
		}
		n++
	}
	return n
}

// Pending reports whether taskID has a move that has not resolved yet.
func (c *Coordinator) Pending(taskID string) bool {
	in, ok := c.intents[taskID]
	return ok && !in.discarded
}

// InFlight returns the number of tasks with unresolved moves.
func (c *Coordinator) InFlight() int {
	n := 0
	for _, in := range c.intents {
		if !in.discarded {
			n++
		}
	}
	return n
}

// Reset forgets every pending move. Results of calls already issued are
// dropped when they arrive, and a new move of the same task waits for them.
func (c *Coordinator) Reset() {
	for id, in := range c.intents {
		if !in.busy {
			delete(c.intents, id)
			continue
		}
		in.discarded = true
		in.pending = false
	}
}
