// Package reconcile turns remote change notifications into board reloads and
// presence marks.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/thenoetrevino/livekanban/internal/events"
	"github.com/thenoetrevino/livekanban/internal/loop"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// DefaultAdvisoryWindow is how long the "board changed" advisory stays up.
const DefaultAdvisoryWindow = 3 * time.Second

// Executor runs closures on the event loop.
type Executor interface {
	Post(fn func()) bool
	AfterFunc(d time.Duration, fn func()) loop.Timer
}

// Hooks are the effects the reconciler triggers. They run on the loop.
type Hooks struct {
	// Reload re-fetches the current project and replaces the store.
	Reload func()
	// Mark flags a task as being edited elsewhere.
	Mark func(taskID string)
	// Advisory shows or hides the "board changed underneath you" notice.
	Advisory func(visible bool)
}

// Config holds the reconciler settings.
type Config struct {
	Channel        string
	LocalActor     string
	AdvisoryWindow time.Duration
	Logger         *slog.Logger
}

// Reconciler consumes remote events in arrival order. Apart from Mount and
// Unmount every method must be called on the loop.
type Reconciler struct {
	exec      Executor
	transport events.Transport
	hooks     Hooks
	cfg       Config
	logger    *slog.Logger

	project  string
	advisory loop.Timer
	advGen   uint64

	errRegistered bool
	sub           *events.Subscription
	handled       int
}

// New creates a reconciler. Nothing is subscribed until Mount.
func New(exec Executor, transport events.Transport, hooks Hooks, cfg Config) *Reconciler {
	if cfg.Channel == "" {
		cfg.Channel = events.DefaultChannel
	}
	if cfg.AdvisoryWindow <= 0 {
		cfg.AdvisoryWindow = DefaultAdvisoryWindow
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		exec:      exec,
		transport: transport,
		hooks:     hooks,
		cfg:       cfg,
		logger:    logger,
	}
}

// SetProject changes which project's events are acted upon. An empty id is
// the selector state, in which every event is ignored.
func (r *Reconciler) SetProject(projectID string) {
	r.project = projectID
}

// Mount registers the transport error callback (once per reconciler) and
// subscribes to new events on the channel. Subscription failures are logged
// and returned; the board keeps working without live updates.
func (r *Reconciler) Mount(ctx context.Context) error {
	if r.transport == nil {
		return nil
	}
	if !r.errRegistered {
		r.errRegistered = true
		r.transport.OnError(func(err error) {
			r.logger.Error("event transport error", "channel", r.cfg.Channel, "error", err)
		})
	}

	sub, err := r.transport.Subscribe(ctx, r.cfg.Channel, events.FromLatest, func(ev models.RemoteEvent) {
		r.exec.Post(func() { r.Handle(ev) })
	})
	if err != nil {
		r.logger.Error("failed to subscribe to remote events", "channel", r.cfg.Channel, "error", err)
		return err
	}
	r.sub = &sub
	r.logger.Info("subscribed to remote events", "channel", sub.Channel)
	return nil
}

// Unmount ends the subscription and drops the advisory timer.
func (r *Reconciler) Unmount() {
	r.dropAdvisory()
	if r.sub == nil || r.transport == nil {
		return
	}
	if err := r.transport.Unsubscribe(*r.sub); err != nil {
		r.logger.Warn("failed to unsubscribe from remote events", "channel", r.sub.Channel, "error", err)
	}
	r.sub = nil
}

// Subscribed reports whether Mount established a subscription.
func (r *Reconciler) Subscribed() bool {
	return r.sub != nil
}

// Handled returns how many events triggered a reload.
func (r *Reconciler) Handled() int {
	return r.handled
}

// Handle reconciles one event. Events produced by the local actor, events
// for other projects and events arriving without a selected project are
// ignored. Task updates mark the task and reload; every other action type
// shows the advisory and reloads.
func (r *Reconciler) Handle(ev models.RemoteEvent) {
	log := r.logger.With("event_id", ev.ID, "action_type", ev.ActionType, "task_id", ev.TaskID)

	if r.project == "" {
		log.Debug("ignoring remote event without a selected project")
		return
	}
	if ev.ProjectID != "" && ev.ProjectID != r.project {
		log.Debug("ignoring remote event for another project", "project_id", ev.ProjectID)
		return
	}
	if r.cfg.LocalActor != "" && ev.ActorID == r.cfg.LocalActor {
		log.Debug("ignoring self-originated remote event")
		return
	}

	r.handled++
	if ev.IsColumnChange() {
		r.showAdvisory()
	} else if r.hooks.Mark != nil {
		r.hooks.Mark(ev.TaskID)
	}
	if r.hooks.Reload != nil {
		r.hooks.Reload()
	}
}

// showAdvisory raises the advisory and (re)starts its expiry timer.
func (r *Reconciler) showAdvisory() {
	if r.advisory != nil {
		r.advisory.Stop()
	}
	r.advGen++
	gen := r.advGen

	if r.hooks.Advisory != nil {
		r.hooks.Advisory(true)
	}
	r.advisory = r.exec.AfterFunc(r.cfg.AdvisoryWindow, func() {
		if gen != r.advGen {
			return
		}
		r.advisory = nil
		if r.hooks.Advisory != nil {
			r.hooks.Advisory(false)
		}
	})
}

func (r *Reconciler) dropAdvisory() {
	if r.advisory != nil {
		r.advisory.Stop()
		r.advisory = nil
	}
	r.advGen++
}
