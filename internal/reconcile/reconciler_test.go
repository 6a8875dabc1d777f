package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/livekanban/internal/events"
	"github.com/thenoetrevino/livekanban/internal/loop"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// ============================================================================
// Test Doubles
// ============================================================================

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

func (f *fakeTimer) Stop() bool {
	was := !f.stopped
	f.stopped = true
	return was
}

// inlineExecutor runs posted closures immediately and records timers.
type inlineExecutor struct {
	timers []*fakeTimer
}

func (e *inlineExecutor) Post(fn func()) bool {
	fn()
	return true
}

func (e *inlineExecutor) AfterFunc(d time.Duration, fn func()) loop.Timer {
	t := &fakeTimer{d: d, fn: fn}
	e.timers = append(e.timers, t)
	return t
}

type fakeTransport struct {
	subscribeErr  error
	handler       func(models.RemoteEvent)
	channel       string
	from          int64
	subscribes    int
	unsubscribes  int
	errorHandlers []func(error)
}

func (f *fakeTransport) Subscribe(_ context.Context, channel string, from int64, handler func(models.RemoteEvent)) (events.Subscription, error) {
	f.subscribes++
	if f.subscribeErr != nil {
		return events.Subscription{}, f.subscribeErr
	}
	f.channel, f.from, f.handler = channel, from, handler
	return events.Subscription{ID: "sub-1", Channel: channel}, nil
}

func (f *fakeTransport) Unsubscribe(events.Subscription) error {
	f.unsubscribes++
	f.handler = nil
	return nil
}

func (f *fakeTransport) OnError(h func(error)) {
	f.errorHandlers = append(f.errorHandlers, h)
}

type recorder struct {
	reloads  int
	marks    []string
	advisory []bool
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		Reload:   func() { r.reloads++ },
		Mark:     func(id string) { r.marks = append(r.marks, id) },
		Advisory: func(v bool) { r.advisory = append(r.advisory, v) },
	}
}

func newTestReconciler(localActor string) (*Reconciler, *inlineExecutor, *fakeTransport, *recorder) {
	exec := &inlineExecutor{}
	tr := &fakeTransport{}
	rec := &recorder{}
	r := New(exec, tr, rec.hooks(), Config{LocalActor: localActor})
	r.SetProject("p1")
	return r, exec, tr, rec
}

// ============================================================================
// Handle Tests
// ============================================================================

func TestHandle_ColumnChangeReloadsWithAdvisory(t *testing.T) {
	r, exec, _, rec := newTestReconciler("me")

	r.Handle(models.RemoteEvent{ActionType: models.ActionColumnChange, TaskID: "t1", ActorID: "other", ProjectID: "p1"})

	assert.Equal(t, 1, rec.reloads)
	assert.Equal(t, []bool{true}, rec.advisory)
	assert.Empty(t, rec.marks)
	require.Len(t, exec.timers, 1)
	assert.Equal(t, DefaultAdvisoryWindow, exec.timers[0].d)

	exec.timers[0].fn()
	assert.Equal(t, []bool{true, false}, rec.advisory)
}

func TestHandle_TaskUpdateMarksAndReloads(t *testing.T) {
	r, exec, _, rec := newTestReconciler("me")

	r.Handle(models.RemoteEvent{ActionType: models.ActionTaskUpdate, TaskID: "t1", ActorID: "other"})

	assert.Equal(t, []string{"t1"}, rec.marks)
	assert.Equal(t, 1, rec.reloads)
	assert.Empty(t, rec.advisory)
	assert.Empty(t, exec.timers)
}

func TestHandle_UnknownActionBehavesLikeColumnChange(t *testing.T) {
	r, _, _, rec := newTestReconciler("me")

	r.Handle(models.RemoteEvent{ActionType: "TASK_DELETED", TaskID: "t1", ActorID: "other"})

	assert.Equal(t, 1, rec.reloads)
	assert.Equal(t, []bool{true}, rec.advisory)
	assert.Empty(t, rec.marks)
}

func TestHandle_SelfOriginatedEventsAreInert(t *testing.T) {
	r, exec, _, rec := newTestReconciler("me")

	r.Handle(models.RemoteEvent{ActionType: models.ActionColumnChange, TaskID: "t1", ActorID: "me"})
	r.Handle(models.RemoteEvent{ActionType: models.ActionTaskUpdate, TaskID: "t1", ActorID: "me"})

	assert.Zero(t, rec.reloads)
	assert.Empty(t, rec.marks)
	assert.Empty(t, rec.advisory)
	assert.Empty(t, exec.timers)
	assert.Zero(t, r.Handled())
}

func TestHandle_EmptyLocalActorSuppressesNothing(t *testing.T) {
	r, _, _, rec := newTestReconciler("")

	r.Handle(models.RemoteEvent{ActionType: models.ActionColumnChange, ActorID: ""})
	r.Handle(models.RemoteEvent{ActionType: models.ActionColumnChange, ActorID: "someone"})

	assert.Equal(t, 2, rec.reloads)
}

func TestHandle_IgnoresOtherProjectsAndSelectorState(t *testing.T) {
	r, _, _, rec := newTestReconciler("me")

	r.Handle(models.RemoteEvent{ActionType: models.ActionColumnChange, ProjectID: "p2"})
	assert.Zero(t, rec.reloads)

	r.SetProject("")
	r.Handle(models.RemoteEvent{ActionType: models.ActionColumnChange, ProjectID: "p1"})
	assert.Zero(t, rec.reloads)
}

func TestHandle_AdvisoryRestartsOnBurst(t *testing.T) {
	r, exec, _, rec := newTestReconciler("me")

	r.Handle(models.RemoteEvent{ActionType: models.ActionColumnChange})
	r.Handle(models.RemoteEvent{ActionType: models.ActionColumnChange})

	require.Len(t, exec.timers, 2)
	assert.True(t, exec.timers[0].stopped)

	// The replaced timer's callback must not hide the newer advisory
	exec.timers[0].fn()
	assert.Equal(t, []bool{true, true}, rec.advisory)

	exec.timers[1].fn()
	assert.Equal(t, []bool{true, true, false}, rec.advisory)
	assert.Equal(t, 2, rec.reloads)
}

// ============================================================================
// Lifecycle Tests
// ============================================================================

func TestMount_SubscribesForNewEventsOnly(t *testing.T) {
	r, _, tr, rec := newTestReconciler("me")

	require.NoError(t, r.Mount(context.Background()))
	assert.True(t, r.Subscribed())
	assert.Equal(t, events.DefaultChannel, tr.channel)
	assert.Equal(t, events.FromLatest, tr.from)

	// Delivered events are posted to the executor and handled
	tr.handler(models.RemoteEvent{ActionType: models.ActionColumnChange, ActorID: "other"})
	assert.Equal(t, 1, rec.reloads)

	r.Unmount()
	assert.False(t, r.Subscribed())
	assert.Equal(t, 1, tr.unsubscribes)
}

func TestMount_RegistersErrorCallbackOnce(t *testing.T) {
	r, _, tr, _ := newTestReconciler("me")

	require.NoError(t, r.Mount(context.Background()))
	r.Unmount()
	require.NoError(t, r.Mount(context.Background()))

	assert.Len(t, tr.errorHandlers, 1)
	assert.Equal(t, 2, tr.subscribes)

	// Transport errors are only logged
	tr.errorHandlers[0](errors.New("socket closed"))
}

func TestMount_SubscribeFailureIsNotFatal(t *testing.T) {
	r, _, tr, rec := newTestReconciler("me")
	tr.subscribeErr = &models.TransportError{Channel: "task-updates", Err: errors.New("refused")}

	err := r.Mount(context.Background())
	require.Error(t, err)
	assert.False(t, r.Subscribed())
	assert.Equal(t, 1, tr.subscribes, "no retry loop")

	// Direct handling still works
	r.Handle(models.RemoteEvent{ActionType: models.ActionColumnChange})
	assert.Equal(t, 1, rec.reloads)

	r.Unmount()
	assert.Zero(t, tr.unsubscribes)
}

func TestUnmount_CancelsAdvisory(t *testing.T) {
	r, exec, _, rec := newTestReconciler("me")
	r.Handle(models.RemoteEvent{ActionType: models.ActionColumnChange})

	r.Unmount()
	assert.True(t, exec.timers[0].stopped)

	exec.timers[0].fn()
	assert.Equal(t, []bool{true}, rec.advisory)
}
