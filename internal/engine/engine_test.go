package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/livekanban/internal/board"
	"github.com/thenoetrevino/livekanban/internal/events"
	"github.com/thenoetrevino/livekanban/internal/loop"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// ============================================================================
// Test Doubles
// ============================================================================

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// memBackend is an in-memory backend. Hooks let tests block or fail calls.
type memBackend struct {
	mu          sync.Mutex
	tasks       map[string][]models.Task
	projects    []models.ProjectSummary
	projectsErr error
	fetchErr    error
	persistErr  error
	fetches     int
	persisted   []models.ColumnName

	// Optional gates, consulted before answering
	beforeFetch   func(call int)
	beforePersist func(taskID string, target models.ColumnName)
}

func newMemBackend() *memBackend {
	return &memBackend{
		tasks: map[string][]models.Task{
			"p1": {
				{ID: "1", ProjectID: "p1", Name: "Write docs", Column: "To Do", CreatedAt: t0},
				{ID: "2", ProjectID: "p1", Name: "Fix login bug", Column: "To Do", CreatedAt: t0.Add(time.Minute)},
				{ID: "3", ProjectID: "p1", Name: "Release", Column: "Done", CreatedAt: t0.Add(2 * time.Minute)},
			},
			"p2": {
				{ID: "9", ProjectID: "p2", Name: "Other board", Column: "Blocked", CreatedAt: t0},
			},
		},
		projects: []models.ProjectSummary{
			{ID: "p1", Name: "Website", Status: models.ProjectInProgress, TaskCount: 3},
			{ID: "p2", Name: "Mobile", Status: models.ProjectPlanning, TaskCount: 1},
		},
	}
}

func (m *memBackend) FetchTasks(_ context.Context, projectID string) ([]models.Task, error) {
	m.mu.Lock()
	m.fetches++
	call := m.fetches
	hook := m.beforeFetch
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return append([]models.Task(nil), m.tasks[projectID]...), nil
}

func (m *memBackend) FetchProjects(context.Context) ([]models.ProjectSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.projectsErr != nil {
		return nil, m.projectsErr
	}
	return m.projects, nil
}

func (m *memBackend) PersistColumnChange(_ context.Context, taskID string, target models.ColumnName) error {
	m.mu.Lock()
	hook := m.beforePersist
	m.mu.Unlock()
	if hook != nil {
		hook(taskID, target)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.persisted = append(m.persisted, target)
	if m.persistErr != nil {
		return m.persistErr
	}
	for pid, tasks := range m.tasks {
		for i := range tasks {
			if tasks[i].ID == taskID {
				m.tasks[pid][i].Column = string(target)
			}
		}
	}
	return nil
}

func (m *memBackend) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

func (m *memBackend) persistedTargets() []models.ColumnName {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ColumnName(nil), m.persisted...)
}

// chanTransport hands events to the subscribed handler directly.
type chanTransport struct {
	mu      sync.Mutex
	handler func(models.RemoteEvent)
	ready   chan struct{}
}

func newChanTransport() *chanTransport {
	return &chanTransport{ready: make(chan struct{})}
}

func (c *chanTransport) Subscribe(_ context.Context, channel string, _ int64, handler func(models.RemoteEvent)) (events.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
	close(c.ready)
	return events.Subscription{ID: "s", Channel: channel}, nil
}

func (c *chanTransport) Unsubscribe(events.Subscription) error { return nil }
func (c *chanTransport) OnError(func(error))                 {}

func (c *chanTransport) deliver(t *testing.T, ev models.RemoteEvent) {
	t.Helper()
	select {
	case <-c.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("transport never subscribed")
	}
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(ev)
}

type testEngine struct {
	*Engine
	backend   *memBackend
	transport *chanTransport
	clock     *clockwork.FakeClock
	ctx       context.Context
}

func startEngine(t *testing.T, cfg Config, backend *memBackend) *testEngine {
	t.Helper()

	clock := clockwork.NewFakeClock()
	transport := newChanTransport()
	e := New(backend, transport, cfg, WithLoop(loop.New(loop.WithClock(clock))))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("engine did not stop")
		}
	})

	return &testEngine{Engine: e, backend: backend, transport: transport, clock: clock, ctx: ctx}
}

// waitFor returns the next message of type T, skipping others.
func waitFor[T Message](t *testing.T, e *testEngine) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-e.Messages():
			require.True(t, ok, "message stream closed")
			if v, ok := msg.(T); ok {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timeout waiting for %T", zero)
			return zero
		}
	}
}

// barrier waits until everything posted so far has run on the loop.
func (e *testEngine) barrier(t *testing.T) Board {
	t.Helper()
	b, err := e.Snapshot(e.ctx)
	require.NoError(t, err)
	return b
}

func ids(b Board, col models.ColumnName) []string {
	for _, c := range b.Columns {
		if c.Name == col {
			return c.IDs()
		}
	}
	return nil
}

func card(b Board, id string) (board.Card, bool) {
	for _, c := range b.Columns {
		for _, cd := range c.Tasks {
			if cd.ID == id {
				return cd, true
			}
		}
	}
	return board.Card{}, false
}

// ============================================================================
// Loading Tests
// ============================================================================

func TestRun_LoadsConfiguredProject(t *testing.T) {
	e := startEngine(t, Config{ProjectID: "p1"}, newMemBackend())

	assert.True(t, waitFor[LoadingMsg](t, e).Loading)
	msg := waitFor[BoardReloadedMsg](t, e)

	assert.Equal(t, "p1", msg.Board.ProjectID)
	assert.Equal(t, []string{"1", "2"}, ids(msg.Board, models.ColumnToDo))
	assert.Equal(t, []string{"3"}, ids(msg.Board, models.ColumnDone))
	assert.Len(t, msg.Board.Columns, 5)
	assert.False(t, waitFor[LoadingMsg](t, e).Loading)
}

func TestRun_SelectorLoadsProjects(t *testing.T) {
	e := startEngine(t, Config{}, newMemBackend())

	projects := waitFor[ProjectsLoadedMsg](t, e)
	require.Len(t, projects.Projects, 2)
	assert.Equal(t, "Website", projects.Projects[0].Name)

	b := e.barrier(t)
	assert.True(t, b.Selector())
	assert.Zero(t, b.TaskCount())

	e.SelectProject("p2")
	msg := waitFor[BoardReloadedMsg](t, e)
	assert.Equal(t, []string{"9"}, ids(msg.Board, models.ColumnBlocked))
}

func TestProjects_ErrorThenRetry(t *testing.T) {
	backend := newMemBackend()
	backend.projectsErr = errors.New("timeout")
	e := startEngine(t, Config{}, backend)

	failed := waitFor[ProjectsErrorMsg](t, e)
	assert.EqualError(t, failed.Err, "failed to load projects: timeout")

	backend.mu.Lock()
	backend.projectsErr = nil
	backend.mu.Unlock()

	e.RetryProjects()
	assert.Len(t, waitFor[ProjectsLoadedMsg](t, e).Projects, 2)
}

func TestChangeProject_ReturnsToSelector(t *testing.T) {
	e := startEngine(t, Config{ProjectID: "p1"}, newMemBackend())
	waitFor[BoardReloadedMsg](t, e)

	e.ChangeProject()
	msg := waitFor[BoardReloadedMsg](t, e)
	assert.True(t, msg.Board.Selector())
	assert.Zero(t, msg.Board.TaskCount())
	waitFor[ProjectsLoadedMsg](t, e)
}

func TestReload_FetchErrorShowsNoTasks(t *testing.T) {
	backend := newMemBackend()
	e := startEngine(t, Config{ProjectID: "p1"}, backend)
	waitFor[BoardReloadedMsg](t, e)

	backend.mu.Lock()
	backend.fetchErr = errors.New("connection reset")
	backend.mu.Unlock()

	e.Refresh()
	msg := waitFor[BoardErrorMsg](t, e)
	assert.Equal(t, "p1", msg.Err.ProjectID)
	assert.Contains(t, msg.Err.Error(), "connection reset")
	assert.Zero(t, msg.Board.TaskCount())

	var fe *models.FetchError
	assert.ErrorAs(t, msg.Board.Err, &fe)
}

func TestReload_OnlyLatestWritesStore(t *testing.T) {
	backend := newMemBackend()
	release := make(chan struct{})
	started := make(chan int, 4)
	backend.beforeFetch = func(call int) {
		started <- call
		if call == 2 {
			<-release
		}
	}
	e := startEngine(t, Config{ProjectID: "p1"}, backend)
	waitFor[BoardReloadedMsg](t, e)
	<-started

	// Second fetch blocks and will return the old column; the third sees
	// the task in Done and completes first.
	e.Refresh()
	require.Equal(t, 2, <-started)

	backend.mu.Lock()
	backend.tasks["p1"][0].Column = "Done"
	backend.mu.Unlock()

	e.Refresh()
	require.Equal(t, 3, <-started)
	msg := waitFor[BoardReloadedMsg](t, e)
	assert.Equal(t, []string{"1", "3"}, ids(msg.Board, models.ColumnDone))

	// Make the stale response carry different data, then release it
	backend.mu.Lock()
	backend.tasks["p1"][0].Column = "Blocked"
	backend.mu.Unlock()
	close(release)

	require.Eventually(t, func() bool { return e.loop.Inflight() == 0 }, 2*time.Second, 5*time.Millisecond)
	b := e.barrier(t)
	assert.Equal(t, []string{"1", "3"}, ids(b, models.ColumnDone), "stale load must not overwrite the store")
	assert.Empty(t, ids(b, models.ColumnBlocked))
}

// ============================================================================
// Move Tests
// ============================================================================

func TestMoveTask_SuccessFlow(t *testing.T) {
	e := startEngine(t, Config{ProjectID: "p1"}, newMemBackend())
	waitFor[BoardReloadedMsg](t, e)

	require.NoError(t, e.MoveTask(e.ctx, "1", models.ColumnInProgress))

	moved := waitFor[TaskMovedMsg](t, e)
	assert.Equal(t, models.ColumnToDo, moved.From)
	assert.Equal(t, models.ColumnInProgress, moved.To)
	assert.Equal(t, []string{"2"}, ids(moved.Board, models.ColumnToDo))
	assert.Equal(t, []string{"1"}, ids(moved.Board, models.ColumnInProgress))

	ok := waitFor[MoveSucceededMsg](t, e)
	assert.Equal(t, "1", ok.TaskID)

	reloaded := waitFor[BoardReloadedMsg](t, e)
	assert.Equal(t, []string{"1"}, ids(reloaded.Board, models.ColumnInProgress))
}

func TestMoveTask_FailureRevertsWithOneErrorAndOneReload(t *testing.T) {
	backend := newMemBackend()
	backend.persistErr = errors.New("FIELD_CUSTOM_VALIDATION_EXCEPTION")
	e := startEngine(t, Config{ProjectID: "p1"}, backend)
	waitFor[BoardReloadedMsg](t, e)
	fetchesBefore := backend.fetchCount()

	require.NoError(t, e.MoveTask(e.ctx, "1", models.ColumnDone))
	waitFor[TaskMovedMsg](t, e)

	failed := waitFor[MoveFailedMsg](t, e)
	assert.Equal(t, "Failed to move task: FIELD_CUSTOM_VALIDATION_EXCEPTION", failed.Err.Error())

	reloaded := waitFor[BoardReloadedMsg](t, e)
	assert.Equal(t, []string{"1", "2"}, ids(reloaded.Board, models.ColumnToDo), "server state wins after a rejected move")

	require.Eventually(t, func() bool { return e.loop.Inflight() == 0 }, 2*time.Second, 5*time.Millisecond)
	e.barrier(t)
	assert.Equal(t, fetchesBefore+1, backend.fetchCount(), "exactly one reload")

	// No second error message
	select {
	case msg := <-e.Messages():
		_, isFail := msg.(MoveFailedMsg)
		assert.False(t, isFail)
	default:
	}
}

func TestMoveTask_RapidDoubleMove(t *testing.T) {
	backend := newMemBackend()
	gate := make(chan struct{})
	entered := make(chan models.ColumnName, 4)
	backend.beforePersist = func(_ string, target models.ColumnName) {
		entered <- target
		<-gate
	}
	e := startEngine(t, Config{ProjectID: "p1"}, backend)
	waitFor[BoardReloadedMsg](t, e)

	require.NoError(t, e.MoveTask(e.ctx, "1", models.ColumnInProgress))
	assert.Equal(t, models.ColumnInProgress, <-entered)
	require.NoError(t, e.MoveTask(e.ctx, "1", models.ColumnDone))

	b := e.barrier(t)
	assert.Equal(t, []string{"1", "3"}, ids(b, models.ColumnDone))
	assert.Equal(t, 1, b.InFlight)

	close(gate)
	assert.Equal(t, models.ColumnDone, <-entered)

	ok := waitFor[MoveSucceededMsg](t, e)
	assert.Equal(t, models.ColumnDone, ok.Column)
	reloaded := waitFor[BoardReloadedMsg](t, e)
	assert.Equal(t, []string{"1", "3"}, ids(reloaded.Board, models.ColumnDone))

	assert.Equal(t, []models.ColumnName{models.ColumnInProgress, models.ColumnDone}, backend.persistedTargets())
}

func TestMoveTask_PendingMoveSurvivesRemoteReload(t *testing.T) {
	backend := newMemBackend()
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	backend.beforePersist = func(string, models.ColumnName) {
		entered <- struct{}{}
		<-gate
	}
	e := startEngine(t, Config{ProjectID: "p1", LocalActor: "me"}, backend)
	waitFor[BoardReloadedMsg](t, e)

	require.NoError(t, e.MoveTask(e.ctx, "2", models.ColumnInReview))
	<-entered

	e.transport.deliver(t, models.RemoteEvent{ActionType: models.ActionColumnChange, TaskID: "3", ActorID: "other", ProjectID: "p1"})
	reloaded := waitFor[BoardReloadedMsg](t, e)
	assert.Equal(t, []string{"2"}, ids(reloaded.Board, models.ColumnInReview))

	close(gate)
	waitFor[MoveSucceededMsg](t, e)
}

func TestMoveTask_Validation(t *testing.T) {
	e := startEngine(t, Config{}, newMemBackend())
	waitFor[ProjectsLoadedMsg](t, e)

	err := e.MoveTask(e.ctx, "1", models.ColumnDone)
	assert.ErrorIs(t, err, models.ErrNoProject)

	e.SelectProject("p1")
	waitFor[BoardReloadedMsg](t, e)

	err = e.MoveTask(e.ctx, "1", models.ColumnToDo)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, models.ErrSameColumn)
	assert.Empty(t, e.backend.persistedTargets())
}

// ============================================================================
// Remote Event Tests
// ============================================================================

func TestRemoteColumnChange_AdvisoryAndReload(t *testing.T) {
	e := startEngine(t, Config{ProjectID: "p1", LocalActor: "me"}, newMemBackend())
	waitFor[BoardReloadedMsg](t, e)

	e.transport.deliver(t, models.RemoteEvent{ActionType: models.ActionColumnChange, TaskID: "1", ActorID: "other", ProjectID: "p1"})

	adv := waitFor[AdvisoryMsg](t, e)
	assert.True(t, adv.Visible)
	assert.Equal(t, AdvisoryText, adv.Text)
	waitFor[BoardReloadedMsg](t, e)

	e.clock.Advance(3 * time.Second)
	assert.False(t, waitFor[AdvisoryMsg](t, e).Visible)
}

func TestRemoteEvent_SelfOriginatedIsInert(t *testing.T) {
	backend := newMemBackend()
	e := startEngine(t, Config{ProjectID: "p1", LocalActor: "me"}, backend)
	waitFor[BoardReloadedMsg](t, e)
	before := backend.fetchCount()

	e.transport.deliver(t, models.RemoteEvent{ActionType: models.ActionColumnChange, TaskID: "1", ActorID: "me", ProjectID: "p1"})
	e.HandleRemoteEvent(models.RemoteEvent{ActionType: models.ActionTaskUpdate, TaskID: "1", ActorID: "me", ProjectID: "p1"})
	b := e.barrier(t)

	assert.Never(t, func() bool { return backend.fetchCount() != before }, 100*time.Millisecond, 10*time.Millisecond)
	c, ok := card(b, "1")
	require.True(t, ok)
	assert.False(t, c.BeingEdited)
}

func TestRemoteTaskUpdate_PresenceMarkExpires(t *testing.T) {
	e := startEngine(t, Config{ProjectID: "p1", LocalActor: "me"}, newMemBackend())
	waitFor[BoardReloadedMsg](t, e)

	e.HandleRemoteEvent(models.RemoteEvent{ActionType: models.ActionTaskUpdate, TaskID: "2", ActorID: "other", ProjectID: "p1"})

	marked := waitFor[PresenceChangedMsg](t, e)
	assert.True(t, marked.Editing)
	c, _ := card(marked.Board, "2")
	assert.True(t, c.BeingEdited)

	reloaded := waitFor[BoardReloadedMsg](t, e)
	c, _ = card(reloaded.Board, "2")
	assert.True(t, c.BeingEdited, "mark survives the reload")

	e.clock.Advance(2 * time.Second)
	expired := waitFor[PresenceChangedMsg](t, e)
	assert.False(t, expired.Editing)
	c, _ = card(expired.Board, "2")
	assert.False(t, c.BeingEdited)
}

func TestRemoteEvent_OtherProjectIgnored(t *testing.T) {
	backend := newMemBackend()
	e := startEngine(t, Config{ProjectID: "p1"}, backend)
	waitFor[BoardReloadedMsg](t, e)
	before := backend.fetchCount()

	e.HandleRemoteEvent(models.RemoteEvent{ActionType: models.ActionColumnChange, ProjectID: "p2"})
	e.barrier(t)

	assert.Never(t, func() bool { return backend.fetchCount() != before }, 100*time.Millisecond, 10*time.Millisecond)
}

// ============================================================================
// Search Tests
// ============================================================================

func TestSearch_DebouncedAndRestorable(t *testing.T) {
	e := startEngine(t, Config{ProjectID: "p1"}, newMemBackend())
	waitFor[BoardReloadedMsg](t, e)

	e.Search("d")
	e.Search("do")
	e.Search("DOCS")
	e.barrier(t)

	e.clock.Advance(300 * time.Millisecond)
	applied := waitFor[SearchAppliedMsg](t, e)
	assert.Equal(t, "docs", applied.Term)
	assert.Equal(t, 1, applied.Board.TaskCount())
	assert.Equal(t, []string{"1"}, ids(applied.Board, models.ColumnToDo))

	// The cache is untouched
	e.Search("")
	e.barrier(t)
	e.clock.Advance(300 * time.Millisecond)
	restored := waitFor[SearchAppliedMsg](t, e)
	assert.Empty(t, restored.Term)
	assert.Equal(t, 3, restored.Board.TaskCount())
}

// ============================================================================
// Task Save Flow Tests
// ============================================================================

func TestTaskSaveFlow(t *testing.T) {
	backend := newMemBackend()
	e := startEngine(t, Config{ProjectID: "p1"}, backend)
	waitFor[BoardReloadedMsg](t, e)

	e.RequestNewTask("")
	req := waitFor[TaskSaveRequestedMsg](t, e)
	assert.Empty(t, req.TaskID)
	assert.Equal(t, models.ColumnToDo, req.DefaultColumn)

	e.RequestNewTask(models.ColumnBlocked)
	assert.Equal(t, models.ColumnBlocked, waitFor[TaskSaveRequestedMsg](t, e).DefaultColumn)

	e.RequestEditTask("3")
	edit := waitFor[TaskSaveRequestedMsg](t, e)
	assert.Equal(t, "3", edit.TaskID)
	assert.Equal(t, models.ColumnDone, edit.DefaultColumn)

	before := backend.fetchCount()
	e.TaskSaved(true)
	assert.Equal(t, "Task created successfully", waitFor[TaskSaveCompletedMsg](t, e).Message)
	waitFor[BoardReloadedMsg](t, e)
	assert.Equal(t, before+1, backend.fetchCount())

	e.TaskSaved(false)
	assert.Equal(t, "Task updated successfully", waitFor[TaskSaveCompletedMsg](t, e).Message)

	e.TaskSaveFailed("Name is required")
	assert.Equal(t, "Name is required", waitFor[TaskSaveFailedMsg](t, e).Message)
}

func TestRun_ClosesMessagesOnStop(t *testing.T) {
	backend := newMemBackend()
	e := New(backend, nil, Config{ProjectID: "p1"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	for msg := range e.Messages() {
		if _, ok := msg.(BoardReloadedMsg); ok {
			cancel()
		}
	}
	require.NoError(t, <-done)

	// Commands after stop are dropped without blocking
	e.Refresh()
	_, err := e.Snapshot(context.Background())
	assert.ErrorIs(t, err, loop.ErrStopped)
}
