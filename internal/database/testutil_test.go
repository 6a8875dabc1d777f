package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/thenoetrevino/livekanban/internal/models"
)

// ============================================================================
// DATABASE SETUP HELPERS
// ============================================================================

// setupTestDB creates an in-memory database with the schema applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), MemoryPath)
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu      sync.Mutex
	channel string
	events  []models.RemoteEvent
	fail    error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, ev models.RemoteEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.channel = channel
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) published() []models.RemoteEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.RemoteEvent(nil), p.events...)
}

var errPublishDown = errors.New("hub down")

type fixture struct {
	repo  *Repository
	pub   *recordingPublisher
	clock *clockwork.FakeClock
	db    *sql.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	pub := &recordingPublisher{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	repo := NewRepository(db,
		WithActor("alice"),
		WithPublisher(pub, "board"),
		WithClock(clock),
	)
	return &fixture{repo: repo, pub: pub, clock: clock, db: db}
}

// createProject inserts a project or fails the test
func (f *fixture) createProject(t *testing.T, name string) string {
	t.Helper()
	p, err := f.repo.ProjectRepo.Create(context.Background(), name, "")
	require.NoError(t, err)
	return p.ID
}

// createTask inserts a task one minute after the previous one
func (f *fixture) createTask(t *testing.T, projectID, name string, column models.ColumnName) *models.Task {
	t.Helper()
	f.clock.Advance(time.Minute)
	task, err := f.repo.CreateTask(context.Background(), TaskInput{
		ProjectID: projectID,
		Name:      name,
		Column:    column,
	})
	require.NoError(t, err)
	return task
}
