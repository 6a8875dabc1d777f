package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thenoetrevino/livekanban/internal/api"
	"github.com/thenoetrevino/livekanban/internal/config"
	"github.com/thenoetrevino/livekanban/internal/database"
	"github.com/thenoetrevino/livekanban/internal/events"
	"github.com/thenoetrevino/livekanban/internal/events/redisbus"
	"github.com/thenoetrevino/livekanban/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	cfg := config.Default()
	cfg.ActorID = "tester"
	cfg.Backend.DBPath = filepath.Join(dir, "board.db")
	cfg.Transport.SocketPath = filepath.Join(dir, "missing.sock")
	return cfg
}

func TestNew_SQLiteWithoutTransport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transport.Kind = config.TransportNone

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	assert.Nil(t, a.Transport)
	require.NotNil(t, a.Repo)
	assert.Equal(t, "tester", a.Actor)
	assert.Equal(t, "tester", a.Repo.Actor())

	projects, err := a.Store.FetchProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestNew_SocketWithoutDaemon(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err, "a missing daemon must not stop the board")
	defer func() { _ = a.Close() }()

	assert.IsType(t, &events.SocketTransport{}, a.Transport)

	// Writes still succeed without a publisher
	id, err := database.Seed(context.Background(), a.Repo)
	require.NoError(t, err)
	tasks, err := a.Store.FetchTasks(context.Background(), id)
	require.NoError(t, err)
	assert.NotEmpty(t, tasks)
}

func TestNew_RedisPublishesLocalWrites(t *testing.T) {
	m, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	cfg := testConfig(t)
	cfg.Transport.Kind = config.TransportRedis
	cfg.Transport.RedisAddr = m.Addr()

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	require.IsType(t, &redisbus.Bus{}, a.Transport)

	var (
		mu  sync.Mutex
		got []models.RemoteEvent
	)
	_, err = a.Transport.Subscribe(context.Background(), cfg.Channel, events.FromLatest, func(ev models.RemoteEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})
	require.NoError(t, err)

	project, err := a.Repo.ProjectRepo.Create(context.Background(), "Ops", "")
	require.NoError(t, err)
	task, err := a.Store.CreateTask(context.Background(), database.TaskInput{ProjectID: project.ID, Name: "Rotate keys"})
	require.NoError(t, err)
	require.NoError(t, a.Store.PersistColumnChange(context.Background(), task.ID, models.ColumnDone))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, models.ActionTaskUpdate, got[0].ActionType)
	assert.Equal(t, models.ActionColumnChange, got[1].ActionType)
	assert.Equal(t, "tester", got[1].ActorID)
	assert.Equal(t, project.ID, got[1].ProjectID)
}

func TestNew_HTTPBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transport.Kind = config.TransportNone
	cfg.Backend.Kind = config.BackendHTTP
	cfg.Backend.BaseURL = "http://board.internal:9000/"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	client, ok := a.Store.(*api.Client)
	require.True(t, ok)
	assert.Equal(t, "http://board.internal:9000", client.BaseURL)
	assert.Equal(t, "tester", client.Actor)
	assert.Nil(t, a.Repo)
}

func TestNew_BadDatabasePath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transport.Kind = config.TransportNone
	// A file where the parent directory should be
	cfg.Backend.DBPath = filepath.Join(cfg.Backend.DBPath, "nested", "board.db")
	require.NoError(t, os.WriteFile(filepath.Dir(filepath.Dir(cfg.Backend.DBPath)), nil, 0o644))

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to initialize database")
}
