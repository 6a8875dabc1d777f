// Package tui is the terminal host for the board engine. It forwards key
// presses to the engine and renders the messages the engine sends back.
package tui

import (
	"context"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/jonboulle/clockwork"

	"github.com/thenoetrevino/livekanban/internal/config"
	"github.com/thenoetrevino/livekanban/internal/database"
	"github.com/thenoetrevino/livekanban/internal/engine"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// Engine is the part of *engine.Engine the host drives.
type Engine interface {
	Messages() <-chan engine.Message
	SelectProject(projectID string)
	ChangeProject()
	RetryProjects()
	Refresh()
	MoveTask(ctx context.Context, taskID string, target models.ColumnName) error
	RequestNewTask(column models.ColumnName)
	RequestEditTask(taskID string)
	TaskSaved(created bool)
	TaskSaveFailed(message string)
	Search(term string)
}

// TaskSaver persists the task form. *database.Repository and *api.Client
// both satisfy it.
type TaskSaver interface {
	CreateTask(ctx context.Context, in database.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, taskID string, in database.TaskInput) (*models.Task, error)
}

// Mode is the current input mode of the host.
type Mode int

const (
	ModeBoard Mode = iota
	ModeSearch
	ModeForm
	ModeHelp
)

type noticeLevel int

const (
	levelInfo noticeLevel = iota
	levelError
)

type notice struct {
	level noticeLevel
	text  string
}

// Model is the bubbletea model of the board.
type Model struct {
	ctx     context.Context
	engine  Engine
	saver   TaskSaver
	keys    config.KeyMappings
	styles  Styles
	clock   clockwork.Clock
	timeout time.Duration

	width  int
	height int
	mode   Mode

	loading     bool
	board       engine.Board
	projects    []models.ProjectSummary
	projectsErr error
	advisory    string
	notice      *notice

	selectedProject int
	selectedColumn  int
	selectedTask    int

	search textinput.Model
	form   *taskForm
}

// Option configures a Model.
type Option func(*Model)

// WithClock sets the clock used for due-date badges.
func WithClock(c clockwork.Clock) Option {
	return func(m *Model) { m.clock = c }
}

// WithRequestTimeout bounds each move and save request.
func WithRequestTimeout(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// New creates the host model. ctx bounds every request the host starts.
func New(ctx context.Context, eng Engine, saver TaskSaver, cfg *config.Config, opts ...Option) Model {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "filter by name, description or assignee"

	m := Model{
		ctx:     ctx,
		engine:  eng,
		saver:   saver,
		keys:    cfg.KeyMappings,
		styles:  NewStyles(cfg.ColorScheme),
		clock:   clockwork.NewRealClock(),
		timeout: cfg.Timing.RequestTimeout,
		loading: true,
		search:  search,
	}
	if m.timeout <= 0 {
		m.timeout = 10 * time.Second
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts listening to the engine.
func (m Model) Init() tea.Cmd {
	return listen(m.engine.Messages())
}

// Mode returns the current input mode.
func (m Model) Mode() Mode {
	return m.mode
}

// engineClosedMsg means the engine stopped and the host should exit.
type engineClosedMsg struct{}

// listen waits for the next engine message.
func listen(ch <-chan engine.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return engineClosedMsg{}
		}
		return msg
	}
}

// currentColumn returns the selected column, if the board has one.
func (m Model) currentColumn() (models.ColumnName, bool) {
	if m.selectedColumn < 0 || m.selectedColumn >= len(m.board.Columns) {
		return "", false
	}
	return m.board.Columns[m.selectedColumn].Name, true
}

// currentTask returns the task under the cursor.
func (m Model) currentTask() (models.Task, bool) {
	if m.selectedColumn < 0 || m.selectedColumn >= len(m.board.Columns) {
		return models.Task{}, false
	}
	cards := m.board.Columns[m.selectedColumn].Tasks
	if m.selectedTask < 0 || m.selectedTask >= len(cards) {
		return models.Task{}, false
	}
	return cards[m.selectedTask].Task, true
}

// findTask looks a task up on the visible board.
func (m Model) findTask(taskID string) (models.Task, bool) {
	for _, col := range m.board.Columns {
		for _, c := range col.Tasks {
			if c.ID == taskID {
				return c.Task, true
			}
		}
	}
	return models.Task{}, false
}

// setBoard replaces the board, keeping the cursor on the same task when it
// is still visible.
func (m *Model) setBoard(b engine.Board) {
	prev, hadPrev := m.currentTask()
	m.board = b
	if hadPrev {
		m.focusTask(prev.ID)
	}
	m.clampSelection()
}

// focusTask moves the cursor onto taskID.
func (m *Model) focusTask(taskID string) bool {
	for ci, col := range m.board.Columns {
		for ti, c := range col.Tasks {
			if c.ID == taskID {
				m.selectedColumn, m.selectedTask = ci, ti
				return true
			}
		}
	}
	return false
}

func (m *Model) clampSelection() {
	if n := len(m.board.Columns); m.selectedColumn >= n {
		m.selectedColumn = max(n-1, 0)
	}
	if m.selectedColumn < len(m.board.Columns) {
		if n := len(m.board.Columns[m.selectedColumn].Tasks); m.selectedTask >= n {
			m.selectedTask = max(n-1, 0)
		}
	}
	if n := len(m.projects); m.selectedProject >= n {
		m.selectedProject = max(n-1, 0)
	}
}

func (m *Model) info(text string) {
	m.notice = &notice{level: levelInfo, text: text}
}

func (m *Model) fail(text string) {
	m.notice = &notice{level: levelError, text: text}
}

func (m Model) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, m.timeout)
}
