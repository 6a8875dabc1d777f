package tui

import (
	"errors"
	"log/slog"

	tea "charm.land/bubbletea/v2"

	"github.com/thenoetrevino/livekanban/internal/engine"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// moveRejectedMsg reports a move the engine refused before touching the board.
type moveRejectedMsg struct {
	err error
}

// Update handles all messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case engineClosedMsg:
		return m, tea.Quit

	case engine.Message:
		m = m.handleEngineMessage(msg)
		return m, listen(m.engine.Messages())

	case moveRejectedMsg:
		// Same-column moves are no-ops, not mistakes
		if errors.Is(msg.err, models.ErrSameColumn) {
			return m, nil
		}
		slog.Debug("move rejected", "error", msg.err)
		m.fail(msg.err.Error())
		return m, nil

	case formSavedMsg:
		m.form = nil
		m.mode = ModeBoard
		m.engine.TaskSaved(msg.created)
		return m, nil

	case formFailedMsg:
		if m.form != nil {
			m.form.saving = false
			m.form.err = msg.err.Error()
		}
		m.engine.TaskSaveFailed(msg.err.Error())
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	if m.mode == ModeForm && m.form != nil {
		return m, m.form.update(msg)
	}
	return m, nil
}

// handleEngineMessage applies one engine message to the model.
func (m Model) handleEngineMessage(msg engine.Message) Model {
	switch msg := msg.(type) {
	case engine.LoadingMsg:
		m.loading = msg.Loading

	case engine.ProjectsLoadedMsg:
		m.projects = msg.Projects
		m.projectsErr = nil
		m.clampSelection()

	case engine.ProjectsErrorMsg:
		m.projects = nil
		m.projectsErr = msg.Err

	case engine.BoardReloadedMsg:
		if msg.Board.Selector() {
			m.advisory = ""
			m.selectedColumn, m.selectedTask = 0, 0
		}
		m.setBoard(msg.Board)

	case engine.BoardErrorMsg:
		m.setBoard(msg.Board)
		m.fail(msg.Err.Error())

	case engine.TaskMovedMsg:
		m.setBoard(msg.Board)
		m.focusTask(msg.TaskID)

	case engine.MoveSucceededMsg:
		slog.Debug("move persisted", "task_id", msg.TaskID, "column", msg.Column)

	case engine.MoveFailedMsg:
		m.fail(msg.Err.Error())

	case engine.AdvisoryMsg:
		m.advisory = msg.Text

	case engine.PresenceChangedMsg:
		m.setBoard(msg.Board)

	case engine.SearchAppliedMsg:
		m.setBoard(msg.Board)

	case engine.TaskSaveRequestedMsg:
		var task *models.Task
		if msg.TaskID != "" {
			t, ok := m.findTask(msg.TaskID)
			if !ok {
				slog.Debug("edit requested for task not on screen", "task_id", msg.TaskID)
				return m
			}
			task = &t
		}
		m.form = newTaskForm(task, msg.DefaultColumn)
		m.mode = ModeForm
		m.notice = nil

	case engine.TaskSaveCompletedMsg:
		m.info(msg.Message)

	case engine.TaskSaveFailedMsg:
		m.fail(msg.Message)
	}
	return m
}

// handleKey dispatches a key press by mode.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.mode {
	case ModeSearch:
		return m.handleSearchMode(msg)
	case ModeForm:
		return m.handleFormMode(msg)
	case ModeHelp:
		m.mode = ModeBoard
		return m, nil
	}

	if m.board.Selector() {
		return m.handleSelectorMode(msg)
	}
	return m.handleNormalMode(msg)
}
