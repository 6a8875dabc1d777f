package tui

import (
	tea "charm.land/bubbletea/v2"

	"github.com/thenoetrevino/livekanban/internal/models"
)

// ============================================================================
// BOARD MODE HANDLERS
// ============================================================================

// handleNormalMode dispatches key events on the board to specific handlers.
func (m Model) handleNormalMode(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	m.notice = nil

	key := msg.String()
	km := m.keys

	switch key {
	case km.Quit:
		return m, tea.Quit
	case km.ShowHelp:
		m.mode = ModeHelp
		return m, nil
	case km.AddTask:
		return m.handleAddTask()
	case km.EditTask, "enter":
		return m.handleEditTask()
	case km.PrevColumn, "left":
		return m.handleNavigateColumn(-1)
	case km.NextColumn, "right":
		return m.handleNavigateColumn(1)
	case km.NextTask, "down":
		return m.handleNavigateTask(1)
	case km.PrevTask, "up":
		return m.handleNavigateTask(-1)
	case km.MoveTaskLeft:
		return m.handleMoveTask(-1)
	case km.MoveTaskRight:
		return m.handleMoveTask(1)
	case km.Search:
		return m.handleEnterSearch()
	case km.Refresh:
		m.engine.Refresh()
		return m, nil
	case km.ChangeProject:
		m.engine.ChangeProject()
		return m, nil
	case "esc":
		if m.board.Term != "" {
			m.search.SetValue("")
			m.engine.Search("")
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleNavigateColumn(delta int) (tea.Model, tea.Cmd) {
	next := m.selectedColumn + delta
	if next < 0 || next >= len(m.board.Columns) {
		return m, nil
	}
	m.selectedColumn = next
	m.selectedTask = 0
	return m, nil
}

func (m Model) handleNavigateTask(delta int) (tea.Model, tea.Cmd) {
	if m.selectedColumn >= len(m.board.Columns) {
		return m, nil
	}
	next := m.selectedTask + delta
	if next < 0 || next >= len(m.board.Columns[m.selectedColumn].Tasks) {
		return m, nil
	}
	m.selectedTask = next
	return m, nil
}

// handleMoveTask moves the selected task one column left or right. The
// engine call blocks until the move is applied, so it runs as a command.
func (m Model) handleMoveTask(delta int) (tea.Model, tea.Cmd) {
	task, ok := m.currentTask()
	if !ok {
		return m, nil
	}
	columns := models.Columns()
	next := models.ColumnIndex(task.ColumnName()) + delta
	if next < 0 || next >= len(columns) {
		return m, nil
	}
	target := columns[next]

	ctx, eng := m.ctx, m.engine
	return m, func() tea.Msg {
		if err := eng.MoveTask(ctx, task.ID, target); err != nil {
			return moveRejectedMsg{err: err}
		}
		return nil
	}
}

func (m Model) handleAddTask() (tea.Model, tea.Cmd) {
	col, ok := m.currentColumn()
	if !ok || !col.AcceptsNewTasks() {
		col = models.DefaultColumn()
	}
	m.engine.RequestNewTask(col)
	return m, nil
}

func (m Model) handleEditTask() (tea.Model, tea.Cmd) {
	task, ok := m.currentTask()
	if !ok {
		return m, nil
	}
	m.engine.RequestEditTask(task.ID)
	return m, nil
}

// ============================================================================
// PROJECT SELECTOR HANDLERS
// ============================================================================

// handleSelectorMode handles keys while no project is selected.
func (m Model) handleSelectorMode(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	km := m.keys
	switch msg.String() {
	case km.Quit:
		return m, tea.Quit
	case km.NextTask, "down":
		if m.selectedProject < len(m.projects)-1 {
			m.selectedProject++
		}
	case km.PrevTask, "up":
		if m.selectedProject > 0 {
			m.selectedProject--
		}
	case km.Refresh:
		m.engine.RetryProjects()
	case "enter":
		if m.selectedProject < len(m.projects) {
			m.notice = nil
			m.engine.SelectProject(m.projects[m.selectedProject].ID)
		}
	}
	return m, nil
}
