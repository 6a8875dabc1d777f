package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/thenoetrevino/livekanban/internal/database"
	"github.com/thenoetrevino/livekanban/internal/models"
)

const dueDateLayout = "2006-01-02"

// Form fields, in tab order.
const (
	fieldName = iota
	fieldDescription
	fieldPriority
	fieldAssignee
	fieldDue
	fieldColumn
	fieldCount
)

var fieldTitles = [fieldCount]string{
	"Name",
	"Description",
	"Priority (Low, Medium, High, Critical)",
	"Assignee",
	"Due date (YYYY-MM-DD)",
	"Column",
}

// formSavedMsg and formFailedMsg carry the outcome of a save.
type formSavedMsg struct {
	created bool
}

type formFailedMsg struct {
	err error
}

// taskForm edits a new or existing task.
type taskForm struct {
	taskID     string // empty for a new task
	assigneeID string
	status     string
	inputs     [fieldCount]textinput.Model
	focus      int
	err        string
	saving     bool
}

func newTaskForm(task *models.Task, column models.ColumnName) *taskForm {
	f := &taskForm{}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = "> "
		f.inputs[i] = ti
	}
	f.inputs[fieldName].CharLimit = 200
	f.inputs[fieldName].Placeholder = "What needs doing?"

	if task != nil {
		f.taskID = task.ID
		f.assigneeID = task.AssigneeID
		f.status = task.Status
		f.inputs[fieldName].SetValue(task.Name)
		f.inputs[fieldDescription].SetValue(task.Description)
		f.inputs[fieldPriority].SetValue(string(task.Priority))
		f.inputs[fieldAssignee].SetValue(task.AssigneeName)
		if task.DueDate != nil {
			f.inputs[fieldDue].SetValue(task.DueDate.Format(dueDateLayout))
		}
		column = task.ColumnName()
	}
	f.inputs[fieldColumn].SetValue(string(column))
	f.inputs[fieldName].Focus()
	return f
}

// isNew reports whether the form creates a task.
func (f *taskForm) isNew() bool {
	return f.taskID == ""
}

func (f *taskForm) setFocus(i int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (i + fieldCount) % fieldCount
	return f.inputs[f.focus].Focus()
}

// update forwards msg to the focused input.
func (f *taskForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// input validates the form. Empty fields keep their zero values.
func (f *taskForm) input(projectID string) (database.TaskInput, error) {
	in := database.TaskInput{
		ProjectID:    projectID,
		Name:         strings.TrimSpace(f.inputs[fieldName].Value()),
		Description:  strings.TrimSpace(f.inputs[fieldDescription].Value()),
		Status:       f.status,
		AssigneeID:   f.assigneeID,
		AssigneeName: strings.TrimSpace(f.inputs[fieldAssignee].Value()),
	}
	if in.Name == "" {
		return in, errors.New("name is required")
	}

	if p := strings.TrimSpace(f.inputs[fieldPriority].Value()); p != "" {
		priority, ok := parsePriority(p)
		if !ok {
			return in, fmt.Errorf("unknown priority %q", p)
		}
		in.Priority = priority
	}

	if d := strings.TrimSpace(f.inputs[fieldDue].Value()); d != "" {
		due, err := time.ParseInLocation(dueDateLayout, d, time.Local)
		if err != nil {
			return in, fmt.Errorf("due date must look like %s", dueDateLayout)
		}
		in.DueDate = &due
	}

	col, ok := models.ParseColumn(strings.TrimSpace(f.inputs[fieldColumn].Value()))
	if !ok {
		return in, fmt.Errorf("unknown column %q", f.inputs[fieldColumn].Value())
	}
	in.Column = col
	return in, nil
}

func parsePriority(s string) (models.Priority, bool) {
	for _, p := range []models.Priority{
		models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical,
	} {
		if strings.EqualFold(s, string(p)) {
			return p, true
		}
	}
	return "", false
}

// ============================================================================
// FORM MODE HANDLERS
// ============================================================================

// handleFormMode handles keys while the task form is open.
func (m Model) handleFormMode(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	f := m.form
	if f == nil {
		m.mode = ModeBoard
		return m, nil
	}

	switch key := msg.String(); key {
	case "esc":
		m.form = nil
		m.mode = ModeBoard
		return m, nil
	case "tab", "down":
		return m, f.setFocus(f.focus + 1)
	case "shift+tab", "up":
		return m, f.setFocus(f.focus - 1)
	case m.keys.SaveForm:
		return m.saveForm()
	case "enter":
		if f.focus == fieldCount-1 {
			return m.saveForm()
		}
		return m, f.setFocus(f.focus + 1)
	}
	return m, f.update(msg)
}

// saveForm validates the form and persists it through the saver.
func (m Model) saveForm() (tea.Model, tea.Cmd) {
	f := m.form
	if f.saving {
		return m, nil
	}
	in, err := f.input(m.board.ProjectID)
	if err != nil {
		f.err = err.Error()
		return m, nil
	}
	f.err = ""
	f.saving = true

	saver, taskID := m.saver, f.taskID
	ctx, cancel := m.requestContext()
	return m, func() tea.Msg {
		defer cancel()
		var err error
		if taskID == "" {
			_, err = saver.CreateTask(ctx, in)
		} else {
			_, err = saver.UpdateTask(ctx, taskID, in)
		}
		if err != nil {
			return formFailedMsg{err: err}
		}
		return formSavedMsg{created: taskID == ""}
	}
}
