package tui

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// View renders the current state of the application.
func (m Model) View() tea.View {
	var view tea.View
	view.AltScreen = true

	if m.width == 0 {
		view.Content = "Loading..."
		return view
	}

	var body string
	switch {
	case m.mode == ModeForm && m.form != nil:
		body = m.viewForm()
	case m.mode == ModeHelp:
		body = m.viewHelp()
	case m.board.Selector():
		body = m.viewSelector()
	default:
		body = m.viewBoard()
	}

	sections := []string{m.viewHeader()}
	if banner := m.viewBanners(); banner != "" {
		sections = append(sections, banner)
	}
	sections = append(sections, body, m.viewFooter())
	view.Content = lipgloss.JoinVertical(lipgloss.Left, sections...)
	return view
}

func (m Model) viewHeader() string {
	title := m.styles.Title.Render("livekanban")
	var status []string
	if m.loading {
		status = append(status, "Loading…")
	}
	if m.board.InFlight > 0 {
		status = append(status, fmt.Sprintf("saving %d", m.board.InFlight))
	}
	if m.board.Term != "" {
		status = append(status, fmt.Sprintf("filter: %q (%d)", m.board.Term, m.board.TaskCount()))
	}
	if len(status) == 0 {
		return title
	}
	return title + "  " + m.styles.Subtle.Render(strings.Join(status, " · "))
}

// viewBanners renders the advisory and the current notification.
func (m Model) viewBanners() string {
	var lines []string
	if m.advisory != "" {
		lines = append(lines, m.styles.Warning.Render(m.advisory))
	}
	if m.notice != nil {
		style := m.styles.Info
		if m.notice.level == levelError {
			style = m.styles.Error
		}
		lines = append(lines, style.Render(m.notice.text))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewBoard() string {
	if m.board.Err != nil {
		return m.styles.Subtle.Render(fmt.Sprintf("No tasks to show. Press %s to retry.", m.keys.Refresh))
	}

	now := m.clock.Now()
	// header, banners, footer and the column borders
	height := m.height - 8
	cols := make([]string, 0, len(m.board.Columns))
	for i, col := range m.board.Columns {
		selected := -1
		if i == m.selectedColumn {
			selected = m.selectedTask
		}
		cols = append(cols, renderColumn(m.styles, col, i == m.selectedColumn, selected, height, now))
	}
	out := lipgloss.JoinHorizontal(lipgloss.Top, cols...)

	if m.mode == ModeSearch {
		out = lipgloss.JoinVertical(lipgloss.Left, m.search.View(), out)
	}
	return out
}

func (m Model) viewSelector() string {
	var b strings.Builder
	b.WriteString(m.styles.Label.Render("Select a project"))
	b.WriteString("\n\n")

	switch {
	case m.projectsErr != nil:
		b.WriteString(m.styles.Error.Render(m.projectsErr.Error()))
		b.WriteString("\n")
		b.WriteString(m.styles.Subtle.Render(fmt.Sprintf("Press %s to retry.", m.keys.Refresh)))
	case len(m.projects) == 0 && !m.loading:
		b.WriteString(m.styles.Subtle.Render("No projects yet. Run `livekanban seed` to create one."))
	default:
		for i, p := range m.projects {
			cursor := "  "
			line := fmt.Sprintf("%s  %s", p.Name, m.styles.Subtle.Render(fmt.Sprintf("%s · %d tasks", p.Status, p.TaskCount)))
			if i == m.selectedProject {
				cursor = m.styles.Header.Render("> ")
			}
			b.WriteString(cursor + line + "\n")
		}
	}
	return b.String()
}

func (m Model) viewForm() string {
	f := m.form
	title := "Edit task"
	if f.isNew() {
		title = "New task"
	}

	rows := []string{m.styles.Title.Render(title), ""}
	for i := range f.inputs {
		rows = append(rows, m.styles.Label.Render(fieldTitles[i]), f.inputs[i].View(), "")
	}
	if f.err != "" {
		rows = append(rows, m.styles.Error.Render(f.err))
	}
	if f.saving {
		rows = append(rows, m.styles.Subtle.Render("Saving…"))
	}
	rows = append(rows, m.styles.Subtle.Render(fmt.Sprintf("tab next · %s save · esc cancel", m.keys.SaveForm)))

	box := m.styles.FormBox.Width(max(m.width/2, 50)).Render(strings.Join(rows, "\n"))
	return lipgloss.Place(m.width, max(m.height-4, lipgloss.Height(box)), lipgloss.Center, lipgloss.Center, box)
}

func (m Model) viewHelp() string {
	km := m.keys
	bindings := [][2]string{
		{km.PrevColumn + "/" + km.NextColumn, "previous / next column"},
		{km.PrevTask + "/" + km.NextTask, "previous / next task"},
		{km.MoveTaskLeft + "/" + km.MoveTaskRight, "move task left / right"},
		{km.AddTask, "add task"},
		{km.EditTask, "edit task"},
		{km.Search, "search"},
		{km.Refresh, "refresh"},
		{km.ChangeProject, "change project"},
		{km.Quit, "quit"},
	}
	rows := []string{m.styles.Title.Render("Keys"), ""}
	for _, b := range bindings {
		rows = append(rows, fmt.Sprintf("%-8s %s", b[0], m.styles.Subtle.Render(b[1])))
	}
	rows = append(rows, "", m.styles.Subtle.Render("press any key to close"))
	return m.styles.FormBox.Render(strings.Join(rows, "\n"))
}

func (m Model) viewFooter() string {
	km := m.keys
	var hint string
	switch {
	case m.mode == ModeSearch:
		hint = "enter keep filter · esc clear"
	case m.board.Selector():
		hint = fmt.Sprintf("enter open · %s retry · %s quit", km.Refresh, km.Quit)
	default:
		hint = fmt.Sprintf("%s help · %s add · %s/%s move · %s search · %s quit",
			km.ShowHelp, km.AddTask, km.MoveTaskLeft, km.MoveTaskRight, km.Search, km.Quit)
	}
	if task, ok := m.currentTask(); ok && !m.board.Selector() {
		hint = fmt.Sprintf("%s  %s", m.styles.Subtle.Render(string(task.ColumnName())+" ›"), hint)
	}
	return m.styles.Subtle.Render(hint)
}
