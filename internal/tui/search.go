package tui

import (
	tea "charm.land/bubbletea/v2"
)

// ============================================================================
// SEARCH MODE HANDLERS
// ============================================================================

// handleEnterSearch focuses the search box, keeping the current term.
func (m Model) handleEnterSearch() (tea.Model, tea.Cmd) {
	m.mode = ModeSearch
	m.search.SetValue(m.board.Term)
	m.search.CursorEnd()
	return m, m.search.Focus()
}

// handleSearchMode handles keyboard input in search mode. Every edit is
// forwarded to the engine, which waits for typing to pause before filtering.
func (m Model) handleSearchMode(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		// Keep the filter and go back to the board
		m.search.Blur()
		m.mode = ModeBoard
		return m, nil
	case "esc":
		m.search.Blur()
		m.search.SetValue("")
		m.mode = ModeBoard
		m.engine.Search("")
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if after := m.search.Value(); after != before {
		m.engine.Search(after)
	}
	return m, cmd
}
