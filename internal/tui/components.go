package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/thenoetrevino/livekanban/internal/board"
	"github.com/thenoetrevino/livekanban/internal/models"
)

const descriptionLines = 2

// renderCard renders a single task as a card
//
//	╭────────────────────────╮
//	│ {Task name}            │
//	│ {description, wrapped} │
//	│ High · Mar 3 · @alice  │
//	╰────────────────────────╯
func renderCard(s Styles, c board.Card, selected bool, now time.Time) string {
	inner := cardWidth - 2

	lines := []string{lipgloss.NewStyle().Bold(true).Render(truncate.StringWithTail(c.Name, uint(inner), "…"))}

	if c.Description != "" {
		wrapped := strings.Split(wordwrap.String(c.Description, inner), "\n")
		if len(wrapped) > descriptionLines {
			wrapped = wrapped[:descriptionLines]
			wrapped[descriptionLines-1] = truncate.StringWithTail(wrapped[descriptionLines-1]+" …", uint(inner), "…")
		}
		for _, l := range wrapped {
			lines = append(lines, s.Subtle.Render(l))
		}
	}

	if meta := cardMetadata(s, c.Task, now); meta != "" {
		lines = append(lines, meta)
	}
	if c.BeingEdited {
		lines = append(lines, s.Due(models.DueSoon).Render("✎ being edited"))
	}

	style := s.Card
	switch {
	case selected:
		style = s.Cursor
	case c.BeingEdited:
		style = s.Editing
	}
	return style.Render(strings.Join(lines, "\n"))
}

// cardMetadata renders the priority, due date and assignee badges.
func cardMetadata(s Styles, t models.Task, now time.Time) string {
	var parts []string
	if t.Priority != "" {
		parts = append(parts, s.Priority(t.Priority).Render(string(t.Priority)))
	}
	if due := t.FormattedDueDate(); due != "" {
		u := t.Urgency(now)
		if u == models.DueOverdue {
			due = "! " + due
		}
		parts = append(parts, s.Due(u).Render(due))
	}
	if t.AssigneeName != "" {
		parts = append(parts, s.Subtle.Render("@"+t.AssigneeName))
	}
	return strings.Join(parts, s.Subtle.Render(" · "))
}

// renderColumn renders a column header and its cards. selectedTask is -1
// when the column does not hold the cursor.
func renderColumn(s Styles, col board.Column, active bool, selectedTask int, height int, now time.Time) string {
	header := s.Header.Render(fmt.Sprintf("%s (%d)", col.Name, col.Count))

	var cards []string
	used := lipgloss.Height(header)
	for i, c := range col.Tasks {
		card := renderCard(s, c, i == selectedTask, now)
		if height > 0 && used+lipgloss.Height(card) > height {
			cards = append(cards, s.Subtle.Render(fmt.Sprintf("+%d more", len(col.Tasks)-i)))
			break
		}
		used += lipgloss.Height(card)
		cards = append(cards, card)
	}
	if len(col.Tasks) == 0 {
		cards = append(cards, s.Subtle.Italic(true).Render("no tasks"))
	}
	if active && col.Name.AcceptsNewTasks() {
		cards = append(cards, s.Subtle.Render("+ add task"))
	}

	style := s.Column
	if active {
		style = s.Selected
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, append([]string{header}, cards...)...))
}
