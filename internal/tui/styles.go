package tui

import (
	"charm.land/lipgloss/v2"

	"github.com/thenoetrevino/livekanban/internal/config/colors"
	"github.com/thenoetrevino/livekanban/internal/models"
)

const (
	columnWidth = 30
	cardWidth   = 26 // column width minus border and padding
)

// Styles holds every lipgloss style the board uses, built from a color scheme.
type Styles struct {
	Title    lipgloss.Style
	Subtle   lipgloss.Style
	Column   lipgloss.Style
	Selected lipgloss.Style // selected column
	Header   lipgloss.Style
	Card     lipgloss.Style
	Cursor   lipgloss.Style // selected card
	Editing  lipgloss.Style // card someone else is editing
	Info     lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	FormBox  lipgloss.Style
	Label    lipgloss.Style

	priority map[models.Priority]lipgloss.Style
	overdue  lipgloss.Style
	soon     lipgloss.Style
}

// NewStyles builds the board styles from scheme.
func NewStyles(scheme colors.ColorScheme) Styles {
	scheme.ApplyDefaults()
	c := lipgloss.Color

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c(scheme.TaskBorder)).
		Foreground(c(scheme.Normal)).
		Padding(0, 1).
		Width(cardWidth)

	column := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c(scheme.ColumnBorder)).
		Padding(0, 1).
		Width(columnWidth)

	notice := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(c(scheme.Title)),
		Subtle:   lipgloss.NewStyle().Foreground(c(scheme.Subtle)),
		Column:   column,
		Selected: column.BorderForeground(c(scheme.Accent)),
		Header:   lipgloss.NewStyle().Bold(true).Foreground(c(scheme.Accent)),
		Card:     card,
		Cursor:   card.BorderForeground(c(scheme.SelectedBorder)),
		Editing:  card.BorderForeground(c(scheme.EditingBorder)).BorderStyle(lipgloss.DoubleBorder()),
		Info:     notice.Foreground(c(scheme.InfoFg)).Background(c(scheme.InfoBg)),
		Warning:  notice.Foreground(c(scheme.WarningFg)).Background(c(scheme.WarningBg)),
		Error:    notice.Foreground(c(scheme.ErrorFg)).Background(c(scheme.ErrorBg)),
		FormBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(c(scheme.Accent)).
			Padding(1, 2),
		Label: lipgloss.NewStyle().Bold(true).Foreground(c(scheme.Title)),

		priority: map[models.Priority]lipgloss.Style{
			models.PriorityLow:      lipgloss.NewStyle().Foreground(c(scheme.PriorityLow)),
			models.PriorityMedium:   lipgloss.NewStyle().Foreground(c(scheme.PriorityMedium)),
			models.PriorityHigh:     lipgloss.NewStyle().Foreground(c(scheme.PriorityHigh)).Bold(true),
			models.PriorityCritical: lipgloss.NewStyle().Foreground(c(scheme.PriorityCritical)).Bold(true),
		},
		overdue: lipgloss.NewStyle().Foreground(c(scheme.DueOverdue)).Bold(true),
		soon:    lipgloss.NewStyle().Foreground(c(scheme.DueSoon)),
	}
}

// Priority returns the badge style for p.
func (s Styles) Priority(p models.Priority) lipgloss.Style {
	if st, ok := s.priority[p]; ok {
		return st
	}
	return s.Subtle
}

// Due returns the badge style for a due-date urgency.
func (s Styles) Due(u models.DueUrgency) lipgloss.Style {
	switch u {
	case models.DueOverdue:
		return s.overdue
	case models.DueToday, models.DueSoon:
		return s.soon
	default:
		return s.Subtle
	}
}
