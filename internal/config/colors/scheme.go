package colors

// ColorScheme defines all configurable color values
type ColorScheme struct {
	// Preset name (e.g., "default", "monochrome")
	Preset string `yaml:"preset"`

	// Primary accent color (used for selections, titles, highlights)
	Accent string `yaml:"accent"`

	// UI element colors
	ColumnBorder   string `yaml:"column_border"`
	TaskBorder     string `yaml:"task_border"`
	SelectedBorder string `yaml:"selected_border"`
	EditingBorder  string `yaml:"editing_border"` // card being edited by someone else

	// Text colors
	Title  string `yaml:"title"`
	Subtle string `yaml:"subtle"` // Muted/placeholder text
	Normal string `yaml:"normal"`

	// Card badges
	PriorityLow      string `yaml:"priority_low"`
	PriorityMedium   string `yaml:"priority_medium"`
	PriorityHigh     string `yaml:"priority_high"`
	PriorityCritical string `yaml:"priority_critical"`
	DueOverdue       string `yaml:"due_overdue"`
	DueSoon          string `yaml:"due_soon"`

	// Notification colors (foreground/background pairs)
	InfoFg    string `yaml:"info_fg"`
	InfoBg    string `yaml:"info_bg"`
	WarningFg string `yaml:"warning_fg"`
	WarningBg string `yaml:"warning_bg"`
	ErrorFg   string `yaml:"error_fg"`
	ErrorBg   string `yaml:"error_bg"`
}

// GetPreset returns a preset color scheme by name
func GetPreset(name string) *ColorScheme {
	switch name {
	case "monochrome":
		return Monochrome()
	default:
		return Default()
	}
}

// ApplyDefaults fills in missing color values using the preset as base
// If preset is specified, loads that preset first, then overrides with custom values
func (c *ColorScheme) ApplyDefaults() {
	preset := GetPreset(c.Preset)

	fields := []struct {
		dst *string
		def string
	}{
		{&c.Accent, preset.Accent},
		{&c.ColumnBorder, preset.ColumnBorder},
		{&c.TaskBorder, preset.TaskBorder},
		{&c.SelectedBorder, preset.SelectedBorder},
		{&c.EditingBorder, preset.EditingBorder},
		{&c.Title, preset.Title},
		{&c.Subtle, preset.Subtle},
		{&c.Normal, preset.Normal},
		{&c.PriorityLow, preset.PriorityLow},
		{&c.PriorityMedium, preset.PriorityMedium},
		{&c.PriorityHigh, preset.PriorityHigh},
		{&c.PriorityCritical, preset.PriorityCritical},
		{&c.DueOverdue, preset.DueOverdue},
		{&c.DueSoon, preset.DueSoon},
		{&c.InfoFg, preset.InfoFg},
		{&c.InfoBg, preset.InfoBg},
		{&c.WarningFg, preset.WarningFg},
		{&c.WarningBg, preset.WarningBg},
		{&c.ErrorFg, preset.ErrorFg},
		{&c.ErrorBg, preset.ErrorBg},
	}
	for _, f := range fields {
		if *f.dst == "" {
			*f.dst = f.def
		}
	}
	if c.Preset == "" {
		c.Preset = preset.Preset
	}
}

// MergeFrom overrides the non-empty values of other onto c.
func (c *ColorScheme) MergeFrom(other ColorScheme) {
	if other.Preset != "" && other.Preset != c.Preset {
		// A different preset replaces every color the file does not set
		*c = ColorScheme{Preset: other.Preset}
	}
	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	merge(&c.Accent, other.Accent)
	merge(&c.ColumnBorder, other.ColumnBorder)
	merge(&c.TaskBorder, other.TaskBorder)
	merge(&c.SelectedBorder, other.SelectedBorder)
	merge(&c.EditingBorder, other.EditingBorder)
	merge(&c.Title, other.Title)
	merge(&c.Subtle, other.Subtle)
	merge(&c.Normal, other.Normal)
	merge(&c.PriorityLow, other.PriorityLow)
	merge(&c.PriorityMedium, other.PriorityMedium)
	merge(&c.PriorityHigh, other.PriorityHigh)
	merge(&c.PriorityCritical, other.PriorityCritical)
	merge(&c.DueOverdue, other.DueOverdue)
	merge(&c.DueSoon, other.DueSoon)
	merge(&c.InfoFg, other.InfoFg)
	merge(&c.InfoBg, other.InfoBg)
	merge(&c.WarningFg, other.WarningFg)
	merge(&c.WarningBg, other.WarningBg)
	merge(&c.ErrorFg, other.ErrorFg)
	merge(&c.ErrorBg, other.ErrorBg)
	c.ApplyDefaults()
}
