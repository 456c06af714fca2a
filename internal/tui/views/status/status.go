package status

import (
	"fmt"

	"github.com/appointment-assistant/sessionsync/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	LastError string
	Active    int
	Total     int
	Working   int
	Caller    string
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// SetCounts updates the appointment and indicator counts.
func (m *Model) SetCounts(active, total, working int) {
	m.Active = active
	m.Total = total
	m.Working = working
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	switch {
	case m.Connected:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	case m.LastError != "":
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Reconnecting...")
	default:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("○ Connecting...")
	}

	counts := fmt.Sprintf("%d active  %d total  %d working", m.Active, m.Total, m.Working)

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + counts
	if m.Caller != "" {
		content += sep + theme.StyleHeader.Render(m.Caller)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
