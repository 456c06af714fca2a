// Package indicators renders the visible tool-call indicators. Calls in
// progress animate with a spinner.
package indicators

import (
	"strings"

	"github.com/appointment-assistant/sessionsync/internal/session"
	"github.com/appointment-assistant/sessionsync/internal/tui/theme"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type Model struct {
	Calls   []session.ToolCall
	spinner spinner.Model
}

func New() Model {
	s := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInProgress)
	return Model{spinner: s}
}

// SetCalls replaces the visible calls.
func (m *Model) SetCalls(calls []session.ToolCall) {
	m.Calls = calls
}

// Working returns how many visible calls are still in progress.
func (m Model) Working() int {
	n := 0
	for _, c := range m.Calls {
		if c.Status == session.InProgress {
			n++
		}
	}
	return n
}

// Tick returns the command that keeps the spinner moving.
func (m Model) Tick() tea.Cmd {
	return m.spinner.Tick
}

// Update advances the spinner on its tick messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.Calls) == 0 {
		return theme.StyleDimmed.Render("  idle")
	}

	parts := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		status := c.Status.String()
		glyph := theme.ToolCallGlyph(status)
		if c.Status == session.InProgress {
			glyph = m.spinner.View()
		}
		label := lipgloss.NewStyle().Foreground(theme.ToolCallColor(status)).Render(c.Name)
		parts = append(parts, glyph+" "+label)
	}
	return "  " + strings.Join(parts, "   ")
}
