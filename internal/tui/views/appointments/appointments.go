// Package appointments renders the session's bookings, most recent first.
package appointments

import (
	"fmt"
	"strings"

	"github.com/appointment-assistant/sessionsync/internal/session"
	"github.com/appointment-assistant/sessionsync/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the appointment list.
type Model struct {
	Appointments []session.Appointment
	Width        int
}

func New() Model {
	return Model{}
}

// SetAppointments replaces the list shown.
func (m *Model) SetAppointments(appts []session.Appointment) {
	m.Appointments = appts
}

// When returns the human-readable slot of a, preferring the display string
// the agent sent over the raw date and time.
func When(a session.Appointment) string {
	if a.Display != nil && *a.Display != "" {
		return *a.Display
	}
	return strings.TrimSpace(a.AppointmentDate + " " + a.AppointmentTime)
}

func (m Model) View() string {
	width := max(m.Width, 40)
	title := theme.StyleHeader.Render("APPOINTMENTS")

	if len(m.Appointments) == 0 {
		body := theme.StyleDimmed.Render("  No appointments booked yet.")
		return lipgloss.JoinVertical(lipgloss.Left, title, body)
	}

	lines := []string{title}
	for _, a := range m.Appointments {
		status := a.Status.String()
		badge := lipgloss.NewStyle().
			Foreground(theme.AppointmentColor(status)).
			Width(10).
			Render(status)

		when := When(a)
		if a.Status == session.Cancelled {
			when = lipgloss.NewStyle().Strikethrough(true).Foreground(theme.ColorDimmed).Render(when)
		}

		line := fmt.Sprintf("  %s %s", badge, when)
		if a.UserName != "" {
			line += theme.StyleDimmed.Render("  " + a.UserName)
		}
		if lipgloss.Width(line) > width {
			line = lipgloss.NewStyle().MaxWidth(width).Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
