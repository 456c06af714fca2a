// Package theme provides the Lip Gloss color palette and reusable styles
// for the booking TUI. It is a leaf package with no internal imports to
// avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Appointment status colors.
var (
	ColorActive    = lipgloss.Color("#22c55e")
	ColorCancelled = lipgloss.Color("#6b7280")
	ColorModified  = lipgloss.Color("#d97706")
)

// Tool call status colors.
var (
	ColorPending    = lipgloss.Color("#7c3aed")
	ColorInProgress = lipgloss.Color("#2563eb")
	ColorCompleted  = lipgloss.Color("#16a34a")
	ColorErrored    = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorDefault = lipgloss.Color("#9ca3af")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// AppointmentColor returns the color for an appointment status name.
func AppointmentColor(status string) lipgloss.Color {
	switch status {
	case "active":
		return ColorActive
	case "cancelled":
		return ColorCancelled
	case "modified":
		return ColorModified
	default:
		return ColorDefault
	}
}

// ToolCallColor returns the color for a tool call status name.
func ToolCallColor(status string) lipgloss.Color {
	switch status {
	case "pending":
		return ColorPending
	case "in_progress":
		return ColorInProgress
	case "completed":
		return ColorCompleted
	case "error":
		return ColorErrored
	default:
		return ColorDefault
	}
}

// ToolCallGlyph returns a glyph for a finished or waiting tool call. Calls
// in progress are drawn with a spinner instead.
func ToolCallGlyph(status string) string {
	switch status {
	case "pending":
		return "◌"
	case "completed":
		return "✓"
	case "error":
		return "✗"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)
)
