// Package summary renders the end-of-call summary as markdown.
package summary

import (
	"fmt"
	"strings"

	"github.com/appointment-assistant/sessionsync/internal/session"
	"github.com/appointment-assistant/sessionsync/internal/tui/theme"
	"github.com/charmbracelet/glamour"
)

type Model struct {
	Summary *session.ConversationSummary
	Width   int
}

func New() Model {
	return Model{}
}

func (m *Model) SetSummary(s *session.ConversationSummary) {
	m.Summary = s
}

// Markdown returns the summary as a markdown document.
func Markdown(s *session.ConversationSummary) string {
	var b strings.Builder
	b.WriteString("## Call summary\n\n")
	if s.User != nil && s.User.Name != nil {
		fmt.Fprintf(&b, "**Caller:** %s\n\n", *s.User.Name)
	}
	if s.Summary != "" {
		b.WriteString(s.Summary)
		b.WriteString("\n\n")
	}

	if len(s.Appointments) > 0 {
		b.WriteString("| Date | Time | Status |\n|---|---|---|\n")
		for _, a := range s.Appointments {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", a.Date, a.Time, a.Status)
		}
		b.WriteString("\n")
	}

	if c := s.Costs; c != nil {
		b.WriteString("### Costs\n\n")
		fmt.Fprintf(&b, "- LLM: $%.6f (%d tokens)\n", c.LLMCost, c.TotalTokens)
		fmt.Fprintf(&b, "- TTS: $%.6f (%d chars)\n", c.TTSCost, c.TTSCharacters)
		fmt.Fprintf(&b, "- STT: $%.6f (%.2fs audio)\n", c.STTCost, c.STTAudioDuration)
		fmt.Fprintf(&b, "- **Total: $%.6f**\n", c.TotalCost)
	}
	return b.String()
}

// View renders the summary, or nothing before the call has ended. Falls
// back to the raw markdown when the renderer fails.
func (m Model) View() string {
	if m.Summary == nil {
		return ""
	}
	md := Markdown(m.Summary)
	width := max(m.Width-4, 40)

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		if out, err := r.Render(md); err == nil {
			return theme.StyleBorder.Width(width).Render(strings.TrimRight(out, "\n"))
		}
	}
	return theme.StyleBorder.Width(width).Render(md)
}
