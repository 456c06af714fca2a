package summary

import (
	"testing"

	"github.com/appointment-assistant/sessionsync/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestMarkdown(t *testing.T) {
	name := "Alice Johnson"
	md := Markdown(&session.ConversationSummary{
		Summary: "You have 1 active appointment.",
		Appointments: []session.SummaryAppointment{
			{Date: "2026-01-27", Time: "09:00", Status: "active"},
			{Date: "2026-01-28", Time: "10:00", Status: "cancelled"},
		},
		Costs: &session.Costs{LLMCost: 0.000123, TotalCost: 0.0005, TotalTokens: 900},
		User:  &session.UserProfile{ContactNumber: "5551234567", Name: &name},
	})

	assert.Contains(t, md, "**Caller:** Alice Johnson")
	assert.Contains(t, md, "You have 1 active appointment.")
	assert.Contains(t, md, "| 2026-01-28 | 10:00 | cancelled |")
	assert.Contains(t, md, "$0.000123 (900 tokens)")
	assert.Contains(t, md, "**Total: $0.000500**")
}

func TestMarkdownWithoutCosts(t *testing.T) {
	md := Markdown(&session.ConversationSummary{Summary: "Goodbye."})
	assert.NotContains(t, md, "Costs")
	assert.NotContains(t, md, "| Date")
}

func TestViewEmptyUntilSummary(t *testing.T) {
	m := New()
	assert.Empty(t, m.View())

	m.Width = 80
	m.SetSummary(&session.ConversationSummary{Summary: "Thanks for calling."})
	assert.Contains(t, m.View(), "Thanks")
}
