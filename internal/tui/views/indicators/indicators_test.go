package indicators

import (
	"testing"

	"github.com/appointment-assistant/sessionsync/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestWorkingAndView(t *testing.T) {
	m := New()
	assert.Contains(t, m.View(), "idle")
	assert.Zero(t, m.Working())

	m.SetCalls([]session.ToolCall{
		{ID: "1", Name: "lookup", Status: session.InProgress},
		{ID: "2", Name: "book", Status: session.Completed},
		{ID: "3", Name: "cancel", Status: session.Errored},
	})
	assert.Equal(t, 1, m.Working())

	v := m.View()
	assert.Contains(t, v, "lookup")
	assert.Contains(t, v, "✓")
	assert.Contains(t, v, "✗")
}

func TestTickAdvancesSpinner(t *testing.T) {
	m := New()
	cmd := m.Tick()
	assert.NotNil(t, cmd)

	_, follow := m.Update(cmd())
	assert.NotNil(t, follow, "spinner keeps ticking")
}
