// Package debug is the overlay listing every RPC the session answered, with
// the ack it sent back, plus connection changes and local actions.
package debug

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/appointment-assistant/sessionsync/internal/event"
	"github.com/appointment-assistant/sessionsync/internal/session"
	"github.com/appointment-assistant/sessionsync/internal/syncer"
	"github.com/appointment-assistant/sessionsync/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

const maxEntries = 200

// Source says where an entry came from.
type Source int

const (
	FromAgent Source = iota // inbound RPC
	FromConn                // connect or disconnect
	FromLocal               // a request or reset of our own
)

func (s Source) String() string {
	switch s {
	case FromAgent:
		return "rpc"
	case FromConn:
		return "conn"
	default:
		return "local"
	}
}

// Entry is one line of the log. For inbound RPCs Acked tells which ack was
// sent; Field names the payload field a rejected event failed on.
type Entry struct {
	Time   time.Time
	Source Source
	Method string
	Field  string
	Detail string
	Acked  bool
}

// Failed reports whether the entry records something that went wrong.
func (e Entry) Failed() bool {
	return !e.Acked
}

// Model holds the log and the scroll position.
type Model struct {
	Entries []Entry
	Offset  int // lines scrolled up from the newest entry
}

func New() Model {
	return Model{}
}

// AddNotice records an inbound RPC and the ack it got.
func (m *Model) AddNotice(n syncer.Notice) {
	e := Entry{Time: n.At, Source: FromAgent, Method: n.Method, Acked: n.Err == nil}
	if n.Err == nil {
		e.Detail = describe(n.Event)
	} else {
		e.Field, e.Detail = explain(n.Err)
	}
	m.add(e)
}

// AddConn records a connection change. err is nil on a clean connect.
func (m *Model) AddConn(at time.Time, connected bool, err error) {
	e := Entry{Time: at, Source: FromConn, Acked: err == nil}
	switch {
	case err != nil:
		e.Detail = "disconnected: " + err.Error()
	case connected:
		e.Detail = "connected"
	default:
		e.Detail = "disconnected"
	}
	m.add(e)
}

// AddLocal records an action of ours, such as a request to the agent. A
// non-nil err marks it failed.
func (m *Model) AddLocal(at time.Time, action string, err error) {
	e := Entry{Time: at, Source: FromLocal, Method: action, Acked: err == nil}
	if err != nil {
		e.Detail = err.Error()
	}
	m.add(e)
}

func (m *Model) add(e Entry) {
	m.Entries = append(m.Entries, e)
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// describe summarizes an applied event without personal data.
func describe(ev event.Event) string {
	switch e := ev.(type) {
	case event.AppointmentBooked:
		return fmt.Sprintf("id=%s %s %s", e.AppointmentID, e.Date, e.Time)
	case event.AppointmentCancelled:
		return "id=" + e.AppointmentID
	case event.AppointmentModified:
		return fmt.Sprintf("id=%s %s %s -> %s %s", e.AppointmentID, e.OldDate, e.OldTime, e.NewDate, e.NewTime)
	case event.ConversationSummary:
		return fmt.Sprintf("%d appointments", len(e.Summary.Appointments))
	case event.ToolCallUpdate:
		return e.Payload
	}
	return ""
}

// explain splits a rejection into the failing field, if any, and a reason.
func explain(err error) (field, reason string) {
	var de *event.DecodeError
	switch {
	case errors.As(err, &de):
		return de.Field, de.Reason
	case errors.Is(err, session.ErrClosed):
		return "", "session closed"
	default:
		return "", err.Error()
	}
}

// Line renders e without the timestamp.
func (e Entry) Line() string {
	var b strings.Builder
	if e.Method != "" {
		b.WriteString(e.Method)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	if e.Detail != "" {
		if b.Len() > 0 {
			if e.Failed() && e.Field == "" {
				b.WriteString(":")
			}
			b.WriteString(" ")
		}
		b.WriteString(e.Detail)
	}
	return b.String()
}

// ScrollUp moves the viewport towards older entries.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

// ScrollDown moves the viewport towards the newest entry.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

func ackColumn(e Entry) string {
	if e.Source != FromAgent {
		return lipgloss.NewStyle().Width(11).Render("")
	}
	if e.Acked {
		return lipgloss.NewStyle().Width(11).Foreground(theme.ColorCompleted).Render("ack success")
	}
	return lipgloss.NewStyle().Width(11).Foreground(theme.ColorErrored).Render("ack error")
}

func sourceColor(e Entry) lipgloss.Color {
	if e.Failed() {
		return theme.ColorErrored
	}
	switch e.Source {
	case FromAgent:
		return theme.ColorInProgress
	case FromConn:
		return theme.ColorHealthy
	default:
		return theme.ColorPending
	}
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visibleLines := max(height-6, 3)

	panel := lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)

	title := theme.StyleHeader.Render(" RPC LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc/d:close  %d entries", len(m.Entries)))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No RPC events received yet.")
		return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := len(m.Entries) - m.Offset
	start := max(end-visibleLines, 0)

	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		src := lipgloss.NewStyle().Width(5).Foreground(sourceColor(e)).Render(e.Source.String())
		text := e.Line()
		if room := innerW - 34; room > 3 && len(text) > room {
			text = text[:room-3] + "..."
		}
		if e.Failed() {
			text = lipgloss.NewStyle().Foreground(theme.ColorErrored).Render(text)
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %s", ts, src, ackColumn(e), text))
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help))
}
