package app

import (
	"context"
	"time"

	"github.com/appointment-assistant/sessionsync/internal/session"
	"github.com/appointment-assistant/sessionsync/internal/syncer"
	"github.com/appointment-assistant/sessionsync/internal/tui/theme"
	"github.com/appointment-assistant/sessionsync/internal/tui/views/appointments"
	"github.com/appointment-assistant/sessionsync/internal/tui/views/debug"
	"github.com/appointment-assistant/sessionsync/internal/tui/views/indicators"
	"github.com/appointment-assistant/sessionsync/internal/tui/views/status"
	"github.com/appointment-assistant/sessionsync/internal/tui/views/summary"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	feedSize   = 256
	endTimeout = 15 * time.Second
)

// SnapshotMsg carries a committed session state.
type SnapshotMsg session.Snapshot

// VisibleMsg carries the tool calls currently shown as indicators.
type VisibleMsg []session.ToolCall

// NoticeMsg reports one inbound RPC handled by the session.
type NoticeMsg syncer.Notice

// ConnMsg reports a change of the agent connection.
type ConnMsg struct {
	Connected bool
	Err       error
}

type endedMsg struct{ err error }

type resetMsg struct{ err error }

// Feed carries messages from session goroutines into the Bubble Tea loop.
type Feed struct {
	ch chan tea.Msg
}

func NewFeed() *Feed {
	return &Feed{ch: make(chan tea.Msg, feedSize)}
}

// Send queues msg without blocking. It reports false when the feed is full
// and msg was dropped.
func (f *Feed) Send(msg tea.Msg) bool {
	select {
	case f.ch <- msg:
		return true
	default:
		return false
	}
}

func (f *Feed) wait() tea.Cmd {
	return func() tea.Msg { return <-f.ch }
}

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
)

// Model is the root Bubble Tea model.
type Model struct {
	sess *syncer.Session
	feed *Feed
	ctx  context.Context

	keys    KeyMap
	width   int
	height  int
	overlay Overlay

	version uint64
	state   session.State

	statusBar    status.Model
	appointments appointments.Model
	indicators   indicators.Model
	summary      summary.Model
	debug        debug.Model
}

// New creates the root model and subscribes feed to sess. Pass the same feed
// to syncer.WithNotices through Notify to see handled RPCs in the debug log.
func New(ctx context.Context, sess *syncer.Session, feed *Feed) Model {
	sess.Store().Subscribe(func(s session.Snapshot) { feed.Send(SnapshotMsg(s)) })
	sess.Refresher().Observe(func(calls []session.ToolCall) { feed.Send(VisibleMsg(calls)) })

	m := Model{
		sess:         sess,
		feed:         feed,
		ctx:          ctx,
		keys:         DefaultKeyMap(),
		statusBar:    status.New(),
		appointments: appointments.New(),
		indicators:   indicators.New(),
		summary:      summary.New(),
		debug:        debug.New(),
	}
	m.applySnapshot(sess.Store().Snapshot())
	m.syncVisible()
	m.updateCounts()
	return m
}

// Notify is the syncer.WithNotices hook forwarding notices to feed.
func Notify(feed *Feed) func(syncer.Notice) {
	return func(n syncer.Notice) { feed.Send(NoticeMsg(n)) }
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.feed.wait(), m.indicators.Tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.appointments.Width = msg.Width
		m.summary.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SnapshotMsg:
		m.applySnapshot(session.Snapshot(msg))
		m.syncVisible()
		m.updateCounts()
		return m, m.feed.wait()

	case VisibleMsg:
		m.indicators.SetCalls(msg)
		m.updateCounts()
		return m, m.feed.wait()

	case NoticeMsg:
		m.debug.AddNotice(syncer.Notice(msg))
		return m, m.feed.wait()

	case ConnMsg:
		m.statusBar.Connected = msg.Connected
		if msg.Err != nil {
			m.statusBar.LastError = msg.Err.Error()
		} else if msg.Connected {
			m.statusBar.LastError = ""
		}
		m.debug.AddConn(time.Now(), msg.Connected, msg.Err)
		return m, m.feed.wait()

	case endedMsg:
		m.debug.AddLocal(time.Now(), syncer.MethodEndConversation, msg.err)
		return m, nil

	case resetMsg:
		m.debug.AddLocal(time.Now(), "reset", msg.err)
		return m, nil

	case spinner.TickMsg:
		// A dropped VisibleMsg is never resent.
		m.syncVisible()
		m.updateCounts()
	}

	var cmd tea.Cmd
	m.indicators, cmd = m.indicators.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.overlay == OverlayDebug {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.debug.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.debug.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.End):
		return m, m.endConversation()

	case key.Matches(msg, m.keys.Reset):
		return m, m.reset()
	}

	return m, nil
}

// endConversation runs off the update loop; the summary itself arrives as a
// snapshot.
func (m Model) endConversation() tea.Cmd {
	sess, parent := m.sess, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, endTimeout)
		defer cancel()
		return endedMsg{err: sess.EndConversation(ctx)}
	}
}

func (m Model) reset() tea.Cmd {
	store := m.sess.Store()
	return func() tea.Msg {
		return resetMsg{err: store.Reset()}
	}
}

func (m *Model) applySnapshot(s session.Snapshot) {
	if s.Version < m.version {
		return
	}
	m.version = s.Version
	m.state = m.sess.Masked(s.State)
	m.appointments.SetAppointments(m.state.Appointments)
	m.summary.SetSummary(m.state.Summary)
	m.statusBar.Caller = ""
	if u := m.state.User; u != nil {
		m.statusBar.Caller = u.ContactNumber
		if u.Name != nil {
			m.statusBar.Caller = *u.Name
		}
	}
}

func (m *Model) syncVisible() {
	m.indicators.SetCalls(m.sess.Refresher().Visible())
}

func (m *Model) updateCounts() {
	m.statusBar.SetCounts(m.state.ActiveCount(), len(m.state.Appointments), m.indicators.Working())
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.overlay == OverlayDebug {
		return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), m.debug.View(m.width, m.height-3))
	}

	sections := []string{
		m.statusBar.View(),
		m.appointments.View(),
		"",
		theme.StyleHeader.Render("AGENT"),
		m.indicators.View(),
	}
	if s := m.summary.View(); s != "" {
		sections = append(sections, "", s)
	}
	sections = append(sections, "", theme.StyleDimmed.Render("  e:end call  r:reset  d:debug  q:quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
