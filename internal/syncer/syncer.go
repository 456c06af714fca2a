// Package syncer owns one frontend session: it binds the inbound RPC
// handlers to the agent connection, turns decoded events into store
// operations, keeps the visible tool-call indicators fresh and tracks the
// frontend's own requests to the agent.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appointment-assistant/sessionsync/internal/config"
	"github.com/appointment-assistant/sessionsync/internal/event"
	"github.com/appointment-assistant/sessionsync/internal/rpc"
	"github.com/appointment-assistant/sessionsync/internal/session"
	"github.com/appointment-assistant/sessionsync/internal/transport"
	"github.com/appointment-assistant/sessionsync/internal/visibility"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MethodEndConversation asks the agent to wrap up and send its summary.
const MethodEndConversation = "end_conversation"

// Notice records one handled inbound RPC. Err is nil when the event was
// applied.
type Notice struct {
	Method string
	Event  event.Event
	Err    error
	At     time.Time
}

type Option func(*Session)

// WithClock replaces time.Now for tool-call timestamps, notices and the
// visibility refresher.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithNotices sets the side channel receiving a Notice per handled RPC. fn
// must not block.
func WithNotices(fn func(Notice)) Option {
	return func(s *Session) { s.notify = fn }
}

// WithTicks drives the visibility refresher from ticks instead of a ticker.
func WithTicks(ticks <-chan time.Time) Option {
	return func(s *Session) { s.ticks = ticks }
}

type Session struct {
	log     *zap.Logger
	store   *session.Store
	privacy session.PrivacyFilter
	now     func() time.Time
	notify  func(Notice)
	ticks   <-chan time.Time

	refresher *visibility.Refresher
	cancel    context.CancelFunc

	mu      sync.Mutex
	peer    *rpc.Peer
	binding *transport.Binding
	closed  bool
}

// New creates a session with an empty store and starts its visibility
// refresher. Call Close to tear it down.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		log:   logger,
		store: session.NewStore(),
		privacy: session.PrivacyFilter{
			MaskContactNumbers: cfg.Privacy.MaskContactNumbers,
			MaskEmails:         cfg.Privacy.MaskEmails,
			MaskNames:          cfg.Privacy.MaskNames,
		},
		now:    time.Now,
		notify: func(Notice) {},
	}
	for _, o := range opts {
		o(s)
	}

	ropts := []visibility.Option{visibility.WithClock(s.now)}
	if s.ticks != nil {
		ropts = append(ropts, visibility.WithTicks(s.ticks))
	}
	s.refresher = visibility.NewRefresher(visibility.PolicyFrom(cfg.Session), cfg.Session.RefreshInterval, ropts...)

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.refresher.Start(ctx, s.store)
	return s
}

func (s *Session) Store() *session.Store { return s.store }

func (s *Session) Refresher() *visibility.Refresher { return s.refresher }

// Masked returns st with personal data masked for display and logs.
func (s *Session) Masked(st session.State) session.State {
	return s.privacy.Apply(st)
}

// Table returns the inbound handlers of this session.
func (s *Session) Table() transport.Table {
	t := make(transport.Table, len(event.Methods))
	for _, m := range event.Methods {
		t[m] = s.handle(m)
	}
	return t
}

// Open binds the session to peer, replacing any previous connection. The
// returned release func unbinds it and is safe to call more than once.
func (s *Session) Open(peer *rpc.Peer) (release func(), err error) {
	if peer == nil {
		return nil, transport.ErrTransportUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, session.ErrClosed
	}
	if s.binding != nil {
		s.binding.Release()
	}

	b, err := transport.Bind(peer, s.Table())
	if err != nil {
		return nil, err
	}
	s.peer, s.binding = peer, b
	s.log.Info("session bound to agent connection")

	return func() {
		b.Release()
		s.mu.Lock()
		if s.binding == b {
			s.peer, s.binding = nil, nil
		}
		s.mu.Unlock()
	}, nil
}

// Close unbinds the connection, stops the refresher and discards the state.
// Handlers still in flight answer with a failure and change nothing.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.binding.Release()
	s.peer, s.binding = nil, nil
	s.mu.Unlock()

	s.cancel()
	s.refresher.Stop()
	s.store.Close()
	s.log.Info("session closed")
}

func (s *Session) handle(method string) transport.Callback {
	return func(_ context.Context, payload string) (string, error) {
		ev, err := event.Decode(method, payload)
		if err == nil {
			err = s.apply(ev)
		}
		s.notify(Notice{Method: method, Event: ev, Err: err, At: s.now()})
		if err != nil {
			s.log.Warn("rpc rejected", zap.String("method", method), zap.Error(err))
			return "", err
		}
		s.log.Debug("rpc applied", zap.String("method", method))
		return transport.Success(), nil
	}
}

func (s *Session) apply(ev event.Event) error {
	switch e := ev.(type) {
	case event.AppointmentBooked:
		return s.store.AddAppointment(e.Appointment())
	case event.AppointmentCancelled:
		return s.store.UpdateAppointment(e.AppointmentID, e.Patch())
	case event.AppointmentModified:
		return s.store.UpdateAppointment(e.AppointmentID, e.Patch())
	case event.ConversationSummary:
		summary := e.Summary
		_, err := s.store.Apply(session.SetSummary{Summary: &summary, User: summary.User})
		return err
	case event.ToolCallUpdate:
		// Acknowledged and surfaced as a notice only.
		return nil
	}
	return fmt.Errorf("unhandled event %T", ev)
}

// Invoke performs method on the agent and tracks it as a tool call: in
// progress while waiting, then completed or error.
func (s *Session) Invoke(ctx context.Context, method, payload string) (string, error) {
	s.mu.Lock()
	peer := s.peer
	s.mu.Unlock()
	if peer == nil {
		return "", fmt.Errorf("%s: %w", method, transport.ErrTransportUnavailable)
	}

	id := uuid.NewString()
	err := s.store.AddToolCall(session.ToolCall{
		ID:        id,
		Name:      method,
		Status:    session.InProgress,
		Timestamp: s.now(),
	})
	if err != nil {
		return "", err
	}

	resp, err := peer.Perform(ctx, method, payload)

	patch := session.ToolCallPatch{}
	if err != nil {
		status, msg := session.Errored, err.Error()
		patch.Status, patch.Error = &status, &msg
		s.log.Warn("agent call failed", zap.String("method", method), zap.Error(err))
	} else {
		status := session.Completed
		patch.Status, patch.Result = &status, &resp
	}
	if uerr := s.store.UpdateToolCall(id, patch); uerr != nil && !errors.Is(uerr, session.ErrClosed) {
		return resp, errors.Join(err, uerr)
	}
	return resp, err
}

// EndConversation asks the agent for the end-of-call summary. The summary
// itself arrives as a conversation_summary event.
func (s *Session) EndConversation(ctx context.Context) error {
	_, err := s.Invoke(ctx, MethodEndConversation, "{}")
	return err
}
