package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appointment-assistant/sessionsync/internal/config"
	"github.com/appointment-assistant/sessionsync/internal/event"
	"github.com/appointment-assistant/sessionsync/internal/session"
	"github.com/appointment-assistant/sessionsync/internal/transport"
	"go.uber.org/zap"
)

// MethodEndConversation is served by the agent; the frontend calls it to end
// the call and receive the summary.
const MethodEndConversation = "end_conversation"

// Performer sends one RPC to the frontend. *rpc.Peer implements it.
type Performer interface {
	Perform(ctx context.Context, method, payload string) (string, error)
}

// Caller is the simulated person on the phone.
type Caller struct {
	Name  string
	Phone string
}

var DefaultCaller = Caller{Name: "alice johnson", Phone: "(555) 123-4567"}

type Option func(*Simulator)

func WithCaller(c Caller) Option {
	return func(s *Simulator) { s.caller = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// Simulator plays one scripted booking conversation against a frontend.
type Simulator struct {
	peer    Performer
	book    *Book
	catalog *Catalog
	log     *zap.Logger
	step    time.Duration
	timeout time.Duration
	now     func() time.Time
	caller  Caller

	// Set by the script, which runs on one goroutine.
	firstID  string
	secondID string

	mu    sync.Mutex
	user  *session.UserProfile
	usage Usage
	ended bool
}

func NewSimulator(peer Performer, book *Book, cfg *config.Config, logger *zap.Logger, opts ...Option) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Simulator{
		peer:    peer,
		book:    book,
		catalog: NewCatalog(cfg.Agent),
		log:     logger,
		step:    cfg.Agent.StepInterval,
		timeout: cfg.RPC.ResponseTimeout,
		now:     time.Now,
		caller:  DefaultCaller,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run plays the script: identify the caller, look up slots, book, move the
// booking, book a second slot, cancel it and finish with the summary. It
// stops early when ctx is done or the conversation was already ended.
func (s *Simulator) Run(ctx context.Context) error {
	steps := []func(context.Context) error{
		s.identify,
		s.bookFirst,
		s.modifyFirst,
		s.bookSecond,
		s.cancelSecond,
	}

	for _, step := range steps {
		if s.Ended() {
			return nil
		}
		if err := step(ctx); err != nil {
			return err
		}
		if err := s.wait(ctx); err != nil {
			return err
		}
	}
	return s.End(ctx)
}

// HandleEndConversation is the rpc handler for MethodEndConversation.
func (s *Simulator) HandleEndConversation(ctx context.Context, _ string) (string, error) {
	if err := s.End(ctx); err != nil {
		return transport.Failure(err.Error()), nil
	}
	return transport.Success(), nil
}

// Ended reports whether the summary has been sent.
func (s *Simulator) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// End sends the conversation summary once. Later calls do nothing.
func (s *Simulator) End(ctx context.Context) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	var user *session.UserProfile
	if s.user != nil {
		u := *s.user
		user = &u
	}
	usage := s.usage
	s.mu.Unlock()

	var discussed []session.SummaryAppointment
	if user != nil {
		discussed = Discussed(s.book.ForUser(user.ContactNumber, true))
	} else {
		discussed = []session.SummaryAppointment{}
	}
	text := SummaryText(user, discussed)
	costs := Costs(usage)

	s.log.Info("ending conversation", zap.String("summary", text), zap.Float64("total_cost", costs.TotalCost))
	return s.send(ctx, event.MethodConversationSummary, session.ConversationSummary{
		Summary:      text,
		Appointments: discussed,
		Costs:        &costs,
		User:         user,
	})
}

func (s *Simulator) identify(ctx context.Context) error {
	s.toolCall(ctx, "identify_user", "in_progress")
	if err := ValidatePhone(s.caller.Phone); err != nil {
		s.toolCall(ctx, "identify_user", "error")
		return fmt.Errorf("identify %q: %w", s.caller.Phone, err)
	}
	u := s.book.Identify(FormatPhone(s.caller.Phone))
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	s.say("Thanks, I found your number. What day works for you?")
	s.toolCall(ctx, "identify_user", "completed")
	return nil
}

func (s *Simulator) bookFirst(ctx context.Context) error {
	id, err := s.bookNext(ctx, 0)
	s.firstID = id
	return err
}

func (s *Simulator) bookSecond(ctx context.Context) error {
	id, err := s.bookNext(ctx, 1)
	s.secondID = id
	return err
}

func (s *Simulator) modifyFirst(ctx context.Context) error {
	id := s.firstID
	s.toolCall(ctx, "modify_appointment", "in_progress")
	slot, ok := s.freeSlot(1)
	if !ok {
		s.toolCall(ctx, "modify_appointment", "error")
		return errors.New("no free slot to move to")
	}
	before, after, err := s.book.Modify(id, slot.Date, slot.Time)
	if err != nil {
		s.toolCall(ctx, "modify_appointment", "error")
		return err
	}
	display := FormatDisplay(after.Date, after.Time)
	s.say("Great! I've rescheduled your appointment to " + display + ".")
	s.toolCall(ctx, "modify_appointment", "completed")
	return s.send(ctx, event.MethodAppointmentModified, map[string]string{
		"appointment_id": after.ID,
		"old_date":       before.Date,
		"old_time":       before.Time,
		"new_date":       after.Date,
		"new_time":       after.Time,
		"display":        display,
	})
}

func (s *Simulator) cancelSecond(ctx context.Context) error {
	s.toolCall(ctx, "cancel_appointment", "in_progress")
	r, err := s.book.Cancel(s.secondID)
	if err != nil {
		s.toolCall(ctx, "cancel_appointment", "error")
		return err
	}
	s.say("I've cancelled your appointment for " + FormatDisplay(r.Date, r.Time) + ".")
	s.toolCall(ctx, "cancel_appointment", "completed")
	return s.send(ctx, event.MethodAppointmentCancelled, map[string]string{
		"appointment_id": r.ID,
		"date":           r.Date,
		"time":           r.Time,
	})
}

// bookNext books the skip-th free slot for the caller.
func (s *Simulator) bookNext(ctx context.Context, skip int) (string, error) {
	s.toolCall(ctx, "fetch_slots", "in_progress")
	slot, ok := s.freeSlot(skip)
	if !ok {
		s.toolCall(ctx, "fetch_slots", "error")
		return "", errors.New("no free slots")
	}
	s.toolCall(ctx, "fetch_slots", "completed")

	s.mu.Lock()
	contact := s.user.ContactNumber
	s.mu.Unlock()

	s.toolCall(ctx, "book_appointment", "in_progress")
	r, err := s.book.Create(contact, s.caller.Name, slot.Date, slot.Time)
	if err != nil {
		s.toolCall(ctx, "book_appointment", "error")
		return "", err
	}
	s.mu.Lock()
	if s.user.Name == nil {
		s.user.Name = &r.UserName
	}
	s.mu.Unlock()

	display := FormatDisplay(r.Date, r.Time)
	s.say("Perfect! I've booked your appointment for " + display + ".")
	s.toolCall(ctx, "book_appointment", "completed")
	return r.ID, s.send(ctx, event.MethodAppointmentBooked, map[string]string{
		"appointment_id": r.ID,
		"user_name":      r.UserName,
		"date":           r.Date,
		"time":           r.Time,
		"display":        display,
	})
}

func (s *Simulator) freeSlot(skip int) (Slot, bool) {
	now := s.now()
	for _, slot := range s.catalog.Slots(now, 0) {
		if !s.catalog.IsValidSlot(slot.Date, slot.Time, now) || !s.book.Available(slot.Date, slot.Time) {
			continue
		}
		if skip == 0 {
			return slot, true
		}
		skip--
	}
	return Slot{}, false
}

// say accounts for one spoken agent turn.
func (s *Simulator) say(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage.PromptTokens += 400
	s.usage.PromptCachedTokens += 256
	s.usage.CompletionTokens += len(text) / 4
	s.usage.TTSCharacters += len(text)
	s.usage.TTSAudioDuration += time.Duration(len(text)) * 60 * time.Millisecond
	s.usage.STTAudioDuration += 3 * time.Second
}

func (s *Simulator) toolCall(ctx context.Context, tool, status string) {
	_ = s.send(ctx, event.MethodToolCallUpdate, map[string]string{"tool": tool, "status": status})
}

// send performs one RPC on the frontend. Delivery failures are logged and
// do not stop the conversation.
func (s *Simulator) send(ctx context.Context, method string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.peer.Perform(ctx, method, string(payload))
	if err != nil {
		s.log.Warn("send to frontend failed", zap.String("method", method), zap.Error(err))
		return nil
	}
	var ack struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(resp), &ack) == nil && ack.Status != "success" {
		s.log.Warn("frontend rejected event", zap.String("method", method), zap.String("message", ack.Message))
		return nil
	}
	s.log.Info("sent event to frontend", zap.String("method", method))
	return nil
}

func (s *Simulator) wait(ctx context.Context) error {
	if s.step <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.step)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
