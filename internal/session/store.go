package session

import (
	"errors"
	"slices"
	"sync"
)

// ErrClosed is returned by mutators once the store has been closed.
var ErrClosed = errors.New("session closed")

// Store owns the state of one session. All mutations are applied through
// Reduce under a single lock and published before the lock is released, so
// subscribers see commits in order.
type Store struct {
	mu      sync.Mutex
	state   State
	version uint64
	closed  bool
	nextSub int
	subs    map[int]Subscriber
}

func NewStore() *Store {
	return &Store{
		state: NewState(),
		subs:  make(map[int]Subscriber),
	}
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Snapshot returns the current state and its version. The state is shared
// with subscribers and must not be modified.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Version: s.version, State: s.state}
}

// Subscribe registers fn for every future commit and returns a func that
// removes it.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Apply runs op through Reduce, commits the result and publishes it.
func (s *Store) Apply(op Op) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}

	s.state = Reduce(s.state, op)
	s.version++
	snap := Snapshot{Version: s.version, State: s.state}
	for _, id := range s.subscriberIDs() {
		s.subs[id](snap)
	}
	return snap, nil
}

// subscriberIDs returns ids in registration order so delivery is stable.
func (s *Store) subscriberIDs() []int {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Store) AddAppointment(a Appointment) error {
	_, err := s.Apply(AddAppointment{Appointment: a})
	return err
}

func (s *Store) UpdateAppointment(id string, patch AppointmentPatch) error {
	_, err := s.Apply(UpdateAppointment{ID: id, Patch: patch})
	return err
}

func (s *Store) RemoveAppointment(id string) error {
	_, err := s.Apply(RemoveAppointment{ID: id})
	return err
}

func (s *Store) AddToolCall(tc ToolCall) error {
	_, err := s.Apply(AddToolCall{ToolCall: tc})
	return err
}

func (s *Store) UpdateToolCall(id string, patch ToolCallPatch) error {
	_, err := s.Apply(UpdateToolCall{ID: id, Patch: patch})
	return err
}

func (s *Store) SetSummary(summary *ConversationSummary) error {
	_, err := s.Apply(SetSummary{Summary: summary})
	return err
}

func (s *Store) SetIdentifiedUser(user *UserProfile) error {
	_, err := s.Apply(SetIdentifiedUser{User: user})
	return err
}

func (s *Store) Reset() error {
	_, err := s.Apply(Reset{})
	return err
}

// Close discards the state and rejects further mutations. Subscribers are
// dropped. Close is idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.state = NewState()
	s.subs = make(map[int]Subscriber)
}

func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
