package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// AppointmentStatus is the lifecycle state of a booked appointment.
type AppointmentStatus int

const (
	Active AppointmentStatus = iota
	Cancelled
	Modified
)

var appointmentStatusNames = map[AppointmentStatus]string{
	Active:    "active",
	Cancelled: "cancelled",
	Modified:  "modified",
}

var appointmentStatusFromName = map[string]AppointmentStatus{
	"active":    Active,
	"cancelled": Cancelled,
	"modified":  Modified,
}

func (s AppointmentStatus) String() string {
	if n, ok := appointmentStatusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s AppointmentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *AppointmentStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, ok := appointmentStatusFromName[name]
	if !ok {
		return fmt.Errorf("unknown appointment status %q", name)
	}
	*s = v
	return nil
}

// ToolCallStatus is the lifecycle state of a backend action indicator.
// Completed and Errored are terminal.
type ToolCallStatus int

const (
	Pending ToolCallStatus = iota
	InProgress
	Completed
	Errored
)

var toolCallStatusNames = map[ToolCallStatus]string{
	Pending:    "pending",
	InProgress: "in_progress",
	Completed:  "completed",
	Errored:    "error",
}

var toolCallStatusFromName = map[string]ToolCallStatus{
	"pending":     Pending,
	"in_progress": InProgress,
	"completed":   Completed,
	"error":       Errored,
}

func (s ToolCallStatus) String() string {
	if n, ok := toolCallStatusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s ToolCallStatus) IsTerminal() bool {
	return s == Completed || s == Errored
}

func (s ToolCallStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ToolCallStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, ok := toolCallStatusFromName[name]
	if !ok {
		return fmt.Errorf("unknown tool call status %q", name)
	}
	*s = v
	return nil
}

// Appointment is a booking as known to the frontend. ContactNumber is nil
// when the booking event did not carry one.
type Appointment struct {
	ID              string            `json:"id"`
	UserName        string            `json:"user_name"`
	ContactNumber   *string           `json:"contact_number,omitempty"`
	AppointmentDate string            `json:"appointment_date"`
	AppointmentTime string            `json:"appointment_time"`
	Status          AppointmentStatus `json:"status"`
	CreatedAt       *time.Time        `json:"created_at,omitempty"`
	UpdatedAt       *time.Time        `json:"updated_at,omitempty"`
	Notes           *string           `json:"notes,omitempty"`
	Display         *string           `json:"display,omitempty"`
}

// ToolCall is a transient indicator for a backend action. Timestamp is the
// local receipt time.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    ToolCallStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Result    *string        `json:"result,omitempty"`
	Error     *string        `json:"error,omitempty"`
}

type UserProfile struct {
	ContactNumber string  `json:"contact_number"`
	Name          *string `json:"name,omitempty"`
	Email         *string `json:"email,omitempty"`
	IsNew         *bool   `json:"is_new,omitempty"`
}

// SummaryAppointment is one entry of the appointments snapshot carried by a
// conversation summary.
type SummaryAppointment struct {
	ID      string `json:"id,omitempty"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Status  string `json:"status"`
	Display string `json:"display,omitempty"`
}

// Costs is the per-session usage breakdown reported by the agent.
type Costs struct {
	LLMCost            float64 `json:"llm_cost"`
	TTSCost            float64 `json:"tts_cost"`
	STTCost            float64 `json:"stt_cost"`
	TotalCost          float64 `json:"total_cost"`
	CompletionTokens   int     `json:"completion_tokens,omitempty"`
	PromptTokens       int     `json:"prompt_tokens,omitempty"`
	PromptCachedTokens int     `json:"prompt_cached_tokens,omitempty"`
	TotalTokens        int     `json:"total_tokens,omitempty"`
	TTSCharacters      int     `json:"tts_characters,omitempty"`
	TTSAudioDuration   float64 `json:"tts_audio_duration,omitempty"`
	STTAudioDuration   float64 `json:"stt_audio_duration,omitempty"`
}

type ConversationSummary struct {
	Summary      string               `json:"summary"`
	Appointments []SummaryAppointment `json:"appointments"`
	Costs        *Costs               `json:"costs,omitempty"`
	User         *UserProfile         `json:"user,omitempty"`
}

// State is everything the frontend knows about one session. Appointments
// are most-recent first, ToolCalls oldest first.
type State struct {
	Appointments []Appointment        `json:"appointments"`
	ToolCalls    []ToolCall           `json:"tool_calls"`
	User         *UserProfile         `json:"user,omitempty"`
	Summary      *ConversationSummary `json:"summary,omitempty"`
}

// NewState returns the empty state a session starts with.
func NewState() State {
	return State{
		Appointments: []Appointment{},
		ToolCalls:    []ToolCall{},
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (a Appointment) clone() Appointment {
	a.ContactNumber = clonePtr(a.ContactNumber)
	a.CreatedAt = clonePtr(a.CreatedAt)
	a.UpdatedAt = clonePtr(a.UpdatedAt)
	a.Notes = clonePtr(a.Notes)
	a.Display = clonePtr(a.Display)
	return a
}

func (tc ToolCall) clone() ToolCall {
	tc.Result = clonePtr(tc.Result)
	tc.Error = clonePtr(tc.Error)
	return tc
}

func (u *UserProfile) clone() *UserProfile {
	if u == nil {
		return nil
	}
	c := *u
	c.Name = clonePtr(u.Name)
	c.Email = clonePtr(u.Email)
	c.IsNew = clonePtr(u.IsNew)
	return &c
}

func (s *ConversationSummary) clone() *ConversationSummary {
	if s == nil {
		return nil
	}
	c := *s
	if s.Appointments != nil {
		c.Appointments = append([]SummaryAppointment(nil), s.Appointments...)
	}
	c.Costs = clonePtr(s.Costs)
	c.User = s.User.clone()
	return &c
}

// Clone returns a deep copy of the state, duplicating pointer and slice
// fields so the copy can be mutated independently of the original.
func (s State) Clone() State {
	c := State{
		Appointments: make([]Appointment, len(s.Appointments)),
		ToolCalls:    make([]ToolCall, len(s.ToolCalls)),
		User:         s.User.clone(),
		Summary:      s.Summary.clone(),
	}
	for i, a := range s.Appointments {
		c.Appointments[i] = a.clone()
	}
	for i, tc := range s.ToolCalls {
		c.ToolCalls[i] = tc.clone()
	}
	return c
}

// FindAppointment returns the first appointment with the given id.
func (s State) FindAppointment(id string) (Appointment, bool) {
	for _, a := range s.Appointments {
		if a.ID == id {
			return a, true
		}
	}
	return Appointment{}, false
}

// ActiveCount returns the number of appointments that are not cancelled.
func (s State) ActiveCount() int {
	n := 0
	for _, a := range s.Appointments {
		if a.Status != Cancelled {
			n++
		}
	}
	return n
}
