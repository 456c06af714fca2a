// Package event turns raw RPC payloads pushed by the agent into typed domain
// events. Decoding is pure and all-or-nothing: either a complete event is
// returned or a *DecodeError naming the offending field.
package event

import "github.com/appointment-assistant/sessionsync/internal/session"

// RPC method names the agent may invoke on the frontend.
const (
	MethodAppointmentBooked    = "appointment_booked"
	MethodAppointmentCancelled = "appointment_cancelled"
	MethodAppointmentModified  = "appointment_modified"
	MethodConversationSummary  = "conversation_summary"
	MethodToolCallUpdate       = "tool_call_update"
)

// Methods is the fixed set of inbound methods, in registration order.
var Methods = []string{
	MethodAppointmentBooked,
	MethodAppointmentCancelled,
	MethodAppointmentModified,
	MethodConversationSummary,
	MethodToolCallUpdate,
}

// Event is one decoded inbound RPC.
type Event interface {
	Method() string
}

type AppointmentBooked struct {
	AppointmentID string
	UserName      string
	Date          string
	Time          string
	Display       string
}

// AppointmentCancelled carries Date and Time for notifications only.
type AppointmentCancelled struct {
	AppointmentID string
	Date          string
	Time          string
}

// AppointmentModified carries OldDate and OldTime for notifications only.
type AppointmentModified struct {
	AppointmentID string
	OldDate       string
	OldTime       string
	NewDate       string
	NewTime       string
	Display       string
}

type ConversationSummary struct {
	Summary session.ConversationSummary
}

// ToolCallUpdate is passed through untouched.
type ToolCallUpdate struct {
	Payload string
}

func (AppointmentBooked) Method() string    { return MethodAppointmentBooked }
func (AppointmentCancelled) Method() string { return MethodAppointmentCancelled }
func (AppointmentModified) Method() string  { return MethodAppointmentModified }
func (ConversationSummary) Method() string  { return MethodConversationSummary }
func (ToolCallUpdate) Method() string       { return MethodToolCallUpdate }

// Appointment builds the record a booking adds to the session. The contact
// number is not part of the booking event and stays unknown.
func (e AppointmentBooked) Appointment() session.Appointment {
	display := e.Display
	return session.Appointment{
		ID:              e.AppointmentID,
		UserName:        e.UserName,
		AppointmentDate: e.Date,
		AppointmentTime: e.Time,
		Status:          session.Active,
		Display:         &display,
	}
}

// Patch returns the change a cancellation applies: the status only.
func (e AppointmentCancelled) Patch() session.AppointmentPatch {
	status := session.Cancelled
	return session.AppointmentPatch{Status: &status}
}

// Patch returns the change a modification applies to the stored record.
func (e AppointmentModified) Patch() session.AppointmentPatch {
	status := session.Modified
	date, tm, display := e.NewDate, e.NewTime, e.Display
	return session.AppointmentPatch{
		AppointmentDate: &date,
		AppointmentTime: &tm,
		Display:         &display,
		Status:          &status,
	}
}
