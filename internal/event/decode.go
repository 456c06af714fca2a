package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/appointment-assistant/sessionsync/internal/session"
)

// DecodeError reports a payload that could not be turned into an event.
// Field is empty when the payload as a whole is unusable.
type DecodeError struct {
	Method string
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode %s: %s", e.Method, e.Reason)
	}
	return fmt.Sprintf("decode %s: field %q: %s", e.Method, e.Field, e.Reason)
}

// Decode parses the payload of an inbound RPC.
func Decode(method, payload string) (Event, error) {
	if method == MethodToolCallUpdate {
		return ToolCallUpdate{Payload: payload}, nil
	}

	d, err := newFields(method, payload)
	if err != nil {
		return nil, err
	}

	switch method {
	case MethodAppointmentBooked:
		var e AppointmentBooked
		err = d.requireAll(
			req("appointment_id", &e.AppointmentID),
			req("user_name", &e.UserName),
			req("date", &e.Date),
			req("time", &e.Time),
			req("display", &e.Display),
		)
		if err != nil {
			return nil, err
		}
		return e, nil

	case MethodAppointmentCancelled:
		var e AppointmentCancelled
		err = d.requireAll(
			req("appointment_id", &e.AppointmentID),
			opt("date", &e.Date),
			opt("time", &e.Time),
		)
		if err != nil {
			return nil, err
		}
		return e, nil

	case MethodAppointmentModified:
		var e AppointmentModified
		err = d.requireAll(
			req("appointment_id", &e.AppointmentID),
			req("new_date", &e.NewDate),
			req("new_time", &e.NewTime),
			req("display", &e.Display),
			opt("old_date", &e.OldDate),
			opt("old_time", &e.OldTime),
		)
		if err != nil {
			return nil, err
		}
		return e, nil

	case MethodConversationSummary:
		return d.summary()
	}

	return nil, &DecodeError{Method: method, Reason: "unknown method"}
}

type fields struct {
	method string
	raw    map[string]json.RawMessage
}

func newFields(method, payload string) (*fields, error) {
	trimmed := bytes.TrimSpace([]byte(payload))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &DecodeError{Method: method, Reason: "payload is not a JSON object"}
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &DecodeError{Method: method, Reason: "malformed JSON: " + err.Error()}
	}
	return &fields{method: method, raw: raw}, nil
}

type fieldSpec struct {
	name     string
	dst      *string
	required bool
}

func req(name string, dst *string) fieldSpec { return fieldSpec{name: name, dst: dst, required: true} }
func opt(name string, dst *string) fieldSpec { return fieldSpec{name: name, dst: dst} }

// requireAll fills every spec or fails on the first bad field. Destinations
// belong to a value that is discarded on error, so nothing leaks partially.
func (f *fields) requireAll(specs ...fieldSpec) error {
	for _, s := range specs {
		raw, ok := f.present(s.name)
		if !ok {
			if s.required {
				return f.fail(s.name, "missing")
			}
			continue
		}
		if err := json.Unmarshal(raw, s.dst); err != nil {
			return f.fail(s.name, "must be a string")
		}
		if s.required && *s.dst == "" {
			return f.fail(s.name, "must not be empty")
		}
	}
	return nil
}

// present treats an explicit null like an absent field.
func (f *fields) present(name string) (json.RawMessage, bool) {
	raw, ok := f.raw[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func (f *fields) fail(field, reason string) error {
	return &DecodeError{Method: f.method, Field: field, Reason: reason}
}

func (f *fields) summary() (Event, error) {
	var s session.ConversationSummary
	if err := f.requireAll(req("summary", &s.Summary)); err != nil {
		return nil, err
	}

	if raw, ok := f.present("appointments"); ok {
		if err := json.Unmarshal(raw, &s.Appointments); err != nil {
			return nil, f.fail("appointments", "must be a list of {date, time, status}")
		}
	}
	if s.Appointments == nil {
		s.Appointments = []session.SummaryAppointment{}
	}

	if raw, ok := f.present("costs"); ok {
		var c session.Costs
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, f.fail("costs", "must be an object of numbers")
		}
		s.Costs = &c
	}

	if raw, ok := f.present("user"); ok {
		var u session.UserProfile
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, f.fail("user", "must be a user profile object")
		}
		s.User = &u
	}

	return ConversationSummary{Summary: s}, nil
}
