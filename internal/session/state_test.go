package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "modified", Modified.String())
	assert.Equal(t, "unknown", AppointmentStatus(42).String())

	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "in_progress", InProgress.String())
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "error", Errored.String())
	assert.Equal(t, "unknown", ToolCallStatus(42).String())
}

func TestToolCallStatusIsTerminal(t *testing.T) {
	assert.False(t, Pending.IsTerminal())
	assert.False(t, InProgress.IsTerminal())
	assert.True(t, Completed.IsTerminal())
	assert.True(t, Errored.IsTerminal())
}

func TestAppointmentJSONShape(t *testing.T) {
	a := booked("1", "Alice")
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "1",
		"user_name": "Alice",
		"appointment_date": "2026-01-21",
		"appointment_time": "10:00",
		"status": "active",
		"display": "Jan 21, 10:00 AM"
	}`, string(data))
}

func TestStatusUnmarshalRejectsUnknown(t *testing.T) {
	var as AppointmentStatus
	assert.Error(t, json.Unmarshal([]byte(`"archived"`), &as))
	var ts ToolCallStatus
	assert.Error(t, json.Unmarshal([]byte(`"done"`), &ts))
	require.NoError(t, json.Unmarshal([]byte(`"in_progress"`), &ts))
	assert.Equal(t, InProgress, ts)
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	s := State{
		Appointments: []Appointment{booked("1", "Alice")},
		ToolCalls:    []ToolCall{{ID: "t", Result: strPtr("ok"), Timestamp: now}},
		User:         &UserProfile{ContactNumber: "5551234567", Name: strPtr("Alice")},
		Summary: &ConversationSummary{
			Summary:      "done",
			Appointments: []SummaryAppointment{{Date: "2026-01-21", Time: "10:00", Status: "active"}},
			Costs:        &Costs{TotalCost: 0.01},
			User:         &UserProfile{ContactNumber: "5551234567"},
		},
	}

	c := s.Clone()
	assert.Equal(t, s, c)

	*c.Appointments[0].Display = "x"
	*c.ToolCalls[0].Result = "x"
	*c.User.Name = "x"
	c.Summary.Appointments[0].Status = "x"
	c.Summary.Costs.TotalCost = 9
	c.Summary.User.ContactNumber = "x"

	assert.Equal(t, "Jan 21, 10:00 AM", *s.Appointments[0].Display)
	assert.Equal(t, "ok", *s.ToolCalls[0].Result)
	assert.Equal(t, "Alice", *s.User.Name)
	assert.Equal(t, "active", s.Summary.Appointments[0].Status)
	assert.Equal(t, 0.01, s.Summary.Costs.TotalCost)
	assert.Equal(t, "5551234567", s.Summary.User.ContactNumber)
}

func TestFindAppointmentAndActiveCount(t *testing.T) {
	s := NewState()
	s = Reduce(s, AddAppointment{Appointment: booked("1", "Alice")})
	s = Reduce(s, AddAppointment{Appointment: booked("2", "Bob")})
	cancelled := Cancelled
	s = Reduce(s, UpdateAppointment{ID: "1", Patch: AppointmentPatch{Status: &cancelled}})

	a, ok := s.FindAppointment("2")
	require.True(t, ok)
	assert.Equal(t, "Bob", a.UserName)
	_, ok = s.FindAppointment("3")
	assert.False(t, ok)
	assert.Equal(t, 1, s.ActiveCount())
}
