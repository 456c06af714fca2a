package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleState() State {
	contact := "5551234567"
	a := booked("1", "Alice")
	a.ContactNumber = &contact
	return State{
		Appointments: []Appointment{a},
		ToolCalls:    []ToolCall{},
		User: &UserProfile{
			ContactNumber: "5551234567",
			Name:          strPtr("Alice"),
			Email:         strPtr("alice@example.com"),
		},
		Summary: &ConversationSummary{
			Summary: "done",
			User:    &UserProfile{ContactNumber: "5551234567"},
		},
	}
}

func TestPrivacyFilterNoop(t *testing.T) {
	var nilFilter *PrivacyFilter
	s := sampleState()
	assert.Equal(t, s, nilFilter.Apply(s))
	assert.Equal(t, s, (&PrivacyFilter{}).Apply(s))
	assert.True(t, (&PrivacyFilter{}).IsNoop())
}

func TestPrivacyFilterMasks(t *testing.T) {
	s := sampleState()
	f := &PrivacyFilter{MaskContactNumbers: true, MaskEmails: true, MaskNames: true}
	assert.False(t, f.IsNoop())

	got := f.Apply(s)

	assert.Equal(t, "******4567", *got.Appointments[0].ContactNumber)
	assert.Equal(t, MaskName("Alice"), got.Appointments[0].UserName)
	assert.Equal(t, "******4567", got.User.ContactNumber)
	assert.Equal(t, "a***@example.com", *got.User.Email)
	assert.Equal(t, MaskName("Alice"), *got.User.Name)
	assert.Equal(t, "******4567", got.Summary.User.ContactNumber)

	// Original untouched.
	assert.Equal(t, sampleState(), s)
}

func TestPrivacyFilterSelective(t *testing.T) {
	got := (&PrivacyFilter{MaskEmails: true}).Apply(sampleState())
	assert.Equal(t, "5551234567", got.User.ContactNumber)
	assert.Equal(t, "Alice", *got.User.Name)
	assert.Equal(t, "a***@example.com", *got.User.Email)
}

func TestMaskHelpers(t *testing.T) {
	assert.Equal(t, "***", MaskPhone("123"))
	assert.Equal(t, "****", MaskPhone("1234"))
	assert.Equal(t, "*2345", MaskPhone("12345"))
	assert.Equal(t, MaskName("Bob"), MaskName("Bob"), "stable")
	assert.NotEqual(t, MaskName("Bob"), MaskName("Alice"))
	assert.Len(t, MaskEmail("no-at-sign"), 12)
}
