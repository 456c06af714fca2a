package session

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// PrivacyFilter masks personal data in a state before it is shown or
// logged. The zero value is a no-op filter.
type PrivacyFilter struct {
	MaskContactNumbers bool
	MaskEmails         bool
	MaskNames          bool
}

// Apply returns a copy of the state with sensitive fields masked according
// to the filter configuration. The original state is never modified.
func (f *PrivacyFilter) Apply(s State) State {
	if f == nil || f.IsNoop() {
		return s
	}
	masked := s.Clone()

	for i := range masked.Appointments {
		a := &masked.Appointments[i]
		if f.MaskContactNumbers && a.ContactNumber != nil {
			v := MaskPhone(*a.ContactNumber)
			a.ContactNumber = &v
		}
		if f.MaskNames && a.UserName != "" {
			a.UserName = MaskName(a.UserName)
		}
	}

	f.applyUser(masked.User)
	if masked.Summary != nil {
		f.applyUser(masked.Summary.User)
	}
	return masked
}

func (f *PrivacyFilter) applyUser(u *UserProfile) {
	if u == nil {
		return
	}
	if f.MaskContactNumbers && u.ContactNumber != "" {
		u.ContactNumber = MaskPhone(u.ContactNumber)
	}
	if f.MaskEmails && u.Email != nil {
		v := MaskEmail(*u.Email)
		u.Email = &v
	}
	if f.MaskNames && u.Name != nil {
		v := MaskName(*u.Name)
		u.Name = &v
	}
}

// IsNoop reports whether the filter does nothing.
func (f *PrivacyFilter) IsNoop() bool {
	return !f.MaskContactNumbers && !f.MaskEmails && !f.MaskNames
}

// MaskPhone keeps the last four digits: "5551234567" -> "******4567".
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return shortHash(email)
	}
	return email[:1] + "***" + email[at:]
}

// MaskName replaces a name with a stable opaque token so the same person
// stays recognisable across lines.
func MaskName(name string) string {
	return "user-" + shortHash(name)
}

// shortHash returns a truncated SHA-256 hex digest for an opaque identifier.
func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:6])
}
