package agent

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

var (
	ErrPhoneTooShort = errors.New("phone number too short")
	ErrPhoneTooLong  = errors.New("phone number too long")
)

// FormatPhone strips everything but digits: "(555) 123-4567" -> "5551234567".
func FormatPhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
}

// ValidatePhone accepts 7 to 15 digits once formatting is stripped.
func ValidatePhone(phone string) error {
	digits := FormatPhone(phone)
	switch {
	case len(digits) < 7:
		return ErrPhoneTooShort
	case len(digits) > 15:
		return ErrPhoneTooLong
	}
	return nil
}

// FormatDisplay renders a date and time for the caller, e.g.
// "Monday, January 26, 2026 at 10:00 AM". Unparseable input is echoed.
func FormatDisplay(date, tm string) string {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return date + " at " + tm
	}
	t, err := parseClock(tm)
	if err != nil {
		return date + " at " + tm
	}
	return d.Format("Monday, January 02, 2006") + " at " + t.Format("03:04 PM")
}

// Format12h turns "14:30" into "2:30 PM".
func Format12h(tm string) string {
	t, err := parseClock(tm)
	if err != nil {
		return tm
	}
	return t.Format("3:04 PM")
}

// parseClock accepts HH:MM and HH:MM:SS.
func parseClock(tm string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, tm); err == nil {
		return t, nil
	}
	return time.Parse("15:04:05", tm)
}

// titleName capitalises each word of a spoken name.
func titleName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
