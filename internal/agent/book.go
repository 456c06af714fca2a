package agent

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/appointment-assistant/sessionsync/internal/session"
	"github.com/google/uuid"
)

var (
	ErrSlotTaken = errors.New("this time slot is already booked")
	ErrNotFound  = errors.New("appointment not found")
)

// Record is an appointment as the agent stores it.
type Record struct {
	ID            string
	ContactNumber string
	UserName      string
	Date          string
	Time          string
	Status        session.AppointmentStatus
	CreatedAt     time.Time
}

// Book is an in-memory appointment store shared by every connection. A slot
// holds at most one active appointment.
type Book struct {
	mu      sync.Mutex
	records []*Record
	users   map[string]session.UserProfile
	now     func() time.Time
}

func NewBook(now func() time.Time) *Book {
	if now == nil {
		now = time.Now
	}
	return &Book{users: make(map[string]session.UserProfile), now: now}
}

// Identify returns the profile for contact, creating a new one when the
// number is unknown.
func (b *Book) Identify(contact string) session.UserProfile {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u, ok := b.users[contact]; ok {
		notNew := false
		u.IsNew = &notNew
		return u
	}
	isNew := true
	u := session.UserProfile{ContactNumber: contact, IsNew: &isNew}
	b.users[contact] = session.UserProfile{ContactNumber: contact}
	return u
}

// Available reports whether no active appointment holds the slot.
func (b *Book) Available(date, tm string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.availableLocked(date, tm)
}

func (b *Book) availableLocked(date, tm string) bool {
	for _, r := range b.records {
		if r.Date == date && r.Time == tm && r.Status != session.Cancelled {
			return false
		}
	}
	return true
}

// Create books a slot for contact and records the caller's name.
func (b *Book) Create(contact, name, date, tm string) (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.availableLocked(date, tm) {
		return Record{}, ErrSlotTaken
	}
	name = titleName(name)
	r := &Record{
		ID:            uuid.NewString(),
		ContactNumber: contact,
		UserName:      name,
		Date:          date,
		Time:          tm,
		Status:        session.Active,
		CreatedAt:     b.now(),
	}
	b.records = append(b.records, r)

	u := b.users[contact]
	u.ContactNumber = contact
	if u.Name == nil {
		u.Name = &name
	}
	b.users[contact] = u
	return *r, nil
}

// Cancel marks an appointment cancelled.
func (b *Book) Cancel(id string) (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.findLocked(id)
	if r == nil {
		return Record{}, ErrNotFound
	}
	r.Status = session.Cancelled
	return *r, nil
}

// Modify moves an appointment to a new slot. The stored record keeps status
// active; the frontend is told it was modified.
func (b *Book) Modify(id, date, tm string) (before, after Record, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.findLocked(id)
	if r == nil {
		return Record{}, Record{}, ErrNotFound
	}
	if !b.availableLocked(date, tm) {
		return Record{}, Record{}, ErrSlotTaken
	}
	before = *r
	r.Date, r.Time, r.Status = date, tm, session.Active
	return before, *r, nil
}

// ForUser lists contact's appointments ordered by date and time.
func (b *Book) ForUser(contact string, includeCancelled bool) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Record
	for _, r := range b.records {
		if r.ContactNumber != contact {
			continue
		}
		if !includeCancelled && r.Status == session.Cancelled {
			continue
		}
		out = append(out, *r)
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.Time, b.Time)
	})
	return out
}

func (b *Book) findLocked(id string) *Record {
	for _, r := range b.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}
