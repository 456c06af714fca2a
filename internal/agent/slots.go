// Package agent simulates the backend voice agent: a slot catalogue, an
// in-memory appointment book and a scripted conversation that pushes RPC
// events to a connected frontend.
package agent

import (
	"slices"
	"time"

	"github.com/appointment-assistant/sessionsync/internal/config"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Slot is one bookable date and time.
type Slot struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	DisplayDate string `json:"display_date"`
	DisplayTime string `json:"display_time"`
}

// Catalog generates the bookable slots from the agent config.
type Catalog struct {
	times     []string
	daysAhead int
	excluded  map[time.Weekday]bool
}

func NewCatalog(cfg config.AgentConfig) *Catalog {
	c := &Catalog{
		times:     slices.Clone(cfg.AvailableTimes),
		daysAhead: cfg.DaysAhead,
		excluded:  make(map[time.Weekday]bool, len(cfg.ExcludedWeekdays)),
	}
	for _, d := range cfg.ExcludedWeekdays {
		c.excluded[time.Weekday(d)] = true
	}
	return c
}

// Slots lists every slot for days days starting at from's date. days <= 0
// uses the configured horizon.
func (c *Catalog) Slots(from time.Time, days int) []Slot {
	if days <= 0 {
		days = c.daysAhead
	}
	start := midnight(from)
	var out []Slot
	for offset := range days {
		day := start.AddDate(0, 0, offset)
		if c.excluded[day.Weekday()] {
			continue
		}
		for _, t := range c.times {
			out = append(out, Slot{
				Date:        day.Format(dateLayout),
				Time:        t,
				DisplayDate: day.Format("Monday, January 02, 2006"),
				DisplayTime: Format12h(t),
			})
		}
	}
	return out
}

// Suggestions returns the slots on preferredDate, or the next ten slots
// when the date is empty, unparseable or fully excluded.
func (c *Catalog) Suggestions(now time.Time, preferredDate string) []Slot {
	all := c.Slots(now, 0)
	if preferredDate != "" {
		var matched []Slot
		for _, s := range all {
			if s.Date == preferredDate {
				matched = append(matched, s)
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}
	return all[:min(10, len(all))]
}

// IsValidSlot reports whether date and tm name a configured slot between
// today and the booking horizon on an allowed weekday.
func (c *Catalog) IsValidSlot(date, tm string, now time.Time) bool {
	if !slices.Contains(c.times, tm) {
		return false
	}
	d, err := time.ParseInLocation(dateLayout, date, now.Location())
	if err != nil {
		return false
	}
	today := midnight(now)
	if d.Before(today) || d.After(today.AddDate(0, 0, c.daysAhead)) {
		return false
	}
	return !c.excluded[d.Weekday()]
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
