// Package visibility decides which tool-call indicators are on screen: the
// ones still running plus the recent ones, capped to a small number.
package visibility

import (
	"time"

	"github.com/appointment-assistant/sessionsync/internal/config"
	"github.com/appointment-assistant/sessionsync/internal/session"
)

type Policy struct {
	// Window is how long a finished or pending call stays visible.
	Window time.Duration
	// Limit caps the number of visible calls; the most recent win.
	Limit int
}

func DefaultPolicy() Policy {
	return PolicyFrom(config.Default().Session)
}

func PolicyFrom(cfg config.SessionConfig) Policy {
	return Policy{Window: cfg.VisibilityWindow, Limit: cfg.MaxVisible}
}

// Visible keeps calls that are in progress or younger than Window at now,
// then returns the last Limit of them in insertion order. The input is not
// modified.
func (p Policy) Visible(calls []session.ToolCall, now time.Time) []session.ToolCall {
	kept := make([]session.ToolCall, 0, min(len(calls), max(p.Limit, 0)))
	for _, tc := range calls {
		if tc.Status == session.InProgress || now.Sub(tc.Timestamp) < p.Window {
			kept = append(kept, tc)
		}
	}
	if p.Limit >= 0 && len(kept) > p.Limit {
		kept = kept[len(kept)-p.Limit:]
	}
	return kept
}
