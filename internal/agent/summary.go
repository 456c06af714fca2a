package agent

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/appointment-assistant/sessionsync/internal/session"
)

// Usage counts what a conversation consumed.
type Usage struct {
	PromptTokens       int
	CompletionTokens   int
	PromptCachedTokens int
	TTSCharacters      int
	TTSAudioDuration   time.Duration
	STTAudioDuration   time.Duration
}

// Per-unit prices in USD.
const (
	promptTokenPrice     = 0.15 / 1_000_000
	completionTokenPrice = 0.60 / 1_000_000
	ttsCharPrice         = 0.015 / 1000
	sttMinutePrice       = 0.0043
)

// Costs prices u. Amounts are rounded to six decimals, durations to
// hundredths of a second.
func Costs(u Usage) session.Costs {
	llm := float64(u.PromptTokens)*promptTokenPrice + float64(u.CompletionTokens)*completionTokenPrice
	tts := float64(u.TTSCharacters) * ttsCharPrice
	stt := u.STTAudioDuration.Minutes() * sttMinutePrice
	return session.Costs{
		LLMCost:            round(llm, 6),
		TTSCost:            round(tts, 6),
		STTCost:            round(stt, 6),
		TotalCost:          round(llm+tts+stt, 6),
		CompletionTokens:   u.CompletionTokens,
		PromptTokens:       u.PromptTokens,
		PromptCachedTokens: u.PromptCachedTokens,
		TotalTokens:        u.PromptTokens + u.CompletionTokens,
		TTSCharacters:      u.TTSCharacters,
		TTSAudioDuration:   round(u.TTSAudioDuration.Seconds(), 2),
		STTAudioDuration:   round(u.STTAudioDuration.Seconds(), 2),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// Discussed returns the summary entries for up to the first three records.
func Discussed(records []Record) []session.SummaryAppointment {
	out := make([]session.SummaryAppointment, 0, min(len(records), 3))
	for _, r := range records[:min(len(records), 3)] {
		out = append(out, session.SummaryAppointment{
			ID:      r.ID,
			Date:    r.Date,
			Time:    r.Time,
			Status:  r.Status.String(),
			Display: FormatDisplay(r.Date, r.Time),
		})
	}
	return out
}

// SummaryText builds the closing message read to the caller. user is nil
// when the caller never identified.
func SummaryText(user *session.UserProfile, discussed []session.SummaryAppointment) string {
	var b strings.Builder
	b.WriteString("Thank you for using our appointment booking service. ")

	if user != nil {
		who := "the user"
		if user.Name != nil && *user.Name != "" {
			who = *user.Name
		}

		var active, cancelled []session.SummaryAppointment
		for _, a := range discussed {
			switch a.Status {
			case session.Active.String():
				active = append(active, a)
			case session.Cancelled.String():
				cancelled = append(cancelled, a)
			}
		}

		switch {
		case len(active) == 1:
			a := active[0]
			d, derr := time.Parse(dateLayout, a.Date)
			t, terr := parseClock(a.Time)
			if derr == nil && terr == nil {
				fmt.Fprintf(&b, "We helped %s book 1 appointment for %s at %s. ",
					who, d.Format("Monday, January 02, 2006"), t.Format("3:04 PM"))
			} else {
				fmt.Fprintf(&b, "We helped %s book 1 appointment. ", who)
			}
		case len(active) > 1:
			fmt.Fprintf(&b, "We helped %s manage %d appointment(s). ", who, len(active))
		case len(cancelled) > 0:
			fmt.Fprintf(&b, "We helped %s cancel %d appointment(s). ", who, len(cancelled))
		default:
			fmt.Fprintf(&b, "We assisted %s with their appointment needs. ", who)
		}
	}

	b.WriteString("Have a great day!")
	return b.String()
}
