package domain

import "time"

// Session summarizes one coaching run against a superlap.
type Session struct {
	ID           string
	SuperlapID   string
	TrackName    string
	CarName      string
	Ticks        int
	AdviceCounts map[AdviceCategory]int
	Status       SessionStatus
	StartedAt    time.Time
	EndedAt      time.Time
}

// SessionStatus tracks the lifecycle of a coaching session.
type SessionStatus int

const (
	SessionActive SessionStatus = iota
	SessionFinished
	SessionAbandoned
)

// String returns a human-readable session status.
func (s SessionStatus) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionFinished:
		return "finished"
	case SessionAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// TotalAdvice sums the per-category advice counters.
func (s *Session) TotalAdvice() int {
	total := 0
	for _, n := range s.AdviceCounts {
		total += n
	}
	return total
}
