package domain

import "time"

// AdviceCategory classifies a coaching decision. The ladder below is ordered
// by increasing severity; AudioPlaying sits outside the ladder as a
// suppression marker, not a tier.
type AdviceCategory int

const (
	NoCoaching AdviceCategory = iota
	LowPriority
	MediumPriority
	HighPriority
	CriticalSpeedLoss
	AudioPlaying
)

// String returns a human-readable advice category.
func (c AdviceCategory) String() string {
	switch c {
	case NoCoaching:
		return "no_coaching"
	case LowPriority:
		return "low_priority"
	case MediumPriority:
		return "medium_priority"
	case HighPriority:
		return "high_priority"
	case CriticalSpeedLoss:
		return "critical_speed_loss"
	case AudioPlaying:
		return "audio_playing"
	default:
		return "unknown"
	}
}

// Rank maps a category onto the severity ladder. AudioPlaying ranks zero:
// it suppresses coaching rather than grading it.
func (c AdviceCategory) Rank() int {
	if c == AudioPlaying {
		return 0
	}
	return int(c)
}

// Decision is the outcome of one tick of the priority engine.
type Decision struct {
	Category    AdviceCategory
	ShouldCoach bool
}

// Advice is a coaching message that actually fired.
type Advice struct {
	Category      AdviceCategory
	Text          string
	TrackPosition float64
	At            time.Time
}
