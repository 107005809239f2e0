// Package coach implements the real-time coaching decision engine and the
// coordinator that drives it from live telemetry.
package coach

import (
	"math"
	"time"

	"github.com/hammamikhairi/apexcoach/internal/domain"
)

// audioOverrideSpeedDiff is the speed loss that pierces the playing-audio
// suppression. It is deliberately harsher than the critical threshold.
const audioOverrideSpeedDiff = -25.0

// recentAdviceSlots bounds the ring of recently issued categories.
const recentAdviceSlots = 3

// TickInput is everything the decision ladder consumes for one tick.
// Diffs are live minus reference.
type TickInput struct {
	SpeedDiff    float64
	ThrottleDiff float64
	BrakeDiff    float64
	Position     float64
	Now          time.Time
	AudioPlaying bool
}

// tier is one rung of the severity ladder: a match condition plus the
// debounce minimums that gate repeat advice at this severity.
type tier struct {
	category    domain.AdviceCategory
	minDistance float64 // track fraction since the last advice
	minTime     time.Duration
	match       func(in TickInput) bool
}

// tiers is evaluated top to bottom; the first matching condition decides
// the category, and only then does debounce decide whether it fires.
var tiers = []tier{
	{
		category:    domain.CriticalSpeedLoss,
		minDistance: 0.036,
		minTime:     3 * time.Second,
		match:       func(in TickInput) bool { return in.SpeedDiff < -20 },
	},
	{
		category:    domain.HighPriority,
		minDistance: 0.073,
		minTime:     4 * time.Second,
		match:       func(in TickInput) bool { return in.BrakeDiff > 0.4 || in.ThrottleDiff < -0.4 },
	},
	{
		category:    domain.MediumPriority,
		minDistance: 0.109,
		minTime:     6 * time.Second,
		match:       func(in TickInput) bool { return math.Abs(in.SpeedDiff) > 12 || math.Abs(in.ThrottleDiff) > 0.3 },
	},
	{
		category:    domain.LowPriority,
		minDistance: 0.182,
		minTime:     10 * time.Second,
		match:       func(in TickInput) bool { return math.Abs(in.SpeedDiff) > 8 || math.Abs(in.ThrottleDiff) > 0.25 },
	},
}

// PriorityEngine turns telemetry deltas into coaching decisions. It owns
// the debounce state (last advice time/position and the recent-category
// ring) and expects a single sequential caller; Decide and RecordAdvice
// must not be invoked concurrently.
type PriorityEngine struct {
	lastAdviceTime     time.Time
	lastAdvicePosition float64

	recent    [recentAdviceSlots]domain.AdviceCategory
	recentIdx int
	recentLen int
}

// NewPriorityEngine creates an engine with no advice history, so the first
// matching tier fires immediately.
func NewPriorityEngine() *PriorityEngine {
	return &PriorityEngine{}
}

// Decide runs the severity ladder for one tick. It never mutates state:
// a firing decision is only committed once the caller delivers the advice
// and calls RecordAdvice.
func (e *PriorityEngine) Decide(in TickInput) domain.Decision {
	if in.AudioPlaying && in.SpeedDiff >= audioOverrideSpeedDiff {
		return domain.Decision{Category: domain.AudioPlaying, ShouldCoach: false}
	}

	for _, t := range tiers {
		if !t.match(in) {
			continue
		}
		return domain.Decision{Category: t.category, ShouldCoach: e.debounceClear(t, in)}
	}

	return domain.Decision{Category: domain.NoCoaching, ShouldCoach: false}
}

// debounceClear reports whether enough time and track distance have passed
// since the last delivered advice for this tier to fire again. Both gates
// must clear.
func (e *PriorityEngine) debounceClear(t tier, in TickInput) bool {
	elapsed := in.Now.Sub(e.lastAdviceTime)
	distance := math.Abs(in.Position - e.lastAdvicePosition)
	return elapsed > t.minTime && distance > t.minDistance
}

// RecordAdvice commits a delivered advice: it moves the debounce marker and
// pushes the category into the recent ring, evicting the oldest entry.
func (e *PriorityEngine) RecordAdvice(category domain.AdviceCategory, position float64, now time.Time) {
	e.lastAdviceTime = now
	e.lastAdvicePosition = position

	e.recent[e.recentIdx] = category
	e.recentIdx = (e.recentIdx + 1) % recentAdviceSlots
	if e.recentLen < recentAdviceSlots {
		e.recentLen++
	}
}

// RecentAdvice returns the last delivered categories, oldest first. The
// ring is informational only; no decision path reads it.
func (e *PriorityEngine) RecentAdvice() []domain.AdviceCategory {
	out := make([]domain.AdviceCategory, 0, e.recentLen)
	start := e.recentIdx - e.recentLen
	for i := 0; i < e.recentLen; i++ {
		out = append(out, e.recent[((start+i)%recentAdviceSlots+recentAdviceSlots)%recentAdviceSlots])
	}
	return out
}
