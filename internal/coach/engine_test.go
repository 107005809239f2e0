package coach

import (
	"testing"
	"time"

	"github.com/hammamikhairi/apexcoach/internal/domain"
)

var testBase = time.Date(2026, 3, 14, 15, 4, 0, 0, time.UTC)

// freeInput returns a tick far from any previous advice so only the match
// conditions decide the outcome.
func freeInput() TickInput {
	return TickInput{Position: 0.5, Now: testBase}
}

func TestDecisionLadder(t *testing.T) {
	tests := []struct {
		name         string
		speedDiff    float64
		throttleDiff float64
		brakeDiff    float64
		audioPlaying bool
		wantCategory domain.AdviceCategory
		wantCoach    bool
	}{
		{"on pace", 2, 0.05, 0.1, false, domain.NoCoaching, false},
		{"critical speed loss", -25, 0, 0, false, domain.CriticalSpeedLoss, true},
		{"critical boundary is strict", -20, 0, 0, false, domain.MediumPriority, true},
		{"high priority over-braking", 0, 0, 0.5, false, domain.HighPriority, true},
		{"high priority throttle lift", 0, -0.5, 0, false, domain.HighPriority, true},
		{"high boundary is strict", 0, 0, 0.4, false, domain.NoCoaching, false},
		{"medium on speed gap", 15, 0, 0, false, domain.MediumPriority, true},
		{"medium on slow side", -15, 0, 0, false, domain.MediumPriority, true},
		{"medium on throttle gap", 0, 0.35, 0, false, domain.MediumPriority, true},
		{"low on speed gap", 9, 0, 0, false, domain.LowPriority, true},
		{"low on throttle gap", 0, 0.28, 0, false, domain.LowPriority, true},
		{"low boundary is strict", 8, 0.25, 0, false, domain.NoCoaching, false},
		{"audio playing suppresses", -10, 0, 0, true, domain.AudioPlaying, false},
		{"audio playing suppresses high", 0, 0, 0.9, true, domain.AudioPlaying, false},
		{"critical override pierces audio", -30, 0, 0, true, domain.CriticalSpeedLoss, true},
		{"override boundary is strict", -25, 0, 0, true, domain.AudioPlaying, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewPriorityEngine()
			in := freeInput()
			in.SpeedDiff = tt.speedDiff
			in.ThrottleDiff = tt.throttleDiff
			in.BrakeDiff = tt.brakeDiff
			in.AudioPlaying = tt.audioPlaying

			got := e.Decide(in)
			if got.Category != tt.wantCategory {
				t.Errorf("category = %s, want %s", got.Category, tt.wantCategory)
			}
			if got.ShouldCoach != tt.wantCoach {
				t.Errorf("shouldCoach = %v, want %v", got.ShouldCoach, tt.wantCoach)
			}
		})
	}
}

// Worsening speed loss must never lower the severity of the outcome.
func TestSeverityMonotonicity(t *testing.T) {
	e := NewPriorityEngine()

	prevRank := -1
	for _, speedDiff := range []float64{-10, -15, -22} {
		in := freeInput()
		in.SpeedDiff = speedDiff
		rank := e.Decide(in).Category.Rank()
		if rank < prevRank {
			t.Fatalf("severity dropped from rank %d to %d at speedDiff=%v", prevRank, rank, speedDiff)
		}
		prevRank = rank
	}
}

func TestDebounceGates(t *testing.T) {
	newFired := func() *PriorityEngine {
		e := NewPriorityEngine()
		e.RecordAdvice(domain.CriticalSpeedLoss, 0.5, testBase)
		return e
	}

	tests := []struct {
		name      string
		elapsed   time.Duration
		position  float64
		wantCoach bool
	}{
		{"both gates closed", 1 * time.Second, 0.51, false},
		{"time open, distance closed", 3500 * time.Millisecond, 0.52, false},
		{"distance open, time closed", 1 * time.Second, 0.6, false},
		{"both gates open", 3500 * time.Millisecond, 0.55, true},
		{"exact time boundary is strict", 3 * time.Second, 0.55, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newFired()
			in := TickInput{
				SpeedDiff: -25,
				Position:  tt.position,
				Now:       testBase.Add(tt.elapsed),
			}
			got := e.Decide(in)
			if got.Category != domain.CriticalSpeedLoss {
				t.Fatalf("category = %s, want critical", got.Category)
			}
			if got.ShouldCoach != tt.wantCoach {
				t.Errorf("shouldCoach = %v, want %v", got.ShouldCoach, tt.wantCoach)
			}
		})
	}
}

// Per-tier minimums apply against the shared debounce marker: advice at one
// severity also holds back the others until their own gates clear.
func TestDebounceAcrossTiers(t *testing.T) {
	e := NewPriorityEngine()
	e.RecordAdvice(domain.CriticalSpeedLoss, 0.2, testBase)

	in := TickInput{SpeedDiff: 15, Position: 0.4, Now: testBase.Add(5 * time.Second)}
	if got := e.Decide(in); got.ShouldCoach {
		t.Fatalf("medium advice fired after 5s, wants >6s: %+v", got)
	}

	in.Now = testBase.Add(6500 * time.Millisecond)
	if got := e.Decide(in); !got.ShouldCoach {
		t.Fatalf("medium advice still blocked after 6.5s: %+v", got)
	}
}

// Simulated lap: consecutive fires of the same category must be separated
// by at least that category's minimum time AND minimum distance.
func TestDebounceInvariantOverLap(t *testing.T) {
	e := NewPriorityEngine()

	type fired struct {
		at  time.Time
		pos float64
	}
	var fires []fired

	pos := 0.0
	for tick := 0; tick < 400; tick++ {
		now := testBase.Add(time.Duration(tick) * 100 * time.Millisecond)
		in := TickInput{SpeedDiff: -22, Position: pos, Now: now}

		d := e.Decide(in)
		if d.ShouldCoach {
			e.RecordAdvice(d.Category, pos, now)
			fires = append(fires, fired{at: now, pos: pos})
		}

		pos += 0.004
		if pos >= 1.0 {
			pos -= 1.0
		}
	}

	if len(fires) < 2 {
		t.Fatalf("expected repeated critical advice over the run, got %d", len(fires))
	}
	for i := 1; i < len(fires); i++ {
		gap := fires[i].at.Sub(fires[i-1].at)
		dist := fires[i].pos - fires[i-1].pos
		if dist < 0 {
			dist = -dist
		}
		if gap <= 3*time.Second {
			t.Errorf("fires %d and %d only %s apart", i-1, i, gap)
		}
		if dist <= 0.036 {
			t.Errorf("fires %d and %d only %.3f apart on track", i-1, i, dist)
		}
	}
}

func TestRecentAdviceRing(t *testing.T) {
	e := NewPriorityEngine()

	if got := e.RecentAdvice(); len(got) != 0 {
		t.Fatalf("fresh engine should have empty history, got %v", got)
	}

	seq := []domain.AdviceCategory{
		domain.LowPriority,
		domain.MediumPriority,
		domain.HighPriority,
		domain.CriticalSpeedLoss,
	}
	for i, cat := range seq {
		e.RecordAdvice(cat, float64(i)*0.1, testBase.Add(time.Duration(i)*time.Minute))
	}

	got := e.RecentAdvice()
	want := []domain.AdviceCategory{domain.MediumPriority, domain.HighPriority, domain.CriticalSpeedLoss}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slot %d = %s, want %s", i, got[i], want[i])
		}
	}
}
