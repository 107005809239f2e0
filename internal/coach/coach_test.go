package coach

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
	"github.com/hammamikhairi/apexcoach/internal/session"
)

// flatSource serves a lap where the reference holds a constant speed of
// 200 km/h at full throttle, which makes expected deltas easy to read.
type flatSource struct {
	fail bool
}

func (f *flatSource) Fetch(_ context.Context, superlapID string) ([]domain.SuperlapPoint, string, error) {
	if f.fail {
		return nil, "backend down", domain.ErrExternalService
	}
	var pts []domain.SuperlapPoint
	for i := 0; i < 10; i++ {
		pts = append(pts, domain.SuperlapPoint{
			TrackPosition: float64(i) / 10.0,
			Speed:         200,
			Throttle:      1,
		})
	}
	return pts, "retrieved 10 telemetry points", nil
}

// mockAdvisor returns a canned line and counts invocations.
type mockAdvisor struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (m *mockAdvisor) Generate(_ context.Context, _ domain.TelemetrySnapshot, _ domain.SuperlapPoint) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.text, m.err
}

func (m *mockAdvisor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockSpeaker records Speak calls and simulates playback status.
type mockSpeaker struct {
	mu         sync.Mutex
	playing    bool
	queueOK    bool
	spoken     []string
	interrupts []bool
}

func (m *mockSpeaker) Speak(_ context.Context, text string, interrupt bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spoken = append(m.spoken, text)
	m.interrupts = append(m.interrupts, interrupt)
	return m.queueOK
}

func (m *mockSpeaker) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *mockSpeaker) setPlaying(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = v
}

func (m *mockSpeaker) spokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.spoken)
}

func newTestCoach(t *testing.T, advisor *mockAdvisor, speaker *mockSpeaker) *Coach {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	store := session.NewMemoryStore(log)
	return New(&flatSource{}, advisor, speaker, store, log)
}

// slowSnap is a snapshot 25 km/h below the reference at the given position.
func slowSnap(pos float64, at time.Time) domain.TelemetrySnapshot {
	return domain.TelemetrySnapshot{
		TrackPosition: pos,
		Speed:         175,
		Throttle:      1,
		Timestamp:     at,
	}
}

func TestCoachDeliversCriticalAdvice(t *testing.T) {
	advisor := &mockAdvisor{text: "Brake later into turn three"}
	speaker := &mockSpeaker{queueOK: true}
	c := newTestCoach(t, advisor, speaker)
	ctx := context.Background()

	if err := c.LoadSuperlap(ctx, "lap-1"); err != nil {
		t.Fatalf("load superlap: %v", err)
	}

	d := c.ProcessTelemetry(ctx, slowSnap(0.52, testBase))
	if d.Category != domain.CriticalSpeedLoss || !d.ShouldCoach {
		t.Fatalf("expected firing critical decision, got %+v", d)
	}

	if advisor.callCount() != 1 {
		t.Fatalf("expected 1 advisor call, got %d", advisor.callCount())
	}
	if speaker.spokenCount() != 1 {
		t.Fatalf("expected 1 spoken advice, got %d", speaker.spokenCount())
	}
	if speaker.spoken[0] != "Brake later into turn three" {
		t.Fatalf("spoken text = %q", speaker.spoken[0])
	}
	if !speaker.interrupts[0] {
		t.Error("advice should be queued with interrupt")
	}

	sess := c.Session()
	if sess == nil {
		t.Fatal("expected an active session")
	}
	if sess.AdviceCounts[domain.CriticalSpeedLoss] != 1 {
		t.Fatalf("expected 1 critical advice recorded, got %+v", sess.AdviceCounts)
	}
}

func TestCoachInertWithoutSuperlap(t *testing.T) {
	advisor := &mockAdvisor{text: "never"}
	speaker := &mockSpeaker{queueOK: true}
	c := newTestCoach(t, advisor, speaker)

	d := c.ProcessTelemetry(context.Background(), slowSnap(0.5, testBase))
	if d.Category != domain.NoCoaching {
		t.Fatalf("inert coach should return no_coaching, got %s", d.Category)
	}
	if advisor.callCount() != 0 {
		t.Fatal("advisor must not be called without a superlap")
	}
}

func TestCoachLoadFailure(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	c := New(&flatSource{fail: true}, &mockAdvisor{}, &mockSpeaker{}, session.NewMemoryStore(log), log)

	err := c.LoadSuperlap(context.Background(), "lap-1")
	if !errors.Is(err, domain.ErrExternalService) {
		t.Fatalf("expected source failure to propagate from load, got %v", err)
	}

	// Still inert afterwards.
	d := c.ProcessTelemetry(context.Background(), slowSnap(0.5, testBase))
	if d.Category != domain.NoCoaching {
		t.Fatalf("coach should stay inert after failed load, got %s", d.Category)
	}
}

func TestCoachDebouncesRepeatAdvice(t *testing.T) {
	advisor := &mockAdvisor{text: "Carry more speed"}
	speaker := &mockSpeaker{queueOK: true}
	c := newTestCoach(t, advisor, speaker)
	ctx := context.Background()

	if err := c.LoadSuperlap(ctx, "lap-1"); err != nil {
		t.Fatalf("load superlap: %v", err)
	}

	if d := c.ProcessTelemetry(ctx, slowSnap(0.52, testBase)); !d.ShouldCoach {
		t.Fatalf("first tick should fire, got %+v", d)
	}

	// One second later: same category, inside both debounce gates.
	d := c.ProcessTelemetry(ctx, slowSnap(0.54, testBase.Add(time.Second)))
	if d.Category != domain.CriticalSpeedLoss || d.ShouldCoach {
		t.Fatalf("expected debounced critical, got %+v", d)
	}
	if advisor.callCount() != 1 {
		t.Fatalf("advisor called %d times, want 1", advisor.callCount())
	}
}

func TestCoachAudioSuppression(t *testing.T) {
	advisor := &mockAdvisor{text: "Ease off the brake"}
	speaker := &mockSpeaker{queueOK: true}
	c := newTestCoach(t, advisor, speaker)
	ctx := context.Background()

	if err := c.LoadSuperlap(ctx, "lap-1"); err != nil {
		t.Fatalf("load superlap: %v", err)
	}
	speaker.setPlaying(true)

	// 10 km/h down: suppressed while audio plays.
	snap := slowSnap(0.52, testBase)
	snap.Speed = 190
	if d := c.ProcessTelemetry(ctx, snap); d.Category != domain.AudioPlaying || d.ShouldCoach {
		t.Fatalf("expected audio suppression, got %+v", d)
	}
	if advisor.callCount() != 0 {
		t.Fatal("advisor must not run while suppressed")
	}

	// 30 km/h down pierces the suppression.
	snap.Speed = 170
	if d := c.ProcessTelemetry(ctx, snap); d.Category != domain.CriticalSpeedLoss || !d.ShouldCoach {
		t.Fatalf("expected critical override, got %+v", d)
	}
	if speaker.spokenCount() != 1 {
		t.Fatalf("expected interrupting advice, got %d spoken", speaker.spokenCount())
	}
}

func TestCoachGeneratorFailureDegrades(t *testing.T) {
	advisor := &mockAdvisor{err: errors.New("api timeout")}
	speaker := &mockSpeaker{queueOK: true}
	c := newTestCoach(t, advisor, speaker)
	ctx := context.Background()

	if err := c.LoadSuperlap(ctx, "lap-1"); err != nil {
		t.Fatalf("load superlap: %v", err)
	}

	d := c.ProcessTelemetry(ctx, slowSnap(0.52, testBase))
	if d.Category != domain.CriticalSpeedLoss || !d.ShouldCoach {
		t.Fatalf("decision should still fire, got %+v", d)
	}
	if speaker.spokenCount() != 0 {
		t.Fatal("nothing should be spoken when generation fails")
	}

	// Debounce did not move, so the next tick may fire again.
	advisor.mu.Lock()
	advisor.err = nil
	advisor.text = "Keep your foot in it"
	advisor.mu.Unlock()

	d = c.ProcessTelemetry(ctx, slowSnap(0.53, testBase.Add(100*time.Millisecond)))
	if !d.ShouldCoach {
		t.Fatalf("tier should still be free after failed generation, got %+v", d)
	}
	if speaker.spokenCount() != 1 {
		t.Fatalf("expected recovery advice, got %d spoken", speaker.spokenCount())
	}
}

func TestCoachEmptyAdviceMeansNoAudio(t *testing.T) {
	advisor := &mockAdvisor{text: ""}
	speaker := &mockSpeaker{queueOK: true}
	c := newTestCoach(t, advisor, speaker)
	ctx := context.Background()

	if err := c.LoadSuperlap(ctx, "lap-1"); err != nil {
		t.Fatalf("load superlap: %v", err)
	}

	c.ProcessTelemetry(ctx, slowSnap(0.52, testBase))
	if speaker.spokenCount() != 0 {
		t.Fatal("empty advice must not reach the speaker")
	}
	if sess := c.Session(); sess.TotalAdvice() != 0 {
		t.Fatalf("empty advice must not count, got %d", sess.TotalAdvice())
	}
}

func TestCoachFinish(t *testing.T) {
	advisor := &mockAdvisor{text: "Smooth hands"}
	speaker := &mockSpeaker{queueOK: true}
	c := newTestCoach(t, advisor, speaker)
	ctx := context.Background()

	if err := c.LoadSuperlap(ctx, "lap-1"); err != nil {
		t.Fatalf("load superlap: %v", err)
	}
	c.SetSessionMeta("Okayama Short", "MX-5 Cup")
	c.ProcessTelemetry(ctx, slowSnap(0.52, testBase))

	sess := c.Finish(ctx)
	if sess == nil {
		t.Fatal("expected a session summary")
	}
	if sess.Status != domain.SessionFinished {
		t.Fatalf("status = %s, want finished", sess.Status)
	}
	if sess.TrackName != "Okayama Short" {
		t.Fatalf("track = %q", sess.TrackName)
	}
	if sess.Ticks != 1 || sess.TotalAdvice() != 1 {
		t.Fatalf("ticks=%d advice=%d, want 1/1", sess.Ticks, sess.TotalAdvice())
	}
}
