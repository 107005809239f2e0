package replay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

func writeTestLap(t *testing.T, dir string, lapNumber int, speeds []float64) {
	t.Helper()
	frames := make([]frameRecord, len(speeds))
	for i, speed := range speeds {
		frames[i] = frameRecord{
			Timestamp:     float64(lapNumber*100 + i),
			Speed:         speed,
			Throttle:      1.0,
			TrackPosition: float64(i) / float64(len(speeds)),
		}
	}
	meta := lapMetadata{
		TrackName: "Test Ring",
		CarName:   "GT3",
		LapNumber: lapNumber,
		LapTime:   float64(len(speeds)),
	}
	path := filepath.Join(dir, fmt.Sprintf("lap_%03d.json", lapNumber))
	if err := writeLapFile(path, meta, frames); err != nil {
		t.Fatal(err)
	}
}

func waitReplay(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEngineReplaysAllFrames(t *testing.T) {
	dir := t.TempDir()
	writeTestLap(t, dir, 0, []float64{100, 101, 102, 103})
	writeTestLap(t, dir, 1, []float64{110, 111, 112, 113})

	var mu sync.Mutex
	var speeds []float64
	var lapEnds []int
	e := New(func(s domain.TelemetrySnapshot) {
		mu.Lock()
		speeds = append(speeds, s.Speed)
		mu.Unlock()
	}, logger.New(logger.LevelOff, nil),
		WithFrameRate(1000), WithSpeed(10),
		WithLapFunc(func(n int, _ float64) {
			mu.Lock()
			lapEnds = append(lapEnds, n)
			mu.Unlock()
		}))

	if err := e.LoadSession(dir); err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	info := e.Info()
	if info.Track != "Test Ring" || info.Car != "GT3" || info.Laps != 2 {
		t.Errorf("Info = %+v", info)
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitReplay(t, "playback to finish", func() bool { return !e.Playing() })

	mu.Lock()
	defer mu.Unlock()
	if len(speeds) != 8 {
		t.Fatalf("delivered %d frames, want 8", len(speeds))
	}
	want := []float64{100, 101, 102, 103, 110, 111, 112, 113}
	for i := range want {
		if speeds[i] != want[i] {
			t.Errorf("frame %d speed = %v, want %v", i, speeds[i], want[i])
		}
	}
	if len(lapEnds) != 2 || lapEnds[0] != 0 || lapEnds[1] != 1 {
		t.Errorf("lap completions = %v, want [0 1]", lapEnds)
	}
}

func TestEnginePauseResume(t *testing.T) {
	dir := t.TempDir()
	speeds := make([]float64, 300)
	for i := range speeds {
		speeds[i] = 100
	}
	writeTestLap(t, dir, 0, speeds)

	var count int
	var mu sync.Mutex
	frames := func() int {
		mu.Lock()
		defer mu.Unlock()
		return count
	}
	e := New(func(domain.TelemetrySnapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	}, logger.New(logger.LevelOff, nil), WithFrameRate(100))
	if err := e.LoadSession(dir); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	waitReplay(t, "frames to flow", func() bool { return frames() >= 5 })

	e.Pause()
	time.Sleep(150 * time.Millisecond) // let an in-flight frame settle
	before := frames()
	time.Sleep(300 * time.Millisecond)
	if after := frames(); after != before {
		t.Errorf("frames advanced from %d to %d while paused", before, after)
	}

	e.Resume()
	waitReplay(t, "frames to resume", func() bool { return frames() > before })
}

func TestEngineSpeedClamp(t *testing.T) {
	e := New(func(domain.TelemetrySnapshot) {}, logger.New(logger.LevelOff, nil))
	if got := e.SetSpeed(99); got != maxSpeed {
		t.Errorf("SetSpeed(99) = %v, want %v", got, maxSpeed)
	}
	if got := e.SetSpeed(0.001); got != minSpeed {
		t.Errorf("SetSpeed(0.001) = %v, want %v", got, minSpeed)
	}
}

func TestEngineLoadFailures(t *testing.T) {
	e := New(func(domain.TelemetrySnapshot) {}, logger.New(logger.LevelOff, nil))

	if err := e.LoadSession(t.TempDir()); !errors.Is(err, domain.ErrDataUnavailable) {
		t.Errorf("empty dir error = %v, want ErrDataUnavailable", err)
	}

	corrupt := t.TempDir()
	if err := os.WriteFile(filepath.Join(corrupt, "lap_000.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.LoadSession(corrupt); !errors.Is(err, domain.ErrDataUnavailable) {
		t.Errorf("corrupt-only dir error = %v, want ErrDataUnavailable", err)
	}

	// One corrupt lap does not sink a session with readable laps.
	mixed := t.TempDir()
	if err := os.WriteFile(filepath.Join(mixed, "lap_000.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeTestLap(t, mixed, 1, []float64{100, 101})
	if err := e.LoadSession(mixed); err != nil {
		t.Errorf("mixed dir failed to load: %v", err)
	}
	if got := e.Info().Laps; got != 1 {
		t.Errorf("loaded %d laps from mixed dir, want 1", got)
	}
}

func TestEngineStartWithoutSession(t *testing.T) {
	e := New(func(domain.TelemetrySnapshot) {}, logger.New(logger.LevelOff, nil))
	if err := e.Start(context.Background()); !errors.Is(err, domain.ErrDataUnavailable) {
		t.Errorf("Start without session = %v, want ErrDataUnavailable", err)
	}
}

func TestSessionsNewestFirst(t *testing.T) {
	root := t.TempDir()
	older := filepath.Join(root, "session-old")
	newer := filepath.Join(root, "session-new")
	for _, dir := range []string{older, newer} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}

	got, err := Sessions(root)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(got) != 2 || got[0] != newer || got[1] != older {
		t.Errorf("Sessions = %v, want newest first", got)
	}
}
