// Package replay streams recorded telemetry sessions through the coach as
// if they were live, for practicing against a superlap without the sim.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

const (
	// defaultFrameRate matches the sim's telemetry capture rate.
	defaultFrameRate = 60.0

	minSpeed = 0.1
	maxSpeed = 10.0

	pausePollInterval = 100 * time.Millisecond
)

// FrameFunc receives each replayed telemetry frame.
type FrameFunc func(domain.TelemetrySnapshot)

// LapFunc is invoked when a replayed lap completes.
type LapFunc func(lapNumber int, lapTime float64)

// Option configures the replay engine.
type Option func(*Engine)

// WithFrameRate overrides the assumed capture rate of the recording.
func WithFrameRate(hz float64) Option {
	return func(e *Engine) {
		e.frameRate = hz
	}
}

// WithLoop restarts the session from the first lap when it ends.
func WithLoop(loop bool) Option {
	return func(e *Engine) {
		e.loop = loop
	}
}

// WithSpeed sets the initial playback speed multiplier.
func WithSpeed(speed float64) Option {
	return func(e *Engine) {
		e.speed = clampSpeed(speed)
	}
}

// WithLapFunc registers a lap-completion callback.
func WithLapFunc(fn LapFunc) Option {
	return func(e *Engine) {
		e.onLap = fn
	}
}

// Lap is one recorded lap of telemetry.
type Lap struct {
	Number int
	Time   float64
	Frames []domain.TelemetrySnapshot
}

// Status is a snapshot of playback state for the dashboard.
type Status struct {
	Track        string
	Car          string
	Laps         int
	CurrentLap   int
	CurrentFrame int
	Playing      bool
	Paused       bool
	Speed        float64
}

// Engine replays a recorded session frame by frame at a configurable
// speed. Frames are delivered on the engine's own goroutine, so the
// FrameFunc must be safe to call from there.
type Engine struct {
	onFrame   FrameFunc
	onLap     LapFunc
	log       *logger.Logger
	frameRate float64
	loop      bool

	mu           sync.Mutex
	laps         []Lap
	track, car   string
	speed        float64
	paused       bool
	running      bool
	currentLap   int
	currentFrame int
	cancel       context.CancelFunc
	done         chan struct{}
}

// New creates a replay engine delivering frames to onFrame.
func New(onFrame FrameFunc, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		onFrame:   onFrame,
		log:       log,
		frameRate: defaultFrameRate,
		speed:     1.0,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sessions lists session directories under root, newest first.
func Sessions(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading session root: %w", err)
	}

	type dirInfo struct {
		path  string
		mtime time.Time
	}
	var dirs []dirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, dirInfo{filepath.Join(root, entry.Name()), info.ModTime()})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].mtime.After(dirs[j].mtime) })

	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = d.path
	}
	return out, nil
}

// LoadSession reads every lap_*.json under dir. Corrupt lap files are
// skipped with a warning; a session with no readable laps is an error.
func (e *Engine) LoadSession(dir string) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("cannot load a session while playback is running")
	}
	e.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(dir, "lap_*.json"))
	if err != nil {
		return fmt.Errorf("listing lap files: %w", err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return fmt.Errorf("no lap files in %s: %w", dir, domain.ErrDataUnavailable)
	}

	var laps []Lap
	var track, car string
	totalFrames := 0
	for _, path := range paths {
		lap, meta, err := readLapFile(path)
		if err != nil {
			e.log.Warn("replay: skipping %s: %v", filepath.Base(path), err)
			continue
		}
		if track == "" {
			track, car = meta.TrackName, meta.CarName
		}
		totalFrames += len(lap.Frames)
		laps = append(laps, lap)
	}
	if len(laps) == 0 {
		return fmt.Errorf("no readable laps in %s: %w", dir, domain.ErrDataUnavailable)
	}

	e.mu.Lock()
	e.laps = laps
	e.track, e.car = track, car
	e.currentLap, e.currentFrame = 0, 0
	e.mu.Unlock()

	e.log.Info("replay: loaded %s (%s / %s, %d laps, %d frames)",
		filepath.Base(dir), track, car, len(laps), totalFrames)
	return nil
}

// Start begins playback in the background. Non-blocking.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		e.log.Warn("replay already running")
		return nil
	}
	if len(e.laps) == 0 {
		return fmt.Errorf("no session loaded: %w", domain.ErrDataUnavailable)
	}

	childCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	e.paused = false

	go e.worker(childCtx, e.done)

	e.log.Info("replay started (%d laps, %.0f Hz, %.1fx)", len(e.laps), e.frameRate, e.speed)
	return nil
}

// Stop halts playback and waits briefly for the worker to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	e.log.Info("replay stopped")
}

// Pause suspends frame delivery without losing position.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && !e.paused {
		e.paused = true
		e.log.Info("replay paused")
	}
}

// Resume continues a paused playback.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.paused {
		e.paused = false
		e.log.Info("replay resumed")
	}
}

// SetSpeed adjusts the playback speed multiplier, clamped to
// [0.1, 10.0]. Takes effect on the next frame. Returns the applied value.
func (e *Engine) SetSpeed(speed float64) float64 {
	speed = clampSpeed(speed)
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
	e.log.Info("replay speed set to %.1fx", speed)
	return speed
}

// Playing reports whether the worker is delivering frames.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Info returns the current playback status.
func (e *Engine) Info() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Track:        e.track,
		Car:          e.car,
		Laps:         len(e.laps),
		CurrentLap:   e.currentLap,
		CurrentFrame: e.currentFrame,
		Playing:      e.running,
		Paused:       e.paused,
		Speed:        e.speed,
	}
}

func (e *Engine) worker(ctx context.Context, done chan struct{}) {
	defer func() {
		e.mu.Lock()
		e.running = false
		e.paused = false
		e.mu.Unlock()
		close(done)
	}()

	e.mu.Lock()
	laps := e.laps
	e.mu.Unlock()

	lapIdx := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if lapIdx >= len(laps) {
			if e.loop {
				lapIdx = 0
				e.log.Info("replay: looping session")
				continue
			}
			e.log.Info("replay: session completed")
			return
		}

		lap := laps[lapIdx]
		for frameIdx := range lap.Frames {
			if !e.waitWhilePaused(ctx) {
				return
			}

			e.mu.Lock()
			e.currentLap, e.currentFrame = lapIdx, frameIdx
			e.mu.Unlock()

			e.onFrame(lap.Frames[frameIdx])

			select {
			case <-ctx.Done():
				return
			case <-time.After(e.frameDelay()):
			}
		}

		if e.onLap != nil {
			e.onLap(lap.Number, lap.Time)
		}
		lapIdx++
	}
}

// waitWhilePaused blocks while paused, returning false when the context
// is canceled.
func (e *Engine) waitWhilePaused(ctx context.Context) bool {
	for {
		e.mu.Lock()
		paused := e.paused
		e.mu.Unlock()
		if !paused {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pausePollInterval):
		}
	}
}

func (e *Engine) frameDelay() time.Duration {
	e.mu.Lock()
	speed := e.speed
	e.mu.Unlock()
	return time.Duration(float64(time.Second) / (e.frameRate * speed))
}

func clampSpeed(s float64) float64 {
	if s < minSpeed {
		return minSpeed
	}
	if s > maxSpeed {
		return maxSpeed
	}
	return s
}
