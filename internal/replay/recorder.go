package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

// Recorder captures live telemetry into lap files that the Engine can
// replay later. Lap boundaries are detected from the track position
// wrapping back toward zero.
type Recorder struct {
	dir       string
	meta      lapMetadata
	log       *logger.Logger

	mu      sync.Mutex
	frames  []frameRecord
	lapNum  int
	lastPos float64
	closed  bool
}

// wrapThreshold is how far the track position must jump backwards to
// count as crossing the start/finish line. Noise never moves it this far.
const wrapThreshold = 0.5

// NewRecorder creates a session recorder writing lap files under dir.
func NewRecorder(dir, track, car, sessionID string, log *logger.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating recording dir: %w", err)
	}
	return &Recorder{
		dir: dir,
		meta: lapMetadata{
			TrackName: track,
			CarName:   car,
			SessionID: sessionID,
		},
		log: log,
	}, nil
}

// Add appends one telemetry frame, flushing the lap to disk when the car
// crosses the start/finish line.
func (r *Recorder) Add(snap domain.TelemetrySnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	if len(r.frames) > 0 && snap.TrackPosition < r.lastPos-wrapThreshold {
		r.flushLapLocked()
	}
	r.frames = append(r.frames, snapshotToFrame(snap))
	r.lastPos = snap.TrackPosition
}

// Close flushes any partial lap and stops the recorder.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if len(r.frames) > 0 {
		r.flushLapLocked()
	}
	r.log.Info("recorder: session saved to %s (%d laps)", r.dir, r.lapNum)
	return nil
}

// flushLapLocked writes the buffered frames as the next lap file. Caller
// holds the mutex.
func (r *Recorder) flushLapLocked() {
	meta := r.meta
	meta.LapNumber = r.lapNum
	if n := len(r.frames); n > 1 {
		meta.LapTime = r.frames[n-1].Timestamp - r.frames[0].Timestamp
	}

	path := filepath.Join(r.dir, fmt.Sprintf("lap_%03d.json", r.lapNum))
	if err := writeLapFile(path, meta, r.frames); err != nil {
		r.log.Error("recorder: %v", err)
	} else {
		r.log.Debug("recorder: wrote %s (%d frames, %.1fs)", filepath.Base(path), len(r.frames), meta.LapTime)
	}

	r.lapNum++
	r.frames = nil
}
