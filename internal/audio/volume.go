package audio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/hammamikhairi/apexcoach/internal/logger"
)

type volumeFile struct {
	Volume float64 `json:"volume"`
}

type volumeSubscriber struct {
	id int
	fn func(float64)
}

// VolumeStore owns the persisted playback volume preference and fans out
// changes to subscribers. Values live in [MinVolume, MaxVolume]; anything
// outside is clamped, and a missing or corrupt file falls back to
// DefaultVolume.
type VolumeStore struct {
	mu     sync.Mutex
	path   string
	value  float64
	subs   []volumeSubscriber
	nextID int
	log    *logger.Logger
}

// NewVolumeStore loads the preference at path, or starts at DefaultVolume
// when the file is absent or unreadable.
func NewVolumeStore(path string, log *logger.Logger) *VolumeStore {
	s := &VolumeStore{
		path:  path,
		value: DefaultVolume,
		log:   log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Debug("volume: no saved preference at %s, using %.2f", path, DefaultVolume)
		return s
	}
	var f volumeFile
	if err := json.Unmarshal(data, &f); err != nil {
		s.log.Warn("volume: corrupt preference file %s (%v), using %.2f", path, err, DefaultVolume)
		return s
	}
	s.value = clampVolume(f.Volume)
	return s
}

// Volume returns the current preference.
func (s *VolumeStore) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set clamps and stores the new volume, persists it, and then invokes
// every subscriber synchronously with the applied value. The clamped
// value is returned. A failed write keeps the in-memory value; losing
// persistence is not worth losing the change.
func (s *VolumeStore) Set(v float64) float64 {
	v = clampVolume(v)

	s.mu.Lock()
	s.value = v
	subs := make([]volumeSubscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	s.persist(v)
	for _, sub := range subs {
		sub.fn(v)
	}
	return v
}

// Subscribe registers a callback for future volume changes and returns a
// token for Unsubscribe. Callbacks run on the goroutine that calls Set.
func (s *VolumeStore) Subscribe(fn func(float64)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.subs = append(s.subs, volumeSubscriber{id: s.nextID, fn: fn})
	return s.nextID
}

// Unsubscribe removes a previously registered callback.
func (s *VolumeStore) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *VolumeStore) persist(v float64) {
	data, err := json.MarshalIndent(volumeFile{Volume: v}, "", "  ")
	if err != nil {
		s.log.Warn("volume: encoding preference: %v", err)
		return
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.log.Warn("volume: creating preference dir: %v", err)
			return
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.log.Warn("volume: saving preference: %v", err)
	}
}

func clampVolume(v float64) float64 {
	if v < MinVolume {
		return MinVolume
	}
	if v > MaxVolume {
		return MaxVolume
	}
	return v
}
