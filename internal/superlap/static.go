package superlap

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

// DemoSuperlapID is the id of the built-in reference lap.
const DemoSuperlapID = "demo"

// Compile-time interface check.
var _ domain.SuperlapSource = (*StaticSource)(nil)

// StaticSource holds superlaps in memory, preloaded with a built-in demo
// lap so the coach works without any backend credentials. Safe for
// concurrent reads.
type StaticSource struct {
	mu   sync.RWMutex
	laps map[string]*domain.Superlap
	log  *logger.Logger
}

// NewStaticSource creates a superlap source preloaded with the demo lap.
func NewStaticSource(log *logger.Logger) *StaticSource {
	src := &StaticSource{
		laps: make(map[string]*domain.Superlap),
		log:  log,
	}
	src.seed()
	return src
}

// Add registers a superlap under its ID, replacing any previous one.
func (s *StaticSource) Add(lap *domain.Superlap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.laps[lap.ID] = lap
	s.log.Debug("static superlap added: %s (%d points)", lap.ID, len(lap.Points))
}

// Fetch returns the points of the superlap with the given id. An empty id
// falls back to the demo lap.
func (s *StaticSource) Fetch(ctx context.Context, superlapID string) ([]domain.SuperlapPoint, string, error) {
	if superlapID == "" {
		superlapID = DemoSuperlapID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lap, ok := s.laps[superlapID]
	if !ok {
		return nil, fmt.Sprintf("superlap %q not found", superlapID), domain.ErrDataUnavailable
	}
	return lap.Points, fmt.Sprintf("retrieved %d telemetry points", len(lap.Points)), nil
}

// List returns the registered superlaps sorted by id.
func (s *StaticSource) List() []*domain.Superlap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Superlap, 0, len(s.laps))
	for _, lap := range s.laps {
		out = append(out, lap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// seed populates the source with the built-in demo lap.
func (s *StaticSource) seed() {
	lap := demoLap()
	s.laps[lap.ID] = lap
	s.log.Debug("seeded demo superlap: %d points", len(lap.Points))
}

// demoCorner describes one braking zone of the synthetic demo circuit.
type demoCorner struct {
	apex     float64 // track position of the apex
	width    float64 // fraction of the lap influenced by the corner
	minSpeed float64 // km/h carried through the apex
	right    bool
}

// demoLap builds a synthetic but physically plausible reference lap:
// a straight-line top speed with cosine-eased braking into five corners.
// Throttle, brake, and steering are derived from the speed profile.
func demoLap() *domain.Superlap {
	const (
		points   = 240
		topSpeed = 178.0 // km/h
	)

	corners := []demoCorner{
		{apex: 0.08, width: 0.060, minSpeed: 92, right: true},
		{apex: 0.27, width: 0.075, minSpeed: 68, right: false},
		{apex: 0.46, width: 0.050, minSpeed: 105, right: true},
		{apex: 0.63, width: 0.085, minSpeed: 55, right: true},
		{apex: 0.86, width: 0.070, minSpeed: 74, right: false},
	}

	speedAt := func(pos float64) float64 {
		speed := topSpeed
		for _, c := range corners {
			d := math.Abs(pos - c.apex)
			// Wrap around the start/finish line.
			if d > 0.5 {
				d = 1.0 - d
			}
			if d >= c.width {
				continue
			}
			// Cosine ease from top speed down to apex speed and back.
			blend := 0.5 * (1 + math.Cos(math.Pi*d/c.width))
			dip := c.minSpeed + (topSpeed-c.minSpeed)*(1-blend)
			if dip < speed {
				speed = dip
			}
		}
		return speed
	}

	steeringAt := func(pos float64) float64 {
		for _, c := range corners {
			d := pos - c.apex
			if d > 0.5 {
				d -= 1.0
			} else if d < -0.5 {
				d += 1.0
			}
			if math.Abs(d) >= c.width {
				continue
			}
			lock := 0.45 * (90.0 / c.minSpeed) // tighter corner, more lock
			angle := lock * 0.5 * (1 + math.Cos(math.Pi*d/c.width))
			if !c.right {
				angle = -angle
			}
			return angle
		}
		return 0
	}

	pts := make([]domain.SuperlapPoint, 0, points)
	step := 1.0 / points
	for i := 0; i < points; i++ {
		pos := float64(i) * step
		speed := speedAt(pos)
		next := speedAt(math.Mod(pos+step, 1.0))

		var throttle, brake float64
		switch {
		case next < speed-0.5:
			// Decelerating: brake pressure proportional to the drop.
			brake = math.Min(1.0, (speed-next)/6.0)
		case next > speed+0.5:
			throttle = 1.0
		default:
			// Holding apex speed: maintenance throttle.
			throttle = 0.35
		}

		pts = append(pts, domain.SuperlapPoint{
			TrackPosition: pos,
			Speed:         speed,
			Throttle:      throttle,
			Brake:         brake,
			Steering:      steeringAt(pos),
		})
	}

	return &domain.Superlap{
		ID:        DemoSuperlapID,
		TrackName: "Okayama Short",
		CarName:   "MX-5 Cup",
		Points:    pts,
	}
}
