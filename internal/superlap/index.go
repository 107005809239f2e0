// Package superlap provides reference-lap sources, caching, and the
// position index the coach queries on every telemetry tick.
package superlap

import (
	"sort"

	"github.com/hammamikhairi/apexcoach/internal/domain"
)

// Index holds one reference lap ordered by track position and answers
// nearest-point queries. It is immutable after construction and therefore
// safe for concurrent reads.
type Index struct {
	points    []domain.SuperlapPoint
	positions []float64
}

// NewIndex builds an index over the given points. The input is copied and
// sorted by track position. Returns domain.ErrDataUnavailable when points
// is empty.
func NewIndex(points []domain.SuperlapPoint) (*Index, error) {
	if len(points) == 0 {
		return nil, domain.ErrDataUnavailable
	}

	sorted := make([]domain.SuperlapPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TrackPosition < sorted[j].TrackPosition
	})

	positions := make([]float64, len(sorted))
	for i, p := range sorted {
		positions[i] = p.TrackPosition
	}

	return &Index{points: sorted, positions: positions}, nil
}

// Len returns the number of reference points.
func (ix *Index) Len() int { return len(ix.points) }

// Nearest returns the reference point closest to pos. Positions below the
// first stored point clamp to the first point, positions above the last
// clamp to the last. When pos falls exactly between two points, the later
// one wins.
func (ix *Index) Nearest(pos float64) domain.SuperlapPoint {
	i := sort.SearchFloat64s(ix.positions, pos)
	if i == 0 {
		return ix.points[0]
	}
	if i == len(ix.points) {
		return ix.points[len(ix.points)-1]
	}

	before := ix.points[i-1]
	after := ix.points[i]
	if pos-before.TrackPosition < after.TrackPosition-pos {
		return before
	}
	return after
}
