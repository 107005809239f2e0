package superlap

import (
	"context"
	"errors"
	"testing"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

func TestStaticSourceDemoLap(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	src := NewStaticSource(log)
	ctx := context.Background()

	points, msg, err := src.Fetch(ctx, "")
	if err != nil {
		t.Fatalf("fetch demo lap: %v", err)
	}
	if len(points) == 0 {
		t.Fatal("demo lap is empty")
	}
	if msg == "" {
		t.Error("expected a status message")
	}

	prev := -1.0
	for i, p := range points {
		if p.TrackPosition < 0 || p.TrackPosition >= 1 {
			t.Fatalf("point %d position out of range: %v", i, p.TrackPosition)
		}
		if p.TrackPosition <= prev {
			t.Fatalf("points not strictly ascending at %d: %v <= %v", i, p.TrackPosition, prev)
		}
		if p.Speed <= 0 {
			t.Fatalf("point %d has non-positive speed: %v", i, p.Speed)
		}
		if p.Throttle < 0 || p.Throttle > 1 || p.Brake < 0 || p.Brake > 1 {
			t.Fatalf("point %d pedals out of range: throttle=%v brake=%v", i, p.Throttle, p.Brake)
		}
		prev = p.TrackPosition
	}
}

func TestStaticSourceUnknownLap(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	src := NewStaticSource(log)

	_, _, err := src.Fetch(context.Background(), "no-such-lap")
	if !errors.Is(err, domain.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestStaticSourceAdd(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	src := NewStaticSource(log)

	src.Add(&domain.Superlap{ID: "custom", Points: testPoints(0.1, 0.9)})

	points, _, err := src.Fetch(context.Background(), "custom")
	if err != nil {
		t.Fatalf("fetch custom lap: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}

	if got := len(src.List()); got != 2 {
		t.Fatalf("expected 2 registered laps, got %d", got)
	}
}
