package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hammamikhairi/apexcoach/internal/domain"
)

// Lap files carry one lap of telemetry plus the metadata needed to replay
// it: {"metadata": {...}, "data": [frame, ...]}.

type lapMetadata struct {
	TrackName string  `json:"track_name"`
	CarName   string  `json:"car_name"`
	LapNumber int     `json:"lap_number"`
	LapTime   float64 `json:"lap_time"`
	SessionID string  `json:"session_id,omitempty"`
}

type frameRecord struct {
	Timestamp     float64 `json:"timestamp"` // unix seconds
	Throttle      float64 `json:"throttle"`
	Brake         float64 `json:"brake"`
	Steering      float64 `json:"steering"`
	Speed         float64 `json:"speed"`
	TrackPosition float64 `json:"track_position"`
}

type lapFile struct {
	Metadata lapMetadata   `json:"metadata"`
	Data     []frameRecord `json:"data"`
}

func (f frameRecord) toSnapshot() domain.TelemetrySnapshot {
	return domain.TelemetrySnapshot{
		TrackPosition: f.TrackPosition,
		Speed:         f.Speed,
		Throttle:      f.Throttle,
		Brake:         f.Brake,
		Steering:      f.Steering,
		Timestamp:     time.Unix(0, int64(f.Timestamp*float64(time.Second))),
	}
}

func snapshotToFrame(s domain.TelemetrySnapshot) frameRecord {
	return frameRecord{
		Timestamp:     float64(s.Timestamp.UnixNano()) / float64(time.Second),
		Throttle:      s.Throttle,
		Brake:         s.Brake,
		Steering:      s.Steering,
		Speed:         s.Speed,
		TrackPosition: s.TrackPosition,
	}
}

func readLapFile(path string) (Lap, lapMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lap{}, lapMetadata{}, err
	}
	var lf lapFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return Lap{}, lapMetadata{}, fmt.Errorf("decoding lap file: %w", err)
	}
	if len(lf.Data) == 0 {
		return Lap{}, lapMetadata{}, fmt.Errorf("lap file has no frames")
	}

	frames := make([]domain.TelemetrySnapshot, len(lf.Data))
	for i, f := range lf.Data {
		frames[i] = f.toSnapshot()
	}
	return Lap{
		Number: lf.Metadata.LapNumber,
		Time:   lf.Metadata.LapTime,
		Frames: frames,
	}, lf.Metadata, nil
}

func writeLapFile(path string, meta lapMetadata, frames []frameRecord) error {
	data, err := json.MarshalIndent(lapFile{Metadata: meta, Data: frames}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding lap file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing lap file: %w", err)
	}
	return nil
}
