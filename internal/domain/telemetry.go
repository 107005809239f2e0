// Package domain defines the core types and interfaces for the driving coach.
// All other packages depend on domain; domain depends on nothing.
package domain

import "time"

// SuperlapPoint is one sample of the reference lap. Points are immutable
// once loaded and kept sorted ascending by TrackPosition.
type SuperlapPoint struct {
	TrackPosition float64 // normalized lap progress in [0,1), 0 = start/finish
	Speed         float64 // km/h
	Throttle      float64 // 0..1
	Brake         float64 // 0..1
	Steering      float64 // radians, negative = left
}

// TelemetrySnapshot is one live sample from the sim, produced once per tick.
// Units match SuperlapPoint. Missing fields at the deserialization boundary
// default to zero; Timestamp defaults to the decode time.
type TelemetrySnapshot struct {
	TrackPosition float64
	Speed         float64
	Throttle      float64
	Brake         float64
	Steering      float64
	Timestamp     time.Time
}

// Delta is the live-minus-reference difference at the same track position.
// Negative Speed means the driver is slower than the reference.
type Delta struct {
	Speed    float64
	Throttle float64
	Brake    float64
}

// Superlap is a reference lap: its identity plus the ordered sample points.
type Superlap struct {
	ID        string
	TrackName string
	CarName   string
	Points    []SuperlapPoint
}
