// Package audio implements the coaching playback pipeline: a single-worker
// queue with interrupt semantics, sample-level amplification with soft
// clipping, and the persisted volume preference.
package audio

import "time"

// Audio parameters matching the synthesizer output (22.05 kHz mono MP3).
const (
	SampleRate   = 22050
	ChannelCount = 1
	BitDepth     = 16
)

// Volume preference bounds. The stored value is user-facing; the gain
// actually applied to samples comes from Multiplier.
const (
	MinVolume     = 0.0
	MaxVolume     = 2.0
	DefaultVolume = 0.8
)

// softClipCeiling bounds sample amplitude below full scale. The headroom
// avoids harsh digital clipping artifacts.
const softClipCeiling = 0.98

// maxGainDB caps the decibel fallback so a broken multiplier can never
// blow out the output.
const maxGainDB = 20.0

// cancelPollInterval is how often in-flight playback checks for an
// interrupt. Cancellation is cooperative; callers must not assume
// sub-100ms latency.
const cancelPollInterval = 100 * time.Millisecond

// fallbackCleanupDelay is how long the fire-and-forget system player gets
// before its temp file is removed.
const fallbackCleanupDelay = 3 * time.Second
