// Package tts synthesizes coaching lines into audio and feeds them to the
// playback queue.
package tts

import "time"

const (
	// DefaultVoice is Rachel, a clear neutral voice that reads well over
	// engine noise.
	DefaultVoice = "21m00Tcm4TlvDq8ikWAM"

	// DefaultModel favours latency over fidelity. A coaching cue that
	// arrives a corner late is worthless.
	DefaultModel = "eleven_turbo_v2"

	// DefaultOutputFormat matches the playback pipeline's 22.05 kHz mono
	// expectation.
	DefaultOutputFormat = "mp3_22050_32"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxRetries  = 2
	retryBackoff       = 500 * time.Millisecond
)

// Environment variable read by the wiring in cmd.
const EnvAPIKey = "ELEVENLABS_API_KEY"
