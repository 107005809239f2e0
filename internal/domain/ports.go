package domain

import "context"

// SuperlapSource fetches reference-lap telemetry. Implementations can be
// embedded fixtures, disk caches, or the remote telemetry API. The message
// return mirrors the backend's status text and is for logging only; an
// empty point slice is always a load failure.
type SuperlapSource interface {
	Fetch(ctx context.Context, superlapID string) ([]SuperlapPoint, string, error)
}

// AdviceGenerator turns a telemetry comparison into one short spoken command.
// An empty string means no advice this tick. Returned errors are for logging
// only; they must never abort the telemetry loop.
type AdviceGenerator interface {
	Generate(ctx context.Context, current TelemetrySnapshot, reference SuperlapPoint) (string, error)
}

// SpeechSynthesizer converts advice text into encoded audio bytes.
// Implementations can be HTTP TTS backends or the no-op used when audio
// is disabled.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Speaker queues spoken advice for playback. Speak reports whether the
// audio was queued, not whether it finished playing. Playing reports
// whether any item is currently at the sink.
type Speaker interface {
	Speak(ctx context.Context, text string, interrupt bool) bool
	Playing() bool
}

// SessionStore persists coaching-session summaries. Implementations can be
// in-memory, SQLite, or any other backend.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Session, error)
}

// Notifier surfaces coaching events to the user interface. Implementations
// can write to stdout, the live dashboard, or drop everything.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	NotifyAdvice(ctx context.Context, advice Advice) error
}
