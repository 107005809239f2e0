package tts

import (
	"context"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

// Compile-time interface check.
var _ domain.Speaker = (*NoOpSpeaker)(nil)

// NoOpSpeaker accepts every line without producing audio. Used when no
// synthesis key is configured, so the coach still runs with text-only
// delivery through the logs.
type NoOpSpeaker struct {
	log *logger.Logger
}

// NewNoOpSpeaker creates a speaker that only logs.
func NewNoOpSpeaker(log *logger.Logger) *NoOpSpeaker {
	return &NoOpSpeaker{log: log}
}

// Speak logs the line and reports it as accepted.
func (n *NoOpSpeaker) Speak(ctx context.Context, text string, interrupt bool) bool {
	if text == "" {
		return false
	}
	n.log.Info("coach (muted): %s", text)
	return true
}

// Playing always reports false; nothing is ever audible.
func (n *NoOpSpeaker) Playing() bool { return false }
