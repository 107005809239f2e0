package tts

import (
	"context"
	"strings"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

// PlaybackQueue is the slice of the audio manager the speaker needs.
type PlaybackQueue interface {
	Enqueue(data []byte, interruptCurrent bool, callback func(ok bool)) bool
	Playing() bool
}

// Speaker turns coaching text into queued audio. Synthesis happens on the
// caller's goroutine; playback is asynchronous through the queue.
type Speaker struct {
	synth domain.SpeechSynthesizer
	queue PlaybackQueue
	cache *Cache // optional
	log   *logger.Logger
}

// Compile-time interface check.
var _ domain.Speaker = (*Speaker)(nil)

// NewSpeaker wires a synthesizer to the playback queue. cache may be nil
// to disable audio caching.
func NewSpeaker(synth domain.SpeechSynthesizer, queue PlaybackQueue, cache *Cache, log *logger.Logger) *Speaker {
	return &Speaker{
		synth: synth,
		queue: queue,
		cache: cache,
		log:   log,
	}
}

// Speak synthesizes text and queues it for playback, reporting whether
// the clip was accepted by the queue. Acceptance means queued, not
// played. Empty text never reaches the audio pipeline.
func (s *Speaker) Speak(ctx context.Context, text string, interrupt bool) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	audio, err := s.synthesize(ctx, text)
	if err != nil {
		s.log.Warn("speaker: synthesis failed: %v", err)
		return false
	}

	return s.queue.Enqueue(audio, interrupt, func(ok bool) {
		if !ok {
			s.log.Debug("speaker: playback cut short for %q", truncateForLog(text, 40))
		}
	})
}

// Playing reports whether coaching audio is currently audible.
func (s *Speaker) Playing() bool {
	return s.queue.Playing()
}

// Prefetch synthesizes lines into the cache without playing them. Useful
// for fixed announcements that would otherwise pay synthesis latency at
// an awkward moment. Synthesis runs in the background.
func (s *Speaker) Prefetch(ctx context.Context, lines ...string) {
	if s.cache == nil {
		return
	}
	for _, line := range lines {
		if line == "" || s.cache.Has(line) {
			continue
		}
		go func(text string) {
			if _, err := s.synthesize(ctx, text); err != nil {
				s.log.Debug("speaker: prefetch failed for %q: %v", truncateForLog(text, 40), err)
			}
		}(line)
	}
}

func (s *Speaker) synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(text); ok {
			return data, nil
		}
	}
	data, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Put(text, data)
	}
	return data, nil
}
