package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

// errInterrupted reports playback that was cut short by a cancel signal
// rather than running to completion.
var errInterrupted = errors.New("playback interrupted")

// Sink plays one encoded clip synchronously. Play returns errInterrupted
// when the cancel channel fires mid-clip.
type Sink interface {
	Play(data []byte, cancel <-chan struct{}) error
	Stop()
}

// Player is the primary Sink, backed by an oto audio context.
type Player struct {
	ctx    *oto.Context
	log    *logger.Logger
	mu     sync.Mutex
	active *oto.Player // currently playing, nil when idle
}

var _ Sink = (*Player)(nil)

// NewPlayer creates an audio player. Initializes the system audio context.
// Returns an error if the audio device is unavailable.
func NewPlayer(log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("opening audio device: %v: %w", err, domain.ErrAudioSubsystem)
	}
	<-readyChan

	log.Debug("audio player initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log}, nil
}

// Play decodes MP3 or WAV data and plays it synchronously. It blocks
// until playback finishes, Stop is called, or cancel fires. The cancel
// channel is polled cooperatively, so interruption lands within roughly
// cancelPollInterval rather than immediately.
func (p *Player) Play(data []byte, cancel <-chan struct{}) error {
	pcm, rate, channels, err := decodeAudio(data)
	if err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrAudioSubsystem)
	}
	if rate != SampleRate || channels != ChannelCount {
		return fmt.Errorf("unsupported audio format %d Hz/%d ch, want %d Hz/%d ch: %w",
			rate, channels, SampleRate, ChannelCount, domain.ErrAudioSubsystem)
	}

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))

	p.mu.Lock()
	p.active = player
	p.mu.Unlock()

	player.Play()
	p.log.Debug("audio player: playing %d bytes of PCM", len(pcm))

	interrupted := false
	for !interrupted && player.IsPlaying() {
		select {
		case <-cancel:
			player.Pause()
			interrupted = true
		case <-time.After(cancelPollInterval):
		}
	}

	p.mu.Lock()
	p.active = nil
	p.mu.Unlock()

	if err := player.Close(); err != nil {
		p.log.Debug("audio player: close: %v", err)
	}
	if interrupted {
		p.log.Debug("audio player: interrupted")
		return errInterrupted
	}
	return nil
}

// Stop interrupts the currently playing audio, if any. Safe to call
// concurrently and when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Pause()
		p.log.Debug("audio player: stopped")
	}
}
