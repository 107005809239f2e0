package audio

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hammamikhairi/apexcoach/internal/logger"
)

type item struct {
	data     []byte
	callback func(ok bool)
}

// Manager owns the coaching playback queue. A single worker goroutine
// services items in FIFO order, so at most one clip is ever audible.
// Interrupting jumps the queue: the current clip stops and everything
// pending behind it is discarded.
type Manager struct {
	amp      *Amplifier
	volume   *VolumeStore
	sink     Sink // nil means fallback-only playback
	fallback func(data []byte) error
	log      *logger.Logger

	mu     sync.Mutex
	queue  []item
	cancel chan struct{} // gate for the clip in flight

	notify  chan struct{}
	done    chan struct{}
	playing atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewManager wires the playback queue to its collaborators. A nil sink is
// allowed; every clip then goes through the system player fallback.
func NewManager(amp *Amplifier, volume *VolumeStore, sink Sink, log *logger.Logger) *Manager {
	m := &Manager{
		amp:    amp,
		volume: volume,
		sink:   sink,
		log:    log,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	m.fallback = m.systemPlay
	return m
}

// Start launches the playback worker. Only the first call has effect.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.worker()
		}()
		m.log.Debug("audio manager: worker started")
	})
}

// Enqueue adds a clip to the playback queue and reports whether it was
// accepted. Acceptance means queued, not played; completion is signalled
// through callback, which receives false when playback fails or is
// interrupted mid-clip. With interruptCurrent set, the current clip is
// stopped and all pending items are discarded first, and the discarded
// items' callbacks are never invoked.
func (m *Manager) Enqueue(data []byte, interruptCurrent bool, callback func(ok bool)) bool {
	select {
	case <-m.done:
		return false
	default:
	}

	if interruptCurrent {
		m.Interrupt()
	}

	m.mu.Lock()
	m.queue = append(m.queue, item{data: data, callback: callback})
	depth := len(m.queue)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}

	m.log.Debug("audio manager: queued clip (%d bytes, depth %d)", len(data), depth)
	return true
}

// Interrupt stops the clip in flight and discards everything queued
// behind it. Safe to call at any time, including when idle.
func (m *Manager) Interrupt() {
	m.mu.Lock()
	dropped := len(m.queue)
	m.queue = nil
	if m.cancel != nil {
		select {
		case <-m.cancel:
		default:
			close(m.cancel)
		}
	}
	m.mu.Unlock()

	if dropped > 0 {
		m.log.Debug("audio manager: interrupt dropped %d queued clips", dropped)
	}
}

// Playing reports whether a clip is currently being serviced.
func (m *Manager) Playing() bool {
	return m.playing.Load()
}

// QueueLen returns the number of clips waiting behind the current one.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close stops the worker, interrupting any clip in flight. Enqueue calls
// after Close return false.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.Interrupt()
		if m.sink != nil {
			m.sink.Stop()
		}
		m.wg.Wait()
		m.log.Debug("audio manager: stopped")
	})
}

func (m *Manager) worker() {
	for {
		select {
		case <-m.done:
			return
		case <-m.notify:
			m.drainQueue()
		}
	}
}

func (m *Manager) drainQueue() {
	for {
		select {
		case <-m.done:
			return
		default:
		}

		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		it := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		m.playItem(it)
	}
}

func (m *Manager) playItem(it item) {
	m.mu.Lock()
	cancel := make(chan struct{})
	m.cancel = cancel
	m.mu.Unlock()

	m.playing.Store(true)
	defer m.playing.Store(false)

	// The gain is read at play time, not enqueue time, so a volume
	// change applies to everything still in the queue.
	data := m.amp.Amplify(it.data, Multiplier(m.volume.Volume()))

	ok := m.playOnce(data, cancel)
	if it.callback != nil {
		it.callback(ok)
	}
}

func (m *Manager) playOnce(data []byte, cancel <-chan struct{}) bool {
	if m.sink != nil {
		err := m.sink.Play(data, cancel)
		if err == nil {
			return true
		}
		if errors.Is(err, errInterrupted) {
			return false
		}
		m.log.Warn("audio manager: sink failed (%v), trying system player", err)
	}

	if err := m.fallback(data); err != nil {
		m.log.Error("audio manager: fallback playback failed: %v", err)
		return false
	}
	return true
}
