package coach

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
	"github.com/hammamikhairi/apexcoach/internal/superlap"
)

// statusTraceEvery controls how often the tick trace goes to the debug log.
// At 60 Hz telemetry this is one line every five seconds.
const statusTraceEvery = 300

// Option configures the coach.
type Option func(*Coach)

// WithNotifier attaches a notifier that receives delivered advice.
func WithNotifier(n domain.Notifier) Option {
	return func(c *Coach) {
		c.notifier = n
	}
}

// Coach is the coordinator: on every telemetry tick it looks up the
// reference point, runs the priority engine, and turns firing decisions
// into spoken advice. Collaborator failures degrade the tick, they never
// escape ProcessTelemetry.
type Coach struct {
	source   domain.SuperlapSource
	advisor  domain.AdviceGenerator
	speaker  domain.Speaker
	store    domain.SessionStore
	notifier domain.Notifier
	log      *logger.Logger

	mu         sync.Mutex
	index      *superlap.Index
	engine     *PriorityEngine
	session    *domain.Session
	ticks      int
	lastPos    float64
	lastDelta  domain.Delta
	lastAdvice *domain.Advice
}

// New creates a coach with the given collaborators. The coach stays inert
// until LoadSuperlap succeeds.
func New(source domain.SuperlapSource, advisor domain.AdviceGenerator, speaker domain.Speaker, store domain.SessionStore, log *logger.Logger, opts ...Option) *Coach {
	c := &Coach{
		source:  source,
		advisor: advisor,
		speaker: speaker,
		store:   store,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadSuperlap fetches the reference lap and arms the coach. A fetch
// failure or empty lap leaves the previous state untouched and returns an
// error wrapping domain.ErrDataUnavailable or the source's failure.
func (c *Coach) LoadSuperlap(ctx context.Context, superlapID string) error {
	points, msg, err := c.source.Fetch(ctx, superlapID)
	if err != nil {
		c.log.Error("superlap %s unavailable: %v (%s)", superlapID, err, msg)
		return fmt.Errorf("loading superlap %s: %w", superlapID, err)
	}

	ix, err := superlap.NewIndex(points)
	if err != nil {
		c.log.Error("superlap %s rejected: %v", superlapID, err)
		return fmt.Errorf("indexing superlap %s: %w", superlapID, err)
	}

	session := &domain.Session{
		ID:           uuid.NewString(),
		SuperlapID:   superlapID,
		AdviceCounts: make(map[domain.AdviceCategory]int),
		Status:       domain.SessionActive,
		StartedAt:    time.Now(),
	}

	c.mu.Lock()
	c.index = ix
	c.engine = NewPriorityEngine()
	c.session = session
	c.ticks = 0
	c.lastAdvice = nil
	c.mu.Unlock()

	if err := c.store.Save(ctx, session); err != nil {
		c.log.Warn("saving session %s: %v", session.ID, err)
	}

	c.log.Info("superlap %s loaded (%s), session %s", superlapID, msg, session.ID)
	return nil
}

// SetSessionMeta records the track and car names on the active session.
func (c *Coach) SetSessionMeta(track, car string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return
	}
	c.session.TrackName = track
	c.session.CarName = car
}

// ProcessTelemetry is the hot path, called once per telemetry tick. It
// computes the live-minus-reference delta, asks the engine for a decision,
// and on a firing decision generates and queues spoken advice. The advice
// generator is called synchronously here; its client timeout is the only
// bound on the stall.
func (c *Coach) ProcessTelemetry(ctx context.Context, snap domain.TelemetrySnapshot) domain.Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index == nil {
		return domain.Decision{Category: domain.NoCoaching}
	}

	c.ticks++
	if c.session != nil {
		c.session.Ticks++
	}

	now := snap.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	ref := c.index.Nearest(snap.TrackPosition)
	delta := domain.Delta{
		Speed:    snap.Speed - ref.Speed,
		Throttle: snap.Throttle - ref.Throttle,
		Brake:    snap.Brake - ref.Brake,
	}
	c.lastPos = snap.TrackPosition
	c.lastDelta = delta

	decision := c.engine.Decide(TickInput{
		SpeedDiff:    delta.Speed,
		ThrottleDiff: delta.Throttle,
		BrakeDiff:    delta.Brake,
		Position:     snap.TrackPosition,
		Now:          now,
		AudioPlaying: c.speaker.Playing(),
	})

	if c.ticks%statusTraceEvery == 0 {
		c.log.Debug("tick %d: pos=%.3f dSpeed=%+.1f dThr=%+.2f dBrk=%+.2f -> %s",
			c.ticks, snap.TrackPosition, delta.Speed, delta.Throttle, delta.Brake, decision.Category)
	}

	if decision.ShouldCoach {
		c.deliver(ctx, decision, snap, ref, now)
	}
	return decision
}

// deliver generates advice for a firing decision and hands it to the
// speaker. Debounce state moves only when the generator actually produced
// something; a failed or empty generation leaves the tier free to fire on
// a later tick.
func (c *Coach) deliver(ctx context.Context, decision domain.Decision, snap domain.TelemetrySnapshot, ref domain.SuperlapPoint, now time.Time) {
	text, err := c.advisor.Generate(ctx, snap, ref)
	if err != nil {
		c.log.Warn("advice generation failed: %v", err)
		return
	}
	if text == "" {
		c.log.Debug("advice generator returned nothing for %s", decision.Category)
		return
	}

	c.engine.RecordAdvice(decision.Category, snap.TrackPosition, now)

	advice := domain.Advice{
		Category:      decision.Category,
		Text:          text,
		TrackPosition: snap.TrackPosition,
		At:            now,
	}
	c.lastAdvice = &advice
	if c.session != nil {
		c.session.AdviceCounts[decision.Category]++
	}

	c.log.Info("coaching [%s] at %.3f: %s", decision.Category, snap.TrackPosition, text)

	if !c.speaker.Speak(ctx, text, true) {
		c.log.Warn("advice was not queued for playback")
	}

	if c.notifier != nil {
		if err := c.notifier.NotifyAdvice(ctx, advice); err != nil {
			c.log.Debug("advice notification failed: %v", err)
		}
	}
}

// Status is a point-in-time view of the coach for dashboards.
type Status struct {
	SuperlapLoaded bool
	SuperlapSize   int
	Ticks          int
	Position       float64
	Delta          domain.Delta
	LastAdvice     *domain.Advice
	Recent         []domain.AdviceCategory
	Playing        bool
}

// Status returns the current coach state.
func (c *Coach) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		SuperlapLoaded: c.index != nil,
		Ticks:          c.ticks,
		Position:       c.lastPos,
		Delta:          c.lastDelta,
		LastAdvice:     c.lastAdvice,
		Playing:        c.speaker.Playing(),
	}
	if c.index != nil {
		st.SuperlapSize = c.index.Len()
	}
	if c.engine != nil {
		st.Recent = c.engine.RecentAdvice()
	}
	return st
}

// Session returns a copy of the active session summary, or nil when no
// superlap is loaded.
func (c *Coach) Session() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	copied := *c.session
	copied.AdviceCounts = make(map[domain.AdviceCategory]int, len(c.session.AdviceCounts))
	for k, v := range c.session.AdviceCounts {
		copied.AdviceCounts[k] = v
	}
	return &copied
}

// Finish closes the active session, persists it, and returns the summary.
func (c *Coach) Finish(ctx context.Context) *domain.Session {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil
	}
	c.session.Status = domain.SessionFinished
	c.session.EndedAt = time.Now()
	session := c.session
	c.mu.Unlock()

	if err := c.store.Save(ctx, session); err != nil {
		c.log.Warn("saving finished session %s: %v", session.ID, err)
	}

	c.log.Info("session %s finished: %d ticks, %d advice messages",
		session.ID, session.Ticks, session.TotalAdvice())
	return session
}
