package advice

import (
	"context"
	"math"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

// Compile-time interface check.
var _ domain.AdviceGenerator = (*RuleGenerator)(nil)

// The fixed command set, ordered by the ladder in Generate.
const (
	phraseCarrySpeed   = "Carry more speed through this section"
	phraseBrakingHard  = "You are braking too hard, ease off"
	phraseMoreThrottle = "More throttle on exit"
	phraseEntrySpeed   = "Mind your entry speed, brake earlier"
	phraseMinimumSpeed = "Keep your minimum speed up"
	phraseFullThrottle = "Back to full throttle sooner"
	phraseSteering     = "Ease off the steering"
	phraseMoreSpeed    = "A little more speed here"
)

// RuleGenerator produces coaching commands from a fixed threshold ladder,
// no network required. It backs demo mode and runs when no chat API key
// is configured. The thresholds echo the decision engine's severity
// bands so the spoken line matches what actually triggered the coaching.
type RuleGenerator struct {
	log *logger.Logger
}

// NewRuleGenerator creates the offline advice generator.
func NewRuleGenerator(log *logger.Logger) *RuleGenerator {
	return &RuleGenerator{log: log}
}

// Generate picks the most pressing difference and returns one command for
// it. Small deltas return an empty string: nothing worth saying.
func (g *RuleGenerator) Generate(ctx context.Context, current domain.TelemetrySnapshot, reference domain.SuperlapPoint) (string, error) {
	speedDiff := current.Speed - reference.Speed
	throttleDiff := current.Throttle - reference.Throttle
	brakeDiff := current.Brake - reference.Brake
	steeringDiff := current.Steering - reference.Steering

	switch {
	case speedDiff < -20:
		return phraseCarrySpeed, nil
	case brakeDiff > 0.4:
		return phraseBrakingHard, nil
	case throttleDiff < -0.4:
		return phraseMoreThrottle, nil
	case speedDiff > 12:
		return phraseEntrySpeed, nil
	case speedDiff < -12:
		return phraseMinimumSpeed, nil
	case throttleDiff < -0.3:
		return phraseFullThrottle, nil
	case math.Abs(steeringDiff) > 0.15:
		return phraseSteering, nil
	case speedDiff < -8:
		return phraseMoreSpeed, nil
	}
	return "", nil
}

// Phrases returns every command the generator can produce. Used to warm
// the TTS cache before a session starts.
func (g *RuleGenerator) Phrases() []string {
	return []string{
		phraseCarrySpeed,
		phraseBrakingHard,
		phraseMoreThrottle,
		phraseEntrySpeed,
		phraseMinimumSpeed,
		phraseFullThrottle,
		phraseSteering,
		phraseMoreSpeed,
	}
}
