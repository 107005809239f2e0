package advice

import (
	"context"
	"fmt"
	"strings"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

// systemPrompt frames every request. The examples anchor the model to
// radio-call length replies.
const systemPrompt = "You are an expert race car driving coach. Your goal is to help a driver achieve a 'superlap' time by " +
	"providing real-time, concise, and actionable advice. You will be given a snapshot of the driver's current " +
	"telemetry and the equivalent telemetry from the superlap at the same point on the track. " +
	"Compare the two and give one single, clear instruction to the driver. The advice should be very short, " +
	"like a real coach would say over the radio. Focus on the most critical difference. " +
	"For example: 'Brake later here', 'More throttle on exit', 'Ease off the steering', 'Carry more speed through this section'. " +
	"Do not greet the user or add any conversational fluff. Just give the coaching command."

// Compile-time interface check.
var _ domain.AdviceGenerator = (*Generator)(nil)

// Generator produces coaching commands by sending the live/superlap
// telemetry comparison to the chat model.
type Generator struct {
	client *Client
	log    *logger.Logger
}

// NewGenerator creates a model-backed advice generator.
func NewGenerator(client *Client, log *logger.Logger) *Generator {
	return &Generator{client: client, log: log}
}

// Generate asks the model for one radio-style instruction. An empty reply
// is a valid outcome meaning nothing worth saying.
func (g *Generator) Generate(ctx context.Context, current domain.TelemetrySnapshot, reference domain.SuperlapPoint) (string, error) {
	reply, err := g.client.Chat(ctx, []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: comparisonPrompt(current, reference)},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// comparisonPrompt renders both telemetry snapshots the same way so the
// model compares like with like.
func comparisonPrompt(current domain.TelemetrySnapshot, reference domain.SuperlapPoint) string {
	var b strings.Builder
	b.WriteString("Analyze this telemetry data and provide a coaching command:\n\n")

	b.WriteString("Driver's Telemetry:\n")
	fmt.Fprintf(&b, "- Speed: %.2f km/h\n", current.Speed)
	fmt.Fprintf(&b, "- Throttle: %.2f\n", current.Throttle)
	fmt.Fprintf(&b, "- Brake: %.2f\n", current.Brake)
	fmt.Fprintf(&b, "- Steering: %.2f\n\n", current.Steering)

	b.WriteString("Superlap Telemetry (the target):\n")
	fmt.Fprintf(&b, "- Speed: %.2f km/h\n", reference.Speed)
	fmt.Fprintf(&b, "- Throttle: %.2f\n", reference.Throttle)
	fmt.Fprintf(&b, "- Brake: %.2f\n", reference.Brake)
	fmt.Fprintf(&b, "- Steering: %.2f\n", reference.Steering)

	return b.String()
}
