package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

// Option configures the ElevenLabs client.
type Option func(*Client)

// WithVoice sets the synthesis voice ID.
func WithVoice(voice string) Option {
	return func(c *Client) {
		c.voice = voice
	}
}

// WithModel sets the synthesis model.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithOutputFormat sets the audio output format.
func WithOutputFormat(format string) Option {
	return func(c *Client) {
		c.format = format
	}
}

// WithHTTPTimeout sets the HTTP client timeout for synthesis requests.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// Client handles text-to-speech synthesis via the ElevenLabs API.
type Client struct {
	apiKey     string
	baseURL    string
	voice      string
	model      string
	format     string
	maxRetries int
	httpClient *http.Client
	log        *logger.Logger
}

// Compile-time interface check.
var _ domain.SpeechSynthesizer = (*Client)(nil)

// NewClient creates an ElevenLabs TTS client with the given API key.
func NewClient(apiKey string, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    elevenLabsBaseURL,
		voice:      DefaultVoice,
		model:      DefaultModel,
		format:     DefaultOutputFormat,
		maxRetries: defaultMaxRetries,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
		log: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Voice returns the configured voice ID.
func (c *Client) Voice() string { return c.voice }

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize converts text to speech audio (MP3 bytes). Rate limits and
// server errors are retried with a short backoff before giving up.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", c.baseURL, c.voice, c.format)

	body, err := json.Marshal(synthesisRequest{Text: text, ModelID: c.model})
	if err != nil {
		return nil, fmt.Errorf("encoding synthesis request: %w", err)
	}

	c.log.Debug("elevenlabs: synthesizing %d chars with voice %s", len(text), c.voice)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
			c.log.Debug("elevenlabs: retry %d after %v", attempt, lastErr)
		}

		audio, retryable, err := c.synthesizeOnce(ctx, url, body)
		if err == nil {
			return audio, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, fmt.Errorf("synthesis failed: %v: %w", lastErr, domain.ErrExternalService)
}

func (c *Client) synthesizeOnce(ctx context.Context, url string, body []byte) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("elevenlabs error %d: %s", resp.StatusCode, string(msg))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("reading audio data: %w", err)
	}
	if len(audio) == 0 {
		return nil, false, fmt.Errorf("empty audio response")
	}

	c.log.Debug("elevenlabs: got %d bytes of audio", len(audio))
	return audio, false, nil
}
