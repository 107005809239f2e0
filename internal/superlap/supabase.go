package superlap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

// Compile-time interface check.
var _ domain.SuperlapSource = (*SupabaseSource)(nil)

// SupabaseOption configures the Supabase superlap source.
type SupabaseOption func(*SupabaseSource)

// WithTable overrides the telemetry table name.
func WithTable(table string) SupabaseOption {
	return func(s *SupabaseSource) {
		s.table = table
	}
}

// WithSupabaseTimeout sets the HTTP client timeout for fetch requests.
func WithSupabaseTimeout(d time.Duration) SupabaseOption {
	return func(s *SupabaseSource) {
		s.httpClient.Timeout = d
	}
}

// SupabaseSource fetches superlap telemetry from a Supabase PostgREST
// endpoint. Each lap's points live in the telemetry table keyed by lap_id,
// ordered by track position.
type SupabaseSource struct {
	baseURL    string
	apiKey     string
	table      string
	httpClient *http.Client
	log        *logger.Logger
}

// NewSupabaseSource creates a superlap source backed by Supabase.
func NewSupabaseSource(baseURL, apiKey string, log *logger.Logger, opts ...SupabaseOption) *SupabaseSource {
	s := &SupabaseSource{
		baseURL: baseURL,
		apiKey:  apiKey,
		table:   "telemetry_points",
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// telemetryPointRecord is the wire shape of one telemetry row. Fields are
// pointers so missing columns fall back to documented defaults (zero)
// instead of failing the decode.
type telemetryPointRecord struct {
	TrackPosition *float64 `json:"track_position"`
	Speed         *float64 `json:"speed"`
	Throttle      *float64 `json:"throttle"`
	Brake         *float64 `json:"brake"`
	Steering      *float64 `json:"steering"`
}

func (r telemetryPointRecord) toPoint() domain.SuperlapPoint {
	deref := func(f *float64) float64 {
		if f == nil {
			return 0
		}
		return *f
	}
	return domain.SuperlapPoint{
		TrackPosition: deref(r.TrackPosition),
		Speed:         deref(r.Speed),
		Throttle:      deref(r.Throttle),
		Brake:         deref(r.Brake),
		Steering:      deref(r.Steering),
	}
}

// Fetch retrieves all telemetry points for the given superlap, ordered by
// track position. An empty result is a load failure.
func (s *SupabaseSource) Fetch(ctx context.Context, superlapID string) ([]domain.SuperlapPoint, string, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", s.baseURL, s.table, url.Values{
		"lap_id": {"eq." + superlapID},
		"select": {"track_position,speed,throttle,brake,steering"},
		"order":  {"track_position.asc"},
	}.Encode())

	s.log.Debug("supabase: fetching superlap %s", superlapID)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "fetch failed", fmt.Errorf("superlap fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Sprintf("backend error %d", resp.StatusCode),
			fmt.Errorf("superlap fetch %d: %s: %w", resp.StatusCode, string(body), domain.ErrExternalService)
	}

	var records []telemetryPointRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, "decode failed", fmt.Errorf("decoding telemetry points: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Sprintf("no telemetry points found for lap %s", superlapID), domain.ErrDataUnavailable
	}

	points := make([]domain.SuperlapPoint, len(records))
	for i, r := range records {
		points[i] = r.toPoint()
	}

	s.log.Debug("supabase: got %d points for superlap %s", len(points), superlapID)
	return points, fmt.Sprintf("retrieved %d telemetry points", len(points)), nil
}
