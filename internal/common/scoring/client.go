// Package scoring is the client for the external recommender service that
// predicts compatibility, traction and sector similarity scores.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	commonhttp "investlink-workers/internal/common/http"
	"investlink-workers/internal/common/logger"
	"investlink-workers/internal/common/metrics"
	"investlink-workers/internal/common/validation"
	"investlink-workers/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrScoringUnavailable means the service could not be reached or
	// answered with a non-2xx status.
	ErrScoringUnavailable = errors.New("SCORING_UNAVAILABLE")
	// ErrScoringMalformed means the response did not carry the expected
	// numeric score.
	ErrScoringMalformed = errors.New("SCORING_MALFORMED")
)

const (
	EndpointCompatibility    = "/predict_compatibility/"
	EndpointTraction         = "/predict_traction/"
	EndpointSectorSimilarity = "/sector_similarity/"

	fieldCompatibility = "compatibility_score"
	fieldTraction      = "traction_score"
	fieldSimilarity    = "similarity_score"
)

var responseSchemas = map[string]*validation.Schema{
	fieldCompatibility: validation.MustCompile(validation.ScoreSchema(fieldCompatibility)),
	fieldTraction:      validation.MustCompile(validation.ScoreSchema(fieldTraction)),
	fieldSimilarity:    validation.MustCompile(validation.ScoreSchema(fieldSimilarity)),
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	http    *commonhttp.Client
	tracer  trace.Tracer
	logger  logger.Logger
}

type Option func(*Client)

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer("investlink-workers/scoring")
	}
}

func NewClient(cfg Config, log logger.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("scoring base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse scoring base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("scoring base url must be absolute: %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: base.String(),
		http:    commonhttp.NewClient(cfg.Timeout),
		tracer:  otel.Tracer("investlink-workers/scoring"),
		logger:  log.WithFields(map[string]interface{}{"component": "scoring-client"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type compatibilityRequest struct {
	Investor models.InvestorProfile `json:"investor"`
	Startup  models.StartupProfile  `json:"startup"`
}

// Compatibility predicts how well the startup fits the investor.
func (c *Client) Compatibility(ctx context.Context, investor models.InvestorProfile, startup models.StartupProfile) (float64, error) {
	body := compatibilityRequest{Investor: investor, Startup: startup}
	return c.score(ctx, http.MethodPost, EndpointCompatibility, nil, body, fieldCompatibility)
}

// Traction predicts the startup's standalone growth signal.
func (c *Client) Traction(ctx context.Context, startup models.StartupProfile) (float64, error) {
	return c.score(ctx, http.MethodPost, EndpointTraction, nil, startup, fieldTraction)
}

// SectorSimilarity compares two sectors.
func (c *Client) SectorSimilarity(ctx context.Context, sectorA, sectorB string) (float64, error) {
	query := url.Values{}
	query.Set("sector1", sectorA)
	query.Set("sector2", sectorB)
	return c.score(ctx, http.MethodGet, EndpointSectorSimilarity, query, nil, fieldSimilarity)
}

func (c *Client) score(ctx context.Context, method, endpoint string, query url.Values, body interface{}, field string) (float64, error) {
	ctx, span := c.tracer.Start(ctx, "scoring "+endpoint, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", method), attribute.String("scoring.endpoint", endpoint)))
	defer span.End()

	start := time.Now()
	value, err := c.do(ctx, method, endpoint, query, body, field)
	metrics.ScoringLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ScoringRequests.WithLabelValues(endpoint, outcome(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("scoring request failed", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		return 0, err
	}

	metrics.ScoringRequests.WithLabelValues(endpoint, "ok").Inc()
	span.SetAttributes(attribute.Float64("scoring.value", value))
	return value, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body interface{}, field string) (float64, error) {
	target := c.baseURL + endpoint
	if query != nil {
		target += "?" + query.Encode()
	}

	resp, err := c.http.SendJSON(ctx, method, target, body)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrScoringUnavailable, endpoint, err)
	}
	if !resp.IsSuccess() {
		return 0, fmt.Errorf("%w: %s returned %d: %s", ErrScoringUnavailable, endpoint, resp.StatusCode, snippet(resp.Body))
	}

	result, err := responseSchemas[field].ValidateBytes(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrScoringMalformed, endpoint, err)
	}
	if !result.Valid {
		return 0, fmt.Errorf("%w: %s: %s", ErrScoringMalformed, endpoint, result.Summary())
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrScoringMalformed, endpoint, err)
	}
	value, ok := payload[field].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %s: %s is not a number", ErrScoringMalformed, endpoint, field)
	}
	return value, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrScoringMalformed):
		return "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unavailable"
	}
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
