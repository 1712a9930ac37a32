// internal/workers/matching/get-smart-match/handler_test.go
package getsmartmatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"investlink-workers/internal/common/camunda/camundatest"
	"investlink-workers/internal/common/logger"
	"investlink-workers/internal/common/observability"
	"investlink-workers/internal/common/profiles"
	"investlink-workers/internal/common/scoring"
	"investlink-workers/internal/matching"
	"investlink-workers/internal/models"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// ==========================
// Test Helpers
// ==========================

type testLogger struct {
	t *testing.T
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

func (l *testLogger) Debug(msg string, fields map[string]interface{}) { l.t.Logf("DEBUG: %s %v", msg, fields) }
func (l *testLogger) Info(msg string, fields map[string]interface{})  { l.t.Logf("INFO: %s %v", msg, fields) }
func (l *testLogger) Warn(msg string, fields map[string]interface{})  { l.t.Logf("WARN: %s %v", msg, fields) }
func (l *testLogger) Error(msg string, fields map[string]interface{}) { l.t.Logf("ERROR: %s %v", msg, fields) }
func (l *testLogger) WithFields(map[string]interface{}) logger.Logger { return l }
func (l *testLogger) WithError(error) logger.Logger                   { return l }
func (l *testLogger) With(map[string]interface{}) logger.Logger       { return l }

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

// fakeScorer answers with fixed scores, or err for every call.
type fakeScorer struct {
	compatibility float64
	traction      float64
	similarity    float64
	err           error
}

func (f *fakeScorer) Compatibility(context.Context, models.InvestorProfile, models.StartupProfile) (float64, error) {
	return f.compatibility, f.err
}

func (f *fakeScorer) Traction(context.Context, models.StartupProfile) (float64, error) {
	return f.traction, f.err
}

func (f *fakeScorer) SectorSimilarity(context.Context, string, string) (float64, error) {
	return f.similarity, f.err
}

type fakeProfiles struct {
	investors map[string]*profiles.Investor
	startups  map[string]*profiles.Startup
}

func (f *fakeProfiles) Investor(_ context.Context, id string) (*profiles.Investor, error) {
	if inv, ok := f.investors[id]; ok {
		return inv, nil
	}
	return nil, fmt.Errorf("%w: investor %s", profiles.ErrProfileNotFound, id)
}

func (f *fakeProfiles) Startup(_ context.Context, id string) (*profiles.Startup, error) {
	if st, ok := f.startups[id]; ok {
		return st, nil
	}
	return nil, fmt.Errorf("%w: startup %s", profiles.ErrProfileNotFound, id)
}

func createTestProfiles() *fakeProfiles {
	return &fakeProfiles{
		investors: map[string]*profiles.Investor{
			"inv-1": {
				ID:    "inv-1",
				Name:  "Ada Capital",
				Email: "ada@example.com",
				Profile: models.InvestorProfile{
					Type:             "VC",
					PreferredSectors: []string{"Fintech", "Health"},
					PreferredStages:  []string{"Seed"},
				},
			},
		},
		startups: map[string]*profiles.Startup{
			"st-1": {
				ID:      "st-1",
				Name:    "Ledgerly",
				Profile: models.StartupProfile{Sector: "Fintech", Stage: "Seed", Employees: 12},
			},
			"st-2": {
				ID:      "st-2",
				Name:    "Farmbot",
				Profile: models.StartupProfile{Sector: "Agritech", Stage: "Seed"},
			},
		},
	}
}

func newHandler(t *testing.T, scorer *fakeScorer, source ProfileSource) *Handler {
	matcher := matching.NewMatcher(scorer, newTestLogger(t))
	return NewHandler(createTestConfig(), matcher, source, newTestLogger(t))
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name           string
		scorer         *fakeScorer
		input          *Input
		expectError    error
		validateOutput func(t *testing.T, output *Output)
	}{
		{
			name:   "stored profiles with preferred sector",
			scorer: &fakeScorer{compatibility: 0.9, traction: 0.8, similarity: 0.2},
			input:  &Input{InvestorID: "inv-1", StartupID: "st-1"},
			validateOutput: func(t *testing.T, output *Output) {
				require.NotNil(t, output.MatchResult)
				assert.Equal(t, "inv-1", output.InvestorID)
				assert.Equal(t, "st-1", output.StartupID)
				assert.Equal(t, "Ada Capital", output.InvestorName)
				assert.Equal(t, "ada@example.com", output.InvestorEmail)
				assert.Equal(t, "Ledgerly", output.StartupName)
				assert.Equal(t, 1.0, output.MatchResult.SectorSimilarity)
				assert.InDelta(t, 0.88, output.MatchResult.ConfidenceScore, 1e-9)
				assert.Equal(t, models.StrengthHigh, output.MatchResult.RecommendationStrength)
				assert.Equal(t, models.SuggestionDirect, output.MatchResult.SuggestionType)
			},
		},
		{
			name:   "stored startup outside preferred sectors",
			scorer: &fakeScorer{compatibility: 0.5, traction: 0.5, similarity: 0.75},
			input:  &Input{InvestorID: "inv-1", StartupID: "st-2"},
			validateOutput: func(t *testing.T, output *Output) {
				assert.Equal(t, 0.75, output.MatchResult.SectorSimilarity)
				assert.InDelta(t, 0.525, output.MatchResult.ConfidenceScore, 1e-9)
				assert.Equal(t, models.StrengthLow, output.MatchResult.RecommendationStrength)
				assert.Equal(t, models.SuggestionEmerging, output.MatchResult.SuggestionType)
			},
		},
		{
			name:   "inline data wins over ids",
			scorer: &fakeScorer{compatibility: 0.7, traction: 0.6, similarity: 0.1},
			input: &Input{
				InvestorID: "unknown",
				StartupID:  "st-1",
				Investor:   map[string]interface{}{"preferred_sectors": []interface{}{}},
				Startup:    map[string]interface{}{"sector": "Energy"},
			},
			validateOutput: func(t *testing.T, output *Output) {
				assert.Equal(t, "unknown", output.InvestorID)
				assert.Empty(t, output.InvestorName)
				assert.Empty(t, output.StartupName)
				assert.Equal(t, 1.0, output.MatchResult.SectorSimilarity)
				assert.Equal(t, models.StrengthMedium, output.MatchResult.RecommendationStrength)
				assert.Equal(t, models.SuggestionEmerging, output.MatchResult.SuggestionType)
			},
		},
		{
			name:        "unknown investor",
			scorer:      &fakeScorer{},
			input:       &Input{InvestorID: "missing", StartupID: "st-1"},
			expectError: profiles.ErrProfileNotFound,
		},
		{
			name:        "nothing to identify the startup",
			scorer:      &fakeScorer{},
			input:       &Input{InvestorID: "inv-1"},
			expectError: ErrMissingProfile,
		},
		{
			name:        "scoring service down",
			scorer:      &fakeScorer{err: fmt.Errorf("%w: status 503", scoring.ErrScoringUnavailable)},
			input:       &Input{InvestorID: "inv-1", StartupID: "st-2"},
			expectError: scoring.ErrScoringUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t, tt.scorer, createTestProfiles())

			output, err := h.Execute(context.Background(), tt.input)

			if tt.expectError != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, output)
				return
			}

			require.NoError(t, err)
			tt.validateOutput(t, output)
		})
	}
}

func TestHandler_Execute_WithoutProfileSource(t *testing.T) {
	h := newHandler(t, &fakeScorer{compatibility: 0.6, traction: 0.6}, nil)

	_, err := h.Execute(context.Background(), &Input{InvestorID: "inv-1", StartupID: "st-1"})

	assert.ErrorIs(t, err, ErrMissingProfile)
}

// ==========================
// Handle Tests
// ==========================

func TestHandler_Handle_Completes(t *testing.T) {
	h := newHandler(t, &fakeScorer{compatibility: 0.9, traction: 0.8}, createTestProfiles())
	client := camundatest.NewJobClient()

	h.Handle(client, camundatest.NewJob(1, TaskType, map[string]interface{}{
		"investorId": "inv-1",
		"startupId":  "st-1",
	}))

	vars := client.CompletedVariables()
	require.NotNil(t, vars)
	result := vars["matchResult"].(map[string]interface{})
	assert.Equal(t, "high", result["recommendation_strength"])
	assert.Equal(t, "direct", result["suggestion_type"])
	assert.Equal(t, "ada@example.com", vars["investorEmail"])
}

func TestHandler_Handle_ScoringUnavailableIsRetried(t *testing.T) {
	scorer := &fakeScorer{err: fmt.Errorf("%w: connection refused", scoring.ErrScoringUnavailable)}
	h := newHandler(t, scorer, createTestProfiles())
	client := camundatest.NewJobClient()

	h.Handle(client, camundatest.NewJob(2, TaskType, map[string]interface{}{
		"investorId": "inv-1",
		"startupId":  "st-2",
	}))

	require.Len(t, client.Failed(), 1)
	assert.Equal(t, int32(2), client.Failed()[0].Retries)
	assert.Empty(t, client.Completed())
	assert.Empty(t, client.Thrown())
}

func TestHandler_Handle_MalformedScoreIsThrown(t *testing.T) {
	scorer := &fakeScorer{err: fmt.Errorf("%w: missing traction_score", scoring.ErrScoringMalformed)}
	h := newHandler(t, scorer, createTestProfiles())
	client := camundatest.NewJobClient()

	h.Handle(client, camundatest.NewJob(3, TaskType, map[string]interface{}{
		"investorId": "inv-1",
		"startupId":  "st-1",
	}))

	require.Len(t, client.Thrown(), 1)
	assert.Equal(t, "SCORING_MALFORMED", client.Thrown()[0].ErrorCode)
	assert.Empty(t, client.Failed())
}

func TestHandler_Handle_ProfileNotFoundIsThrown(t *testing.T) {
	h := newHandler(t, &fakeScorer{}, createTestProfiles())
	client := camundatest.NewJobClient()

	h.Handle(client, camundatest.NewJob(4, TaskType, map[string]interface{}{
		"investorId": "inv-1",
		"startupId":  "missing",
	}))

	require.Len(t, client.Thrown(), 1)
	assert.Equal(t, "PROFILE_NOT_FOUND", client.Thrown()[0].ErrorCode)
}

func TestHandler_Handle_MatchSpanNestsUnderJobSpan(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	obs, err := observability.New("test",
		observability.WithRegisterer(promclient.NewRegistry()),
		observability.WithSpanProcessor(spans))
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	h := newHandler(t, &fakeScorer{compatibility: 0.9, traction: 0.8}, createTestProfiles())
	client := camundatest.NewJobClient()

	obs.Instrument(TaskType, h.Handle)(client, camundatest.NewJob(5, TaskType, map[string]interface{}{
		"investorId": "inv-1",
		"startupId":  "st-1",
	}))

	require.Len(t, client.Completed(), 1)
	byName := make(map[string]sdktrace.ReadOnlySpan)
	for _, s := range spans.Ended() {
		byName[s.Name()] = s
	}
	job, match := byName["job "+TaskType], byName["GetSmartMatch"]
	require.NotNil(t, job)
	require.NotNil(t, match)
	assert.Equal(t, job.SpanContext().TraceID(), match.SpanContext().TraceID())
	assert.Equal(t, job.SpanContext().SpanID(), match.Parent().SpanID())
}
