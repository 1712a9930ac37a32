// internal/workers/matching/rank-startup-matches/handler_test.go
package rankstartupmatches

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"investlink-workers/internal/common/camunda/camundatest"
	"investlink-workers/internal/common/config"
	"investlink-workers/internal/common/database"
	"investlink-workers/internal/common/logger"
	"investlink-workers/internal/common/profiles"
	"investlink-workers/internal/common/scoring"
	"investlink-workers/internal/matching"
	"investlink-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
	return &Config{
		Timeout:      5 * time.Second,
		Index:        "startups",
		SearchSize:   100,
		DefaultLimit: 10,
		MaxLimit:     50,
	}
}

// sectorScorer scores compatibility by startup sector; traction and
// similarity are fixed.
type sectorScorer struct {
	compatibility map[string]float64
	failSector    string
}

func (s *sectorScorer) Compatibility(_ context.Context, _ models.InvestorProfile, st models.StartupProfile) (float64, error) {
	if st.Sector == s.failSector {
		return 0, fmt.Errorf("%w: status 502", scoring.ErrScoringUnavailable)
	}
	return s.compatibility[st.Sector], nil
}

func (s *sectorScorer) Traction(context.Context, models.StartupProfile) (float64, error) {
	return 0.5, nil
}

func (s *sectorScorer) SectorSimilarity(context.Context, string, string) (float64, error) {
	return 0.5, nil
}

func createTestScorer() *sectorScorer {
	return &sectorScorer{compatibility: map[string]float64{
		"Fintech":  0.9,
		"Health":   0.7,
		"Agritech": 0.3,
	}}
}

type fakeInvestors map[string]*profiles.Investor

func (f fakeInvestors) Investor(_ context.Context, id string) (*profiles.Investor, error) {
	if inv, ok := f[id]; ok {
		return inv, nil
	}
	return nil, fmt.Errorf("%w: investor %s", profiles.ErrProfileNotFound, id)
}

func createTestInvestors() fakeInvestors {
	return fakeInvestors{
		"inv-1": {ID: "inv-1", Profile: models.InvestorProfile{
			PreferredSectors: []string{"Fintech"},
			PreferredStages:  []string{"Seed"},
		}},
	}
}

type failingSearcher struct {
	err error
}

func (f failingSearcher) Search(context.Context, string, io.Reader, int) (*database.SearchResult, error) {
	return nil, f.err
}

func newElasticsearch(t *testing.T, handler http.HandlerFunc) *database.ElasticsearchClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)
	return client
}

func newHandler(t *testing.T, scorer matching.Scorer, searcher CandidateSearcher) *Handler {
	matcher := matching.NewMatcher(scorer, newTestLogger(t))
	ranker := matching.NewRanker(matcher, 2, nil)
	return NewHandler(createTestConfig(), ranker, searcher, createTestInvestors(), newTestLogger(t))
}

func inlineStartups() []StartupInput {
	return []StartupInput{
		{ID: "s-agri", Name: "Farmbot", Profile: map[string]interface{}{"sector": "Agritech"}},
		{ID: "s-fin", Name: "Ledgerly", Profile: map[string]interface{}{"sector": "Fintech"}},
		{ID: "s-health", Name: "Vitals", Profile: map[string]interface{}{"sector": "Health"}},
	}
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_InlineStartups(t *testing.T) {
	tests := []struct {
		name           string
		input          *Input
		validateOutput func(t *testing.T, output *Output)
	}{
		{
			name:  "ordered by confidence",
			input: &Input{InvestorID: "inv-1", Startups: inlineStartups()},
			validateOutput: func(t *testing.T, output *Output) {
				assert.Equal(t, SourceInline, output.Source)
				assert.Equal(t, 3, output.Total)
				require.Len(t, output.Matches, 3)
				assert.Equal(t, "s-fin", output.Matches[0].StartupID)
				assert.Equal(t, "Ledgerly", output.Matches[0].Name)
				assert.Equal(t, 1, output.Matches[0].Rank)
				assert.Equal(t, "s-health", output.Matches[1].StartupID)
				assert.Equal(t, "s-agri", output.Matches[2].StartupID)
				assert.Equal(t, 3, output.Matches[2].Rank)
			},
		},
		{
			name:  "limit cuts the list",
			input: &Input{InvestorID: "inv-1", Startups: inlineStartups(), Limit: 1},
			validateOutput: func(t *testing.T, output *Output) {
				assert.Equal(t, 3, output.Total)
				require.Len(t, output.Matches, 1)
				assert.Equal(t, "s-fin", output.Matches[0].StartupID)
			},
		},
		{
			name: "duplicate ids count once",
			input: &Input{InvestorID: "inv-1", Startups: append(inlineStartups(),
				StartupInput{ID: "s-fin", Name: "Ledgerly again", Profile: map[string]interface{}{"sector": "Agritech"}},
			)},
			validateOutput: func(t *testing.T, output *Output) {
				assert.Equal(t, 3, output.Total)
				require.Len(t, output.Matches, 3)
				assert.Equal(t, "s-fin", output.Matches[0].StartupID)
				assert.Equal(t, "Ledgerly", output.Matches[0].Name)
			},
		},
		{
			name: "inline investor",
			input: &Input{
				Investor: map[string]interface{}{"preferred_sectors": []interface{}{"Health"}},
				Startups: inlineStartups()[2:],
			},
			validateOutput: func(t *testing.T, output *Output) {
				assert.Empty(t, output.InvestorID)
				require.Len(t, output.Matches, 1)
				assert.Equal(t, 1.0, output.Matches[0].Match.SectorSimilarity)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t, createTestScorer(), nil)

			output, err := h.Execute(context.Background(), tt.input)

			require.NoError(t, err)
			tt.validateOutput(t, output)
		})
	}
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name        string
		scorer      *sectorScorer
		input       *Input
		expectError error
	}{
		{
			name:        "startup without id",
			scorer:      createTestScorer(),
			input:       &Input{InvestorID: "inv-1", Startups: []StartupInput{{Name: "Anon"}}},
			expectError: ErrInvalidRankInput,
		},
		{
			name:        "no investor",
			scorer:      createTestScorer(),
			input:       &Input{Startups: inlineStartups()},
			expectError: ErrInvalidRankInput,
		},
		{
			name:        "unknown investor",
			scorer:      createTestScorer(),
			input:       &Input{InvestorID: "missing", Startups: inlineStartups()},
			expectError: profiles.ErrProfileNotFound,
		},
		{
			name:        "no search configured",
			scorer:      createTestScorer(),
			input:       &Input{InvestorID: "inv-1"},
			expectError: ErrInvalidRankInput,
		},
		{
			name:        "one candidate fails the ranking",
			scorer:      &sectorScorer{compatibility: map[string]float64{"Fintech": 0.9}, failSector: "Health"},
			input:       &Input{InvestorID: "inv-1", Startups: inlineStartups()},
			expectError: scoring.ErrScoringUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t, tt.scorer, nil)

			output, err := h.Execute(context.Background(), tt.input)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectError)
			assert.Nil(t, output)
		})
	}
}

func TestHandler_Execute_SearchedCandidates(t *testing.T) {
	es := newElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/startups/_search", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("size"))

		var query map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&query))
		should := query["query"].(map[string]interface{})["bool"].(map[string]interface{})["should"].([]interface{})
		assert.Len(t, should, 2)

		_, _ = io.WriteString(w, `{
			"hits": {
				"total": {"value": 2},
				"max_score": 2.0,
				"hits": [
					{"_id": "s-health", "_score": 2.0, "_source": {"name": "Vitals", "sector": "Health", "stage": "Seed"}},
					{"_id": "s-fin", "_score": 1.0, "_source": {"name": "Ledgerly", "sector": "Fintech"}}
				]
			}
		}`)
	})

	h := newHandler(t, createTestScorer(), es)

	output, err := h.Execute(context.Background(), &Input{InvestorID: "inv-1"})

	require.NoError(t, err)
	assert.Equal(t, SourceSearch, output.Source)
	assert.Equal(t, 2, output.Total)
	require.Len(t, output.Matches, 2)
	assert.Equal(t, "s-fin", output.Matches[0].StartupID)
	assert.Equal(t, "Vitals", output.Matches[1].Name)
}

func TestHandler_Execute_EmptySearch(t *testing.T) {
	es := newElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"hits": {"total": {"value": 0}, "max_score": null, "hits": []}}`)
	})

	h := newHandler(t, createTestScorer(), es)

	output, err := h.Execute(context.Background(), &Input{InvestorID: "inv-1"})

	require.NoError(t, err)
	assert.Equal(t, 0, output.Total)
	assert.NotNil(t, output.Matches)
	assert.Empty(t, output.Matches)
}

func TestHandler_Execute_SearchFailures(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode string
	}{
		{name: "search error", err: errors.New("connection refused"), expectedCode: "CANDIDATE_SEARCH_FAILED"},
		{name: "search timeout", err: fmt.Errorf("search: %w", context.DeadlineExceeded), expectedCode: "SEARCH_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t, createTestScorer(), failingSearcher{err: tt.err})

			_, err := h.Execute(context.Background(), &Input{InvestorID: "inv-1"})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedCode)
		})
	}
}

func TestConfig_LimitFor(t *testing.T) {
	cfg := createTestConfig()

	assert.Equal(t, 10, cfg.limitFor(0))
	assert.Equal(t, 10, cfg.limitFor(-3))
	assert.Equal(t, 7, cfg.limitFor(7))
	assert.Equal(t, 50, cfg.limitFor(500))
}

// ==========================
// Handle Tests
// ==========================

func TestHandler_Handle_Completes(t *testing.T) {
	h := newHandler(t, createTestScorer(), nil)
	client := camundatest.NewJobClient()

	h.Handle(client, camundatest.NewJob(1, TaskType, map[string]interface{}{
		"investorId": "inv-1",
		"startups":   inlineStartups(),
		"limit":      2,
	}))

	vars := client.CompletedVariables()
	require.NotNil(t, vars)
	matches := vars["matches"].([]interface{})
	require.Len(t, matches, 2)
	first := matches[0].(map[string]interface{})
	assert.Equal(t, "s-fin", first["startupId"])
	assert.Equal(t, float64(3), vars["total"])
}

func TestHandler_Handle_SearchFailureIsRetried(t *testing.T) {
	h := newHandler(t, createTestScorer(), failingSearcher{err: errors.New("no route to host")})
	client := camundatest.NewJobClient()

	h.Handle(client, camundatest.NewJob(2, TaskType, map[string]interface{}{"investorId": "inv-1"}))

	require.Len(t, client.Failed(), 1)
	assert.Equal(t, int32(2), client.Failed()[0].Retries)
	assert.Empty(t, client.Completed())
}
