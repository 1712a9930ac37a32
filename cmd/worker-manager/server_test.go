package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"investlink-workers/internal/common/config"
	"investlink-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name           string
		checks         []readinessCheck
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "all dependencies up",
			checks: []readinessCheck{
				{name: "postgres", check: func(context.Context) error { return nil }},
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "ready",
		},
		{
			name: "one dependency down",
			checks: []readinessCheck{
				{name: "postgres", check: func(context.Context) error { return nil }},
				{name: "redis", check: func(context.Context) error { return errors.New("connection refused") }},
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			readyHandler(tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedBody, body["status"])
		})
	}
}

func TestScoringLimiter(t *testing.T) {
	assert.Nil(t, scoringLimiter(config.ScoringConfig{}))

	limiter := scoringLimiter(config.ScoringConfig{RequestsPerSecond: 20})
	require.NotNil(t, limiter)
	assert.Equal(t, 1, limiter.Burst())

	limiter = scoringLimiter(config.ScoringConfig{RequestsPerSecond: 5, Burst: 4})
	assert.Equal(t, 4, limiter.Burst())
	assert.InDelta(t, 5.0, float64(limiter.Limit()), 1e-9)
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, 0, logger.NewNoOpLogger(), "flaky")

	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	err = retryWithBackoff(context.Background(), func(context.Context) error {
		return errors.New("down")
	}, 2, 0, logger.NewNoOpLogger(), "broken")
	assert.ErrorContains(t, err, "broken failed after 2 attempts")
}
