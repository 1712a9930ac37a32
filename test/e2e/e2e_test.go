// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"investlink-workers/internal/common/camunda/camundatest"
	"investlink-workers/internal/common/database"
	"investlink-workers/internal/common/logger"
	"investlink-workers/internal/common/profiles"
	"investlink-workers/internal/common/scoring"
	"investlink-workers/internal/matching"

	gsm "investlink-workers/internal/workers/matching/get-smart-match"
	np "investlink-workers/internal/workers/matching/normalize-profiles"
	ram "investlink-workers/internal/workers/matching/record-ai-match"
	rsm "investlink-workers/internal/workers/matching/rank-startup-matches"
	smn "investlink-workers/internal/workers/matching/send-match-notification"
)

// The smart-match process runs normalize-profiles or get-smart-match, then
// record-ai-match and send-match-notification, each job receiving the
// variables the previous one completed with. These tests drive the real
// handlers with in-process stand-ins for every external service.

const (
	investorQuery = `SELECT name, email, profile FROM investors WHERE id = \$1`
	startupQuery  = `SELECT name, profile FROM startups WHERE id = \$1`
	upsertPattern = `INSERT INTO ai_matches .* ON CONFLICT \(investor_id, startup_id\) DO UPDATE SET .* RETURNING id, \(xmax = 0\) AS created, updated_at`
)

// ==========================
// Environment
// ==========================

type sesStub struct {
	mu     sync.Mutex
	emails []*ses.SendEmailInput
}

func (s *sesStub) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails = append(s.emails, params)
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

type snsStub struct {
	mu     sync.Mutex
	events []*sns.PublishInput
}

func (s *snsStub) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, params)
	return &sns.PublishOutput{MessageId: aws.String("evt-1")}, nil
}

type environment struct {
	db      sqlmock.Sqlmock
	store   *profiles.Store
	matcher *matching.Matcher
	ses     *sesStub
	sns     *snsStub
	log     logger.Logger

	getSmartMatch *gsm.Handler
	recordMatch   *ram.Handler
	notify        *smn.Handler
}

// scoringService answers like the recommender: fintech startups are highly
// compatible, everything else is not.
func scoringService(t *testing.T, available bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !available {
			http.Error(w, `{"detail": "model not loaded"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case scoring.EndpointCompatibility:
			var body struct {
				Startup struct {
					Sector string `json:"sector"`
				} `json:"startup"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body.Startup.Sector == "Fintech" {
				_, _ = w.Write([]byte(`{"compatibility_score": 0.9}`))
				return
			}
			_, _ = w.Write([]byte(`{"compatibility_score": 0.4}`))
		case scoring.EndpointTraction:
			_, _ = w.Write([]byte(`{"traction_score": 0.8}`))
		case scoring.EndpointSectorSimilarity:
			_, _ = w.Write([]byte(`{"similarity_score": 0.3}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newEnvironment(t *testing.T, scoringAvailable bool) *environment {
	t.Helper()
	log := logger.NewTestLogger(t)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	cache := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	store := profiles.NewStore(db, cache, time.Minute, log)

	client, err := scoring.NewClient(scoring.Config{BaseURL: scoringService(t, scoringAvailable).URL, Timeout: 2 * time.Second}, log)
	require.NoError(t, err)
	matcher := matching.NewMatcher(client, log)

	env := &environment{
		db:      mock,
		store:   store,
		matcher: matcher,
		ses:     &sesStub{},
		sns:     &snsStub{},
		log:     log,
	}
	env.getSmartMatch = gsm.NewHandler(&gsm.Config{Timeout: 10 * time.Second}, matcher, store, log)
	env.recordMatch = ram.NewHandler(&ram.Config{Timeout: 5 * time.Second}, db, log)
	env.notify = smn.NewHandler(&smn.Config{
		EmailEnabled:  true,
		FromEmail:     "matches@investlink.test",
		EventsEnabled: true,
		TopicARN:      "arn:aws:sns:us-east-1:123456789012:smart-matches",
		Timeout:       5 * time.Second,
	}, env.ses, env.sns, store, log)
	return env
}

func (e *environment) expectProfiles(startupID, startupName, startupProfile string) {
	e.db.ExpectQuery(investorQuery).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "email", "profile"}).
			AddRow("Northwind Capital", "deals@northwind.vc", []byte(`{"type":"VC","preferred_sectors":["Fintech","Health"]}`)))
	e.db.ExpectQuery(startupQuery).
		WithArgs(startupID).
		WillReturnRows(sqlmock.NewRows([]string{"name", "profile"}).AddRow(startupName, []byte(startupProfile)))
}

func (e *environment) expectUpsert(startupID, strength, suggestion string, created bool) {
	e.db.ExpectQuery(upsertPattern).
		WithArgs(
			sqlmock.AnyArg(), "inv-1", startupID,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			strength, suggestion, sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created", "updated_at"}).
			AddRow("6f1c1f2e-4a43-4a0e-9d57-1f1d7c0c2b11", created, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func merge(maps ...map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// ==========================
// Process Flows
// ==========================

func TestSmartMatchFlow_HighMatchIsRecordedAndNotified(t *testing.T) {
	env := newEnvironment(t, true)
	env.expectProfiles("st-1", "Ledgerly", `{"sector":"Fintech","stage":"Seed"}`)
	env.expectUpsert("st-1", "high", "direct", true)

	vars := map[string]interface{}{"investorId": "inv-1", "startupId": "st-1"}

	matchClient := camundatest.NewJobClient()
	env.getSmartMatch.Handle(matchClient, camundatest.NewJob(1, gsm.TaskType, vars))
	require.Len(t, matchClient.Completed(), 1)
	vars = merge(vars, matchClient.CompletedVariables())

	result := vars["matchResult"].(map[string]interface{})
	assert.Equal(t, "high", result["recommendation_strength"])
	assert.Equal(t, "direct", result["suggestion_type"])
	assert.Equal(t, 1.0, result["sector_similarity"])
	assert.InDelta(t, 0.88, result["confidence_score"].(float64), 1e-9)
	assert.Equal(t, "deals@northwind.vc", vars["investorEmail"])
	assert.Equal(t, "Ledgerly", vars["startupName"])

	recordClient := camundatest.NewJobClient()
	env.recordMatch.Handle(recordClient, camundatest.NewJob(2, ram.TaskType, vars))
	require.Len(t, recordClient.Completed(), 1)
	vars = merge(vars, recordClient.CompletedVariables())
	assert.Equal(t, true, vars["created"])

	notifyClient := camundatest.NewJobClient()
	env.notify.Handle(notifyClient, camundatest.NewJob(3, smn.TaskType, vars))
	require.Len(t, notifyClient.Completed(), 1)
	notified := notifyClient.CompletedVariables()
	assert.Equal(t, smn.StatusSent, notified["status"])
	assert.ElementsMatch(t, []interface{}{smn.ChannelEmail, smn.ChannelEvent}, notified["channels"])

	require.Len(t, env.ses.emails, 1)
	assert.Equal(t, []string{"deals@northwind.vc"}, env.ses.emails[0].Destination.ToAddresses)
	assert.Contains(t, aws.ToString(env.ses.emails[0].Message.Subject.Data), "Ledgerly")
	require.Len(t, env.sns.events, 1)
	assert.Equal(t, "high", aws.ToString(env.sns.events[0].MessageAttributes["strength"].StringValue))

	assert.NoError(t, env.db.ExpectationsWereMet())
}

func TestSmartMatchFlow_LowMatchIsRecordedButNotNotified(t *testing.T) {
	env := newEnvironment(t, true)
	env.expectProfiles("st-2", "Fieldwise", `{"sector":"Agritech","stage":"Series A"}`)
	env.expectUpsert("st-2", "low", "diversification", false)

	vars := map[string]interface{}{"investorId": "inv-1", "startupId": "st-2"}

	matchClient := camundatest.NewJobClient()
	env.getSmartMatch.Handle(matchClient, camundatest.NewJob(1, gsm.TaskType, vars))
	require.Len(t, matchClient.Completed(), 1)
	vars = merge(vars, matchClient.CompletedVariables())

	result := vars["matchResult"].(map[string]interface{})
	assert.Equal(t, "low", result["recommendation_strength"])
	assert.InDelta(t, 0.51, result["confidence_score"].(float64), 1e-9)

	recordClient := camundatest.NewJobClient()
	env.recordMatch.Handle(recordClient, camundatest.NewJob(2, ram.TaskType, vars))
	require.Len(t, recordClient.Completed(), 1)
	assert.Equal(t, false, recordClient.CompletedVariables()["created"])

	notifyClient := camundatest.NewJobClient()
	env.notify.Handle(notifyClient, camundatest.NewJob(3, smn.TaskType, vars))
	require.Len(t, notifyClient.Completed(), 1)
	assert.Equal(t, smn.StatusSkipped, notifyClient.CompletedVariables()["status"])
	assert.Empty(t, env.ses.emails)
	assert.Empty(t, env.sns.events)

	assert.NoError(t, env.db.ExpectationsWereMet())
}

func TestSmartMatchFlow_ScoringOutageIsRetried(t *testing.T) {
	env := newEnvironment(t, false)
	env.expectProfiles("st-1", "Ledgerly", `{"sector":"Fintech"}`)

	client := camundatest.NewJobClient()
	env.getSmartMatch.Handle(client, camundatest.NewJob(1, gsm.TaskType, map[string]interface{}{
		"investorId": "inv-1",
		"startupId":  "st-1",
	}))

	assert.Empty(t, client.Completed())
	assert.Empty(t, client.Thrown())
	require.Len(t, client.Failed(), 1)
	assert.Equal(t, int32(2), client.Failed()[0].Retries)
	assert.NoError(t, env.db.ExpectationsWereMet())
}

func TestSmartMatchFlow_InlineProfilesAreNormalizedFirst(t *testing.T) {
	env := newEnvironment(t, true)
	normalize := np.NewHandler(&np.Config{Timeout: 5 * time.Second}, env.log)

	normalizeClient := camundatest.NewJobClient()
	normalize.Handle(normalizeClient, camundatest.NewJob(1, np.TaskType, map[string]interface{}{
		"investorData": map[string]interface{}{"preferred_sectors": []interface{}{"Fintech"}},
		"startupData":  map[string]interface{}{"sector": "Fintech", "employees": 12},
	}))
	require.Len(t, normalizeClient.Completed(), 1)
	normalized := normalizeClient.CompletedVariables()

	matchClient := camundatest.NewJobClient()
	env.getSmartMatch.Handle(matchClient, camundatest.NewJob(2, gsm.TaskType, map[string]interface{}{
		"investor": normalized["investor"],
		"startup":  normalized["startup"],
	}))
	require.Len(t, matchClient.Completed(), 1)

	result := matchClient.CompletedVariables()["matchResult"].(map[string]interface{})
	assert.Equal(t, "high", result["recommendation_strength"])
	assert.Equal(t, 1.0, result["sector_similarity"])
	assert.NoError(t, env.db.ExpectationsWereMet())
}

func TestRankFlow_InlineCandidates(t *testing.T) {
	env := newEnvironment(t, true)
	ranker := matching.NewRanker(env.matcher, 2, nil)
	handler := rsm.NewHandler(&rsm.Config{
		Timeout:      10 * time.Second,
		Index:        "startups",
		SearchSize:   100,
		DefaultLimit: 10,
		MaxLimit:     50,
	}, ranker, nil, env.store, env.log)

	client := camundatest.NewJobClient()
	handler.Handle(client, camundatest.NewJob(1, rsm.TaskType, map[string]interface{}{
		"investor": map[string]interface{}{"preferred_sectors": []interface{}{"Fintech", "Health"}},
		"startups": []interface{}{
			map[string]interface{}{"id": "st-2", "name": "Fieldwise", "profile": map[string]interface{}{"sector": "Agritech"}},
			map[string]interface{}{"id": "st-1", "name": "Ledgerly", "profile": map[string]interface{}{"sector": "Fintech"}},
		},
	}))

	require.Len(t, client.Completed(), 1)
	out := client.CompletedVariables()
	assert.Equal(t, rsm.SourceInline, out["source"])
	assert.Equal(t, float64(2), out["total"])

	matches := out["matches"].([]interface{})
	require.Len(t, matches, 2)
	first := matches[0].(map[string]interface{})
	assert.Equal(t, "st-1", first["startupId"])
	assert.Equal(t, float64(1), first["rank"])
	assert.Equal(t, "high", first["match"].(map[string]interface{})["recommendation_strength"])
}
