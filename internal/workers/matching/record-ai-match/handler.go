// internal/workers/matching/record-ai-match/handler.go
package recordaimatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"investlink-workers/internal/common/camunda"
	commonerrors "investlink-workers/internal/common/errors"
	"investlink-workers/internal/common/logger"
	"investlink-workers/internal/common/metrics"
	"investlink-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "record-ai-match"
)

var (
	ErrInvalidMatchInput = errors.New("INVALID_INPUT")
	ErrMatchPersist      = errors.New("MATCH_PERSIST_FAILED")
)

var inputSchema = validation.MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"investorId", "startupId", "matchResult"},
	"properties": map[string]interface{}{
		"investorId": map[string]interface{}{"type": "string", "minLength": 1},
		"startupId":  map[string]interface{}{"type": "string", "minLength": 1},
		"matchResult": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"compatibility_score", "traction_score", "sector_similarity", "confidence_score", "recommendation_strength", "suggestion_type"},
			"properties": map[string]interface{}{
				"compatibility_score":     map[string]interface{}{"type": "number"},
				"traction_score":          map[string]interface{}{"type": "number"},
				"sector_similarity":       map[string]interface{}{"type": "number"},
				"confidence_score":        map[string]interface{}{"type": "number"},
				"recommendation_strength": map[string]interface{}{"enum": []interface{}{"high", "medium", "low"}},
				"suggestion_type":         map[string]interface{}{"enum": []interface{}{"direct", "emerging", "diversification"}},
			},
		},
	},
})

// upsertMatch keeps one row per pair. xmax is zero only for a freshly
// inserted tuple, which tells inserts and updates apart.
const upsertMatch = `
	INSERT INTO ai_matches (
		id, investor_id, startup_id,
		compatibility_score, traction_score, sector_similarity, confidence_score,
		recommendation_strength, suggestion_type, ai_analysis, match_explanation
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (investor_id, startup_id) DO UPDATE SET
		compatibility_score     = EXCLUDED.compatibility_score,
		traction_score          = EXCLUDED.traction_score,
		sector_similarity       = EXCLUDED.sector_similarity,
		confidence_score        = EXCLUDED.confidence_score,
		recommendation_strength = EXCLUDED.recommendation_strength,
		suggestion_type         = EXCLUDED.suggestion_type,
		ai_analysis             = EXCLUDED.ai_analysis,
		match_explanation       = EXCLUDED.match_explanation,
		updated_at              = NOW()
	RETURNING id, (xmax = 0) AS created, updated_at`

type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
	errors *commonerrors.ErrorHandler
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		db:     db,
		logger: scoped,
		errors: commonerrors.NewErrorHandler(scoped),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(client, job, start, commonerrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(camunda.JobContext(client), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(client, job, start, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.ObserveJob(TaskType, "", time.Since(start).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := inputSchema.Validate(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMatchInput, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMatchInput, result.Summary())
	}

	m := input.MatchResult
	output := &Output{}
	err = h.db.QueryRowContext(ctx, upsertMatch,
		uuid.New().String(), input.InvestorID, input.StartupID,
		m.CompatibilityScore, m.TractionScore, m.SectorSimilarity, m.ConfidenceScore,
		string(m.RecommendationStrength), string(m.SuggestionType), m.AIAnalysis, m.MatchExplanation,
	).Scan(&output.MatchRecordID, &output.Created, &output.RecordedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMatchPersist, err)
	}

	h.logger.Info("match recorded", map[string]interface{}{
		"matchRecordId": output.MatchRecordID,
		"investorId":    input.InvestorID,
		"startupId":     input.StartupID,
		"created":       output.Created,
	})

	return output, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(camunda.JobContext(client)); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) fail(client worker.JobClient, job entities.Job, start time.Time, err error) {
	stdErr := h.errors.HandleJobError(camunda.JobContext(client), client, job, err)
	metrics.ObserveJob(TaskType, string(stdErr.Code), time.Since(start).Seconds())
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
