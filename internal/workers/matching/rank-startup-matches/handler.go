// internal/workers/matching/rank-startup-matches/handler.go
package rankstartupmatches

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"investlink-workers/internal/common/camunda"
	"investlink-workers/internal/common/database"
	commonerrors "investlink-workers/internal/common/errors"
	"investlink-workers/internal/common/logger"
	"investlink-workers/internal/common/metrics"
	"investlink-workers/internal/common/profiles"
	"investlink-workers/internal/matching"
	"investlink-workers/internal/models"
	"investlink-workers/internal/workers/matching/rank-startup-matches/queries"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "rank-startup-matches"
)

var (
	ErrInvalidRankInput = errors.New("INVALID_INPUT")
)

// Ranker is satisfied by *matching.Ranker.
type Ranker interface {
	Rank(ctx context.Context, investor models.InvestorProfile, candidates []matching.Candidate, limit int) ([]models.RankedMatch, error)
}

// CandidateSearcher is satisfied by *database.ElasticsearchClient.
type CandidateSearcher interface {
	Search(ctx context.Context, index string, body io.Reader, size int) (*database.SearchResult, error)
}

type InvestorSource interface {
	Investor(ctx context.Context, id string) (*profiles.Investor, error)
}

type Handler struct {
	config    *Config
	ranker    Ranker
	searcher  CandidateSearcher
	investors InvestorSource
	logger    logger.Logger
	errors    *commonerrors.ErrorHandler
}

func NewHandler(config *Config, ranker Ranker, searcher CandidateSearcher, investors InvestorSource, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		ranker:    ranker,
		searcher:  searcher,
		investors: investors,
		logger:    scoped,
		errors:    commonerrors.NewErrorHandler(scoped),
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
	investor, err := h.resolveInvestor(ctx, input)
	if err != nil {
		return nil, err
	}

	output := &Output{InvestorID: input.InvestorID, Source: SourceInline}

	var candidates []matching.Candidate
	if len(input.Startups) > 0 {
		candidates, err = inlineCandidates(input.Startups)
	} else {
		output.Source = SourceSearch
		candidates, err = h.searchCandidates(ctx, investor)
	}
	if err != nil {
		return nil, err
	}
	candidates = matching.Dedupe(candidates)

	limit := h.config.limitFor(input.Limit)
	ranked, err := h.ranker.Rank(ctx, investor, candidates, limit)
	if err != nil {
		return nil, err
	}

	output.Matches = ranked
	if output.Matches == nil {
		output.Matches = []models.RankedMatch{}
	}
	output.Total = len(candidates)

	h.logger.Info("startups ranked", map[string]interface{}{
		"investorId": input.InvestorID,
		"source":     output.Source,
		"candidates": len(candidates),
		"returned":   len(ranked),
		"limit":      limit,
	})

	return output, nil
}

func (h *Handler) resolveInvestor(ctx context.Context, input *Input) (models.InvestorProfile, error) {
	if input.Investor != nil {
		return matching.NormalizeInvestor(input.Investor)
	}
	if input.InvestorID == "" || h.investors == nil {
		return models.InvestorProfile{}, fmt.Errorf("%w: investor or investorId is required", ErrInvalidRankInput)
	}
	stored, err := h.investors.Investor(ctx, input.InvestorID)
	if err != nil {
		return models.InvestorProfile{}, err
	}
	return stored.Profile, nil
}

func inlineCandidates(startups []StartupInput) ([]matching.Candidate, error) {
	candidates := make([]matching.Candidate, 0, len(startups))
	for i, s := range startups {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: startups[%d] has no id", ErrInvalidRankInput, i)
		}
		startup, err := matching.NormalizeStartup(s.Profile)
		if err != nil {
			return nil, fmt.Errorf("startups[%d]: %w", i, err)
		}
		candidates = append(candidates, matching.Candidate{ID: s.ID, Name: s.Name, Startup: startup})
	}
	return candidates, nil
}

func (h *Handler) searchCandidates(ctx context.Context, investor models.InvestorProfile) ([]matching.Candidate, error) {
	if h.searcher == nil {
		return nil, fmt.Errorf("%w: startups are required when search is not configured", ErrInvalidRankInput)
	}

	body, err := json.Marshal(queries.BuildCandidateQuery(investor))
	if err != nil {
		return nil, commonerrors.NewCandidateSearchFailedError(h.config.Index, err)
	}

	result, err := h.searcher.Search(ctx, h.config.Index, bytes.NewReader(body), h.config.SearchSize)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, commonerrors.New(commonerrors.ErrCodeSearchTimeout, err.Error())
		}
		return nil, commonerrors.NewCandidateSearchFailedError(h.config.Index, err)
	}

	h.logger.Debug("candidate search finished", map[string]interface{}{
		"index":    h.config.Index,
		"total":    result.Total,
		"returned": len(result.Hits),
	})

	return queries.DecodeCandidates(result.Hits)
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
