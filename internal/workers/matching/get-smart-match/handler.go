// internal/workers/matching/get-smart-match/handler.go
package getsmartmatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"investlink-workers/internal/common/camunda"
	commonerrors "investlink-workers/internal/common/errors"
	"investlink-workers/internal/common/logger"
	"investlink-workers/internal/common/metrics"
	"investlink-workers/internal/common/profiles"
	"investlink-workers/internal/matching"
	"investlink-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "get-smart-match"
)

var (
	ErrMissingProfile = errors.New("INVALID_INPUT")
)

// ProfileSource loads stored profiles by id. *profiles.Store satisfies it.
type ProfileSource interface {
	Investor(ctx context.Context, id string) (*profiles.Investor, error)
	Startup(ctx context.Context, id string) (*profiles.Startup, error)
}

type Handler struct {
	config   *Config
	matcher  matching.SmartMatcher
	profiles ProfileSource
	logger   logger.Logger
	errors   *commonerrors.ErrorHandler
}

// NewHandler builds the handler. source may be nil when every job carries
// inline profile data.
func NewHandler(config *Config, matcher matching.SmartMatcher, source ProfileSource, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		matcher:  matcher,
		profiles: source,
		logger:   scoped,
		errors:   commonerrors.NewErrorHandler(scoped),
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
	output := &Output{
		InvestorID: input.InvestorID,
		StartupID:  input.StartupID,
	}

	investor, err := h.resolveInvestor(ctx, input, output)
	if err != nil {
		return nil, err
	}

	startup, err := h.resolveStartup(ctx, input, output)
	if err != nil {
		return nil, err
	}

	result, err := h.matcher.GetSmartMatch(ctx, investor, startup)
	if err != nil {
		return nil, err
	}
	output.MatchResult = result

	h.logger.Info("smart match computed", map[string]interface{}{
		"investorId": input.InvestorID,
		"startupId":  input.StartupID,
		"confidence": result.ConfidenceScore,
		"strength":   result.RecommendationStrength,
	})

	return output, nil
}

func (h *Handler) resolveInvestor(ctx context.Context, input *Input, output *Output) (models.InvestorProfile, error) {
	if input.Investor != nil {
		return matching.NormalizeInvestor(input.Investor)
	}
	if input.InvestorID == "" || h.profiles == nil {
		return models.InvestorProfile{}, fmt.Errorf("%w: investor or investorId is required", ErrMissingProfile)
	}

	stored, err := h.profiles.Investor(ctx, input.InvestorID)
	if err != nil {
		return models.InvestorProfile{}, err
	}
	output.InvestorName = stored.Name
	output.InvestorEmail = stored.Email
	return stored.Profile, nil
}

func (h *Handler) resolveStartup(ctx context.Context, input *Input, output *Output) (models.StartupProfile, error) {
	if input.Startup != nil {
		return matching.NormalizeStartup(input.Startup)
	}
	if input.StartupID == "" || h.profiles == nil {
		return models.StartupProfile{}, fmt.Errorf("%w: startup or startupId is required", ErrMissingProfile)
	}

	stored, err := h.profiles.Startup(ctx, input.StartupID)
	if err != nil {
		return models.StartupProfile{}, err
	}
	output.StartupName = stored.Name
	return stored.Profile, nil
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
