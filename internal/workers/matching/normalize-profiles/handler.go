// internal/workers/matching/normalize-profiles/handler.go
package normalizeprofiles

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
	"investlink-workers/internal/matching"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "normalize-profiles"
)

var (
	ErrNoProfileData = errors.New("INVALID_INPUT")
)

type Handler struct {
	config *Config
	logger logger.Logger
	errors *commonerrors.ErrorHandler
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
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

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input.InvestorData == nil && input.StartupData == nil {
		return nil, fmt.Errorf("%w: investorData or startupData is required", ErrNoProfileData)
	}

	output := &Output{}

	if input.InvestorData != nil {
		investor, err := matching.NormalizeInvestor(input.InvestorData)
		if err != nil {
			return nil, fmt.Errorf("investorData: %w", err)
		}
		output.Investor = &investor
	}

	if input.StartupData != nil {
		startup, err := matching.NormalizeStartup(input.StartupData)
		if err != nil {
			return nil, fmt.Errorf("startupData: %w", err)
		}
		output.Startup = &startup
	}

	h.logger.Debug("profiles normalized", map[string]interface{}{
		"investor": output.Investor != nil,
		"startup":  output.Startup != nil,
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
