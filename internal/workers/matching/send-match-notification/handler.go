// internal/workers/matching/send-match-notification/handler.go
package sendmatchnotification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	commonaws "investlink-workers/internal/common/aws"
	"investlink-workers/internal/common/camunda"
	commonerrors "investlink-workers/internal/common/errors"
	"investlink-workers/internal/common/logger"
	"investlink-workers/internal/common/metrics"
	"investlink-workers/internal/common/profiles"
	"investlink-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-match-notification"
)

var (
	ErrInvalidNotificationInput = errors.New("INVALID_INPUT")
)

type InvestorSource interface {
	Investor(ctx context.Context, id string) (*profiles.Investor, error)
}

type Handler struct {
	config    *Config
	ses       commonaws.EmailSender
	sns       commonaws.EventPublisher
	investors InvestorSource
	logger    logger.Logger
	errors    *commonerrors.ErrorHandler
}

// NewHandler builds the handler. sesClient and snsClient may be nil when the
// matching channel is disabled; investors may be nil when jobs always carry
// the investor email.
func NewHandler(config *Config, sesClient commonaws.EmailSender, snsClient commonaws.EventPublisher, investors InvestorSource, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		ses:       sesClient,
		sns:       snsClient,
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
	if input.MatchResult == nil {
		return nil, fmt.Errorf("%w: matchResult is required", ErrInvalidNotificationInput)
	}
	if input.StartupID == "" {
		return nil, fmt.Errorf("%w: startupId is required", ErrInvalidNotificationInput)
	}

	output := &Output{
		NotificationID: uuid.New().String(),
		Channels:       []string{},
		SentAt:         time.Now().UTC(),
	}

	if input.MatchResult.RecommendationStrength != models.StrengthHigh && !input.Force {
		output.Status = StatusSkipped
		h.logger.Debug("notification skipped", map[string]interface{}{
			"startupId": input.StartupID,
			"strength":  input.MatchResult.RecommendationStrength,
		})
		return output, nil
	}

	if !h.config.EmailEnabled && !h.config.EventsEnabled {
		output.Status = StatusDisabled
		return output, nil
	}

	if h.config.EmailEnabled {
		if err := h.sendEmail(ctx, input); err != nil {
			return nil, err
		}
		output.Channels = append(output.Channels, ChannelEmail)
	}

	if h.config.EventsEnabled {
		if err := h.publishEvent(ctx, input, output.NotificationID); err != nil {
			return nil, err
		}
		output.Channels = append(output.Channels, ChannelEvent)
	}

	output.Status = StatusSent
	h.logger.Info("match notification sent", map[string]interface{}{
		"notificationId": output.NotificationID,
		"investorId":     input.InvestorID,
		"startupId":      input.StartupID,
		"channels":       output.Channels,
	})

	return output, nil
}

// resolveRecipient fills the investor email and name from the profile store
// when the job did not carry them.
func (h *Handler) resolveRecipient(ctx context.Context, input *Input) error {
	if input.InvestorEmail != "" {
		return nil
	}
	if input.InvestorID == "" || h.investors == nil {
		return fmt.Errorf("%w: investorEmail or investorId is required", ErrInvalidNotificationInput)
	}

	stored, err := h.investors.Investor(ctx, input.InvestorID)
	if err != nil {
		return err
	}
	if stored.Email == "" {
		return fmt.Errorf("%w: investor %s has no email", ErrInvalidNotificationInput, input.InvestorID)
	}
	input.InvestorEmail = stored.Email
	if input.InvestorName == "" {
		input.InvestorName = stored.Name
	}
	return nil
}

func (h *Handler) sendEmail(ctx context.Context, input *Input) error {
	if err := h.resolveRecipient(ctx, input); err != nil {
		return err
	}

	email, err := renderEmail(input)
	if err != nil {
		return commonerrors.NewNotificationSendFailedError(ChannelEmail, err)
	}

	params := commonaws.EmailInput(h.config.FromEmail, input.InvestorEmail, email.Subject, email.Text, email.HTML)
	if _, err := h.ses.SendEmail(ctx, params); err != nil {
		return commonerrors.NewNotificationSendFailedError(ChannelEmail, err)
	}
	return nil
}

func (h *Handler) publishEvent(ctx context.Context, input *Input, notificationID string) error {
	event := MatchEvent{
		EventType:      EventTypeMatchRecommended,
		NotificationID: notificationID,
		InvestorID:     input.InvestorID,
		StartupID:      input.StartupID,
		StartupName:    input.StartupName,
		MatchResult:    input.MatchResult,
		OccurredAt:     time.Now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return commonerrors.NewNotificationSendFailedError(ChannelEvent, err)
	}

	params := commonaws.EventInput(h.config.TopicARN, "", string(body), map[string]string{
		"eventType":  EventTypeMatchRecommended,
		"strength":   string(input.MatchResult.RecommendationStrength),
		"suggestion": string(input.MatchResult.SuggestionType),
	})
	if _, err := h.sns.Publish(ctx, params); err != nil {
		return commonerrors.NewNotificationSendFailedError(ChannelEvent, err)
	}
	return nil
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
