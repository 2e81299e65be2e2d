// internal/workers/audit/send-leak-alert/handler.go
package sendleakalert

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"leak-audit/internal/common/errors"
	"leak-audit/internal/common/logger"
	"leak-audit/internal/common/metrics"
	"leak-audit/internal/common/observability"
	"leak-audit/internal/common/validation"
	"leak-audit/internal/notify"
	"leak-audit/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "send-leak-alert"
)

type Sender interface {
	Send(ctx context.Context, alert notify.Alert) (*notify.Result, error)
}

type Handler struct {
	config       *Config
	sender       Sender
	logger       logger.Logger
	errorHandler *errors.JobErrorHandler
	obs          *observability.Observability
	inputSchema  *validation.Schema
}

func NewHandler(config *Config, sender Sender, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	schema, err := registry.Default().InputSchema(TaskType)
	if err != nil {
		log.Warn("input schema unavailable, job variables are not validated", map[string]interface{}{"error": err})
	}
	return &Handler{
		config:       config,
		sender:       sender,
		logger:       log,
		errorHandler: errors.NewJobErrorHandler(log),
		obs:          obs,
		inputSchema:  schema,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if err := h.validateVariables(job.Variables); err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewInvalidRequestError("Invalid job variables", fmt.Sprintf("parse input: %v", err)), start)
		return
	}
	if input.NotificationID == "" {
		input.NotificationID = strconv.FormatInt(job.ElementInstanceKey, 10)
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	h.completeJob(ctx, client, job, output, start)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	return h.sender.Send(ctx, notify.Alert{
		ID:         input.NotificationID,
		Leaks:      input.Leaks,
		Recipients: input.Recipients,
	})
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output, start time.Time) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start))
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	code := errors.Normalize(err).Code
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(code)).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

// validateVariables checks job variables against the registered input schema.
// Malformed JSON is left to the decoder.
func (h *Handler) validateVariables(variables string) error {
	if h.inputSchema == nil {
		return nil
	}
	res, err := h.inputSchema.ValidateJSON([]byte(variables))
	if err != nil || res.Valid {
		return nil
	}
	return errors.NewInvalidRequestError("Invalid job variables", res.Message())
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
