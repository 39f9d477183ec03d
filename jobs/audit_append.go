package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-provision/internal/jobs"
	"github.com/odyssey-erp/odyssey-provision/internal/provisioning"
)

// AuditAppender stores an event once; inserted is false for a duplicate id.
type AuditAppender interface {
	Append(ctx context.Context, event provisioning.AuditEvent) (inserted bool, err error)
}

// AuditAppendJob replays audit events that could not be appended inline.
type AuditAppendJob struct {
	Store   AuditAppender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditAppendJob initialises the audit append handler.
func NewAuditAppendJob(store AuditAppender, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditAppendJob {
	return &AuditAppendJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle appends the carried event. Malformed payloads are not retried.
func (j *AuditAppendJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("audit append: handler not configured")
	}
	var payload AuditAppendPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Event.ID == "" || payload.Event.Type == "" {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskAuditAppend)
	logger := j.logger().With(
		slog.String("event_id", payload.Event.ID),
		slog.String("event_type", string(payload.Event.Type)),
	)
	inserted, err := j.Store.Append(ctx, payload.Event)
	if err != nil {
		logger.Error("audit append retry failed", slog.Any("error", err))
		return tracker.End(err)
	}
	outcome := "inserted"
	if !inserted {
		outcome = "duplicate"
	}
	j.Metrics.ObserveAuditRetry(outcome)
	logger.Info("audit event recorded", slog.String("outcome", outcome))
	return tracker.End(nil)
}

func (j *AuditAppendJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
