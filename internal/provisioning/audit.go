package provisioning

import (
	"context"
	"fmt"
	"log/slog"
)

// AuditLogger appends audit events and hands failed appends to an optional
// retrier. It is a best-effort trail, not a transactional ledger.
type AuditLogger struct {
	store   AuditStore
	retrier AuditRetrier
	logger  *slog.Logger
}

// NewAuditLogger builds an AuditLogger. retrier may be nil.
func NewAuditLogger(store AuditStore, retrier AuditRetrier, logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{store: store, retrier: retrier, logger: logger}
}

// Append writes event and blocks until the store answers.
func (l *AuditLogger) Append(ctx context.Context, event AuditEvent) error {
	err := l.store.AppendEvent(ctx, event)
	if err == nil {
		return nil
	}
	l.logger.Error("audit append failed",
		slog.String("event_id", event.ID),
		slog.String("type", string(event.Type)),
		slog.String("actor", event.ActorID),
		slog.String("target", event.TargetID),
		slog.String("target_email", event.TargetEmail),
		slog.Any("modules", ModuleStrings(event.Modules)),
		slog.Any("error", err),
	)
	if l.retrier != nil {
		if qerr := l.retrier.EnqueueAudit(ctx, event); qerr != nil {
			l.logger.Error("audit retry enqueue failed", slog.String("event_id", event.ID), slog.Any("error", qerr))
		} else {
			l.logger.Warn("audit append scheduled for retry", slog.String("event_id", event.ID))
		}
	}
	return fmt.Errorf("append audit event %s: %w", event.ID, err)
}
