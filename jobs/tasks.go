package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-provision/internal/provisioning"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditAppend re-delivers an audit event whose synchronous append failed.
	TaskAuditAppend = "audit:append"
	// TaskDriftScan reports identities left half-provisioned.
	TaskDriftScan = "provisioning:drift-scan"
)

// AuditAppendPayload carries the event exactly as it was built, id included,
// so the append stays idempotent across retries.
type AuditAppendPayload struct {
	Event provisioning.AuditEvent `json:"event"`
}

// NewAuditAppendTask constructs an audit append task.
func NewAuditAppendTask(event provisioning.AuditEvent) (*asynq.Task, error) {
	data, err := json.Marshal(AuditAppendPayload{Event: event})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditAppend, data), nil
}

// DriftScanPayload bounds a single drift scan.
type DriftScanPayload struct {
	Limit int `json:"limit"`
}

// NewDriftScanTask constructs a drift scan task.
func NewDriftScanTask(limit int) (*asynq.Task, error) {
	data, err := json.Marshal(DriftScanPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDriftScan, data), nil
}
