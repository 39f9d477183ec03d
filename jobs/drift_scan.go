package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-provision/internal/jobs"
	"github.com/odyssey-erp/odyssey-provision/internal/provisioning"
)

const defaultDriftLimit = 500

// DriftScanner lists identities whose directory state diverges.
type DriftScanner interface {
	ScanDrift(ctx context.Context, limit int) ([]provisioning.Drift, error)
}

// DriftScanJob surfaces partially applied provisioning runs so an operator
// can re-run the create or set-role flow for them.
type DriftScanJob struct {
	Scanner DriftScanner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDriftScanJob initialises the drift scan handler.
func NewDriftScanJob(scanner DriftScanner, logger *slog.Logger, metrics *jobmetrics.Metrics) *DriftScanJob {
	return &DriftScanJob{
		Scanner: scanner,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one drift scan.
func (j *DriftScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Scanner == nil {
		return errors.New("drift scan: handler not configured")
	}
	var payload DriftScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultDriftLimit
	}

	start := j.now()
	tracker := j.Metrics.Track(TaskDriftScan)
	logger := j.logger().With(slog.Int("limit", payload.Limit))

	drifts, err := j.Scanner.ScanDrift(ctx, payload.Limit)
	if err != nil {
		logger.Error("drift scan failed", slog.Any("error", err))
		return tracker.End(err)
	}

	counts := make(map[provisioning.DriftKind]int)
	for _, d := range drifts {
		counts[d.Kind]++
		logger.Warn("provisioning drift detected",
			slog.String("kind", string(d.Kind)),
			slog.String("identity_id", d.IdentityID),
			slog.String("email", d.Email),
			slog.String("claim_role", string(d.ClaimRole)),
			slog.String("directory_role", string(d.DirectoryRole)),
		)
	}
	for kind, n := range counts {
		j.Metrics.AddDrift(string(kind), n)
	}

	logger.Info("completed drift scan",
		slog.Int("drifts", len(drifts)),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return tracker.End(nil)
}

func (j *DriftScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *DriftScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
