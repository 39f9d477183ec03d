package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-provision/internal/provisioning"
)

// PGStore persists audit events in the append-only audit_events table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const insertEvent = `
INSERT INTO audit_events (id, type, actor_id, target_id, target_email, modules, role, active, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

// Append stores the event once. The boolean is false when an event with the
// same id was already recorded.
func (s *PGStore) Append(ctx context.Context, event provisioning.AuditEvent) (bool, error) {
	modules := provisioning.ModuleStrings(event.Modules)
	var active pgtype.Bool
	if event.Active != nil {
		active = pgtype.Bool{Bool: *event.Active, Valid: true}
	}
	tag, err := s.pool.Exec(ctx, insertEvent,
		event.ID,
		string(event.Type),
		event.ActorID,
		event.TargetID,
		event.TargetEmail,
		modules,
		optionalText(string(event.Role)),
		active,
		event.OccurredAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("audit: insert event %s: %w", event.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// AppendEvent satisfies provisioning.AuditStore.
func (s *PGStore) AppendEvent(ctx context.Context, event provisioning.AuditEvent) error {
	_, err := s.Append(ctx, event)
	return err
}

const listEvents = `
SELECT id, type, actor_id, target_id, target_email, modules, role, active, occurred_at
FROM audit_events
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR type = $4)
ORDER BY occurred_at DESC, id DESC
OFFSET $5
LIMIT $6`

// ListEvents returns matching events newest first.
func (s *PGStore) ListEvents(ctx context.Context, q EventQuery) ([]TimelineRow, error) {
	var limit pgtype.Int8
	if q.Limit > 0 {
		limit = pgtype.Int8{Int64: int64(q.Limit), Valid: true}
	}
	rows, err := s.pool.Query(ctx, listEvents,
		toPgTime(q.From),
		toPgTime(q.To),
		optionalText(q.Actor),
		optionalText(q.Type),
		int64(max(q.Offset, 0)),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	return pgx.CollectRows(rows, scanTimelineRow)
}

func scanTimelineRow(row pgx.CollectableRow) (TimelineRow, error) {
	var (
		out    TimelineRow
		role   pgtype.Text
		active pgtype.Bool
		at     pgtype.Timestamptz
	)
	if err := row.Scan(&out.ID, &out.Type, &out.Actor, &out.TargetID, &out.TargetEmail, &out.Modules, &role, &active, &at); err != nil {
		return TimelineRow{}, err
	}
	if role.Valid {
		out.Role = role.String
	}
	if active.Valid {
		v := active.Bool
		out.Active = &v
	}
	if at.Valid {
		out.At = at.Time.UTC()
	}
	if out.Modules == nil {
		out.Modules = []string{}
	}
	return out, nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
