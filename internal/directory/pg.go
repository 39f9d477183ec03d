// Package directory persists directory records (profile, role and modules
// keyed by identity id) in PostgreSQL.
package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-provision/internal/provisioning"
)

// PGStore implements provisioning.DirectoryStore.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const selectByRole = `
SELECT identity_id, email, display_name, role, modules, active, created_at, updated_at, created_by, updated_by
FROM directory_records
WHERE role = $1
ORDER BY created_at, identity_id
LIMIT $2`

// QueryByRole returns up to limit records carrying role.
func (s *PGStore) QueryByRole(ctx context.Context, role provisioning.Role, limit int) ([]provisioning.DirectoryRecord, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.pool.Query(ctx, selectByRole, string(role), limit)
	if err != nil {
		return nil, fmt.Errorf("directory: query by role: %w", err)
	}
	return pgx.CollectRows(rows, scanRecord)
}

const replaceRecord = `
INSERT INTO directory_records (identity_id, email, display_name, role, modules, active, created_at, updated_at, created_by, updated_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (identity_id) DO UPDATE SET
    email = EXCLUDED.email,
    display_name = EXCLUDED.display_name,
    role = EXCLUDED.role,
    modules = EXCLUDED.modules,
    active = EXCLUDED.active,
    created_at = EXCLUDED.created_at,
    updated_at = EXCLUDED.updated_at,
    created_by = EXCLUDED.created_by,
    updated_by = EXCLUDED.updated_by`

const mergeRecord = `
INSERT INTO directory_records (identity_id, email, display_name, role, modules, active, created_at, updated_at, created_by, updated_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (identity_id) DO UPDATE SET
    email = EXCLUDED.email,
    display_name = EXCLUDED.display_name,
    role = EXCLUDED.role,
    modules = EXCLUDED.modules,
    active = EXCLUDED.active,
    updated_at = EXCLUDED.updated_at,
    updated_by = EXCLUDED.updated_by`

// WriteRecord upserts the record. WriteMerge keeps created_at and created_by
// of an existing row; WriteReplace overwrites every column.
func (s *PGStore) WriteRecord(ctx context.Context, record provisioning.DirectoryRecord, mode provisioning.WriteMode) error {
	query := replaceRecord
	if mode == provisioning.WriteMerge {
		query = mergeRecord
	}
	_, err := s.pool.Exec(ctx, query,
		record.ID,
		record.Email,
		record.DisplayName,
		string(record.Role),
		provisioning.ModuleStrings(record.Modules),
		record.Active,
		record.CreatedAt.UTC(),
		record.UpdatedAt.UTC(),
		record.CreatedBy,
		record.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("directory: %s write %s: %w", mode, record.ID, err)
	}
	return nil
}

// Get returns a single record.
func (s *PGStore) Get(ctx context.Context, id string) (provisioning.DirectoryRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT identity_id, email, display_name, role, modules, active, created_at, updated_at, created_by, updated_by
FROM directory_records
WHERE identity_id = $1`, id)
	if err != nil {
		return provisioning.DirectoryRecord{}, fmt.Errorf("directory: get %s: %w", id, err)
	}
	return pgx.CollectExactlyOneRow(rows, scanRecord)
}

func scanRecord(row pgx.CollectableRow) (provisioning.DirectoryRecord, error) {
	var (
		rec     provisioning.DirectoryRecord
		role    string
		modules []string
	)
	err := row.Scan(&rec.ID, &rec.Email, &rec.DisplayName, &role, &modules, &rec.Active,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.CreatedBy, &rec.UpdatedBy)
	if err != nil {
		return provisioning.DirectoryRecord{}, err
	}
	rec.Role = provisioning.Role(role)
	rec.Modules = make([]provisioning.Module, len(modules))
	for i, m := range modules {
		rec.Modules[i] = provisioning.Module(m)
	}
	return rec, nil
}
