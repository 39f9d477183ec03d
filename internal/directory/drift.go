package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-erp/odyssey-provision/internal/provisioning"
)

const selectDrift = `
SELECT i.id::text, i.email, i.role_claim, d.role, d.identity_id IS NULL AS missing
FROM identities i
LEFT JOIN directory_records d ON d.identity_id = i.id::text
WHERE d.identity_id IS NULL
   OR i.role_claim IS DISTINCT FROM d.role
ORDER BY i.created_at, i.id
LIMIT $1`

// ScanDrift lists identities whose directory record is missing or whose role
// claim disagrees with the directory role.
func (s *PGStore) ScanDrift(ctx context.Context, limit int) ([]provisioning.Drift, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, selectDrift, limit)
	if err != nil {
		return nil, fmt.Errorf("directory: scan drift: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (provisioning.Drift, error) {
		var (
			drift   provisioning.Drift
			claim   pgtype.Text
			dirRole pgtype.Text
			missing bool
		)
		if err := row.Scan(&drift.IdentityID, &drift.Email, &claim, &dirRole, &missing); err != nil {
			return provisioning.Drift{}, err
		}
		drift.ClaimRole = provisioning.Role(claim.String)
		drift.DirectoryRole = provisioning.Role(dirRole.String)
		drift.Kind = provisioning.DriftRoleMismatch
		if missing {
			drift.Kind = provisioning.DriftMissingRecord
		}
		return drift, nil
	})
}
