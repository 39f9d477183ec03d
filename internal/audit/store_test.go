package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-provision/internal/platform/db/dbtest"
	"github.com/odyssey-erp/odyssey-provision/internal/provisioning"
	"github.com/odyssey-erp/odyssey-provision/internal/shared"
)

func TestPGStoreAppendIsIdempotent(t *testing.T) {
	pool := dbtest.Pool(t)
	store := NewPGStore(pool)
	ctx := context.Background()
	active := true
	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

	first := provisioning.AuditEvent{
		ID:          shared.NewID(),
		Type:        provisioning.EventUserCreated,
		ActorID:     "admin-uid",
		TargetID:    "uid-1",
		TargetEmail: "a@b.com",
		Modules:     []provisioning.Module{provisioning.ModuleDashboard},
		OccurredAt:  base,
	}
	second := provisioning.AuditEvent{
		ID:          shared.NewID(),
		Type:        provisioning.EventUserRoleUpdated,
		ActorID:     "admin-uid",
		TargetID:    "uid-1",
		TargetEmail: "a@b.com",
		Modules:     provisioning.Catalog(),
		Role:        provisioning.RoleAdmin,
		Active:      &active,
		OccurredAt:  base.Add(time.Minute),
	}

	inserted, err := store.Append(ctx, first)
	require.NoError(t, err)
	require.True(t, inserted)
	inserted, err = store.Append(ctx, first)
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, store.AppendEvent(ctx, second))

	rows, err := store.ListEvents(ctx, EventQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, second.ID, rows[0].ID)
	require.Equal(t, "admin", rows[0].Role)
	require.NotNil(t, rows[0].Active)
	require.Len(t, rows[0].Modules, len(provisioning.Catalog()))
	require.Nil(t, rows[1].Active)

	rows, err = store.ListEvents(ctx, EventQuery{Type: string(provisioning.EventUserCreated), Limit: 5})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = store.ListEvents(ctx, EventQuery{From: base.Add(30 * time.Second)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, second.ID, rows[0].ID)
}

func TestPGStoreRejectsMutation(t *testing.T) {
	pool := dbtest.Pool(t)
	store := NewPGStore(pool)
	ctx := context.Background()
	event := provisioning.AuditEvent{
		ID:          shared.NewID(),
		Type:        provisioning.EventUserCreated,
		ActorID:     "admin-uid",
		TargetID:    "uid-1",
		TargetEmail: "a@b.com",
		Modules:     []provisioning.Module{provisioning.ModuleDashboard},
		OccurredAt:  time.Now(),
	}
	require.NoError(t, store.AppendEvent(ctx, event))

	_, err := pool.Exec(ctx, `DELETE FROM audit_events WHERE id = $1`, event.ID)
	require.Error(t, err)
}
