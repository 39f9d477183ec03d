package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-provision/internal/identity"
	"github.com/odyssey-erp/odyssey-provision/internal/platform/db/dbtest"
	"github.com/odyssey-erp/odyssey-provision/internal/provisioning"
)

func TestPGStoreReplaceAndMerge(t *testing.T) {
	pool := dbtest.Pool(t)
	store := NewPGStore(pool)
	ctx := context.Background()
	created := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	later := created.Add(48 * time.Hour)

	record := provisioning.DirectoryRecord{
		ID:          "uid-1",
		Email:       "a@b.com",
		DisplayName: "Ana",
		Role:        provisioning.RoleStaff,
		Modules:     []provisioning.Module{provisioning.ModuleDashboard},
		Active:      true,
		CreatedAt:   created,
		UpdatedAt:   created,
		CreatedBy:   "admin-uid",
		UpdatedBy:   "admin-uid",
	}
	require.NoError(t, store.WriteRecord(ctx, record, provisioning.WriteReplace))

	merge := record
	merge.Role = provisioning.RoleAdmin
	merge.Modules = provisioning.Catalog()
	merge.CreatedAt, merge.UpdatedAt = later, later
	merge.CreatedBy, merge.UpdatedBy = "other-admin", "other-admin"
	require.NoError(t, store.WriteRecord(ctx, merge, provisioning.WriteMerge))

	got, err := store.Get(ctx, "uid-1")
	require.NoError(t, err)
	require.Equal(t, provisioning.RoleAdmin, got.Role)
	require.Equal(t, provisioning.Catalog(), got.Modules)
	require.True(t, got.CreatedAt.Equal(created))
	require.Equal(t, "admin-uid", got.CreatedBy)
	require.Equal(t, "other-admin", got.UpdatedBy)

	require.NoError(t, store.WriteRecord(ctx, merge, provisioning.WriteReplace))
	got, err = store.Get(ctx, "uid-1")
	require.NoError(t, err)
	require.True(t, got.CreatedAt.Equal(later))
	require.Equal(t, "other-admin", got.CreatedBy)

	admins, err := store.QueryByRole(ctx, provisioning.RoleAdmin, 1)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	staff, err := store.QueryByRole(ctx, provisioning.RoleStaff, 1)
	require.NoError(t, err)
	require.Empty(t, staff)
}

func TestPGStoreScanDrift(t *testing.T) {
	pool := dbtest.Pool(t)
	store := NewPGStore(pool)
	provider := identity.NewPGProvider(pool, identity.WithHashCost(bcrypt.MinCost))
	ctx := context.Background()
	now := time.Now().UTC()

	orphan, err := provider.CreateIdentity(ctx, provisioning.NewIdentity{Email: "orphan@b.com", Credential: "Passw0rd", DisplayName: "Orphan"})
	require.NoError(t, err)

	mismatched, err := provider.CreateIdentity(ctx, provisioning.NewIdentity{Email: "mm@b.com", Credential: "Passw0rd", DisplayName: "MM"})
	require.NoError(t, err)
	require.NoError(t, provider.SetRoleClaim(ctx, mismatched.ID, provisioning.RoleStaff))
	require.NoError(t, store.WriteRecord(ctx, provisioning.DirectoryRecord{
		ID: mismatched.ID, Email: "mm@b.com", DisplayName: "MM", Role: provisioning.RoleAdmin,
		Modules: provisioning.Catalog(), Active: true, CreatedAt: now, UpdatedAt: now, CreatedBy: "x", UpdatedBy: "x",
	}, provisioning.WriteReplace))

	healthy, err := provider.CreateIdentity(ctx, provisioning.NewIdentity{Email: "ok@b.com", Credential: "Passw0rd", DisplayName: "OK"})
	require.NoError(t, err)
	require.NoError(t, provider.SetRoleClaim(ctx, healthy.ID, provisioning.RoleStaff))
	require.NoError(t, store.WriteRecord(ctx, provisioning.DirectoryRecord{
		ID: healthy.ID, Email: "ok@b.com", DisplayName: "OK", Role: provisioning.RoleStaff,
		Modules: []provisioning.Module{provisioning.ModuleDashboard}, Active: true, CreatedAt: now, UpdatedAt: now, CreatedBy: "x", UpdatedBy: "x",
	}, provisioning.WriteReplace))

	drifts, err := store.ScanDrift(ctx, 10)
	require.NoError(t, err)
	require.Len(t, drifts, 2)
	byID := map[string]provisioning.Drift{}
	for _, d := range drifts {
		byID[d.IdentityID] = d
	}
	require.Equal(t, provisioning.DriftMissingRecord, byID[orphan.ID].Kind)
	require.Equal(t, provisioning.DriftRoleMismatch, byID[mismatched.ID].Kind)
	require.Equal(t, provisioning.RoleStaff, byID[mismatched.ID].ClaimRole)
	require.Equal(t, provisioning.RoleAdmin, byID[mismatched.ID].DirectoryRole)
}
