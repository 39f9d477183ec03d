package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DirectoryWriter upserts directory records keyed by identity id.
type DirectoryWriter struct {
	store DirectoryStore
}

// NewDirectoryWriter builds a DirectoryWriter.
func NewDirectoryWriter(store DirectoryStore) *DirectoryWriter {
	return &DirectoryWriter{store: store}
}

// Profile is the full document written by the create flows.
type Profile struct {
	IdentityID  string
	Email       string
	DisplayName string
	Role        Role
	Modules     []Module
	Actor       string
	At          time.Time
}

// Replace writes the complete document, discarding whatever was stored.
func (w *DirectoryWriter) Replace(ctx context.Context, p Profile) error {
	record := DirectoryRecord{
		ID:          p.IdentityID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		Modules:     append([]Module(nil), p.Modules...),
		Active:      true,
		CreatedAt:   p.At,
		UpdatedAt:   p.At,
		CreatedBy:   p.Actor,
		UpdatedBy:   p.Actor,
	}
	if err := w.store.WriteRecord(ctx, record, WriteReplace); err != nil {
		return internalError(fmt.Errorf("write directory record %s: %w", p.IdentityID, err))
	}
	return nil
}

// RoleAssignment is a merge write. Role, Active and Modules are always
// written together so a merge never leaves them partially updated.
type RoleAssignment struct {
	IdentityID  string
	Email       string
	DisplayName string
	Role        Role
	Active      bool
	Modules     []Module
	Actor       string
	At          time.Time
}

// Merge updates role, active flag and modules on the existing record and
// keeps its creation metadata.
func (w *DirectoryWriter) Merge(ctx context.Context, a RoleAssignment) error {
	if !a.Role.Valid() || len(a.Modules) == 0 {
		return internalError(errors.New("merge write requires role and modules"))
	}
	record := DirectoryRecord{
		ID:          a.IdentityID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		Role:        a.Role,
		Modules:     append([]Module(nil), a.Modules...),
		Active:      a.Active,
		CreatedAt:   a.At,
		UpdatedAt:   a.At,
		CreatedBy:   a.Actor,
		UpdatedBy:   a.Actor,
	}
	if err := w.store.WriteRecord(ctx, record, WriteMerge); err != nil {
		return internalError(fmt.Errorf("merge directory record %s: %w", a.IdentityID, err))
	}
	return nil
}
