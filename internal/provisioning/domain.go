package provisioning

import (
	"strings"
	"time"
)

// Role is the single authorization claim attached to an identity.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Valid reports whether the role is one of the supported claims.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff:
		return true
	default:
		return false
	}
}

// ParseRole normalizes raw input into a Role.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// Module is a capability module that can be granted to a user.
type Module string

const (
	ModuleDashboard    Module = "dashboard"
	ModulePatients     Module = "patients"
	ModuleAppointments Module = "appointments"
	ModuleBilling      Module = "billing"
	ModuleInventory    Module = "inventory"
	ModuleReports      Module = "reports"
)

// Valid reports catalog membership.
func (m Module) Valid() bool {
	switch m {
	case ModuleDashboard, ModulePatients, ModuleAppointments, ModuleBilling, ModuleInventory, ModuleReports:
		return true
	default:
		return false
	}
}

// Catalog returns the full module catalog in its canonical order.
func Catalog() []Module {
	return []Module{
		ModuleDashboard,
		ModulePatients,
		ModuleAppointments,
		ModuleBilling,
		ModuleInventory,
		ModuleReports,
	}
}

// ModuleStrings converts modules to their wire representation.
func ModuleStrings(modules []Module) []string {
	out := make([]string, len(modules))
	for i, m := range modules {
		out[i] = string(m)
	}
	return out
}

// Input is the raw, unvalidated provisioning payload.
type Input struct {
	Email               string   `json:"email"`
	DisplayName         string   `json:"displayName"`
	TemporaryCredential string   `json:"temporaryPassword"`
	Modules             []string `json:"modules"`
}

// Request is a validated and normalized provisioning request.
type Request struct {
	Email               string
	DisplayName         string
	TemporaryCredential string
	Modules             []Module
}

// Identity is the identity provider's record of a login.
type Identity struct {
	ID            string
	Email         string
	DisplayName   string
	Disabled      bool
	EmailVerified bool
}

// NewIdentity carries the fields needed to create an identity.
type NewIdentity struct {
	Email       string
	Credential  string
	DisplayName string
}

// IdentityUpdate is a partial update; nil fields are left untouched.
type IdentityUpdate struct {
	DisplayName *string
	Disabled    *bool
}

// DirectoryRecord is the profile and capability document keyed by identity id.
type DirectoryRecord struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	Modules     []Module
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatedBy   string
	UpdatedBy   string
}

// WriteMode selects how a directory write treats an existing document.
type WriteMode int

const (
	// WriteReplace overwrites the whole document.
	WriteReplace WriteMode = iota
	// WriteMerge updates the supplied fields and keeps created_at/created_by.
	WriteMerge
)

func (m WriteMode) String() string {
	if m == WriteMerge {
		return "merge"
	}
	return "replace"
}

// EventType enumerates audit event kinds.
type EventType string

const (
	EventUserCreated         EventType = "USER_CREATED"
	EventUserSynced          EventType = "USER_SYNCED"
	EventInitialAdminCreated EventType = "INITIAL_ADMIN_CREATED"
	EventUserRoleUpdated     EventType = "USER_ROLE_UPDATED"
)

// AuditEvent is an immutable record of a provisioning action.
type AuditEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	ActorID     string    `json:"actorUid"`
	TargetID    string    `json:"targetUid"`
	TargetEmail string    `json:"targetEmail"`
	Modules     []Module  `json:"modules"`
	Role        Role      `json:"role,omitempty"`
	Active      *bool     `json:"active,omitempty"`
	OccurredAt  time.Time `json:"timestamp"`
}

// Caller is the authenticated principal invoking an operation.
type Caller struct {
	ID   string
	Role Role
}

// Authenticated reports whether the caller carries an identity.
func (c Caller) Authenticated() bool {
	return strings.TrimSpace(c.ID) != ""
}

// Fixed actor labels used when no human caller is involved.
const (
	ActorBootstrap   = "bootstrap"
	ActorLocalScript = "local-admin-script"
)

// Result is returned by successful provisioning operations.
type Result struct {
	Success    bool   `json:"success"`
	IdentityID string `json:"uid"`
	Email      string `json:"email"`
	Created    bool   `json:"created"`
}

// DriftKind names a mismatch between the identity provider and the directory.
type DriftKind string

const (
	// DriftMissingRecord is an identity with no directory record.
	DriftMissingRecord DriftKind = "missing_record"
	// DriftRoleMismatch is a role claim that disagrees with the directory role.
	DriftRoleMismatch DriftKind = "role_mismatch"
)

// Drift is one identity whose provider state and directory state diverge,
// typically left behind by a partially applied provisioning run.
type Drift struct {
	Kind          DriftKind
	IdentityID    string
	Email         string
	ClaimRole     Role
	DirectoryRole Role
}
