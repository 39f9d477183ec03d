// Package identity stores login identities, their credential hashes and the
// role claim in PostgreSQL.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-provision/internal/auth"
	"github.com/odyssey-erp/odyssey-provision/internal/provisioning"
	"github.com/odyssey-erp/odyssey-provision/internal/shared"
)

// PGProvider implements provisioning.IdentityProvider and auth.Repository.
type PGProvider struct {
	pool *pgxpool.Pool
	cost int
}

// Option tweaks a PGProvider.
type Option func(*PGProvider)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(p *PGProvider) {
		p.cost = cost
	}
}

// NewPGProvider constructs a PGProvider.
func NewPGProvider(pool *pgxpool.Pool, opts ...Option) *PGProvider {
	p := &PGProvider{pool: pool, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

const insertIdentity = `
INSERT INTO identities (id, email, display_name, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING id::text, email, display_name, disabled, email_verified`

// CreateIdentity hashes the credential and inserts a new identity. A taken
// email surfaces as provisioning.ErrIdentityExists.
func (p *PGProvider) CreateIdentity(ctx context.Context, n provisioning.NewIdentity) (provisioning.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(n.Credential), p.cost)
	if err != nil {
		return provisioning.Identity{}, fmt.Errorf("identity: hash credential: %w", err)
	}
	row := p.pool.QueryRow(ctx, insertIdentity, uuid.New(), n.Email, n.DisplayName, string(hash))
	identity, err := scanIdentity(row)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return provisioning.Identity{}, fmt.Errorf("identity: %s: %w", n.Email, provisioning.ErrIdentityExists)
		}
		return provisioning.Identity{}, fmt.Errorf("identity: insert: %w", err)
	}
	return identity, nil
}

const selectByEmail = `
SELECT id::text, email, display_name, disabled, email_verified
FROM identities
WHERE email = $1`

// GetIdentityByEmail looks an identity up by its normalized email.
func (p *PGProvider) GetIdentityByEmail(ctx context.Context, email string) (provisioning.Identity, error) {
	identity, err := scanIdentity(p.pool.QueryRow(ctx, selectByEmail, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return provisioning.Identity{}, fmt.Errorf("identity: %s: %w", email, provisioning.ErrIdentityNotFound)
		}
		return provisioning.Identity{}, fmt.Errorf("identity: select: %w", err)
	}
	return identity, nil
}

const updateIdentity = `
UPDATE identities
SET display_name = COALESCE($2, display_name),
    disabled = COALESCE($3, disabled),
    updated_at = NOW()
WHERE id = $1
RETURNING id::text, email, display_name, disabled, email_verified`

// UpdateIdentity applies the non-nil fields of update.
func (p *PGProvider) UpdateIdentity(ctx context.Context, id string, update provisioning.IdentityUpdate) (provisioning.Identity, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return provisioning.Identity{}, fmt.Errorf("identity: %s: %w", id, provisioning.ErrIdentityNotFound)
	}
	var displayName pgtype.Text
	if update.DisplayName != nil {
		displayName = pgtype.Text{String: *update.DisplayName, Valid: true}
	}
	var disabled pgtype.Bool
	if update.Disabled != nil {
		disabled = pgtype.Bool{Bool: *update.Disabled, Valid: true}
	}
	identity, err := scanIdentity(p.pool.QueryRow(ctx, updateIdentity, uid, displayName, disabled))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return provisioning.Identity{}, fmt.Errorf("identity: %s: %w", id, provisioning.ErrIdentityNotFound)
		}
		return provisioning.Identity{}, fmt.Errorf("identity: update: %w", err)
	}
	return identity, nil
}

// SetRoleClaim replaces the identity's role claim.
func (p *PGProvider) SetRoleClaim(ctx context.Context, id string, role provisioning.Role) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("identity: %s: %w", id, provisioning.ErrIdentityNotFound)
	}
	tag, err := p.pool.Exec(ctx, `UPDATE identities SET role_claim = $2, updated_at = NOW() WHERE id = $1`, uid, string(role))
	if err != nil {
		return fmt.Errorf("identity: set role claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("identity: %s: %w", id, provisioning.ErrIdentityNotFound)
	}
	return nil
}

// RoleClaim returns the current role claim, empty when none was assigned.
func (p *PGProvider) RoleClaim(ctx context.Context, id string) (provisioning.Role, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("identity: %s: %w", id, provisioning.ErrIdentityNotFound)
	}
	var role pgtype.Text
	if err := p.pool.QueryRow(ctx, `SELECT role_claim FROM identities WHERE id = $1`, uid).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("identity: %s: %w", id, provisioning.ErrIdentityNotFound)
		}
		return "", fmt.Errorf("identity: select role claim: %w", err)
	}
	return provisioning.Role(role.String), nil
}

const selectCredential = `
SELECT id::text, email, password_hash, COALESCE(role_claim, ''), disabled
FROM identities
WHERE email = $1`

// FindCredential implements auth.Repository.
func (p *PGProvider) FindCredential(ctx context.Context, email string) (auth.Credential, error) {
	var cred auth.Credential
	err := p.pool.QueryRow(ctx, selectCredential, email).Scan(
		&cred.IdentityID, &cred.Email, &cred.PasswordHash, &cred.Role, &cred.Disabled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Credential{}, shared.ErrNotFound
		}
		return auth.Credential{}, fmt.Errorf("identity: select credential: %w", err)
	}
	return cred, nil
}

func scanIdentity(row pgx.Row) (provisioning.Identity, error) {
	var identity provisioning.Identity
	err := row.Scan(&identity.ID, &identity.Email, &identity.DisplayName, &identity.Disabled, &identity.EmailVerified)
	return identity, err
}
