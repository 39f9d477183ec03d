package provisioning

import (
	"context"
	"fmt"
)

// ClaimAssigner overwrites the role claim of an identity.
type ClaimAssigner struct {
	provider IdentityProvider
}

// NewClaimAssigner builds a ClaimAssigner.
func NewClaimAssigner(provider IdentityProvider) *ClaimAssigner {
	return &ClaimAssigner{provider: provider}
}

// Assign replaces any prior role with role.
func (a *ClaimAssigner) Assign(ctx context.Context, identityID string, role Role) error {
	if !role.Valid() {
		return validationError(map[string]string{"role": MsgInvalidRole}, nil, MsgInvalidRole)
	}
	if err := a.provider.SetRoleClaim(ctx, identityID, role); err != nil {
		return internalError(fmt.Errorf("set role claim %s on %s: %w", role, identityID, err))
	}
	return nil
}
