package provisioning

import (
	"context"
	"errors"
	"fmt"
)

// ResolveMode controls what happens when the email already has an identity.
type ResolveMode int

const (
	// ResolveCreateOnly surfaces an already_exists error on collision.
	ResolveCreateOnly ResolveMode = iota
	// ResolveCreateOrSync re-enables the existing identity and refreshes its
	// display name. The stored credential is left untouched.
	ResolveCreateOrSync
)

// Resolution is the identity a request maps to.
type Resolution struct {
	Identity Identity
	Created  bool
}

// IdentityResolver maps an email to an identity, creating it if needed.
type IdentityResolver struct {
	provider IdentityProvider
}

// NewIdentityResolver builds an IdentityResolver.
func NewIdentityResolver(provider IdentityProvider) *IdentityResolver {
	return &IdentityResolver{provider: provider}
}

// Resolve tries creation first and falls back to lookup on collision.
func (r *IdentityResolver) Resolve(ctx context.Context, req Request, mode ResolveMode) (Resolution, error) {
	created, err := r.provider.CreateIdentity(ctx, NewIdentity{
		Email:       req.Email,
		Credential:  req.TemporaryCredential,
		DisplayName: req.DisplayName,
	})
	if err == nil {
		return Resolution{Identity: created, Created: true}, nil
	}
	if !errors.Is(err, ErrIdentityExists) {
		return Resolution{}, internalError(fmt.Errorf("create identity: %w", err))
	}
	if mode == ResolveCreateOnly {
		return Resolution{}, &Error{Category: CategoryAlreadyExists, Message: MsgEmailExists, Err: err}
	}

	existing, err := r.provider.GetIdentityByEmail(ctx, req.Email)
	if err != nil {
		return Resolution{}, internalError(fmt.Errorf("lookup existing identity: %w", err))
	}
	displayName := req.DisplayName
	disabled := false
	updated, err := r.provider.UpdateIdentity(ctx, existing.ID, IdentityUpdate{
		DisplayName: &displayName,
		Disabled:    &disabled,
	})
	if err != nil {
		return Resolution{}, internalError(fmt.Errorf("sync identity %s: %w", existing.ID, err))
	}
	return Resolution{Identity: updated, Created: false}, nil
}

// Lookup fetches an existing identity; absence maps to not_found.
func (r *IdentityResolver) Lookup(ctx context.Context, email string) (Identity, error) {
	identity, err := r.provider.GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return Identity{}, &Error{Category: CategoryNotFound, Message: MsgUserNotFound, Err: err}
		}
		return Identity{}, internalError(fmt.Errorf("lookup identity: %w", err))
	}
	return identity, nil
}
