package provisioning

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-provision/internal/shared"
)

// BootstrapLockKey is the singleton key guarding the initial administrator path.
var BootstrapLockKey = shared.LockKey("bootstrap")

const defaultBootstrapLockTTL = time.Minute

// BootstrapGuard gates the one-time initial administrator path. The no-admin
// query and the identity creation are two independent operations: concurrent
// calls can both pass the query unless a Locker is configured.
type BootstrapGuard struct {
	expected  [sha256.Size]byte
	enabled   bool
	directory DirectoryStore
	locker    Locker
	lockTTL   time.Duration
}

// NewBootstrapGuard builds a guard. An empty secret rejects every attempt.
func NewBootstrapGuard(secret string, directory DirectoryStore, locker Locker, lockTTL time.Duration) *BootstrapGuard {
	secret = strings.TrimSpace(secret)
	if lockTTL <= 0 {
		lockTTL = defaultBootstrapLockTTL
	}
	return &BootstrapGuard{
		expected:  sha256.Sum256([]byte(secret)),
		enabled:   secret != "",
		directory: directory,
		locker:    locker,
		lockTTL:   lockTTL,
	}
}

// AssertSecret compares the provided secret in constant time. Missing and
// wrong secrets produce the same error.
func (g *BootstrapGuard) AssertSecret(provided string) error {
	sum := sha256.Sum256([]byte(strings.TrimSpace(provided)))
	match := subtle.ConstantTimeCompare(sum[:], g.expected[:]) == 1
	if !g.enabled || strings.TrimSpace(provided) == "" || !match {
		return permissionError(MsgInvalidBootstrapKey)
	}
	return nil
}

// AssertNoAdmin fails with a precondition error once any admin record exists.
func (g *BootstrapGuard) AssertNoAdmin(ctx context.Context) error {
	admins, err := g.directory.QueryByRole(ctx, RoleAdmin, 1)
	if err != nil {
		return internalError(fmt.Errorf("query admin records: %w", err))
	}
	if len(admins) > 0 {
		return preconditionError(MsgAdminExists)
	}
	return nil
}

// Acquire takes the singleton lease when a Locker is configured. The returned
// release is never nil.
func (g *BootstrapGuard) Acquire(ctx context.Context) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if g.locker == nil {
		return noop, nil
	}
	release, acquired, err := g.locker.TryAcquire(ctx, BootstrapLockKey, g.lockTTL)
	if err != nil {
		return noop, internalError(fmt.Errorf("acquire bootstrap lock: %w", err))
	}
	if !acquired {
		return noop, preconditionError(MsgBootstrapInFlight)
	}
	if release == nil {
		release = noop
	}
	return release, nil
}
