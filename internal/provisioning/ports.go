package provisioning

import (
	"context"
	"time"
)

// IdentityProvider is the authentication backend holding credentials and claims.
type IdentityProvider interface {
	// CreateIdentity returns ErrIdentityExists when the email is taken.
	CreateIdentity(ctx context.Context, identity NewIdentity) (Identity, error)
	// GetIdentityByEmail returns ErrIdentityNotFound when nothing matches.
	GetIdentityByEmail(ctx context.Context, email string) (Identity, error)
	UpdateIdentity(ctx context.Context, id string, update IdentityUpdate) (Identity, error)
	SetRoleClaim(ctx context.Context, id string, role Role) error
}

// DirectoryStore persists directory records.
type DirectoryStore interface {
	QueryByRole(ctx context.Context, role Role, limit int) ([]DirectoryRecord, error)
	WriteRecord(ctx context.Context, record DirectoryRecord, mode WriteMode) error
}

// AuditStore appends audit events. There is no update or delete.
type AuditStore interface {
	AppendEvent(ctx context.Context, event AuditEvent) error
}

// AuditRetrier schedules a failed append for later delivery.
type AuditRetrier interface {
	EnqueueAudit(ctx context.Context, event AuditEvent) error
}

// Locker takes a short-lived exclusive lease. acquired is false when another
// holder owns the key.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// MetricsRecorder observes operation outcomes.
type MetricsRecorder interface {
	ObserveProvisioning(operation, outcome string, elapsed time.Duration)
}

// Clock supplies the authoritative write timestamp.
type Clock interface {
	CurrentServerTimestamp(ctx context.Context) (time.Time, error)
}

type systemClock struct{}

func (systemClock) CurrentServerTimestamp(context.Context) (time.Time, error) {
	return time.Now().UTC(), nil
}
