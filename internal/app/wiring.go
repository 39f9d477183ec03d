package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-provision/internal/audit"
	"github.com/odyssey-erp/odyssey-provision/internal/directory"
	"github.com/odyssey-erp/odyssey-provision/internal/identity"
	"github.com/odyssey-erp/odyssey-provision/internal/platform/db"
	"github.com/odyssey-erp/odyssey-provision/internal/provisioning"
)

// Stores are the PostgreSQL-backed collaborators of the provisioning service.
type Stores struct {
	Pool       *pgxpool.Pool
	Identities *identity.PGProvider
	Directory  *directory.PGStore
	Audit      *audit.PGStore
}

// OpenStores connects to PostgreSQL and ensures the schema exists.
func OpenStores(ctx context.Context, cfg *Config) (Stores, error) {
	pool, err := db.New(ctx, cfg.PGDSN, db.WithMaxConns(cfg.PGMaxConns))
	if err != nil {
		return Stores{}, err
	}
	if err := db.ApplySchema(ctx, pool); err != nil {
		pool.Close()
		return Stores{}, fmt.Errorf("app: %w", err)
	}
	return Stores{
		Pool:       pool,
		Identities: identity.NewPGProvider(pool),
		Directory:  directory.NewPGStore(pool),
		Audit:      audit.NewPGStore(pool),
	}, nil
}

// Close releases the pool.
func (s Stores) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// ServiceDeps carries the optional collaborators; nil disables each one.
type ServiceDeps struct {
	Locker  provisioning.Locker
	Retrier provisioning.AuditRetrier
	Metrics provisioning.MetricsRecorder
	Logger  *slog.Logger
}

// NewProvisioningService builds the orchestrator over the stores.
func NewProvisioningService(cfg *Config, stores Stores, deps ServiceDeps) *provisioning.Service {
	return provisioning.NewService(provisioning.ServiceConfig{
		Identities:       stores.Identities,
		Directory:        stores.Directory,
		Audit:            stores.Audit,
		AuditRetrier:     deps.Retrier,
		BootstrapSecret:  cfg.BootstrapSecret,
		BootstrapLocker:  deps.Locker,
		BootstrapLockTTL: cfg.BootstrapLockTTL,
		Metrics:          deps.Metrics,
		Logger:           deps.Logger,
		Clock:            db.NewClock(stores.Pool),
	})
}
