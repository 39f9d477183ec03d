package provisioning

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type memoryIdentities struct {
	mu          sync.Mutex
	byID        map[string]Identity
	credentials map[string]string
	claims      map[string]Role
	nextID      int

	createCalls int
	updateCalls int
	claimCalls  int

	createErr error
	claimErr  error
	onCreate  func()
}

func newMemoryIdentities() *memoryIdentities {
	return &memoryIdentities{
		byID:        make(map[string]Identity),
		credentials: make(map[string]string),
		claims:      make(map[string]Role),
	}
}

func (m *memoryIdentities) seed(email, displayName, credential string, disabled bool) Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	identity := Identity{ID: fmt.Sprintf("uid-%d", m.nextID), Email: email, DisplayName: displayName, Disabled: disabled}
	m.byID[identity.ID] = identity
	m.credentials[identity.ID] = credential
	return identity
}

func (m *memoryIdentities) CreateIdentity(ctx context.Context, n NewIdentity) (Identity, error) {
	m.mu.Lock()
	m.createCalls++
	if m.createErr != nil {
		m.mu.Unlock()
		return Identity{}, m.createErr
	}
	for _, existing := range m.byID {
		if existing.Email == n.Email {
			m.mu.Unlock()
			return Identity{}, fmt.Errorf("memory: %w", ErrIdentityExists)
		}
	}
	m.nextID++
	identity := Identity{ID: fmt.Sprintf("uid-%d", m.nextID), Email: n.Email, DisplayName: n.DisplayName}
	m.byID[identity.ID] = identity
	m.credentials[identity.ID] = n.Credential
	hook := m.onCreate
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return identity, nil
}

func (m *memoryIdentities) GetIdentityByEmail(ctx context.Context, email string) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.byID {
		if identity.Email == email {
			return identity, nil
		}
	}
	return Identity{}, ErrIdentityNotFound
}

func (m *memoryIdentities) UpdateIdentity(ctx context.Context, id string, update IdentityUpdate) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	identity, ok := m.byID[id]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	if update.DisplayName != nil {
		identity.DisplayName = *update.DisplayName
	}
	if update.Disabled != nil {
		identity.Disabled = *update.Disabled
	}
	m.byID[id] = identity
	return identity, nil
}

func (m *memoryIdentities) SetRoleClaim(ctx context.Context, id string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimCalls++
	if m.claimErr != nil {
		return m.claimErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.claims[id] = role
	return nil
}

func (m *memoryIdentities) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls + m.updateCalls + m.claimCalls
}

type memoryDirectory struct {
	mu       sync.Mutex
	records  map[string]DirectoryRecord
	modes    []WriteMode
	queries  int
	writeErr error
	barrier  *sync.WaitGroup
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{records: make(map[string]DirectoryRecord)}
}

func (m *memoryDirectory) QueryByRole(ctx context.Context, role Role, limit int) ([]DirectoryRecord, error) {
	m.mu.Lock()
	m.queries++
	var out []DirectoryRecord
	for _, record := range m.records {
		if record.Role == role && len(out) < limit {
			out = append(out, record)
		}
	}
	barrier := m.barrier
	m.mu.Unlock()
	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}
	return out, nil
}

func (m *memoryDirectory) WriteRecord(ctx context.Context, record DirectoryRecord, mode WriteMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes = append(m.modes, mode)
	if m.writeErr != nil {
		return m.writeErr
	}
	if existing, ok := m.records[record.ID]; ok && mode == WriteMerge {
		record.CreatedAt = existing.CreatedAt
		record.CreatedBy = existing.CreatedBy
	}
	m.records[record.ID] = record
	return nil
}

func (m *memoryDirectory) get(id string) (DirectoryRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	return record, ok
}

func (m *memoryDirectory) countRole(role Role) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, record := range m.records {
		if record.Role == role {
			n++
		}
	}
	return n
}

type memoryAudit struct {
	mu     sync.Mutex
	events []AuditEvent
	err    error
}

func (m *memoryAudit) AppendEvent(ctx context.Context, event AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memoryAudit) all() []AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditEvent(nil), m.events...)
}

type memoryRetrier struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (m *memoryRetrier) EnqueueAudit(ctx context.Context, event AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

type memoryLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: make(map[string]bool)}
}

func (m *memoryLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, false, nil
	}
	m.held[key] = true
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
		m.released++
		return nil
	}, true, nil
}

type memoryMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *memoryMetrics) ObserveProvisioning(operation, outcome string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, operation+":"+outcome)
}

// syncBuffer guards the log buffer against concurrent handlers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	identities *memoryIdentities
	directory  *memoryDirectory
	audit      *memoryAudit
	retrier    *memoryRetrier
	locker     *memoryLocker
	metrics    *memoryMetrics
	logs       *syncBuffer
	now        time.Time
	clockErr   error
	service    *Service
}

const testBootstrapSecret = "open-sesame-2024"

type fixtureOption func(*fixture, *ServiceConfig)

func withLocker() fixtureOption {
	return func(f *fixture, cfg *ServiceConfig) {
		f.locker = newMemoryLocker()
		cfg.BootstrapLocker = f.locker
	}
}

func withRetrier() fixtureOption {
	return func(f *fixture, cfg *ServiceConfig) {
		f.retrier = &memoryRetrier{}
		cfg.AuditRetrier = f.retrier
	}
}

func withBootstrapSecret(secret string) fixtureOption {
	return func(f *fixture, cfg *ServiceConfig) {
		cfg.BootstrapSecret = secret
	}
}

func newFixture(opts ...fixtureOption) *fixture {
	f := &fixture{
		identities: newMemoryIdentities(),
		directory:  newMemoryDirectory(),
		audit:      &memoryAudit{},
		metrics:    &memoryMetrics{},
		logs:       &syncBuffer{},
		now:        time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
	}
	cfg := ServiceConfig{
		Identities:      f.identities,
		Directory:       f.directory,
		Audit:           f.audit,
		BootstrapSecret: testBootstrapSecret,
		Metrics:         f.metrics,
		Logger:          slog.New(slog.NewTextHandler(f.logs, nil)),
		Clock:           fixtureClock{f},
	}
	for _, opt := range opts {
		opt(f, &cfg)
	}
	f.service = NewService(cfg)
	return f
}

type fixtureClock struct{ f *fixture }

func (c fixtureClock) CurrentServerTimestamp(context.Context) (time.Time, error) {
	if c.f.clockErr != nil {
		return time.Time{}, c.f.clockErr
	}
	return c.f.now, nil
}

var adminCaller = Caller{ID: "admin-uid", Role: RoleAdmin}
