package provisioning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-provision/internal/shared"
)

// Operation names used in logs and metrics.
const (
	OpCreateManagedUser     = "create_managed_user"
	OpBootstrapInitialAdmin = "bootstrap_initial_admin"
	OpUpdateUserRole        = "update_user_role"
)

// State is a step of the provisioning sequence.
type State string

const (
	StateValidating        State = "validating"
	StateBootstrapChecking State = "bootstrap_checking"
	StateResolving         State = "resolving"
	StateClaimAssigning    State = "claim_assigning"
	StateDirectoryWriting  State = "directory_writing"
	StateAuditLogging      State = "audit_logging"
	StateSucceeded         State = "succeeded"
)

// ServiceConfig collects the collaborators of the orchestrator.
type ServiceConfig struct {
	Identities       IdentityProvider
	Directory        DirectoryStore
	Audit            AuditStore
	AuditRetrier     AuditRetrier
	BootstrapSecret  string
	BootstrapLocker  Locker
	BootstrapLockTTL time.Duration
	Metrics          MetricsRecorder
	Logger           *slog.Logger
	Clock            Clock
	NewEventID       func() string
}

// Service sequences validation, identity resolution, claim assignment,
// directory write and audit logging. The stores share no transaction, so a
// failure after Resolving leaves earlier steps committed and is logged as a
// partial provisioning.
type Service struct {
	validator *Validator
	resolver  *IdentityResolver
	claims    *ClaimAssigner
	directory *DirectoryWriter
	audit     *AuditLogger
	guard     *BootstrapGuard
	metrics   MetricsRecorder
	logger    *slog.Logger
	clock     Clock
	newID     func() string
}

// NewService wires the orchestrator.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}
	newID := cfg.NewEventID
	if newID == nil {
		newID = shared.NewID
	}
	return &Service{
		validator: NewValidator(),
		resolver:  NewIdentityResolver(cfg.Identities),
		claims:    NewClaimAssigner(cfg.Identities),
		directory: NewDirectoryWriter(cfg.Directory),
		audit:     NewAuditLogger(cfg.Audit, cfg.AuditRetrier, logger),
		guard:     NewBootstrapGuard(cfg.BootstrapSecret, cfg.Directory, cfg.BootstrapLocker, cfg.BootstrapLockTTL),
		metrics:   cfg.Metrics,
		logger:    logger,
		clock:     clock,
		newID:     newID,
	}
}

type run struct {
	op          string
	state       State
	identityID  string
	email       string
	committed   []State
	at          time.Time
	auditFailed bool
}

func (r *run) enter(state State) { r.state = state }

func (r *run) commit() { r.committed = append(r.committed, r.state) }

// CreateManagedUser provisions a staff user on behalf of an admin caller. An
// existing identity for the email is re-enabled and renamed, keeping its
// credential.
func (s *Service) CreateManagedUser(ctx context.Context, caller Caller, in Input) (Result, error) {
	start := time.Now()
	r := &run{op: OpCreateManagedUser, state: StateValidating}
	res, err := s.createManagedUser(ctx, r, caller, in)
	return s.finish(r, start, res, err)
}

func (s *Service) createManagedUser(ctx context.Context, r *run, caller Caller, in Input) (Result, error) {
	if err := requireAdmin(caller); err != nil {
		return Result{}, err
	}
	req, err := s.validator.Validate(in)
	if err != nil {
		return Result{}, err
	}
	r.email = req.Email
	if err := ctx.Err(); err != nil {
		return Result{}, internalError(err)
	}
	ctx = context.WithoutCancel(ctx)

	resolution, err := s.provision(ctx, r, req, RoleStaff, caller.ID, ResolveCreateOrSync)
	if err != nil {
		return Result{}, err
	}
	eventType := EventUserCreated
	if !resolution.Created {
		eventType = EventUserSynced
	}
	s.appendAudit(ctx, r, AuditEvent{
		Type:        eventType,
		ActorID:     caller.ID,
		TargetID:    resolution.Identity.ID,
		TargetEmail: req.Email,
		Modules:     req.Modules,
	})
	return Result{Success: true, IdentityID: resolution.Identity.ID, Email: req.Email, Created: resolution.Created}, nil
}

// BootstrapCreateInitialAdministrator creates the first administrator. It
// requires the bootstrap secret and an empty admin directory; requested
// modules are replaced by the full catalog.
func (s *Service) BootstrapCreateInitialAdministrator(ctx context.Context, secret string, in Input) (Result, error) {
	start := time.Now()
	r := &run{op: OpBootstrapInitialAdmin, state: StateValidating}
	res, err := s.bootstrap(ctx, r, secret, in)
	return s.finish(r, start, res, err)
}

func (s *Service) bootstrap(ctx context.Context, r *run, secret string, in Input) (Result, error) {
	in.Modules = ModuleStrings(Catalog())
	req, err := s.validator.Validate(in)
	if err != nil {
		return Result{}, err
	}
	r.email = req.Email

	r.enter(StateBootstrapChecking)
	if err := s.guard.AssertNoAdmin(ctx); err != nil {
		return Result{}, err
	}
	if err := s.guard.AssertSecret(secret); err != nil {
		return Result{}, err
	}
	release, err := s.guard.Acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		s.releaseLock(release)
		return Result{}, internalError(err)
	}
	ctx = context.WithoutCancel(ctx)

	resolution, err := s.provision(ctx, r, req, RoleAdmin, ActorBootstrap, ResolveCreateOnly)
	if err != nil {
		if len(r.committed) == 0 {
			s.releaseLock(release)
		}
		return Result{}, err
	}
	s.appendAudit(ctx, r, AuditEvent{
		Type:        EventInitialAdminCreated,
		ActorID:     ActorBootstrap,
		TargetID:    resolution.Identity.ID,
		TargetEmail: req.Email,
		Modules:     Catalog(),
	})
	return Result{Success: true, IdentityID: resolution.Identity.ID, Email: req.Email, Created: true}, nil
}

// UpdateUserRole changes the role, active flag and modules of an existing
// user with a merge write on the directory record.
func (s *Service) UpdateUserRole(ctx context.Context, caller Caller, in RoleUpdateInput) (Result, error) {
	start := time.Now()
	r := &run{op: OpUpdateUserRole, state: StateValidating}
	res, err := s.updateUserRole(ctx, r, caller, in)
	return s.finish(r, start, res, err)
}

func (s *Service) updateUserRole(ctx context.Context, r *run, caller Caller, in RoleUpdateInput) (Result, error) {
	if err := requireAdmin(caller); err != nil {
		return Result{}, err
	}
	update, err := s.validator.ValidateRoleUpdate(in)
	if err != nil {
		return Result{}, err
	}
	r.email = update.Email

	r.enter(StateResolving)
	identity, err := s.resolver.Lookup(ctx, update.Email)
	if err != nil {
		return Result{}, err
	}
	r.identityID = identity.ID
	ctx = context.WithoutCancel(ctx)

	r.enter(StateClaimAssigning)
	if err := s.claims.Assign(ctx, identity.ID, update.Role); err != nil {
		return Result{}, err
	}
	r.commit()

	r.enter(StateDirectoryWriting)
	if err := s.stamp(ctx, r); err != nil {
		return Result{}, err
	}
	displayName := identity.DisplayName
	if displayName == "" {
		displayName = update.Email
	}
	if err := s.directory.Merge(ctx, RoleAssignment{
		IdentityID:  identity.ID,
		Email:       update.Email,
		DisplayName: displayName,
		Role:        update.Role,
		Active:      update.Active,
		Modules:     update.Modules,
		Actor:       caller.ID,
		At:          r.at,
	}); err != nil {
		return Result{}, err
	}
	r.commit()

	active := update.Active
	s.appendAudit(ctx, r, AuditEvent{
		Type:        EventUserRoleUpdated,
		ActorID:     caller.ID,
		TargetID:    identity.ID,
		TargetEmail: update.Email,
		Modules:     update.Modules,
		Role:        update.Role,
		Active:      &active,
	})
	return Result{Success: true, IdentityID: identity.ID, Email: update.Email}, nil
}

// provision runs Resolving, ClaimAssigning and DirectoryWriting in order.
func (s *Service) provision(ctx context.Context, r *run, req Request, role Role, actor string, mode ResolveMode) (Resolution, error) {
	r.enter(StateResolving)
	resolution, err := s.resolver.Resolve(ctx, req, mode)
	if err != nil {
		return Resolution{}, err
	}
	r.identityID = resolution.Identity.ID
	r.commit()

	r.enter(StateClaimAssigning)
	if err := s.claims.Assign(ctx, resolution.Identity.ID, role); err != nil {
		return Resolution{}, err
	}
	r.commit()

	r.enter(StateDirectoryWriting)
	if err := s.stamp(ctx, r); err != nil {
		return Resolution{}, err
	}
	if err := s.directory.Replace(ctx, Profile{
		IdentityID:  resolution.Identity.ID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        role,
		Modules:     req.Modules,
		Actor:       actor,
		At:          r.at,
	}); err != nil {
		return Resolution{}, err
	}
	r.commit()
	return resolution, nil
}

// appendAudit awaits the audit append. A failure is logged by the
// AuditLogger and does not change the outcome.
func (s *Service) appendAudit(ctx context.Context, r *run, event AuditEvent) {
	r.enter(StateAuditLogging)
	event.ID = s.newID()
	event.OccurredAt = r.at
	if err := s.audit.Append(ctx, event); err != nil {
		r.auditFailed = true
		return
	}
	r.commit()
}

// stamp reads the server timestamp shared by the directory write and the
// audit event of one run.
func (s *Service) stamp(ctx context.Context, r *run) error {
	at, err := s.clock.CurrentServerTimestamp(ctx)
	if err != nil {
		return internalError(fmt.Errorf("server timestamp: %w", err))
	}
	r.at = at.UTC()
	return nil
}

func (s *Service) releaseLock(release func(context.Context) error) {
	if err := release(context.Background()); err != nil {
		s.logger.Warn("release bootstrap lock", slog.Any("error", err))
	}
}

func (s *Service) finish(r *run, start time.Time, res Result, err error) (Result, error) {
	elapsed := time.Since(start)
	if err == nil {
		r.enter(StateSucceeded)
		s.logger.Info("provisioning succeeded",
			slog.String("operation", r.op),
			slog.String("identity_id", res.IdentityID),
			slog.String("email", res.Email),
			slog.Bool("created", res.Created),
			slog.Bool("audit_recorded", !r.auditFailed),
		)
		s.observe(r.op, "success", elapsed)
		return res, nil
	}

	perr := AsError(err)
	perr.State = r.state
	attrs := []any{
		slog.String("operation", r.op),
		slog.String("state", string(r.state)),
		slog.String("category", string(perr.Category)),
		slog.String("email", r.email),
		slog.Any("error", err),
	}
	if r.identityID != "" {
		attrs = append(attrs, slog.String("identity_id", r.identityID))
	}
	switch {
	case len(r.committed) > 0:
		attrs = append(attrs, slog.Bool("partial", true), slog.String("committed", fmt.Sprint(r.committed)))
		s.logger.Error("provisioning partially applied", attrs...)
	case perr.Category == CategoryInternal:
		s.logger.Error("provisioning failed", attrs...)
	default:
		s.logger.Warn("provisioning rejected", attrs...)
	}
	s.observe(r.op, string(perr.Category), elapsed)
	return Result{}, perr
}

func (s *Service) observe(op, outcome string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveProvisioning(op, outcome, elapsed)
	}
}

func requireAdmin(c Caller) error {
	if !c.Authenticated() {
		return permissionError(MsgUnauthenticated)
	}
	if c.Role != RoleAdmin {
		return permissionError(MsgAdminRequired)
	}
	return nil
}
