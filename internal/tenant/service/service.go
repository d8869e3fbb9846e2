// Package service orchestrates tenant, entity and role-assignment management
// and serves as the directory the compliance engines consult.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"obligo/internal/compliance/ports"
	"obligo/internal/tenant/metrics"
	"obligo/internal/tenant/models"
	"obligo/internal/tenant/secrets"
	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/platform/sentinel"
	"obligo/pkg/requestcontext"
)

type TenantStore interface {
	Create(ctx context.Context, t *models.Tenant) error
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	List(ctx context.Context) ([]*models.Tenant, error)
	ListActiveIDs(ctx context.Context) ([]id.TenantID, error)
	Update(ctx context.Context, t *models.Tenant) error
}

type EntityStore interface {
	Create(ctx context.Context, e *models.Entity) error
	FindByID(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Entity, error)
	ListActiveByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Entity, error)
	Update(ctx context.Context, e *models.Entity) error
}

type RoleStore interface {
	Upsert(ctx context.Context, r *models.RoleAssignment) error
	Find(ctx context.Context, tenantID id.TenantID, roleCode string) (*models.RoleAssignment, error)
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.RoleAssignment, error)
	Delete(ctx context.Context, tenantID id.TenantID, roleCode string) error
}

// InstancePurger removes a tenant's compliance data. Only the explicit
// offboarding operation calls it; nothing cascades here implicitly.
type InstancePurger interface {
	PurgeTenant(ctx context.Context, tenantID id.TenantID) (int, error)
}

// Service manages the tenant directory.
type Service struct {
	tenants  TenantStore
	entities EntityStore
	roles    RoleStore
	purger   InstancePurger

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With("component", "tenant")
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithInstancePurger(purger InstancePurger) Option {
	return func(s *Service) {
		s.purger = purger
	}
}

// New constructs a Service.
func New(tenants TenantStore, entities EntityStore, roles RoleStore, opts ...Option) *Service {
	s := &Service{
		tenants:  tenants,
		entities: entities,
		roles:    roles,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTenant provisions a tenant and issues its API secret. The plaintext
// secret is returned exactly once.
func (s *Service) CreateTenant(ctx context.Context, name string) (*models.Tenant, string, error) {
	t, err := models.NewTenant(id.NewTenantID(), name, requestcontext.Now(ctx))
	if err != nil {
		return nil, "", err
	}

	secret, err := secrets.Generate()
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue tenant secret")
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash tenant secret")
	}
	t.SecretHash = hash

	if err := s.tenants.Create(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, "", dErrors.New(dErrors.CodeConflict, "tenant name must be unique")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
	}

	s.metrics.IncTenantCreated()
	s.logger.InfoContext(ctx, "tenant created", "tenant_id", t.ID, "name", t.Name)
	return t, secret, nil
}

// GetTenant loads one tenant.
func (s *Service) GetTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}
	return t, nil
}

// ListTenants returns all tenants.
func (s *Service) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	return s.tenants.List(ctx)
}

// DeactivateTenant suspends scheduled processing for a tenant.
func (s *Service) DeactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	return s.transitionTenant(ctx, tenantID,
		func(t *models.Tenant) error { return t.CanDeactivate() },
		(*models.Tenant).ApplyDeactivation)
}

// ReactivateTenant resumes scheduled processing for a tenant.
func (s *Service) ReactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	return s.transitionTenant(ctx, tenantID,
		func(t *models.Tenant) error { return t.CanReactivate() },
		(*models.Tenant).ApplyReactivation)
}

func (s *Service) transitionTenant(ctx context.Context, tenantID id.TenantID, check func(*models.Tenant) error, apply func(*models.Tenant, time.Time)) (*models.Tenant, error) {
	t, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := check(t); err != nil {
		return nil, err
	}
	apply(t, requestcontext.Now(ctx))
	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tenant")
	}
	return t, nil
}

// RotateSecret issues a fresh API secret for the tenant, invalidating the old
// one.
func (s *Service) RotateSecret(ctx context.Context, tenantID id.TenantID) (string, error) {
	t, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}

	secret, err := secrets.Generate()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue tenant secret")
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash tenant secret")
	}

	t.SecretHash = hash
	t.UpdatedAt = requestcontext.Now(ctx)
	if err := s.tenants.Update(ctx, t); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tenant")
	}
	return secret, nil
}

// VerifySecret checks a tenant API secret. Inactive tenants always fail.
func (s *Service) VerifySecret(ctx context.Context, tenantID id.TenantID, secret string) error {
	t, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if !t.IsActive() {
		s.metrics.IncSecretCheck("rejected")
		return dErrors.New(dErrors.CodeForbidden, "tenant is inactive")
	}
	if err := secrets.Verify(secret, t.SecretHash); err != nil {
		s.metrics.IncSecretCheck("rejected")
		return err
	}
	s.metrics.IncSecretCheck("ok")
	return nil
}

// CreateEntity adds a legal entity under an active tenant.
func (s *Service) CreateEntity(ctx context.Context, tenantID id.TenantID, name string) (*models.Entity, error) {
	t, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot add entities to an inactive tenant")
	}

	e, err := models.NewEntity(id.NewEntityID(), tenantID, name, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.entities.Create(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create entity")
	}

	s.metrics.IncEntityCreated()
	s.logger.InfoContext(ctx, "entity created", "tenant_id", tenantID, "entity_id", e.ID)
	return e, nil
}

// ListEntities returns all of a tenant's entities.
func (s *Service) ListEntities(ctx context.Context, tenantID id.TenantID) ([]*models.Entity, error) {
	return s.entities.ListByTenant(ctx, tenantID)
}

// DeactivateEntity removes an entity from generation fan-out.
func (s *Service) DeactivateEntity(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	return s.transitionEntity(ctx, entityID,
		func(e *models.Entity) error { return e.CanDeactivate() },
		(*models.Entity).ApplyDeactivation)
}

// ReactivateEntity re-includes an entity in generation fan-out.
func (s *Service) ReactivateEntity(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	return s.transitionEntity(ctx, entityID,
		func(e *models.Entity) error { return e.CanReactivate() },
		(*models.Entity).ApplyReactivation)
}

func (s *Service) transitionEntity(ctx context.Context, entityID id.EntityID, check func(*models.Entity) error, apply func(*models.Entity, time.Time)) (*models.Entity, error) {
	e, err := s.entities.FindByID(ctx, entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "entity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}
	if err := check(e); err != nil {
		return nil, err
	}
	apply(e, requestcontext.Now(ctx))
	if err := s.entities.Update(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update entity")
	}
	return e, nil
}

// AssignRole maps a role code to a default user for a tenant, replacing any
// previous mapping.
func (s *Service) AssignRole(ctx context.Context, tenantID id.TenantID, roleCode string, userID id.UserID) (*models.RoleAssignment, error) {
	if _, err := s.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	r, err := models.NewRoleAssignment(tenantID, roleCode, userID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.roles.Upsert(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign role")
	}
	s.metrics.IncRoleUpsert()
	return r, nil
}

// UnassignRole removes a role mapping.
func (s *Service) UnassignRole(ctx context.Context, tenantID id.TenantID, roleCode string) error {
	if err := s.roles.Delete(ctx, tenantID, roleCode); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "role assignment not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unassign role")
	}
	return nil
}

// ListRoles returns a tenant's role assignments.
func (s *Service) ListRoles(ctx context.Context, tenantID id.TenantID) ([]*models.RoleAssignment, error) {
	return s.roles.ListByTenant(ctx, tenantID)
}

// DeleteTenantData purges a tenant's compliance data after offboarding. The
// tenant must already be inactive; the directory records themselves stay for
// audit continuity.
func (s *Service) DeleteTenantData(ctx context.Context, tenantID id.TenantID) (int, error) {
	if s.purger == nil {
		return 0, dErrors.New(dErrors.CodeUnavailable, "data purge is not configured")
	}
	t, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if t.IsActive() {
		return 0, dErrors.New(dErrors.CodeInvariantViolation, "deactivate the tenant before purging its data")
	}

	removed, err := s.purger.PurgeTenant(ctx, tenantID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge tenant data")
	}
	s.logger.InfoContext(ctx, "tenant data purged", "tenant_id", tenantID, "instances_removed", removed)
	return removed, nil
}

// Directory implementation for the compliance engines.

// ListActiveTenantIDs returns the tenants scheduled engines should process.
func (s *Service) ListActiveTenantIDs(ctx context.Context) ([]id.TenantID, error) {
	return s.tenants.ListActiveIDs(ctx)
}

// ListActiveEntities returns a tenant's active entities as directory refs.
func (s *Service) ListActiveEntities(ctx context.Context, tenantID id.TenantID) ([]ports.EntityRef, error) {
	entities, err := s.entities.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	refs := make([]ports.EntityRef, 0, len(entities))
	for _, e := range entities {
		refs = append(refs, ports.EntityRef{ID: e.ID, TenantID: e.TenantID, Name: e.Name})
	}
	return refs, nil
}

// ResolveRole maps a role code to its assigned user. sentinel.ErrNotFound when
// the tenant has no mapping; callers treat that as non-fatal.
func (s *Service) ResolveRole(ctx context.Context, tenantID id.TenantID, roleCode string) (id.UserID, error) {
	r, err := s.roles.Find(ctx, tenantID, roleCode)
	if err != nil {
		return id.UserID{}, err
	}
	return r.UserID, nil
}
