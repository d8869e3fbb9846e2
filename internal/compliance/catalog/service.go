// Package catalog manages the master templates that drive generation.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"obligo/internal/compliance/models"
	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/platform/sentinel"
	"obligo/pkg/requestcontext"
)

// MasterStore is the persistence surface the catalog needs.
type MasterStore interface {
	Create(ctx context.Context, m *models.Master) error
	FindByID(ctx context.Context, masterID id.MasterID) (*models.Master, error)
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Master, error)
	Update(ctx context.Context, m *models.Master) error
}

// Service exposes master template management.
type Service struct {
	masters MasterStore
	logger  *slog.Logger
}

// Option configures optional service dependencies.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New constructs the catalog service.
func New(masters MasterStore, opts ...Option) *Service {
	s := &Service{
		masters: masters,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateMasterParams carries the fields of a new master template. A nil
// TenantID creates a global template applying to every tenant.
type CreateMasterParams struct {
	TenantID        *id.TenantID
	Code            string
	Category        string
	Frequency       models.Frequency
	Rule            models.RuleDescriptor
	DependencyCodes []string
	WorkflowSteps   []string
}

// CreateMaster validates and persists a new master template.
func (s *Service) CreateMaster(ctx context.Context, p CreateMasterParams) (*models.Master, error) {
	now := requestcontext.Now(ctx)

	m, err := models.NewMaster(id.NewMasterID(), p.TenantID, p.Code, p.Category, p.Frequency, p.Rule, now)
	if err != nil {
		return nil, err
	}
	m.DependencyCodes = p.DependencyCodes
	m.WorkflowSteps = p.WorkflowSteps

	if err := s.masters.Create(ctx, m); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "master code %q already exists in this scope", m.Code)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create master")
	}

	s.logger.InfoContext(ctx, "master created",
		"master_id", m.ID,
		"code", m.Code,
		"frequency", m.Frequency,
		"global", m.IsGlobal(),
	)
	return m, nil
}

// GetMaster fetches a single master template.
func (s *Service) GetMaster(ctx context.Context, masterID id.MasterID) (*models.Master, error) {
	m, err := s.masters.FindByID(ctx, masterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "master not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find master")
	}
	return m, nil
}

// ListMasters lists the templates visible to a tenant, global ones included.
func (s *Service) ListMasters(ctx context.Context, tenantID id.TenantID) ([]*models.Master, error) {
	masters, err := s.masters.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list masters")
	}
	return masters, nil
}

// DeactivateMaster stops generation for a master. Existing instances keep
// their lifecycle.
func (s *Service) DeactivateMaster(ctx context.Context, masterID id.MasterID) (*models.Master, error) {
	return s.transition(ctx, masterID,
		(*models.Master).CanDeactivate,
		(*models.Master).ApplyDeactivation,
	)
}

// ReactivateMaster resumes generation for a master.
func (s *Service) ReactivateMaster(ctx context.Context, masterID id.MasterID) (*models.Master, error) {
	return s.transition(ctx, masterID,
		(*models.Master).CanReactivate,
		(*models.Master).ApplyReactivation,
	)
}

func (s *Service) transition(ctx context.Context, masterID id.MasterID, check func(*models.Master) error, apply func(*models.Master, time.Time)) (*models.Master, error) {
	m, err := s.GetMaster(ctx, masterID)
	if err != nil {
		return nil, err
	}
	if err := check(m); err != nil {
		return nil, err
	}
	apply(m, requestcontext.Now(ctx))
	if err := s.masters.Update(ctx, m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update master")
	}
	return m, nil
}
