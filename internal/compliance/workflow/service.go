// Package workflow applies user-driven status transitions to instances.
// The transition graph lives on the models; this service adds tenant scoping,
// optimistic concurrency and auditing.
package workflow

import (
	"context"
	"errors"
	"log/slog"

	"obligo/internal/audit"
	"obligo/internal/compliance/metrics"
	"obligo/internal/compliance/models"
	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/platform/sentinel"
	"obligo/pkg/requestcontext"
)

type InstanceStore interface {
	FindByID(ctx context.Context, instanceID id.InstanceID) (*models.Instance, error)
	UpdateCAS(ctx context.Context, inst *models.Instance, expectedVersion int64) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Instance, error)
}

type TaskStore interface {
	ListByInstance(ctx context.Context, instanceID id.InstanceID) ([]*models.WorkflowTask, error)
	UpdateStatus(ctx context.Context, taskID id.TaskID, status models.TaskStatus) error
}

// Service handles the manual side of the instance lifecycle.
type Service struct {
	instances InstanceStore
	tasks     TaskStore

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With("component", "workflow")
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// New constructs a Service.
func New(instances InstanceStore, tasks TaskStore, opts ...Option) *Service {
	s := &Service{
		instances: instances,
		tasks:     tasks,
		logger:    slog.Default(),
		audit:     audit.NopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns one instance within the caller's tenant.
func (s *Service) Get(ctx context.Context, instanceID id.InstanceID) (*models.Instance, error) {
	return s.findScoped(ctx, instanceID)
}

// List returns the caller's tenant instances.
func (s *Service) List(ctx context.Context) ([]*models.Instance, error) {
	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing tenant scope")
	}
	return s.instances.ListByTenant(ctx, tenantID)
}

// Transition moves an instance along the manual workflow graph. Transitions
// into Blocked record the prior status; everything else follows the graph.
func (s *Service) Transition(ctx context.Context, instanceID id.InstanceID, to models.Status) (*models.Instance, error) {
	inst, err := s.findScoped(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if err := inst.CanTransition(to); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	fromStatus, fromRAG := inst.Status, inst.RAG
	expected := inst.Version

	if to == models.StatusBlocked {
		inst.ApplyBlock(now)
	} else {
		inst.ApplyTransition(to, now)
	}

	if err := s.persist(ctx, inst, expected); err != nil {
		return nil, err
	}
	s.emit(ctx, inst, fromStatus, fromRAG)
	return inst, nil
}

// Release moves a Blocked instance back to its recorded prior status. This is
// the only way out of Blocked.
func (s *Service) Release(ctx context.Context, instanceID id.InstanceID) (*models.Instance, error) {
	inst, err := s.findScoped(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if err := inst.CanRelease(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	fromStatus, fromRAG := inst.Status, inst.RAG
	expected := inst.Version
	inst.ApplyRelease(now)
	inst.BlockedBy = nil

	if err := s.persist(ctx, inst, expected); err != nil {
		return nil, err
	}
	s.emit(ctx, inst, fromStatus, fromRAG)
	return inst, nil
}

// ListTasks returns an instance's workflow tasks in sequence order.
func (s *Service) ListTasks(ctx context.Context, instanceID id.InstanceID) ([]*models.WorkflowTask, error) {
	if _, err := s.findScoped(ctx, instanceID); err != nil {
		return nil, err
	}
	return s.tasks.ListByInstance(ctx, instanceID)
}

// CompleteTask marks one workflow task done or skipped.
func (s *Service) CompleteTask(ctx context.Context, instanceID id.InstanceID, taskID id.TaskID, status models.TaskStatus) error {
	switch status {
	case models.TaskDone, models.TaskSkipped:
	default:
		return dErrors.Newf(dErrors.CodeBadRequest, "cannot move task to %q", status)
	}
	if _, err := s.findScoped(ctx, instanceID); err != nil {
		return err
	}
	if err := s.tasks.UpdateStatus(ctx, taskID, status); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "task not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update task")
	}
	return nil
}

// findScoped loads the instance and hides rows outside the caller's tenant.
// An empty tenant scope (system jobs) sees everything.
func (s *Service) findScoped(ctx context.Context, instanceID id.InstanceID) (*models.Instance, error) {
	inst, err := s.instances.FindByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "instance not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load instance")
	}
	tenantID := requestcontext.TenantID(ctx)
	if !tenantID.IsNil() && inst.TenantID != tenantID {
		return nil, dErrors.New(dErrors.CodeNotFound, "instance not found")
	}
	return inst, nil
}

func (s *Service) persist(ctx context.Context, inst *models.Instance, expected int64) error {
	if err := s.instances.UpdateCAS(ctx, inst, expected); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncCASConflict("workflow")
			return dErrors.New(dErrors.CodeConflict, "instance was modified concurrently, retry")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update instance")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, inst *models.Instance, fromStatus models.Status, fromRAG models.RAG) {
	actor := audit.SystemActor
	if userID := requestcontext.UserID(ctx); !userID.IsNil() {
		actor = userID.String()
	}
	s.audit.Emit(ctx, audit.Event{
		OccurredAt: requestcontext.Now(ctx),
		TenantID:   inst.TenantID,
		InstanceID: inst.ID,
		Actor:      actor,
		Action:     audit.ActionManual,
		FromStatus: fromStatus,
		ToStatus:   inst.Status,
		FromRAG:    fromRAG,
		ToRAG:      inst.RAG,
		RequestID:  requestcontext.RequestID(ctx),
	})
}
