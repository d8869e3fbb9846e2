// Package dependency propagates blocking state along instance dependency
// chains.
//
// An instance with a non-terminal blocker is forced into Blocked; when the
// blocker reaches a terminal status the dependent is released back to its
// recorded prior status. Chains are walked with a visited set bounded by the
// tenant's instance count, so a cyclic chain is detected and rejected whole
// with no partial writes.
package dependency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"obligo/internal/audit"
	"obligo/internal/compliance/metrics"
	"obligo/internal/compliance/models"
	"obligo/internal/compliance/ports"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
	"obligo/pkg/requestcontext"
)

type InstanceStore interface {
	ListWithBlockingRef(ctx context.Context, tenantID id.TenantID) ([]*models.Instance, error)
	FindByID(ctx context.Context, instanceID id.InstanceID) (*models.Instance, error)
	UpdateCAS(ctx context.Context, inst *models.Instance, expectedVersion int64) error
	CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error)
}

// CyclicDependencyError reports a dependency chain that loops back on itself.
// No instance in the chain is modified.
type CyclicDependencyError struct {
	Chain []id.InstanceID
}

func (e *CyclicDependencyError) Error() string {
	ids := make([]string, len(e.Chain))
	for i, instanceID := range e.Chain {
		ids[i] = instanceID.String()
	}
	return fmt.Sprintf("cyclic dependency chain: %s", strings.Join(ids, " -> "))
}

// Summary reports one resolution pass.
type Summary struct {
	Examined  int `json:"examined"`
	Blocked   int `json:"blocked"`
	Released  int `json:"released"`
	Cycles    int `json:"cycles"`
	Conflicts int `json:"conflicts"`
	Failed    int `json:"failed"`
}

// Resolver walks blocking references tenant by tenant.
type Resolver struct {
	instances InstanceStore
	directory ports.Directory

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
	tracer  trace.Tracer
}

type Option func(r *Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger.With("component", "dependency")
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(r *Resolver) {
		r.audit = publisher
	}
}

// New constructs a Resolver.
func New(instances InstanceStore, directory ports.Directory, opts ...Option) *Resolver {
	r := &Resolver{
		instances: instances,
		directory: directory,
		logger:    slog.Default(),
		audit:     audit.NopPublisher{},
		tracer:    otel.Tracer("obligo/dependency"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run resolves blocking state for every instance carrying a blocking
// reference, across all active tenants.
func (r *Resolver) Run(ctx context.Context) (*Summary, error) {
	ctx, span := r.tracer.Start(ctx, "dependency.run")
	defer span.End()

	now := requestcontext.Now(ctx)
	started := time.Now()
	summary := &Summary{}

	tenantIDs, err := r.directory.ListActiveTenantIDs(ctx)
	if err != nil {
		return nil, err
	}

	for _, tenantID := range tenantIDs {
		if err := r.resolveTenant(ctx, tenantID, now, summary); err != nil {
			summary.Failed++
			r.logger.ErrorContext(ctx, "tenant resolution failed", "tenant_id", tenantID, "error", err)
		}
	}
	r.metrics.ObserveRun("dependency-resolve", time.Since(started))

	r.logger.InfoContext(ctx, "dependency pass finished",
		"examined", summary.Examined,
		"blocked", summary.Blocked,
		"released", summary.Released,
		"cycles", summary.Cycles,
		"conflicts", summary.Conflicts,
	)
	return summary, nil
}

func (r *Resolver) resolveTenant(ctx context.Context, tenantID id.TenantID, now time.Time, summary *Summary) error {
	dependents, err := r.instances.ListWithBlockingRef(ctx, tenantID)
	if err != nil {
		return err
	}
	if len(dependents) == 0 {
		return nil
	}

	// The walk bound: any acyclic chain is shorter than the tenant's total
	// instance count.
	bound, err := r.instances.CountByTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	for _, inst := range dependents {
		summary.Examined++
		if inst.IsTerminal() {
			continue
		}

		if cycleErr := r.checkChain(ctx, inst, bound); cycleErr != nil {
			summary.Cycles++
			r.metrics.IncDependencyOutcome("cycle")
			r.logger.WarnContext(ctx, "dependency cycle rejected",
				"instance_id", inst.ID,
				"error", cycleErr,
			)
			continue
		}

		blocker, err := r.instances.FindByID(ctx, *inst.BlockedBy)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Dangling ref, nothing to hold the dependent on.
				r.release(ctx, inst, now, summary)
				continue
			}
			summary.Failed++
			r.logger.ErrorContext(ctx, "blocker lookup failed", "instance_id", inst.ID, "error", err)
			continue
		}

		switch {
		case blocker.IsTerminal() && inst.Status == models.StatusBlocked:
			r.release(ctx, inst, now, summary)
		case !blocker.IsTerminal() && inst.Status != models.StatusBlocked:
			r.block(ctx, inst, now, summary)
		}
	}
	return nil
}

// checkChain follows blocking references from inst. It returns a
// *CyclicDependencyError when the walk revisits an instance or exceeds the
// tenant bound; the caller must then leave the whole chain untouched.
func (r *Resolver) checkChain(ctx context.Context, inst *models.Instance, bound int) error {
	visited := make(map[id.InstanceID]bool)
	chain := []id.InstanceID{inst.ID}
	visited[inst.ID] = true

	current := inst
	for steps := 0; current.BlockedBy != nil; steps++ {
		if steps > bound {
			return &CyclicDependencyError{Chain: chain}
		}
		nextID := *current.BlockedBy
		if visited[nextID] {
			return &CyclicDependencyError{Chain: append(chain, nextID)}
		}
		next, err := r.instances.FindByID(ctx, nextID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return err
		}
		visited[nextID] = true
		chain = append(chain, nextID)
		current = next
	}
	return nil
}

func (r *Resolver) block(ctx context.Context, inst *models.Instance, now time.Time, summary *Summary) {
	if err := inst.CanBlock(); err != nil {
		return
	}

	fromStatus, fromRAG := inst.Status, inst.RAG
	expected := inst.Version
	inst.ApplyBlock(now)

	if err := r.instances.UpdateCAS(ctx, inst, expected); err != nil {
		r.recordWriteFailure(ctx, inst, err, summary)
		return
	}

	summary.Blocked++
	r.metrics.IncDependencyOutcome("blocked")
	r.emit(ctx, inst, audit.ActionBlocked, fromStatus, fromRAG, now)
}

func (r *Resolver) release(ctx context.Context, inst *models.Instance, now time.Time, summary *Summary) {
	if err := inst.CanRelease(); err != nil {
		return
	}

	fromStatus, fromRAG := inst.Status, inst.RAG
	expected := inst.Version
	inst.ApplyRelease(now)
	inst.BlockedBy = nil

	if err := r.instances.UpdateCAS(ctx, inst, expected); err != nil {
		r.recordWriteFailure(ctx, inst, err, summary)
		return
	}

	summary.Released++
	r.metrics.IncDependencyOutcome("released")
	r.emit(ctx, inst, audit.ActionReleased, fromStatus, fromRAG, now)
}

func (r *Resolver) recordWriteFailure(ctx context.Context, inst *models.Instance, err error, summary *Summary) {
	if errors.Is(err, sentinel.ErrConflict) {
		summary.Conflicts++
		r.metrics.IncCASConflict("dependency")
		return
	}
	summary.Failed++
	r.logger.ErrorContext(ctx, "dependency update failed", "instance_id", inst.ID, "error", err)
}

func (r *Resolver) emit(ctx context.Context, inst *models.Instance, action audit.Action, fromStatus models.Status, fromRAG models.RAG, now time.Time) {
	r.audit.Emit(ctx, audit.Event{
		OccurredAt: now,
		TenantID:   inst.TenantID,
		InstanceID: inst.ID,
		Actor:      audit.SystemActor,
		Action:     action,
		FromStatus: fromStatus,
		ToStatus:   inst.Status,
		FromRAG:    fromRAG,
		ToRAG:      inst.RAG,
		RequestID:  requestcontext.RequestID(ctx),
	})
}
