// Package ragengine recomputes the Red/Amber/Green indicator of open
// instances against the injected clock.
//
// Recompute is pure; Engine.Run applies it across tenants with per-row
// compare-and-set writes. A lost race is skipped, never retried in place: the
// winning writer saw fresher state and the next scheduled pass converges.
package ragengine

import (
	"context"
	"errors"
	"log/slog"
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
	ListNonTerminalByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Instance, error)
	UpdateCAS(ctx context.Context, inst *models.Instance, expectedVersion int64) error
}

// Recompute derives the RAG color for an instance snapshot. Terminal statuses
// keep their color; Blocked is always Red; otherwise the color follows
// calendar days until the due date against the amber threshold. Instances
// without a due date stay Green until one is supplied.
func Recompute(status models.Status, rag models.RAG, dueDate *time.Time, now time.Time, tAmber int) models.RAG {
	if status.IsTerminal() {
		return rag
	}
	if status == models.StatusBlocked {
		return models.RAGRed
	}
	if dueDate == nil {
		return models.RAGGreen
	}

	due := dateOf(*dueDate)
	today := dateOf(now)
	if today.After(due) {
		return models.RAGRed
	}
	daysLeft := int(due.Sub(today) / (24 * time.Hour))
	if daysLeft <= tAmber {
		return models.RAGAmber
	}
	return models.RAGGreen
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Summary reports one recomputation sweep.
type Summary struct {
	Examined  int `json:"examined"`
	Updated   int `json:"updated"`
	Conflicts int `json:"conflicts"`
	Failed    int `json:"failed"`
}

// Engine sweeps open instances and persists RAG changes.
type Engine struct {
	instances InstanceStore
	directory ports.Directory
	tAmber    int

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
	tracer  trace.Tracer
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With("component", "ragengine")
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(e *Engine) {
		e.audit = publisher
	}
}

// New constructs an Engine. tAmber is the amber threshold in calendar days;
// non-positive values fall back to the default of 3.
func New(instances InstanceStore, directory ports.Directory, tAmber int, opts ...Option) *Engine {
	if tAmber <= 0 {
		tAmber = 3
	}
	e := &Engine{
		instances: instances,
		directory: directory,
		tAmber:    tAmber,
		logger:    slog.Default(),
		audit:     audit.NopPublisher{},
		tracer:    otel.Tracer("obligo/ragengine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run recomputes RAG for every non-terminal instance of every active tenant.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	ctx, span := e.tracer.Start(ctx, "ragengine.run")
	defer span.End()

	now := requestcontext.Now(ctx)
	started := time.Now()
	summary := &Summary{}

	tenantIDs, err := e.directory.ListActiveTenantIDs(ctx)
	if err != nil {
		return nil, err
	}

	for _, tenantID := range tenantIDs {
		instances, err := e.instances.ListNonTerminalByTenant(ctx, tenantID)
		if err != nil {
			summary.Failed++
			e.logger.ErrorContext(ctx, "tenant sweep failed", "tenant_id", tenantID, "error", err)
			continue
		}
		for _, inst := range instances {
			summary.Examined++
			e.recomputeOne(ctx, inst, now, summary)
		}
	}
	e.metrics.ObserveRun("rag-recalc", time.Since(started))

	e.logger.InfoContext(ctx, "rag sweep finished",
		"examined", summary.Examined,
		"updated", summary.Updated,
		"conflicts", summary.Conflicts,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (e *Engine) recomputeOne(ctx context.Context, inst *models.Instance, now time.Time, summary *Summary) {
	next := Recompute(inst.Status, inst.RAG, inst.DueDate, now, e.tAmber)
	if next == inst.RAG {
		return
	}

	from := inst.RAG
	expected := inst.Version
	inst.RAG = next
	inst.UpdatedAt = now

	if err := e.instances.UpdateCAS(ctx, inst, expected); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			summary.Conflicts++
			e.metrics.IncCASConflict("ragengine")
			return
		}
		summary.Failed++
		e.logger.ErrorContext(ctx, "rag update failed", "instance_id", inst.ID, "error", err)
		return
	}

	summary.Updated++
	e.metrics.IncRAGTransition(string(next))
	e.audit.Emit(ctx, audit.Event{
		OccurredAt: now,
		TenantID:   inst.TenantID,
		InstanceID: inst.ID,
		Actor:      audit.SystemActor,
		Action:     audit.ActionRecompute,
		FromStatus: inst.Status,
		ToStatus:   inst.Status,
		FromRAG:    from,
		ToRAG:      next,
		RequestID:  requestcontext.RequestID(ctx),
	})
}
