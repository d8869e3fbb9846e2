// Package generator materializes period-bound instances from active masters.
//
// Each cadence trigger computes the most recently completed period for "now",
// selects the active masters of the matching frequency and fans out across the
// active entities in scope. Idempotence comes entirely from the storage
// uniqueness constraint on (master, entity, period start): re-running a
// trigger inserts nothing new and reports the duplicates as skips.
package generator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"obligo/internal/audit"
	"obligo/internal/compliance/metrics"
	"obligo/internal/compliance/models"
	"obligo/internal/compliance/ports"
	"obligo/internal/compliance/rule"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/retry"
	"obligo/pkg/platform/sentinel"
	"obligo/pkg/requestcontext"
)

// Trigger names a generation cadence. The scheduler and the manual trigger
// endpoint both address runs by these names.
type Trigger string

const (
	TriggerDaily     Trigger = "daily-generate"
	TriggerQuarterly Trigger = "quarterly-generate"
	TriggerAnnual    Trigger = "annual-generate"
)

// frequency maps the trigger to the master frequency it generates for.
func (t Trigger) frequency() (models.Frequency, bool) {
	switch t {
	case TriggerDaily:
		return models.FrequencyMonthly, true
	case TriggerQuarterly:
		return models.FrequencyQuarterly, true
	case TriggerAnnual:
		return models.FrequencyAnnual, true
	}
	return "", false
}

// Role codes the generator resolves to default owner and approver.
const (
	RolePreparer = "preparer"
	RoleApprover = "approver"
)

type MasterStore interface {
	ListActiveByFrequency(ctx context.Context, freqs ...models.Frequency) ([]*models.Master, error)
	FindByCode(ctx context.Context, tenantID id.TenantID, code string) (*models.Master, error)
}

type InstanceStore interface {
	CreateIfAbsent(ctx context.Context, inst *models.Instance) (bool, error)
	FindByKey(ctx context.Context, masterID id.MasterID, entityID id.EntityID, periodStart time.Time) (*models.Instance, error)
}

type TaskStore interface {
	CreateBatch(ctx context.Context, tasks []*models.WorkflowTask) error
}

// Summary reports one generation run.
type Summary struct {
	Trigger Trigger `json:"trigger"`
	Created int     `json:"created"`
	Skipped int     `json:"skipped"`
	Failed  int     `json:"failed"`
}

// Generator runs cadence-triggered instance generation.
type Generator struct {
	masters   MasterStore
	instances InstanceStore
	tasks     TaskStore
	directory ports.Directory

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
	tracer  trace.Tracer
	retry   retry.Policy
}

type Option func(g *Generator)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger.With("component", "generator")
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(g *Generator) {
		g.audit = publisher
	}
}

func WithRetryPolicy(policy retry.Policy) Option {
	return func(g *Generator) {
		g.retry = policy
	}
}

// New constructs a Generator.
func New(masters MasterStore, instances InstanceStore, tasks TaskStore, directory ports.Directory, opts ...Option) *Generator {
	g := &Generator{
		masters:   masters,
		instances: instances,
		tasks:     tasks,
		directory: directory,
		logger:    slog.Default(),
		audit:     audit.NopPublisher{},
		tracer:    otel.Tracer("obligo/generator"),
		retry:     retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run executes one generation pass for the trigger. "Now" is read from the
// request context so scheduled and manual runs share one clock source.
//
// A failure on one master never aborts the run: invalid rules and exhausted
// retries are counted as failures and the remaining masters proceed.
func (g *Generator) Run(ctx context.Context, trigger Trigger) (*Summary, error) {
	freq, ok := trigger.frequency()
	if !ok {
		return nil, errors.New("unknown generation trigger " + string(trigger))
	}

	ctx, span := g.tracer.Start(ctx, "generator.run",
		trace.WithAttributes(attribute.String("trigger", string(trigger))))
	defer span.End()

	now := requestcontext.Now(ctx)
	started := time.Now()
	summary := &Summary{Trigger: trigger}

	masters, err := g.masters.ListActiveByFrequency(ctx, freq)
	if err != nil {
		return nil, err
	}

	tenantIDs, err := g.directory.ListActiveTenantIDs(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range masters {
		created, skipped, err := g.generateForMaster(ctx, trigger, m, tenantIDs, now)
		summary.Created += created
		summary.Skipped += skipped
		if err != nil {
			summary.Failed++
			g.logger.ErrorContext(ctx, "master generation failed",
				"trigger", trigger,
				"master_code", m.Code,
				"error", err,
			)
			g.metrics.IncGenerated(string(trigger), "failed")
		}
	}
	g.metrics.ObserveRun("generate", time.Since(started))

	g.logger.InfoContext(ctx, "generation run finished",
		"trigger", trigger,
		"created", summary.Created,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// generateForMaster fans one master out across its tenant scope. Tenants run
// concurrently; entity inserts within a tenant run sequentially since each is
// a single idempotent statement.
func (g *Generator) generateForMaster(ctx context.Context, trigger Trigger, m *models.Master, tenantIDs []id.TenantID, now time.Time) (created, skipped int, err error) {
	period, ok := rule.ForFrequency(m.Frequency, m.Rule.FiscalStartMonth, now)
	if !ok {
		// Event-based masters never generate on a cadence.
		return 0, 0, nil
	}

	dueDate, err := rule.Evaluate(m.Rule, period)
	if err != nil {
		var invalid *rule.InvalidRuleError
		if errors.As(err, &invalid) {
			return 0, 0, invalid
		}
		return 0, 0, err
	}

	scope := tenantIDs
	if !m.IsGlobal() {
		scope = []id.TenantID{*m.TenantID}
	}

	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	for _, tenantID := range scope {
		eg.Go(func() error {
			c, s, tErr := g.generateForTenant(ctx, trigger, m, tenantID, period, dueDate, now)
			mu.Lock()
			created += c
			skipped += s
			mu.Unlock()
			return tErr
		})
	}
	if err := eg.Wait(); err != nil {
		return created, skipped, err
	}
	return created, skipped, nil
}

func (g *Generator) generateForTenant(ctx context.Context, trigger Trigger, m *models.Master, tenantID id.TenantID, period models.Period, dueDate, now time.Time) (created, skipped int, err error) {
	entities, err := g.directory.ListActiveEntities(ctx, tenantID)
	if err != nil {
		return 0, 0, err
	}
	if len(entities) == 0 {
		return 0, 0, nil
	}

	ownerID, approverID, needsAssignment := g.resolveAssignees(ctx, tenantID)
	blockerMaster := g.resolveBlockerMaster(ctx, m, tenantID)

	for _, entity := range entities {
		inst := newInstance(m, entity, tenantID, period, dueDate, ownerID, approverID, needsAssignment, now)
		if blockerMaster != nil {
			g.wireBlockingRef(ctx, inst, blockerMaster, now)
		}

		var wasCreated bool
		err := retry.Do(ctx, g.retry, func() error {
			var createErr error
			wasCreated, createErr = g.instances.CreateIfAbsent(ctx, inst)
			return createErr
		})
		if err != nil {
			return created, skipped, err
		}
		if !wasCreated {
			skipped++
			g.metrics.IncGenerated(string(trigger), "skipped")
			continue
		}

		if err := g.createWorkflowTasks(ctx, m, inst, now); err != nil {
			g.logger.WarnContext(ctx, "workflow task creation failed",
				"instance_id", inst.ID,
				"error", err,
			)
		}

		created++
		g.metrics.IncGenerated(string(trigger), "created")
		g.audit.Emit(ctx, audit.Event{
			OccurredAt: now,
			TenantID:   tenantID,
			InstanceID: inst.ID,
			Actor:      audit.SystemActor,
			Action:     audit.ActionGenerated,
			ToStatus:   inst.Status,
			ToRAG:      inst.RAG,
			RequestID:  requestcontext.RequestID(ctx),
		})
	}
	return created, skipped, nil
}

// resolveAssignees maps the preparer/approver role codes to users. A tenant
// with no mapping still gets its instances, flagged for manual assignment.
func (g *Generator) resolveAssignees(ctx context.Context, tenantID id.TenantID) (owner, approver *id.UserID, needsAssignment bool) {
	ownerUser, err := g.directory.ResolveRole(ctx, tenantID, RolePreparer)
	switch {
	case err == nil:
		owner = &ownerUser
	case errors.Is(err, sentinel.ErrNotFound):
		needsAssignment = true
	default:
		g.logger.WarnContext(ctx, "role resolution failed", "tenant_id", tenantID, "role", RolePreparer, "error", err)
		needsAssignment = true
	}

	approverUser, err := g.directory.ResolveRole(ctx, tenantID, RoleApprover)
	if err == nil {
		approver = &approverUser
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		g.logger.WarnContext(ctx, "role resolution failed", "tenant_id", tenantID, "role", RoleApprover, "error", err)
	}
	return owner, approver, needsAssignment
}

// resolveBlockerMaster looks up the master a dependency code points at.
// Unresolvable codes are logged and ignored; the dependency resolver links the
// chain on its next pass if the master appears later.
func (g *Generator) resolveBlockerMaster(ctx context.Context, m *models.Master, tenantID id.TenantID) *models.Master {
	if len(m.DependencyCodes) == 0 {
		return nil
	}
	code := m.DependencyCodes[0]
	blocker, err := g.masters.FindByCode(ctx, tenantID, code)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			g.logger.WarnContext(ctx, "dependency code lookup failed", "code", code, "error", err)
		}
		return nil
	}
	return blocker
}

// wireBlockingRef links a fresh instance to the same-entity, same-period
// instance of its dependency master, when that instance exists and is still
// open. The instance stays NotStarted here; the dependency resolver owns the
// Blocked transition.
func (g *Generator) wireBlockingRef(ctx context.Context, inst *models.Instance, blockerMaster *models.Master, now time.Time) {
	blocker, err := g.instances.FindByKey(ctx, blockerMaster.ID, inst.EntityID, inst.PeriodStart)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			g.logger.WarnContext(ctx, "blocker lookup failed", "instance_id", inst.ID, "error", err)
		}
		return
	}
	if blocker.TenantID != inst.TenantID {
		return
	}
	blockerID := blocker.ID
	inst.BlockedBy = &blockerID
	inst.UpdatedAt = now
}

func (g *Generator) createWorkflowTasks(ctx context.Context, m *models.Master, inst *models.Instance, now time.Time) error {
	if len(m.WorkflowSteps) == 0 {
		return nil
	}
	tasks := make([]*models.WorkflowTask, 0, len(m.WorkflowSteps))
	for seq, name := range m.WorkflowSteps {
		tasks = append(tasks, &models.WorkflowTask{
			ID:         id.NewTaskID(),
			InstanceID: inst.ID,
			Seq:        seq + 1,
			Name:       name,
			AssigneeID: inst.OwnerID,
			Status:     models.TaskPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return g.tasks.CreateBatch(ctx, tasks)
}

func newInstance(m *models.Master, entity ports.EntityRef, tenantID id.TenantID, period models.Period, dueDate time.Time, owner, approver *id.UserID, needsAssignment bool, now time.Time) *models.Instance {
	due := dueDate
	return &models.Instance{
		ID:              id.NewInstanceID(),
		MasterID:        m.ID,
		EntityID:        entity.ID,
		TenantID:        tenantID,
		PeriodStart:     period.Start,
		PeriodEnd:       period.End,
		DueDate:         &due,
		Status:          models.StatusNotStarted,
		RAG:             models.RAGGreen,
		OwnerID:         owner,
		ApproverID:      approver,
		NeedsAssignment: needsAssignment,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
