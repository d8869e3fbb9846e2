// Package escalation scans open instances against their due dates and hands
// reminder/escalation events to the notifier.
//
// Three daily conditions exist: T-3 (due in exactly three days), due-today and
// overdue. Each produces at most one event per instance per day: the dedup
// ledger, keyed (instance, kind, as-of date), absorbs re-runs and restarts.
package escalation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"obligo/internal/audit"
	"obligo/internal/compliance/metrics"
	"obligo/internal/compliance/models"
	"obligo/internal/compliance/ports"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/retry"
	"obligo/pkg/requestcontext"
)

// ledgerTTL keeps dedup marks around long enough to cover clock drift between
// re-runs without growing the ledger unbounded.
const ledgerTTL = 48 * time.Hour

type InstanceStore interface {
	ListNonTerminalByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Instance, error)
}

// Summary reports one scan.
type Summary struct {
	Kind       ports.NotificationKind `json:"kind"`
	Scanned    int                    `json:"scanned"`
	Emitted    int                    `json:"emitted"`
	Duplicates int                    `json:"duplicates"`
	Failed     int                    `json:"failed"`
}

// Scanner matches instances to one notification kind per run.
type Scanner struct {
	instances InstanceStore
	directory ports.Directory
	notifier  ports.Notifier
	ledger    Ledger

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
	tracer  trace.Tracer
	retry   retry.Policy
}

type Option func(s *Scanner)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger.With("component", "escalation")
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Scanner) {
		s.audit = publisher
	}
}

func WithRetryPolicy(policy retry.Policy) Option {
	return func(s *Scanner) {
		s.retry = policy
	}
}

// New constructs a Scanner. A nil ledger falls back to the in-process one.
func New(instances InstanceStore, directory ports.Directory, notifier ports.Notifier, ledger Ledger, opts ...Option) *Scanner {
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	s := &Scanner{
		instances: instances,
		directory: directory,
		notifier:  notifier,
		ledger:    ledger,
		logger:    slog.Default(),
		audit:     audit.NopPublisher{},
		tracer:    otel.Tracer("obligo/escalation"),
		retry:     retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scans all active tenants for one notification kind.
func (s *Scanner) Run(ctx context.Context, kind ports.NotificationKind) (*Summary, error) {
	ctx, span := s.tracer.Start(ctx, "escalation.run",
		trace.WithAttributes(attribute.String("kind", string(kind))))
	defer span.End()

	now := requestcontext.Now(ctx)
	started := time.Now()
	summary := &Summary{Kind: kind}

	tenantIDs, err := s.directory.ListActiveTenantIDs(ctx)
	if err != nil {
		return nil, err
	}

	for _, tenantID := range tenantIDs {
		instances, err := s.instances.ListNonTerminalByTenant(ctx, tenantID)
		if err != nil {
			summary.Failed++
			s.logger.ErrorContext(ctx, "tenant scan failed", "tenant_id", tenantID, "error", err)
			continue
		}
		for _, inst := range instances {
			summary.Scanned++
			if !matches(kind, inst, now) {
				continue
			}
			s.escalate(ctx, inst, kind, now, summary)
		}
	}
	s.metrics.ObserveRun("escalation-"+string(kind), time.Since(started))

	s.logger.InfoContext(ctx, "escalation scan finished",
		"kind", kind,
		"scanned", summary.Scanned,
		"emitted", summary.Emitted,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed,
	)
	return summary, nil
}

// matches reports whether the instance meets the kind's due-date condition on
// the scan day. Instances without a due date never match.
func matches(kind ports.NotificationKind, inst *models.Instance, now time.Time) bool {
	if inst.DueDate == nil {
		return false
	}
	due := dateOf(*inst.DueDate)
	today := dateOf(now)

	switch kind {
	case ports.KindTMinus3:
		return due.Sub(today) == 3*24*time.Hour
	case ports.KindDueToday:
		return due.Equal(today)
	case ports.KindOverdue:
		return today.After(due)
	}
	return false
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Scanner) escalate(ctx context.Context, inst *models.Instance, kind ports.NotificationKind, now time.Time, summary *Summary) {
	key := LedgerKey(inst.ID, kind, now)
	first, err := s.ledger.MarkIfFirst(ctx, key, ledgerTTL)
	if err != nil {
		summary.Failed++
		s.logger.ErrorContext(ctx, "dedup ledger failed", "instance_id", inst.ID, "error", err)
		return
	}
	if !first {
		summary.Duplicates++
		s.metrics.IncEscalation(string(kind), "duplicate")
		return
	}

	notification := ports.Notification{
		InstanceID: inst.ID,
		TenantID:   inst.TenantID,
		Kind:       kind,
		AsOf:       now,
		Recipients: recipients(inst, kind),
		DueDate:    *inst.DueDate,
	}

	err = retry.Do(ctx, s.retry, func() error {
		return s.notifier.Notify(ctx, notification)
	})
	if err != nil {
		summary.Failed++
		s.logger.ErrorContext(ctx, "notification delivery failed", "instance_id", inst.ID, "kind", kind, "error", err)
		// Free the key so the next scan retries delivery.
		if unmarkErr := s.ledger.Unmark(ctx, key); unmarkErr != nil {
			s.logger.WarnContext(ctx, "dedup unmark failed", "key", key, "error", unmarkErr)
		}
		return
	}

	summary.Emitted++
	s.metrics.IncEscalation(string(kind), "emitted")
	s.audit.Emit(ctx, audit.Event{
		OccurredAt: now,
		TenantID:   inst.TenantID,
		InstanceID: inst.ID,
		Actor:      audit.SystemActor,
		Action:     audit.ActionEscalation,
		FromStatus: inst.Status,
		ToStatus:   inst.Status,
		FromRAG:    inst.RAG,
		ToRAG:      inst.RAG,
		Reason:     string(kind),
		RequestID:  requestcontext.RequestID(ctx),
	})
}

// recipients picks who hears about the condition: the owner always, the
// approver once the instance is overdue.
func recipients(inst *models.Instance, kind ports.NotificationKind) []id.UserID {
	var out []id.UserID
	if inst.OwnerID != nil {
		out = append(out, *inst.OwnerID)
	}
	if kind == ports.KindOverdue && inst.ApproverID != nil {
		out = append(out, *inst.ApproverID)
	}
	return out
}
