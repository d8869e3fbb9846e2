package dependency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"obligo/internal/audit"
	"obligo/internal/compliance/models"
	"obligo/internal/compliance/ports"
	instanceStore "obligo/internal/compliance/store/instance"
	id "obligo/pkg/domain"
	"obligo/pkg/testutil"
)

type staticDirectory struct {
	tenants []id.TenantID
}

func (d *staticDirectory) ListActiveTenantIDs(context.Context) ([]id.TenantID, error) {
	return d.tenants, nil
}

func (d *staticDirectory) ListActiveEntities(context.Context, id.TenantID) ([]ports.EntityRef, error) {
	return nil, nil
}

func (d *staticDirectory) ResolveRole(context.Context, id.TenantID, string) (id.UserID, error) {
	return id.UserID{}, nil
}

type recordingPublisher struct {
	events []audit.Event
}

func (p *recordingPublisher) Emit(_ context.Context, event audit.Event) {
	p.events = append(p.events, event)
}

type ResolverSuite struct {
	suite.Suite
	tenantID  id.TenantID
	instances *instanceStore.InMemoryStore
	published *recordingPublisher
	resolver  *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.tenantID = id.NewTenantID()
	s.instances = instanceStore.NewMemory()
	s.published = &recordingPublisher{}
	s.resolver = New(s.instances, &staticDirectory{tenants: []id.TenantID{s.tenantID}},
		WithAuditPublisher(s.published))
}

func (s *ResolverSuite) seedInstance(status models.Status, blockedBy *id.InstanceID) *models.Instance {
	due := testutil.Date(2025, time.February, 20)
	inst := &models.Instance{
		ID:          id.NewInstanceID(),
		MasterID:    id.NewMasterID(),
		EntityID:    id.NewEntityID(),
		TenantID:    s.tenantID,
		PeriodStart: testutil.Date(2025, time.January, 1),
		PeriodEnd:   testutil.Date(2025, time.January, 31),
		DueDate:     &due,
		Status:      status,
		RAG:         models.RAGGreen,
		BlockedBy:   blockedBy,
		Version:     1,
	}
	if status == models.StatusBlocked {
		prior := models.StatusInProgress
		inst.PriorStatus = &prior
		inst.RAG = models.RAGRed
	}
	created, err := s.instances.CreateIfAbsent(context.Background(), inst)
	s.Require().NoError(err)
	s.Require().True(created)
	return inst
}

func (s *ResolverSuite) TestOpenBlockerForcesBlocked() {
	blocker := s.seedInstance(models.StatusInProgress, nil)
	dependent := s.seedInstance(models.StatusNotStarted, &blocker.ID)

	ctx := testutil.JobContext(testutil.Date(2025, time.February, 10))
	summary, err := s.resolver.Run(ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Blocked)
	s.Equal(0, summary.Cycles)

	stored, err := s.instances.FindByID(context.Background(), dependent.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusBlocked, stored.Status)
	s.Equal(models.RAGRed, stored.RAG)
	s.Require().NotNil(stored.PriorStatus)
	s.Equal(models.StatusNotStarted, *stored.PriorStatus)

	s.Require().Len(s.published.events, 1)
	s.Equal(audit.ActionBlocked, s.published.events[0].Action)
	s.Equal(models.StatusNotStarted, s.published.events[0].FromStatus)
	s.Equal(models.StatusBlocked, s.published.events[0].ToStatus)
}

func (s *ResolverSuite) TestTerminalBlockerReleasesDependent() {
	blocker := s.seedInstance(models.StatusFiled, nil)
	dependent := s.seedInstance(models.StatusBlocked, &blocker.ID)

	ctx := testutil.JobContext(testutil.Date(2025, time.February, 10))
	summary, err := s.resolver.Run(ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Released)

	stored, err := s.instances.FindByID(context.Background(), dependent.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, stored.Status)
	s.Nil(stored.PriorStatus)
	s.Nil(stored.BlockedBy)

	s.Require().Len(s.published.events, 1)
	s.Equal(audit.ActionReleased, s.published.events[0].Action)
}

func (s *ResolverSuite) TestCycleLeavesChainUntouched() {
	a := s.seedInstance(models.StatusNotStarted, nil)
	b := s.seedInstance(models.StatusNotStarted, &a.ID)

	// Close the loop: a depends on b.
	a.BlockedBy = &b.ID
	s.Require().NoError(s.instances.UpdateCAS(context.Background(), a, a.Version))

	ctx := testutil.JobContext(testutil.Date(2025, time.February, 10))
	summary, err := s.resolver.Run(ctx)
	s.Require().NoError(err)
	s.Equal(2, summary.Cycles)
	s.Equal(0, summary.Blocked)
	s.Equal(0, summary.Released)

	storedA, err := s.instances.FindByID(context.Background(), a.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusNotStarted, storedA.Status)
	storedB, err := s.instances.FindByID(context.Background(), b.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusNotStarted, storedB.Status)
	s.Empty(s.published.events)
}

func (s *ResolverSuite) TestPassIsRerunSafe() {
	blocker := s.seedInstance(models.StatusInProgress, nil)
	s.seedInstance(models.StatusNotStarted, &blocker.ID)

	ctx := testutil.JobContext(testutil.Date(2025, time.February, 10))

	first, err := s.resolver.Run(ctx)
	s.Require().NoError(err)
	s.Equal(1, first.Blocked)

	second, err := s.resolver.Run(ctx)
	s.Require().NoError(err)
	s.Equal(0, second.Blocked)
	s.Equal(0, second.Conflicts)
}

func (s *ResolverSuite) TestTerminalDependentIsIgnored() {
	blocker := s.seedInstance(models.StatusInProgress, nil)
	s.seedInstance(models.StatusFiled, &blocker.ID)

	ctx := testutil.JobContext(testutil.Date(2025, time.February, 10))
	summary, err := s.resolver.Run(ctx)
	s.Require().NoError(err)
	s.Equal(0, summary.Blocked)
}

func TestCyclicDependencyErrorMessage(t *testing.T) {
	a, b := id.NewInstanceID(), id.NewInstanceID()
	err := &CyclicDependencyError{Chain: []id.InstanceID{a, b, a}}
	msg := err.Error()
	if msg == "" || len(msg) < len("cyclic dependency chain: ") {
		t.Fatalf("unexpected message %q", msg)
	}
}
