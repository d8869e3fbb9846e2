//go:build integration

package instance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	compliancemodels "obligo/internal/compliance/models"
	"obligo/internal/compliance/store/instance"
	"obligo/internal/compliance/store/master"
	"obligo/internal/compliance/store/task"
	tenantmodels "obligo/internal/tenant/models"
	"obligo/internal/tenant/store/entity"
	"obligo/internal/tenant/store/tenant"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
	"obligo/pkg/testutil"
	"obligo/pkg/testutil/containers"
)

type InstancePostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *instance.PostgresStore
	tasks    *task.PostgresStore

	tenants  *tenant.PostgresStore
	entities *entity.PostgresStore
	masters  *master.PostgresStore

	tenantID id.TenantID
	entityID id.EntityID
	masterID id.MasterID
}

func TestInstancePostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(InstancePostgresSuite))
}

func (s *InstancePostgresSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = instance.NewPostgres(s.postgres.DB)
	s.tasks = task.NewPostgres(s.postgres.DB)
	s.tenants = tenant.NewPostgres(s.postgres.DB)
	s.entities = entity.NewPostgres(s.postgres.DB)
	s.masters = master.NewPostgres(s.postgres.DB)
}

// SetupTest resets the schema and re-seeds the rows the instance foreign keys
// point at.
func (s *InstancePostgresSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"workflow_tasks", "instances", "masters", "role_assignments", "entities", "tenants")
	s.Require().NoError(err)

	now := testutil.Date(2025, time.January, 1)

	t, err := tenantmodels.NewTenant(id.NewTenantID(), "Acme Compliance", now)
	s.Require().NoError(err)
	s.Require().NoError(s.tenants.Create(ctx, t))
	s.tenantID = t.ID

	e, err := tenantmodels.NewEntity(id.NewEntityID(), t.ID, "Acme GmbH", now)
	s.Require().NoError(err)
	s.Require().NoError(s.entities.Create(ctx, e))
	s.entityID = e.ID

	m, err := compliancemodels.NewMaster(id.NewMasterID(), &t.ID, "vat-return", "tax",
		compliancemodels.FrequencyMonthly,
		compliancemodels.RuleDescriptor{Type: compliancemodels.RuleMonthly, Day: 20}, now)
	s.Require().NoError(err)
	s.Require().NoError(s.masters.Create(ctx, m))
	s.masterID = m.ID
}

func (s *InstancePostgresSuite) seedInstance(periodStart time.Time, status compliancemodels.Status) *compliancemodels.Instance {
	s.T().Helper()
	due := periodStart.AddDate(0, 1, 19)
	inst := &compliancemodels.Instance{
		ID:          id.NewInstanceID(),
		MasterID:    s.masterID,
		EntityID:    s.entityID,
		TenantID:    s.tenantID,
		PeriodStart: periodStart,
		PeriodEnd:   periodStart.AddDate(0, 1, -1),
		DueDate:     &due,
		Status:      status,
		RAG:         compliancemodels.RAGGreen,
		Version:     1,
		CreatedAt:   periodStart,
		UpdatedAt:   periodStart,
	}
	created, err := s.store.CreateIfAbsent(context.Background(), inst)
	s.Require().NoError(err)
	s.Require().True(created)
	return inst
}

func (s *InstancePostgresSuite) TestDuplicatePeriodIsSilentNoOp() {
	ctx := context.Background()
	jan := testutil.Date(2025, time.January, 1)
	inst := s.seedInstance(jan, compliancemodels.StatusNotStarted)

	dup := *inst
	dup.ID = id.NewInstanceID()
	created, err := s.store.CreateIfAbsent(ctx, &dup)
	s.Require().NoError(err)
	s.False(created, "the unique constraint must absorb the duplicate")

	next := *inst
	next.ID = id.NewInstanceID()
	next.PeriodStart = testutil.Date(2025, time.February, 1)
	created, err = s.store.CreateIfAbsent(ctx, &next)
	s.Require().NoError(err)
	s.True(created)

	count, err := s.store.CountByTenant(ctx, s.tenantID)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *InstancePostgresSuite) TestFindByKeyRoundTrip() {
	ctx := context.Background()
	jan := testutil.Date(2025, time.January, 1)
	inst := s.seedInstance(jan, compliancemodels.StatusNotStarted)

	found, err := s.store.FindByKey(ctx, s.masterID, s.entityID, jan)
	s.Require().NoError(err)
	s.Equal(inst.ID, found.ID)
	s.Equal(jan, found.PeriodStart.UTC())
	s.Require().NotNil(found.DueDate)
	s.Equal(inst.DueDate.UTC(), found.DueDate.UTC())

	_, err = s.store.FindByKey(ctx, s.masterID, s.entityID, testutil.Date(2025, time.March, 1))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InstancePostgresSuite) TestUpdateCAS() {
	ctx := context.Background()
	inst := s.seedInstance(testutil.Date(2025, time.January, 1), compliancemodels.StatusNotStarted)

	inst.Status = compliancemodels.StatusInProgress
	s.Require().NoError(s.store.UpdateCAS(ctx, inst, 1))
	s.Equal(int64(2), inst.Version)

	stored, err := s.store.FindByID(ctx, inst.ID)
	s.Require().NoError(err)
	s.Equal(compliancemodels.StatusInProgress, stored.Status)
	s.Equal(int64(2), stored.Version)

	stale := *stored
	stale.Status = compliancemodels.StatusCompleted
	s.ErrorIs(s.store.UpdateCAS(ctx, &stale, 1), sentinel.ErrConflict)

	ghost := *stored
	ghost.ID = id.NewInstanceID()
	s.ErrorIs(s.store.UpdateCAS(ctx, &ghost, 2), sentinel.ErrNotFound)
}

func (s *InstancePostgresSuite) TestListNonTerminalByTenant() {
	ctx := context.Background()
	open := s.seedInstance(testutil.Date(2025, time.January, 1), compliancemodels.StatusNotStarted)
	s.seedInstance(testutil.Date(2025, time.February, 1), compliancemodels.StatusFiled)
	s.seedInstance(testutil.Date(2025, time.March, 1), compliancemodels.StatusCompleted)

	got, err := s.store.ListNonTerminalByTenant(ctx, s.tenantID)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(open.ID, got[0].ID)
}

func (s *InstancePostgresSuite) TestBlockingRefSurvivesRoundTrip() {
	ctx := context.Background()
	blocker := s.seedInstance(testutil.Date(2025, time.January, 1), compliancemodels.StatusInProgress)
	dependent := s.seedInstance(testutil.Date(2025, time.February, 1), compliancemodels.StatusNotStarted)

	dependent.BlockedBy = &blocker.ID
	s.Require().NoError(s.store.UpdateCAS(ctx, dependent, 1))

	withRef, err := s.store.ListWithBlockingRef(ctx, s.tenantID)
	s.Require().NoError(err)
	s.Require().Len(withRef, 1)
	s.Equal(dependent.ID, withRef[0].ID)
	s.Require().NotNil(withRef[0].BlockedBy)
	s.Equal(blocker.ID, *withRef[0].BlockedBy)
}

// TestPurgeTenant covers the awkward part of deletion: workflow tasks hang off
// instances and blocked_by is a self reference, so the purge has to unwind
// both before the delete can succeed.
func (s *InstancePostgresSuite) TestPurgeTenant() {
	ctx := context.Background()
	blocker := s.seedInstance(testutil.Date(2025, time.January, 1), compliancemodels.StatusInProgress)
	dependent := s.seedInstance(testutil.Date(2025, time.February, 1), compliancemodels.StatusNotStarted)

	dependent.BlockedBy = &blocker.ID
	s.Require().NoError(s.store.UpdateCAS(ctx, dependent, 1))

	now := testutil.Date(2025, time.January, 2)
	s.Require().NoError(s.tasks.CreateBatch(ctx, []*compliancemodels.WorkflowTask{{
		ID:         id.NewTaskID(),
		InstanceID: blocker.ID,
		Seq:        1,
		Name:       "prepare",
		Status:     compliancemodels.TaskPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}}))

	removed, err := s.store.PurgeTenant(ctx, s.tenantID)
	s.Require().NoError(err)
	s.Equal(2, removed)

	count, err := s.store.CountByTenant(ctx, s.tenantID)
	s.Require().NoError(err)
	s.Zero(count)

	tasks, err := s.tasks.ListByInstance(ctx, blocker.ID)
	s.Require().NoError(err)
	s.Empty(tasks)
}
