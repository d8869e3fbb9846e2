package instance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obligo/internal/compliance/models"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
	"obligo/pkg/testutil"
)

func seed(t *testing.T, store *InMemoryStore, tenantID id.TenantID, status models.Status) *models.Instance {
	t.Helper()
	due := testutil.Date(2025, time.February, 20)
	inst := &models.Instance{
		ID:          id.NewInstanceID(),
		MasterID:    id.NewMasterID(),
		EntityID:    id.NewEntityID(),
		TenantID:    tenantID,
		PeriodStart: testutil.Date(2025, time.January, 1),
		PeriodEnd:   testutil.Date(2025, time.January, 31),
		DueDate:     &due,
		Status:      status,
		RAG:         models.RAGGreen,
		Version:     1,
	}
	created, err := store.CreateIfAbsent(context.Background(), inst)
	require.NoError(t, err)
	require.True(t, created)
	return inst
}

func TestCreateIfAbsentEnforcesUniqueness(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	inst := seed(t, store, id.NewTenantID(), models.StatusNotStarted)

	dup := *inst
	dup.ID = id.NewInstanceID()
	created, err := store.CreateIfAbsent(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created, "duplicate key must be a silent no-op")

	// Different period start is a new row.
	other := *inst
	other.ID = id.NewInstanceID()
	other.PeriodStart = testutil.Date(2025, time.February, 1)
	created, err = store.CreateIfAbsent(ctx, &other)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestFindByKey(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	inst := seed(t, store, id.NewTenantID(), models.StatusNotStarted)

	found, err := store.FindByKey(ctx, inst.MasterID, inst.EntityID, inst.PeriodStart)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, found.ID)

	_, err = store.FindByKey(ctx, id.NewMasterID(), inst.EntityID, inst.PeriodStart)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestUpdateCAS(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	inst := seed(t, store, id.NewTenantID(), models.StatusNotStarted)

	t.Run("matching version wins and increments", func(t *testing.T) {
		inst.Status = models.StatusInProgress
		require.NoError(t, store.UpdateCAS(ctx, inst, 1))
		assert.Equal(t, int64(2), inst.Version)

		stored, err := store.FindByID(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInProgress, stored.Status)
		assert.Equal(t, int64(2), stored.Version)
	})

	t.Run("stale version loses", func(t *testing.T) {
		stale := *inst
		err := store.UpdateCAS(ctx, &stale, 1)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("missing row reports not found", func(t *testing.T) {
		ghost := *inst
		ghost.ID = id.NewInstanceID()
		err := store.UpdateCAS(ctx, &ghost, 1)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestListNonTerminalByTenant(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	tenantID := id.NewTenantID()

	seed(t, store, tenantID, models.StatusNotStarted)
	seed(t, store, tenantID, models.StatusFiled)
	seed(t, store, tenantID, models.StatusCompleted)
	seed(t, store, id.NewTenantID(), models.StatusInProgress)

	open, err := store.ListNonTerminalByTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Equal(t, models.StatusNotStarted, open[0].Status)
}

func TestListWithBlockingRef(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	tenantID := id.NewTenantID()

	blocker := seed(t, store, tenantID, models.StatusInProgress)
	dependent := seed(t, store, tenantID, models.StatusNotStarted)
	dependent.BlockedBy = &blocker.ID
	require.NoError(t, store.UpdateCAS(ctx, dependent, 1))

	withRef, err := store.ListWithBlockingRef(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, withRef, 1)
	assert.Equal(t, dependent.ID, withRef[0].ID)
}

func TestReturnedInstancesAreCopies(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	inst := seed(t, store, id.NewTenantID(), models.StatusNotStarted)

	found, err := store.FindByID(ctx, inst.ID)
	require.NoError(t, err)
	found.Status = models.StatusFiled

	again, err := store.FindByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, again.Status)
}

func TestPurgeTenant(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	tenantID := id.NewTenantID()
	seed(t, store, tenantID, models.StatusNotStarted)
	seed(t, store, tenantID, models.StatusFiled)
	keep := seed(t, store, id.NewTenantID(), models.StatusNotStarted)

	removed, err := store.PurgeTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	count, err := store.CountByTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = store.FindByID(ctx, keep.ID)
	assert.NoError(t, err)
}
