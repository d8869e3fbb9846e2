package master

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obligo/internal/compliance/models"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

func newMaster(t *testing.T, tenantID *id.TenantID, code string, freq models.Frequency) *models.Master {
	t.Helper()
	rule := models.RuleDescriptor{Type: models.RuleType(freq), Day: 20}
	if freq == models.FrequencyAnnual {
		rule.FiscalStartMonth = time.April
	}
	m, err := models.NewMaster(id.NewMasterID(), tenantID, code, "tax", freq, rule,
		time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return m
}

func TestCreateScopeUniqueness(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	tenantA := id.NewTenantID()
	tenantB := id.NewTenantID()

	require.NoError(t, store.Create(ctx, newMaster(t, &tenantA, "vat-return", models.FrequencyMonthly)))

	t.Run("same code same tenant conflicts", func(t *testing.T) {
		err := store.Create(ctx, newMaster(t, &tenantA, "VAT-RETURN", models.FrequencyMonthly))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("same code other tenant is fine", func(t *testing.T) {
		assert.NoError(t, store.Create(ctx, newMaster(t, &tenantB, "vat-return", models.FrequencyMonthly)))
	})

	t.Run("global scope is its own namespace", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, newMaster(t, nil, "vat-return", models.FrequencyMonthly)))
		err := store.Create(ctx, newMaster(t, nil, "vat-return", models.FrequencyMonthly))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})
}

func TestFindByCodePrefersTenantOverGlobal(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	tenantID := id.NewTenantID()

	global := newMaster(t, nil, "filing", models.FrequencyMonthly)
	require.NoError(t, store.Create(ctx, global))
	own := newMaster(t, &tenantID, "filing", models.FrequencyMonthly)
	require.NoError(t, store.Create(ctx, own))

	found, err := store.FindByCode(ctx, tenantID, "filing")
	require.NoError(t, err)
	assert.Equal(t, own.ID, found.ID)

	otherTenant := id.NewTenantID()
	found, err = store.FindByCode(ctx, otherTenant, "filing")
	require.NoError(t, err)
	assert.Equal(t, global.ID, found.ID)

	_, err = store.FindByCode(ctx, tenantID, "absent")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestListActiveByFrequency(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	tenantID := id.NewTenantID()

	monthly := newMaster(t, &tenantID, "monthly-1", models.FrequencyMonthly)
	require.NoError(t, store.Create(ctx, monthly))
	require.NoError(t, store.Create(ctx, newMaster(t, &tenantID, "quarterly-1", models.FrequencyQuarterly)))

	inactive := newMaster(t, &tenantID, "monthly-2", models.FrequencyMonthly)
	inactive.Active = false
	require.NoError(t, store.Create(ctx, inactive))

	got, err := store.ListActiveByFrequency(ctx, models.FrequencyMonthly)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, monthly.ID, got[0].ID)
}

func TestListByTenantIncludesGlobal(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	tenantID := id.NewTenantID()

	require.NoError(t, store.Create(ctx, newMaster(t, &tenantID, "own", models.FrequencyMonthly)))
	require.NoError(t, store.Create(ctx, newMaster(t, nil, "global", models.FrequencyMonthly)))
	other := id.NewTenantID()
	require.NoError(t, store.Create(ctx, newMaster(t, &other, "foreign", models.FrequencyMonthly)))

	got, err := store.ListByTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestUpdate(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	tenantID := id.NewTenantID()

	m := newMaster(t, &tenantID, "vat-return", models.FrequencyMonthly)
	require.NoError(t, store.Create(ctx, m))

	m.ApplyDeactivation(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Update(ctx, m))

	stored, err := store.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	ghost := newMaster(t, &tenantID, "ghost", models.FrequencyMonthly)
	assert.ErrorIs(t, store.Update(ctx, ghost), sentinel.ErrNotFound)
}
