package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
)

func TestNewMaster(t *testing.T) {
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tenantID := id.NewTenantID()

	t.Run("valid master starts active", func(t *testing.T) {
		m, err := NewMaster(id.NewMasterID(), &tenantID, " vat-return ", "tax",
			FrequencyMonthly, RuleDescriptor{Type: RuleMonthly, Day: 20}, now)
		require.NoError(t, err)
		assert.Equal(t, "vat-return", m.Code)
		assert.True(t, m.Active)
		assert.False(t, m.IsGlobal())
	})

	t.Run("nil tenant is global", func(t *testing.T) {
		m, err := NewMaster(id.NewMasterID(), nil, "global-filing", "tax",
			FrequencyMonthly, RuleDescriptor{Type: RuleMonthly, Day: 10}, now)
		require.NoError(t, err)
		assert.True(t, m.IsGlobal())
	})

	t.Run("empty code rejected", func(t *testing.T) {
		_, err := NewMaster(id.NewMasterID(), &tenantID, "  ", "tax",
			FrequencyMonthly, RuleDescriptor{Type: RuleMonthly, Day: 20}, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("unknown frequency rejected", func(t *testing.T) {
		_, err := NewMaster(id.NewMasterID(), &tenantID, "x", "tax",
			Frequency("weekly"), RuleDescriptor{Type: RuleMonthly, Day: 20}, now)
		assert.Error(t, err)
	})

	t.Run("rule type must match frequency", func(t *testing.T) {
		_, err := NewMaster(id.NewMasterID(), &tenantID, "x", "tax",
			FrequencyQuarterly, RuleDescriptor{Type: RuleMonthly, Day: 20}, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestMasterActivationCycle(t *testing.T) {
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tenantID := id.NewTenantID()
	m, err := NewMaster(id.NewMasterID(), &tenantID, "vat-return", "tax",
		FrequencyMonthly, RuleDescriptor{Type: RuleMonthly, Day: 20}, now)
	require.NoError(t, err)

	require.NoError(t, m.CanDeactivate())
	m.ApplyDeactivation(now)
	assert.False(t, m.Active)
	assert.Error(t, m.CanDeactivate())

	require.NoError(t, m.CanReactivate())
	m.ApplyReactivation(now)
	assert.True(t, m.Active)
	assert.Error(t, m.CanReactivate())
}
