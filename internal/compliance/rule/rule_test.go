package rule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obligo/internal/compliance/models"
	"obligo/pkg/testutil"
)

func TestEvaluateMonthly(t *testing.T) {
	rule := models.RuleDescriptor{Type: models.RuleMonthly, Day: 20}
	period := models.Period{
		Start: testutil.Date(2025, time.January, 1),
		End:   testutil.Date(2025, time.January, 31),
	}

	due, err := Evaluate(rule, period)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2025, time.February, 20), due)
}

func TestEvaluateClampsToMonthEnd(t *testing.T) {
	rule := models.RuleDescriptor{Type: models.RuleMonthly, Day: 31}

	t.Run("february non-leap", func(t *testing.T) {
		period := models.Period{
			Start: testutil.Date(2025, time.January, 1),
			End:   testutil.Date(2025, time.January, 31),
		}
		due, err := Evaluate(rule, period)
		require.NoError(t, err)
		assert.Equal(t, testutil.Date(2025, time.February, 28), due)
	})

	t.Run("february leap year", func(t *testing.T) {
		period := models.Period{
			Start: testutil.Date(2024, time.January, 1),
			End:   testutil.Date(2024, time.January, 31),
		}
		due, err := Evaluate(rule, period)
		require.NoError(t, err)
		assert.Equal(t, testutil.Date(2024, time.February, 29), due)
	})

	t.Run("thirty day month", func(t *testing.T) {
		period := models.Period{
			Start: testutil.Date(2025, time.March, 1),
			End:   testutil.Date(2025, time.March, 31),
		}
		due, err := Evaluate(rule, period)
		require.NoError(t, err)
		assert.Equal(t, testutil.Date(2025, time.April, 30), due)
	})
}

func TestEvaluateQuarterly(t *testing.T) {
	rule := models.RuleDescriptor{Type: models.RuleQuarterly, Day: 15}
	period := models.Period{
		Start: testutil.Date(2025, time.January, 1),
		End:   testutil.Date(2025, time.March, 31),
	}

	due, err := Evaluate(rule, period)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2025, time.April, 15), due)
}

func TestEvaluateAnnual(t *testing.T) {
	rule := models.RuleDescriptor{Type: models.RuleAnnual, Day: 30, FiscalStartMonth: time.April}
	period := models.Period{
		Start: testutil.Date(2024, time.April, 1),
		End:   testutil.Date(2025, time.March, 31),
	}

	due, err := Evaluate(rule, period)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2025, time.April, 30), due)
}

func TestEvaluateNoWeekendShift(t *testing.T) {
	// 2025-02-15 is a Saturday; the due date must not move.
	rule := models.RuleDescriptor{Type: models.RuleMonthly, Day: 15}
	period := models.Period{
		Start: testutil.Date(2025, time.January, 1),
		End:   testutil.Date(2025, time.January, 31),
	}

	due, err := Evaluate(rule, period)
	require.NoError(t, err)
	assert.Equal(t, time.Saturday, due.Weekday())
	assert.Equal(t, testutil.Date(2025, time.February, 15), due)
}

func TestEvaluateEventBased(t *testing.T) {
	_, err := Evaluate(models.RuleDescriptor{Type: models.RuleEventBased}, models.Period{})
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestEvaluateInvalidRules(t *testing.T) {
	period := models.Period{
		Start: testutil.Date(2025, time.January, 1),
		End:   testutil.Date(2025, time.January, 31),
	}

	cases := []struct {
		name string
		rule models.RuleDescriptor
	}{
		{"unknown type", models.RuleDescriptor{Type: "weekly", Day: 1}},
		{"day zero", models.RuleDescriptor{Type: models.RuleMonthly, Day: 0}},
		{"day above 31", models.RuleDescriptor{Type: models.RuleMonthly, Day: 32}},
		{"annual bad fiscal month", models.RuleDescriptor{Type: models.RuleAnnual, Day: 10, FiscalStartMonth: 13}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Evaluate(tc.rule, period)
			var invalid *InvalidRuleError
			assert.True(t, errors.As(err, &invalid), "want InvalidRuleError, got %v", err)
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	rule := models.RuleDescriptor{Type: models.RuleMonthly, Day: 20}
	period := models.Period{
		Start: testutil.Date(2025, time.January, 1),
		End:   testutil.Date(2025, time.January, 31),
	}

	first, err := Evaluate(rule, period)
	require.NoError(t, err)
	second, err := Evaluate(rule, period)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPreviousMonth(t *testing.T) {
	p := PreviousMonth(testutil.Date(2025, time.February, 1))
	assert.Equal(t, testutil.Date(2025, time.January, 1), p.Start)
	assert.Equal(t, testutil.Date(2025, time.January, 31), p.End)

	p = PreviousMonth(testutil.Date(2025, time.January, 15))
	assert.Equal(t, testutil.Date(2024, time.December, 1), p.Start)
	assert.Equal(t, testutil.Date(2024, time.December, 31), p.End)
}

func TestPreviousQuarter(t *testing.T) {
	p := PreviousQuarter(testutil.Date(2025, time.April, 1))
	assert.Equal(t, testutil.Date(2025, time.January, 1), p.Start)
	assert.Equal(t, testutil.Date(2025, time.March, 31), p.End)

	p = PreviousQuarter(testutil.Date(2025, time.February, 10))
	assert.Equal(t, testutil.Date(2024, time.October, 1), p.Start)
	assert.Equal(t, testutil.Date(2024, time.December, 31), p.End)
}

func TestPreviousFiscalYear(t *testing.T) {
	t.Run("after fiscal start", func(t *testing.T) {
		p := PreviousFiscalYear(testutil.Date(2025, time.April, 1), time.April)
		assert.Equal(t, testutil.Date(2024, time.April, 1), p.Start)
		assert.Equal(t, testutil.Date(2025, time.March, 31), p.End)
	})

	t.Run("before fiscal start", func(t *testing.T) {
		p := PreviousFiscalYear(testutil.Date(2025, time.February, 1), time.April)
		assert.Equal(t, testutil.Date(2023, time.April, 1), p.Start)
		assert.Equal(t, testutil.Date(2024, time.March, 31), p.End)
	})

	t.Run("calendar year fiscal", func(t *testing.T) {
		p := PreviousFiscalYear(testutil.Date(2025, time.January, 1), time.January)
		assert.Equal(t, testutil.Date(2024, time.January, 1), p.Start)
		assert.Equal(t, testutil.Date(2024, time.December, 31), p.End)
	})
}

func TestForFrequency(t *testing.T) {
	now := testutil.Date(2025, time.February, 1)

	_, ok := ForFrequency(models.FrequencyEventBased, time.January, now)
	assert.False(t, ok)

	p, ok := ForFrequency(models.FrequencyMonthly, time.January, now)
	assert.True(t, ok)
	assert.Equal(t, testutil.Date(2025, time.January, 1), p.Start)
}
