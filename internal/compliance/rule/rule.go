// Package rule evaluates due-date rules. Evaluate is pure: the same
// (rule, period) pair always yields the same date.
package rule

import (
	"errors"
	"fmt"
	"time"

	"obligo/internal/compliance/models"
)

// ErrNotApplicable signals an event-based rule: no due date derives from the
// period; it is supplied externally when the instance is created out-of-band.
var ErrNotApplicable = errors.New("due date not applicable for event-based rule")

// InvalidRuleError reports a rule whose type is unrecognized or whose
// parameters are out of domain. The generator skips such masters and reports
// them in the run summary.
type InvalidRuleError struct {
	Rule   models.RuleDescriptor
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid rule %q: %s", e.Rule.Type, e.Reason)
}

// Evaluate turns a rule descriptor and a target period into a due date.
//
// For monthly, quarterly and annual rules the due date is the Day-th calendar
// day of the month following the period's end month. When Day exceeds that
// month's length it clamps to the month's last day (documented policy). Due
// dates never shift for weekends or holidays.
func Evaluate(rule models.RuleDescriptor, period models.Period) (time.Time, error) {
	switch rule.Type {
	case models.RuleMonthly, models.RuleQuarterly:
		if err := validateDay(rule); err != nil {
			return time.Time{}, err
		}
	case models.RuleAnnual:
		if err := validateDay(rule); err != nil {
			return time.Time{}, err
		}
		if rule.FiscalStartMonth < time.January || rule.FiscalStartMonth > time.December {
			return time.Time{}, &InvalidRuleError{Rule: rule, Reason: fmt.Sprintf("fiscal start month %d out of range", rule.FiscalStartMonth)}
		}
	case models.RuleEventBased:
		return time.Time{}, ErrNotApplicable
	default:
		return time.Time{}, &InvalidRuleError{Rule: rule, Reason: "unrecognized rule type"}
	}

	if period.End.IsZero() {
		return time.Time{}, &InvalidRuleError{Rule: rule, Reason: "period end is required"}
	}

	// First day of the month following the period's end month, then advance to
	// the clamped rule day.
	end := period.End.UTC()
	firstOfNext := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	day := clampDay(rule.Day, firstOfNext.Year(), firstOfNext.Month())
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day, 0, 0, 0, 0, time.UTC), nil
}

func validateDay(rule models.RuleDescriptor) error {
	if rule.Day <= 0 || rule.Day > 31 {
		return &InvalidRuleError{Rule: rule, Reason: fmt.Sprintf("day %d out of range [1,31]", rule.Day)}
	}
	return nil
}

// clampDay caps day at the length of the given month.
func clampDay(day, year int, month time.Month) int {
	last := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
	if day > last {
		return last
	}
	return day
}
