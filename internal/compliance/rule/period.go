package rule

import (
	"time"

	"obligo/internal/compliance/models"
)

// Target periods for generation triggers. Each returns the most recently
// completed period relative to "now", as inclusive UTC calendar days.

// PreviousMonth returns the calendar month before the one containing now.
func PreviousMonth(now time.Time) models.Period {
	now = now.UTC()
	firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return models.Period{
		Start: firstOfThis.AddDate(0, -1, 0),
		End:   firstOfThis.AddDate(0, 0, -1),
	}
}

// PreviousQuarter returns the calendar quarter before the one containing now.
func PreviousQuarter(now time.Time) models.Period {
	now = now.UTC()
	quarterStartMonth := time.Month(((int(now.Month())-1)/3)*3 + 1)
	firstOfThis := time.Date(now.Year(), quarterStartMonth, 1, 0, 0, 0, 0, time.UTC)
	return models.Period{
		Start: firstOfThis.AddDate(0, -3, 0),
		End:   firstOfThis.AddDate(0, 0, -1),
	}
}

// PreviousFiscalYear returns the fiscal year (starting in fiscalStart) before
// the one containing now.
func PreviousFiscalYear(now time.Time, fiscalStart time.Month) models.Period {
	now = now.UTC()
	startYear := now.Year()
	if now.Month() < fiscalStart {
		startYear--
	}
	currentStart := time.Date(startYear, fiscalStart, 1, 0, 0, 0, 0, time.UTC)
	return models.Period{
		Start: currentStart.AddDate(-1, 0, 0),
		End:   currentStart.AddDate(0, 0, -1),
	}
}

// ForFrequency resolves the target period for a master frequency. Event-based
// masters have no generation period.
func ForFrequency(freq models.Frequency, fiscalStart time.Month, now time.Time) (models.Period, bool) {
	switch freq {
	case models.FrequencyMonthly:
		return PreviousMonth(now), true
	case models.FrequencyQuarterly:
		return PreviousQuarter(now), true
	case models.FrequencyAnnual:
		return PreviousFiscalYear(now, fiscalStart), true
	default:
		return models.Period{}, false
	}
}
