package projection

import (
	"time"

	"fluxo/internal/core"
)

// DefaultLookback is how many months before the current one a drill-down may
// reach.
const DefaultLookback = 12

// Bounds is the window of months a drill-down accepts, relative to today.
type Bounds struct {
	Horizon  int
	Lookback int
}

// DefaultBounds matches the dashboard projection.
func DefaultBounds() Bounds {
	return Bounds{Horizon: DefaultHorizon, Lookback: DefaultLookback}
}

// Check validates a requested (month, year) against the bounds.
func (b Bounds) Check(month, year int, today time.Time) (core.Period, error) {
	if year < 1 {
		return core.Period{}, &core.InputValidationError{Field: "year", Reason: "must be positive"}
	}
	if month < 1 || month > 12 {
		return core.Period{}, &core.OutOfRangeError{Month: month, Year: year, Reason: "month must be between 1 and 12"}
	}
	if b.Horizon < 1 {
		return core.Period{}, &core.InputValidationError{Field: "horizon", Reason: "must be at least 1 month"}
	}

	p := core.Period{Year: year, Month: month}
	offset := core.PeriodOf(today).MonthsUntil(p)
	if offset >= b.Horizon {
		return core.Period{}, &core.OutOfRangeError{Month: month, Year: year, Reason: "beyond the projection horizon"}
	}
	if offset < -b.Lookback {
		return core.Period{}, &core.OutOfRangeError{Month: month, Year: year, Reason: "before the look-back window"}
	}
	return p, nil
}

// Detail resolves the records behind one month. Its totals equal the bucket
// Project returns for the same month and inputs.
func Detail(month, year int, in Inputs, today time.Time, bounds Bounds) (core.MonthDetail, error) {
	p, err := bounds.Check(month, year, today)
	if err != nil {
		return core.MonthDetail{}, err
	}

	current := core.PeriodOf(today)
	lines := collect(p, in, current)
	realized := len(lines.RealizedIncome) + len(lines.RealizedCardExpense) + len(lines.RealizedAccountExpense)
	total := realized +
		len(lines.RecurringIncome) +
		len(lines.RecurringExpense) +
		len(lines.InstallmentExpense) +
		len(lines.FinancingExpense)

	return core.MonthDetail{
		Period:                p,
		Label:                 p.Label(),
		IsCurrentMonth:        p == current,
		Lines:                 lines,
		Totals:                totalsOf(lines),
		TotalTransactionCount: total,
		RealizedCount:         realized,
		ProjectedCount:        total - realized,
		Unavailable:           in.unavailableFor(p, current),
	}, nil
}
