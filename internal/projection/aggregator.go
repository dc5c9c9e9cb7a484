package projection

import (
	"time"

	"fluxo/internal/core"
)

// DefaultHorizon is the number of months shown on the dashboard chart.
const DefaultHorizon = 6

// Project builds horizon consecutive month buckets starting at today's month.
// The closing balance is seeded from the account balances, or zero when no
// accounts are supplied.
func Project(horizon int, in Inputs, today time.Time) ([]core.MonthBucket, error) {
	if horizon < 1 {
		return nil, &core.InputValidationError{Field: "horizon", Reason: "must be at least 1 month"}
	}

	current := core.PeriodOf(today)
	balance := in.OpeningBalance()
	buckets := make([]core.MonthBucket, 0, horizon)

	for p := range Months(current, horizon) {
		totals := totalsOf(collect(p, in, current))
		balance = balance.Add(totals.Net())
		buckets = append(buckets, core.MonthBucket{
			Period:         p,
			Label:          p.Label(),
			Totals:         totals,
			ExpenseDisplay: totals.Expense.Neg(),
			ClosingBalance: balance,
			Unavailable:    in.unavailableFor(p, current),
		})
	}
	return buckets, nil
}
