// Package projection turns collaborator records into the month-by-month
// cash-flow series and its per-month drill-down.
//
// Project and Detail share one filtering routine, so a month's detail always
// adds up to the bucket the projection produced for the same inputs. Both are
// pure: no state survives between calls and they are safe for concurrent use.
package projection

import (
	"iter"
	"slices"

	"fluxo/internal/core"
)

// Inputs is the already-deserialized collaborator data for one tenant.
type Inputs struct {
	Accounts     []core.Account
	Cards        []core.Card
	Recurring    []core.RecurringRule
	Installments []core.InstallmentPurchase
	Financings   []core.FinancingContract
	// Transactions are realized records. Entries tagged with another source
	// kind are ignored so materialized projections are never counted twice.
	Transactions []core.TransactionRecord

	// Unavailable lists the sources whose fetch failed. Totals for the affected
	// months exclude them and carry the marker instead.
	Unavailable []core.SourceKind
}

// OpeningBalance is the sum of all account balances.
func (in Inputs) OpeningBalance() core.Money {
	var total core.Money
	for _, a := range in.Accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// unavailableFor reports which missing sources affect p. Realized data cannot
// exist for future months, so its absence only matters up to the current one.
func (in Inputs) unavailableFor(p, current core.Period) []core.SourceKind {
	var out []core.SourceKind
	for _, k := range in.Unavailable {
		if k == core.SourceRealized && p.After(current) {
			continue
		}
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

// Months yields n consecutive periods starting at start.
func Months(start core.Period, n int) iter.Seq[core.Period] {
	return func(yield func(core.Period) bool) {
		p := start
		for range n {
			if !yield(p) {
				return
			}
			p = p.Next()
		}
	}
}
