package invoice

import (
	"time"

	"fluxo/internal/core"
)

// Line is one classified card invoice.
type Line struct {
	Card       core.Card
	Snapshot   core.InvoiceSnapshot
	Assessment Assessment
}

// Summary folds active cards into their lifecycle groups.
type Summary struct {
	Open    []Line
	Closed  []Line
	Overdue []Line

	OpenTotal    core.Money
	ClosedTotal  core.Money
	OverdueTotal core.Money

	TotalLimit     core.Money
	TotalUsed      core.Money
	AvailableLimit core.Money
	UsagePercent   float64
}

// Summarize classifies every active card and accumulates the group totals.
// Group totals sum currentAmount; used limit sums totalMonthAmount.
func Summarize(cards []core.CardInvoice, today time.Time) Summary {
	var s Summary
	for _, ci := range cards {
		if !ci.Card.Active {
			continue
		}
		line := Line{Card: ci.Card, Snapshot: ci.Snapshot, Assessment: Evaluate(ci.Card, ci.Snapshot, today)}
		switch line.Assessment.State {
		case core.InvoiceOverdue:
			s.Overdue = append(s.Overdue, line)
			s.OverdueTotal = s.OverdueTotal.Add(ci.Snapshot.CurrentAmount)
		case core.InvoiceClosed:
			s.Closed = append(s.Closed, line)
			s.ClosedTotal = s.ClosedTotal.Add(ci.Snapshot.CurrentAmount)
		default:
			s.Open = append(s.Open, line)
			s.OpenTotal = s.OpenTotal.Add(ci.Snapshot.CurrentAmount)
		}
		s.TotalLimit = s.TotalLimit.Add(ci.Card.CreditLimit)
		s.TotalUsed = s.TotalUsed.Add(ci.Snapshot.TotalMonthAmount)
	}
	s.AvailableLimit = s.TotalLimit.Sub(s.TotalUsed)
	s.UsagePercent = core.Percent(s.TotalUsed, s.TotalLimit)
	return s
}

// Count returns the number of classified invoices.
func (s Summary) Count() int {
	return len(s.Open) + len(s.Closed) + len(s.Overdue)
}
