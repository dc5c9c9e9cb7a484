// Package invoice classifies credit-card invoices into lifecycle states.
//
// The classification is a pure function of the card, the invoice snapshot the
// collaborator supplied for it, and the caller's notion of today. Nothing here
// is persisted; states are recomputed on every call.
package invoice

import (
	"time"

	"fluxo/internal/core"
)

// billingCycleDays is the simplified month length used when the snapshot
// carries no due-date signal.
const billingCycleDays = 30

// Assessment is the full result of classifying one invoice.
type Assessment struct {
	State      core.InvoiceState
	ClosingDay int
	// DaysToDue is the snapshot value when FromSnapshot is true, otherwise the
	// 30-day approximation. It is only meaningful for Closed invoices on the
	// fallback path, where the snapshot gave no signal.
	DaysToDue    int
	FromSnapshot bool
}

// Classify returns the lifecycle state of a card's current invoice.
func Classify(card core.Card, snap core.InvoiceSnapshot, today time.Time) core.InvoiceState {
	return Evaluate(card, snap, today).State
}

// Evaluate classifies the invoice and reports how the state was derived.
func Evaluate(card core.Card, snap core.InvoiceSnapshot, today time.Time) Assessment {
	closing := card.EffectiveClosingDay()
	day := today.Day()

	if snap.DaysToDueDate != nil {
		a := Assessment{ClosingDay: closing, DaysToDue: *snap.DaysToDueDate, FromSnapshot: true}
		switch {
		case *snap.DaysToDueDate < 0:
			a.State = core.InvoiceOverdue
		case day > closing:
			a.State = core.InvoiceClosed
		default:
			a.State = core.InvoiceOpen
		}
		return a
	}

	if day <= closing {
		return Assessment{State: core.InvoiceOpen, ClosingDay: closing}
	}
	return Assessment{
		State:      core.InvoiceClosed,
		ClosingDay: closing,
		DaysToDue:  fallbackDaysToDue(card.DueDay, day),
	}
}

// fallbackDaysToDue wraps around a fixed 30-day month regardless of the
// actual calendar length.
func fallbackDaysToDue(dueDay, today int) int {
	if dueDay >= today {
		return dueDay - today
	}
	return billingCycleDays - today + dueDay
}
