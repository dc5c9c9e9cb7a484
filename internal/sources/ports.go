// Package sources defines the collaborator ports the engine reads from and
// the pieces shared by their implementations: recurrence schedules and the
// JSON seed format.
package sources

import (
	"context"
	"time"

	"fluxo/internal/core"
)

// Ports for inbound collaborators. Every implementation is scoped to one
// tenant; the engine performs no tenant filtering.
type (
	AccountSource interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
	}

	// CardSource returns cards together with their current invoice snapshot.
	CardSource interface {
		ListCards(ctx context.Context) ([]core.CardInvoice, error)
	}

	RecurringSource interface {
		ListRecurringRules(ctx context.Context) ([]core.RecurringRule, error)
	}

	InstallmentSource interface {
		ListInstallments(ctx context.Context) ([]core.InstallmentPurchase, error)
	}

	FinancingSource interface {
		ListFinancings(ctx context.Context) ([]core.FinancingContract, error)
	}

	// TransactionSource returns realized transactions dated in [from, to).
	TransactionSource interface {
		ListTransactions(ctx context.Context, from, to time.Time) ([]core.TransactionRecord, error)
	}

	// Collaborators is implemented by backends serving every port.
	Collaborators interface {
		AccountSource
		CardSource
		RecurringSource
		InstallmentSource
		FinancingSource
		TransactionSource
	}
)

// Set bundles the individual ports. Nil ports are reported as unavailable.
type Set struct {
	Accounts     AccountSource
	Cards        CardSource
	Recurring    RecurringSource
	Installments InstallmentSource
	Financings   FinancingSource
	Transactions TransactionSource
}

// SetOf uses one backend for every port.
func SetOf(c Collaborators) Set {
	return Set{
		Accounts:     c,
		Cards:        c,
		Recurring:    c,
		Installments: c,
		Financings:   c,
		Transactions: c,
	}
}
