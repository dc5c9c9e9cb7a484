package projection

import (
	"fmt"
	"strconv"

	"fluxo/internal/core"
)

// collect gathers every record contributing to period p. A record belongs to
// the month of its own date and to no other.
func collect(p core.Period, in Inputs, current core.Period) core.MonthLines {
	var lines core.MonthLines

	if !p.After(current) {
		for _, tx := range in.Transactions {
			if !isRealized(tx) || !p.Contains(tx.Date) {
				continue
			}
			tx.Source = core.SourceRealized
			switch {
			case tx.Kind == core.Income:
				lines.RealizedIncome = append(lines.RealizedIncome, tx)
			case tx.Origin.Type == core.OriginCard:
				lines.RealizedCardExpense = append(lines.RealizedCardExpense, tx)
			default:
				lines.RealizedAccountExpense = append(lines.RealizedAccountExpense, tx)
			}
		}
	}

	for _, rule := range in.Recurring {
		if rule.Schedule == nil {
			continue
		}
		for occ := range rule.Schedule.Occurrences(p.Start(), p.End()) {
			if !p.Contains(occ.Date) {
				continue
			}
			rec := core.TransactionRecord{
				ID:          rule.ID + "#" + occ.Date.Format("2006-01-02"),
				Description: rule.Description,
				Date:        occ.Date,
				Amount:      occ.Amount,
				Kind:        rule.Kind,
				Category:    rule.Category,
				Source:      core.SourceRecurring,
				Origin:      rule.Origin,
			}
			if rule.Kind == core.Income {
				lines.RecurringIncome = append(lines.RecurringIncome, rec)
			} else {
				lines.RecurringExpense = append(lines.RecurringExpense, rec)
			}
		}
	}

	for _, purchase := range in.Installments {
		for _, due := range purchase.Dues {
			if !purchase.IsUnpaid(due.Number) || !p.Contains(due.DueDate) {
				continue
			}
			lines.InstallmentExpense = append(lines.InstallmentExpense, core.TransactionRecord{
				ID:          purchase.ID + "#" + strconv.Itoa(due.Number),
				Description: fmt.Sprintf("%s (%d/%d)", purchase.Description, due.Number, purchase.TotalInstallments),
				Date:        due.DueDate,
				Amount:      due.Amount,
				Kind:        core.Expense,
				Category:    purchase.Category,
				Source:      core.SourceInstallment,
				Origin:      core.OriginRef{Type: core.OriginCard, ID: purchase.CardID},
			})
		}
	}

	for _, contract := range in.Financings {
		for _, pay := range contract.Payments {
			if !p.Contains(pay.Date) {
				continue
			}
			lines.FinancingExpense = append(lines.FinancingExpense, core.TransactionRecord{
				ID:          contract.ID + "#" + strconv.Itoa(pay.Number),
				Description: fmt.Sprintf("%s (%d/%d)", contract.Description, pay.Number, len(contract.Payments)),
				Date:        pay.Date,
				Amount:      pay.Amount,
				Kind:        core.Expense,
				Category:    contract.Institution,
				Source:      core.SourceFinancing,
			})
		}
	}

	return lines
}

func isRealized(tx core.TransactionRecord) bool {
	return tx.Source == core.SourceRealized || tx.Source == ""
}

func sum(records []core.TransactionRecord) core.Money {
	var total core.Money
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}

// totalsOf reduces the lines to their sub-totals.
func totalsOf(lines core.MonthLines) core.Totals {
	b := core.Breakdown{
		RealizedIncome:         sum(lines.RealizedIncome),
		RecurringIncome:        sum(lines.RecurringIncome),
		RealizedCardExpense:    sum(lines.RealizedCardExpense),
		RealizedAccountExpense: sum(lines.RealizedAccountExpense),
		RecurringExpense:       sum(lines.RecurringExpense),
		InstallmentExpense:     sum(lines.InstallmentExpense),
		FinancingExpense:       sum(lines.FinancingExpense),
	}
	return core.Totals{Income: b.IncomeTotal(), Expense: b.ExpenseTotal(), Breakdown: b}
}
