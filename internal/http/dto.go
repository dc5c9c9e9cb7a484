package http

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"fluxo/internal/core"
	"fluxo/internal/invoice"
)

// amount marshals as a JSON number with two decimals.
type amount core.Money

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(core.Money(a).String()), nil
}

type breakdownDTO struct {
	RealizedIncome         amount `json:"realized_income"`
	RecurringIncome        amount `json:"recurring_income"`
	RealizedCardExpense    amount `json:"realized_card_expense"`
	RealizedAccountExpense amount `json:"realized_account_expense"`
	RecurringExpense       amount `json:"recurring_expense"`
	InstallmentExpense     amount `json:"installment_expense"`
	FinancingExpense       amount `json:"financing_expense"`
}

type totalsDTO struct {
	Income    amount       `json:"income"`
	Expense   amount       `json:"expense"`
	Net       amount       `json:"net"`
	Breakdown breakdownDTO `json:"breakdown"`
}

type monthDTO struct {
	Period         string    `json:"period"`
	Label          string    `json:"label"`
	Totals         totalsDTO `json:"totals"`
	ExpenseDisplay amount    `json:"expense_display"`
	ClosingBalance amount    `json:"closing_balance"`
	Partial        bool      `json:"partial"`
	Unavailable    []string  `json:"unavailable,omitempty"`
}

type projectionResponse struct {
	Months []monthDTO `json:"months"`
}

type transactionDTO struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Amount      amount `json:"amount"`
	Kind        string `json:"kind"`
	Category    string `json:"category,omitempty"`
	Source      string `json:"source"`
	OriginType  string `json:"origin_type,omitempty"`
	OriginID    string `json:"origin_id,omitempty"`
}

type linesDTO struct {
	RealizedIncome         []transactionDTO `json:"realized_income"`
	RecurringIncome        []transactionDTO `json:"recurring_income"`
	RealizedCardExpense    []transactionDTO `json:"realized_card_expense"`
	RealizedAccountExpense []transactionDTO `json:"realized_account_expense"`
	RecurringExpense       []transactionDTO `json:"recurring_expense"`
	InstallmentExpense     []transactionDTO `json:"installment_expense"`
	FinancingExpense       []transactionDTO `json:"financing_expense"`
}

type detailResponse struct {
	Period                string    `json:"period"`
	Label                 string    `json:"label"`
	IsCurrentMonth        bool      `json:"is_current_month"`
	Totals                totalsDTO `json:"totals"`
	Lines                 linesDTO  `json:"lines"`
	TotalTransactionCount int       `json:"total_transaction_count"`
	RealizedCount         int       `json:"realized_count"`
	ProjectedCount        int       `json:"projected_count"`
	Partial               bool      `json:"partial"`
	Unavailable           []string  `json:"unavailable,omitempty"`
}

type invoiceDTO struct {
	CardID           string  `json:"card_id"`
	Name             string  `json:"name"`
	Brand            string  `json:"brand,omitempty"`
	Color            string  `json:"color,omitempty"`
	State            string  `json:"state"`
	CurrentAmount    amount  `json:"current_amount"`
	TotalMonthAmount amount  `json:"total_month_amount"`
	CreditLimit      amount  `json:"credit_limit"`
	PercentLimitUsed float64 `json:"percent_limit_used"`
	DueDay           int     `json:"due_day"`
	ClosingDay       int     `json:"closing_day"`
	DaysToDue        int     `json:"days_to_due"`
	DueDate          string  `json:"due_date,omitempty"`
}

type invoicesResponse struct {
	Open           []invoiceDTO `json:"open"`
	Closed         []invoiceDTO `json:"closed"`
	Overdue        []invoiceDTO `json:"overdue"`
	OpenTotal      amount       `json:"open_total"`
	ClosedTotal    amount       `json:"closed_total"`
	OverdueTotal   amount       `json:"overdue_total"`
	TotalLimit     amount       `json:"total_limit"`
	TotalUsed      amount       `json:"total_used"`
	AvailableLimit amount       `json:"available_limit"`
	UsagePercent   float64      `json:"usage_percent"`
}

type mutationRequest struct {
	Entity string `json:"entity"`
	Action string `json:"action"`
}

// transactionRequest records a realized transaction. Amount is a positive
// decimal string; the direction comes from Kind.
type transactionRequest struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Category    string `json:"category"`
	OriginType  string `json:"origin_type"`
	OriginID    string `json:"origin_id"`
}

func (req transactionRequest) record() (core.TransactionRecord, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return core.TransactionRecord{}, &core.InputValidationError{Field: "description", Reason: "is required"}
	}
	if len(description) > 200 {
		return core.TransactionRecord{}, &core.InputValidationError{Field: "description", Reason: "must be at most 200 characters"}
	}
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(req.Date))
	if err != nil {
		return core.TransactionRecord{}, &core.InputValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	cents, err := core.ParsePositiveCents(req.Amount)
	if err != nil {
		return core.TransactionRecord{}, &core.InputValidationError{Field: "amount", Reason: "must be a positive decimal"}
	}
	kind := core.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if kind != core.Income && kind != core.Expense {
		return core.TransactionRecord{}, &core.InputValidationError{Field: "kind", Reason: "must be income or expense"}
	}
	origin := core.OriginRef{Type: core.OriginType(strings.ToLower(strings.TrimSpace(req.OriginType))), ID: strings.TrimSpace(req.OriginID)}
	switch origin.Type {
	case "":
		origin.ID = ""
	case core.OriginAccount, core.OriginCard:
		if origin.ID == "" {
			return core.TransactionRecord{}, &core.InputValidationError{Field: "origin_id", Reason: "is required with origin_type"}
		}
	default:
		return core.TransactionRecord{}, &core.InputValidationError{Field: "origin_type", Reason: "must be account or card"}
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	return core.TransactionRecord{
		ID:          id,
		Description: description,
		Date:        core.DateOf(date),
		Amount:      core.Money{Cents: cents},
		Kind:        kind,
		Category:    strings.TrimSpace(req.Category),
		Source:      core.SourceRealized,
		Origin:      origin,
	}, nil
}

type ackResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Keys   int    `json:"keys,omitempty"`
	At     string `json:"at,omitempty"`
}

func kindsOf(kinds []core.SourceKind) []string {
	if len(kinds) == 0 {
		return nil
	}
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func totalsOf(t core.Totals) totalsDTO {
	b := t.Breakdown
	return totalsDTO{
		Income:  amount(t.Income),
		Expense: amount(t.Expense),
		Net:     amount(t.Net()),
		Breakdown: breakdownDTO{
			RealizedIncome:         amount(b.RealizedIncome),
			RecurringIncome:        amount(b.RecurringIncome),
			RealizedCardExpense:    amount(b.RealizedCardExpense),
			RealizedAccountExpense: amount(b.RealizedAccountExpense),
			RecurringExpense:       amount(b.RecurringExpense),
			InstallmentExpense:     amount(b.InstallmentExpense),
			FinancingExpense:       amount(b.FinancingExpense),
		},
	}
}

func projectionOf(months []core.MonthBucket) projectionResponse {
	resp := projectionResponse{Months: make([]monthDTO, 0, len(months))}
	for _, m := range months {
		resp.Months = append(resp.Months, monthDTO{
			Period:         m.Period.String(),
			Label:          m.Label,
			Totals:         totalsOf(m.Totals),
			ExpenseDisplay: amount(m.ExpenseDisplay),
			ClosingBalance: amount(m.ClosingBalance),
			Partial:        m.Partial(),
			Unavailable:    kindsOf(m.Unavailable),
		})
	}
	return resp
}

func transactionsOf(txs []core.TransactionRecord) []transactionDTO {
	out := make([]transactionDTO, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionDTO{
			ID:          tx.ID,
			Description: tx.Description,
			Date:        tx.Date.Format(time.DateOnly),
			Amount:      amount(tx.Amount),
			Kind:        string(tx.Kind),
			Category:    tx.Category,
			Source:      string(tx.Source),
			OriginType:  string(tx.Origin.Type),
			OriginID:    tx.Origin.ID,
		})
	}
	return out
}

func detailOf(d core.MonthDetail) detailResponse {
	l := d.Lines
	return detailResponse{
		Period:         d.Period.String(),
		Label:          d.Label,
		IsCurrentMonth: d.IsCurrentMonth,
		Totals:         totalsOf(d.Totals),
		Lines: linesDTO{
			RealizedIncome:         transactionsOf(l.RealizedIncome),
			RecurringIncome:        transactionsOf(l.RecurringIncome),
			RealizedCardExpense:    transactionsOf(l.RealizedCardExpense),
			RealizedAccountExpense: transactionsOf(l.RealizedAccountExpense),
			RecurringExpense:       transactionsOf(l.RecurringExpense),
			InstallmentExpense:     transactionsOf(l.InstallmentExpense),
			FinancingExpense:       transactionsOf(l.FinancingExpense),
		},
		TotalTransactionCount: d.TotalTransactionCount,
		RealizedCount:         d.RealizedCount,
		ProjectedCount:        d.ProjectedCount,
		Partial:               d.Partial(),
		Unavailable:           kindsOf(d.Unavailable),
	}
}

func invoiceLines(lines []invoice.Line) []invoiceDTO {
	out := make([]invoiceDTO, 0, len(lines))
	for _, l := range lines {
		dto := invoiceDTO{
			CardID:           l.Card.ID,
			Name:             l.Card.Name,
			Brand:            l.Card.Brand,
			Color:            l.Card.Color,
			State:            string(l.Assessment.State),
			CurrentAmount:    amount(l.Snapshot.CurrentAmount),
			TotalMonthAmount: amount(l.Snapshot.TotalMonthAmount),
			CreditLimit:      amount(l.Card.CreditLimit),
			PercentLimitUsed: l.Snapshot.PercentLimitUsed,
			DueDay:           l.Card.DueDay,
			ClosingDay:       l.Assessment.ClosingDay,
			DaysToDue:        l.Assessment.DaysToDue,
		}
		if l.Snapshot.DueDate != nil {
			dto.DueDate = l.Snapshot.DueDate.Format(time.DateOnly)
		}
		out = append(out, dto)
	}
	return out
}

func invoicesOf(s invoice.Summary) invoicesResponse {
	return invoicesResponse{
		Open:           invoiceLines(s.Open),
		Closed:         invoiceLines(s.Closed),
		Overdue:        invoiceLines(s.Overdue),
		OpenTotal:      amount(s.OpenTotal),
		ClosedTotal:    amount(s.ClosedTotal),
		OverdueTotal:   amount(s.OverdueTotal),
		TotalLimit:     amount(s.TotalLimit),
		TotalUsed:      amount(s.TotalUsed),
		AvailableLimit: amount(s.AvailableLimit),
		UsagePercent:   s.UsagePercent,
	}
}
