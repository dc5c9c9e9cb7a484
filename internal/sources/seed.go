package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"fluxo/internal/core"
)

// Dataset is the full collaborator data of one tenant.
type Dataset struct {
	Accounts     []core.Account
	Cards        []core.CardInvoice
	Recurring    []core.RecurringRule
	Installments []core.InstallmentPurchase
	Financings   []core.FinancingContract
	Transactions []core.TransactionRecord
}

// Seed file layout. Amounts are decimal strings; transaction amounts are
// signed (negative for expenses).
type (
	seedFile struct {
		Accounts     []seedAccount     `json:"accounts"`
		Cards        []seedCard        `json:"cards"`
		Recurring    []seedRecurring   `json:"recurring"`
		Installments []seedInstallment `json:"installments"`
		Financings   []seedFinancing   `json:"financings"`
		Transactions []seedTransaction `json:"transactions"`
	}

	seedOrigin struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}

	seedAccount struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Balance string `json:"balance"`
		Active  *bool  `json:"active"`
	}

	seedInvoice struct {
		CurrentAmount    string  `json:"current_amount"`
		TotalMonthAmount string  `json:"total_month_amount"`
		DaysToDueDate    *int    `json:"days_to_due_date"`
		DueDate          string  `json:"due_date"`
		PercentLimitUsed float64 `json:"percent_limit_used"`
	}

	seedCard struct {
		ID          string      `json:"id"`
		Name        string      `json:"name"`
		Brand       string      `json:"brand"`
		CreditLimit string      `json:"credit_limit"`
		DueDay      int         `json:"due_day"`
		ClosingDay  int         `json:"closing_day"`
		Color       string      `json:"color"`
		Active      *bool       `json:"active"`
		Invoice     seedInvoice `json:"invoice"`
	}

	seedRecurring struct {
		ID          string     `json:"id"`
		Description string     `json:"description"`
		Amount      string     `json:"amount"`
		Kind        string     `json:"kind"`
		Frequency   string     `json:"frequency"`
		Category    string     `json:"category"`
		Start       string     `json:"start"`
		End         string     `json:"end"`
		Origin      seedOrigin `json:"origin"`
	}

	seedInstallment struct {
		ID                string `json:"id"`
		Description       string `json:"description"`
		Category          string `json:"category"`
		TotalAmount       string `json:"total_amount"`
		InstallmentAmount string `json:"installment_amount"`
		Installments      int    `json:"installments"`
		Paid              int    `json:"paid"`
		CardID            string `json:"card_id"`
		FirstDue          string `json:"first_due"`
	}

	seedPayment struct {
		Number int    `json:"number"`
		Date   string `json:"date"`
		Amount string `json:"amount"`
	}

	seedFinancing struct {
		ID           string        `json:"id"`
		Description  string        `json:"description"`
		Institution  string        `json:"institution"`
		System       string        `json:"system"`
		Payments     []seedPayment `json:"payments"`
		FirstPayment string        `json:"first_payment"`
		Count        int           `json:"count"`
		Amount       string        `json:"amount"`
	}

	seedTransaction struct {
		ID          string     `json:"id"`
		Description string     `json:"description"`
		Date        string     `json:"date"`
		Amount      string     `json:"amount"`
		Category    string     `json:"category"`
		Origin      seedOrigin `json:"origin"`
	}
)

// LoadSeed reads a JSON seed file.
func LoadSeed(path string) (Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes a JSON seed document. All problems are reported at once.
func ParseSeed(raw []byte) (Dataset, error) {
	var f seedFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return Dataset{}, fmt.Errorf("decode seed: %w", err)
	}

	var (
		ds   Dataset
		errs []error
	)
	fail := func(kind, id string, err error) {
		errs = append(errs, fmt.Errorf("%s %q: %w", kind, id, err))
	}

	for _, a := range f.Accounts {
		balance, err := core.ParseDecimalToCents(orZero(a.Balance))
		if err != nil {
			fail("account", a.ID, err)
			continue
		}
		ds.Accounts = append(ds.Accounts, core.Account{ID: a.ID, Name: a.Name, Balance: core.Money{Cents: balance}, Active: active(a.Active)})
	}

	for _, c := range f.Cards {
		ci, err := c.toCore()
		if err != nil {
			fail("card", c.ID, err)
			continue
		}
		ds.Cards = append(ds.Cards, ci)
	}

	for _, r := range f.Recurring {
		rule, err := r.toCore()
		if err != nil {
			fail("recurring rule", r.ID, err)
			continue
		}
		ds.Recurring = append(ds.Recurring, rule)
	}

	for _, p := range f.Installments {
		purchase, err := p.toCore()
		if err != nil {
			fail("installment", p.ID, err)
			continue
		}
		ds.Installments = append(ds.Installments, purchase)
	}

	for _, fc := range f.Financings {
		contract, err := fc.toCore()
		if err != nil {
			fail("financing", fc.ID, err)
			continue
		}
		ds.Financings = append(ds.Financings, contract)
	}

	for _, t := range f.Transactions {
		tx, err := t.toCore()
		if err != nil {
			fail("transaction", t.ID, err)
			continue
		}
		ds.Transactions = append(ds.Transactions, tx)
	}

	if len(errs) > 0 {
		return Dataset{}, errors.Join(errs...)
	}
	return ds, nil
}

func (c seedCard) toCore() (core.CardInvoice, error) {
	limit, err := core.ParseDecimalToCents(orZero(c.CreditLimit))
	if err != nil {
		return core.CardInvoice{}, fmt.Errorf("credit limit: %w", err)
	}
	current, err := core.ParseDecimalToCents(orZero(c.Invoice.CurrentAmount))
	if err != nil {
		return core.CardInvoice{}, fmt.Errorf("current amount: %w", err)
	}
	month, err := core.ParseDecimalToCents(orZero(c.Invoice.TotalMonthAmount))
	if err != nil {
		return core.CardInvoice{}, fmt.Errorf("month amount: %w", err)
	}
	card := core.Card{
		ID:          c.ID,
		Name:        c.Name,
		Brand:       c.Brand,
		CreditLimit: core.Money{Cents: limit},
		DueDay:      c.DueDay,
		ClosingDay:  c.ClosingDay,
		Color:       c.Color,
		Active:      active(c.Active),
	}
	if err := card.Validate(); err != nil {
		return core.CardInvoice{}, err
	}
	snap := core.InvoiceSnapshot{
		CurrentAmount:    core.Money{Cents: current},
		TotalMonthAmount: core.Money{Cents: month},
		DaysToDueDate:    c.Invoice.DaysToDueDate,
		PercentLimitUsed: c.Invoice.PercentLimitUsed,
	}
	if c.Invoice.DueDate != "" {
		d, err := ParseDate(c.Invoice.DueDate)
		if err != nil {
			return core.CardInvoice{}, fmt.Errorf("due date: %w", err)
		}
		snap.DueDate = &d
	}
	return core.CardInvoice{Card: card, Snapshot: snap}, nil
}

func (r seedRecurring) toCore() (core.RecurringRule, error) {
	amount, err := core.ParsePositiveCents(r.Amount)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("amount: %w", err)
	}
	start, err := ParseDate(r.Start)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("start: %w", err)
	}
	var end *core.Date
	if r.End != "" {
		d, err := ParseDate(r.End)
		if err != nil {
			return core.RecurringRule{}, fmt.Errorf("end: %w", err)
		}
		end = &d
	}
	schedule, err := NewFrequencySchedule(start, end, core.Frequency(r.Frequency), core.Money{Cents: amount})
	if err != nil {
		return core.RecurringRule{}, err
	}
	kind, err := ParseKind(r.Kind)
	if err != nil {
		return core.RecurringRule{}, err
	}
	rule := core.RecurringRule{
		ID:          r.ID,
		Description: r.Description,
		Amount:      core.Money{Cents: amount},
		Kind:        kind,
		Frequency:   core.Frequency(r.Frequency),
		Category:    r.Category,
		Origin:      r.Origin.toCore(),
		Schedule:    schedule,
	}
	return rule, rule.Validate()
}

func (p seedInstallment) toCore() (core.InstallmentPurchase, error) {
	if p.Installments < 1 {
		return core.InstallmentPurchase{}, errors.New("installments must be at least 1")
	}
	if p.Paid < 0 || p.Paid > p.Installments {
		return core.InstallmentPurchase{}, errors.New("paid installments out of range")
	}
	total, err := core.ParsePositiveCents(p.TotalAmount)
	if err != nil {
		return core.InstallmentPurchase{}, fmt.Errorf("total amount: %w", err)
	}
	each := total / int64(p.Installments)
	if p.InstallmentAmount != "" {
		if each, err = core.ParsePositiveCents(p.InstallmentAmount); err != nil {
			return core.InstallmentPurchase{}, fmt.Errorf("installment amount: %w", err)
		}
	}
	first, err := ParseDate(p.FirstDue)
	if err != nil {
		return core.InstallmentPurchase{}, fmt.Errorf("first due: %w", err)
	}
	return core.InstallmentPurchase{
		ID:                p.ID,
		Description:       p.Description,
		Category:          p.Category,
		TotalAmount:       core.Money{Cents: total},
		InstallmentAmount: core.Money{Cents: each},
		TotalInstallments: p.Installments,
		PaidInstallments:  p.Paid,
		CardID:            p.CardID,
		Dues:              MonthlyDues(first, p.Installments, core.Money{Cents: each}),
	}, nil
}

func (f seedFinancing) toCore() (core.FinancingContract, error) {
	c := core.FinancingContract{
		ID:          f.ID,
		Description: f.Description,
		Institution: f.Institution,
		System:      core.AmortizationSystem(f.System),
	}
	switch c.System {
	case core.AmortizationSAC, core.AmortizationPrice, core.AmortizationOther:
	case "":
		c.System = core.AmortizationOther
	default:
		return core.FinancingContract{}, fmt.Errorf("unknown amortization system %q", f.System)
	}

	if len(f.Payments) > 0 {
		for _, p := range f.Payments {
			d, err := ParseDate(p.Date)
			if err != nil {
				return core.FinancingContract{}, fmt.Errorf("payment %d: %w", p.Number, err)
			}
			amount, err := core.ParsePositiveCents(p.Amount)
			if err != nil {
				return core.FinancingContract{}, fmt.Errorf("payment %d: %w", p.Number, err)
			}
			c.Payments = append(c.Payments, core.ScheduledPayment{Number: p.Number, Date: d, Amount: core.Money{Cents: amount}})
		}
		return c, nil
	}

	first, err := ParseDate(f.FirstPayment)
	if err != nil {
		return core.FinancingContract{}, fmt.Errorf("first payment: %w", err)
	}
	amount, err := core.ParsePositiveCents(f.Amount)
	if err != nil {
		return core.FinancingContract{}, fmt.Errorf("amount: %w", err)
	}
	c.Payments = MonthlyPayments(first, f.Count, core.Money{Cents: amount})
	return c, nil
}

func (t seedTransaction) toCore() (core.TransactionRecord, error) {
	signed, err := core.ParseDecimalToCents(t.Amount)
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("amount: %w", err)
	}
	d, err := ParseDate(t.Date)
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("date: %w", err)
	}
	kind, amount := core.KindFromSigned(signed)
	tx := core.TransactionRecord{
		ID:          t.ID,
		Description: t.Description,
		Date:        d,
		Amount:      amount,
		Kind:        kind,
		Category:    t.Category,
		Source:      core.SourceRealized,
		Origin:      t.Origin.toCore(),
	}
	return tx, tx.Validate()
}

func (o seedOrigin) toCore() core.OriginRef {
	if o.Type == string(core.OriginCard) {
		return core.OriginRef{Type: core.OriginCard, ID: o.ID}
	}
	return core.OriginRef{Type: core.OriginAccount, ID: o.ID}
}

// ParseDate parses an ISO date (2006-01-02).
func ParseDate(s string) (core.Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return core.Date{}, err
	}
	return core.DateOf(t), nil
}

// ParseKind accepts "income" and "expense".
func ParseKind(s string) (core.Kind, error) {
	switch core.Kind(s) {
	case core.Income, core.Expense:
		return core.Kind(s), nil
	default:
		return "", fmt.Errorf("unknown kind %q", s)
	}
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func active(b *bool) bool {
	return b == nil || *b
}
