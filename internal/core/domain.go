package core

import (
	"errors"
	"iter"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	SourceRealized    SourceKind = "realized"
	SourceRecurring   SourceKind = "recurring"
	SourceInstallment SourceKind = "installment"
	SourceFinancing   SourceKind = "financing"

	// SourceBalances only appears in unavailability markers: the account
	// balances seeding the closing balance could not be loaded.
	SourceBalances SourceKind = "balances"
)

const (
	OriginAccount OriginType = "account"
	OriginCard    OriginType = "card"
)

const (
	AmortizationSAC   AmortizationSystem = "SAC"
	AmortizationPrice AmortizationSystem = "PRICE"
	AmortizationOther AmortizationSystem = "OTHER"
)

type (
	Frequency          string
	Kind               string
	SourceKind         string
	OriginType         string
	AmortizationSystem string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// OriginRef points at the account or card a record belongs to.
	OriginRef struct {
		Type OriginType
		ID   string
	}

	Account struct {
		ID      string
		Name    string
		Balance Money // signed
		Active  bool
	}

	Card struct {
		ID          string
		Name        string
		Brand       string
		CreditLimit Money
		DueDay      int
		ClosingDay  int // 0 when the collaborator did not provide one
		Color       string
		Active      bool
	}

	InvoiceSnapshot struct {
		CurrentAmount    Money
		TotalMonthAmount Money
		DaysToDueDate    *int
		DueDate          *Date
		PercentLimitUsed float64
	}

	// CardInvoice is a card together with the invoice snapshot supplied for it.
	CardInvoice struct {
		Card     Card
		Snapshot InvoiceSnapshot
	}

	TransactionRecord struct {
		ID          string
		Description string
		Date        Date
		Amount      Money // magnitude; direction is carried by Kind
		Kind        Kind
		Category    string
		Source      SourceKind
		Origin      OriginRef
	}

	// Occurrence is one dated, valued instance produced by a recurring rule.
	Occurrence struct {
		Date   Date
		Amount Money
	}

	// Schedule yields the occurrences of a recurring rule inside [from, to).
	// Implementations belong to the collaborator layer.
	Schedule interface {
		Occurrences(from, to time.Time) iter.Seq[Occurrence]
	}

	RecurringRule struct {
		ID          string
		Description string
		Amount      Money
		Kind        Kind
		Frequency   Frequency
		Category    string
		Origin      OriginRef
		Schedule    Schedule
	}

	InstallmentDue struct {
		Number  int // 1-based
		DueDate Date
		Amount  Money
	}

	InstallmentPurchase struct {
		ID                string
		Description       string
		Category          string
		TotalAmount       Money
		InstallmentAmount Money
		TotalInstallments int
		PaidInstallments  int
		CardID            string
		Dues              []InstallmentDue
	}

	ScheduledPayment struct {
		Number int
		Date   Date
		Amount Money
	}

	FinancingContract struct {
		ID          string
		Description string
		Institution string
		System      AmortizationSystem
		Payments    []ScheduledPayment
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyID          = errors.New("empty id")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping the wall-clock date of t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// KindFromSigned splits a signed amount into its direction and magnitude.
// Zero is treated as an expense of zero.
func KindFromSigned(cents int64) (Kind, Money) {
	if cents > 0 {
		return Income, Money{Cents: cents}
	}
	return Expense, Money{Cents: -cents}
}

// EffectiveClosingDay returns the closing day, falling back to five days before
// the due day, or 25 when the due day is too early in the month.
func (c Card) EffectiveClosingDay() int {
	if c.ClosingDay > 0 {
		return c.ClosingDay
	}
	if c.DueDay > 5 {
		return c.DueDay - 5
	}
	return 25
}

func (c Card) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyID
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return ErrInvalidDay
	}
	if c.ClosingDay < 0 || c.ClosingDay > 31 {
		return ErrInvalidDay
	}
	if c.CreditLimit.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t TransactionRecord) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	switch t.Kind {
	case Income, Expense:
	default:
		return errors.New("invalid transaction kind")
	}
	return nil
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return ErrEmptyDescription
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	switch r.Frequency {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return errors.New("invalid repetition type")
	}
	if r.Schedule == nil {
		return errors.New("recurring rule has no schedule")
	}
	return nil
}

// IsUnpaid reports whether the installment with the given number is still open.
func (p InstallmentPurchase) IsUnpaid(number int) bool {
	return number > p.PaidInstallments
}

// RemainingInstallments is the number of installments not yet paid.
func (p InstallmentPurchase) RemainingInstallments() int {
	if rem := p.TotalInstallments - p.PaidInstallments; rem > 0 {
		return rem
	}
	return 0
}

const (
	InvoiceOpen    InvoiceState = "open"
	InvoiceClosed  InvoiceState = "closed"
	InvoiceOverdue InvoiceState = "overdue"
)

// InvoiceState is derived from a card, its snapshot and today; never persisted.
type InvoiceState string
