package core

import (
	"fmt"
	"time"
)

var monthAbbrev = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Period is a calendar month.
type Period struct {
	Year  int
	Month int // 1-12
}

// PeriodOf returns the calendar month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Start is the first instant of the month (UTC).
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following month (exclusive bound).
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Contains reports whether d falls in the month. Only the calendar fields of d
// are compared, so a date is never attributed to two neighbouring months.
func (p Period) Contains(d Date) bool {
	return d.Year() == p.Year && d.Month() == p.Month
}

func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// MonthsUntil returns how many months o lies after p (negative when before).
func (p Period) MonthsUntil(o Period) int {
	return (o.Year-p.Year)*12 + (o.Month - p.Month)
}

func (p Period) Before(o Period) bool { return p.MonthsUntil(o) > 0 }

func (p Period) After(o Period) bool { return p.MonthsUntil(o) < 0 }

// Label is the short display label, e.g. "Oct/2026".
func (p Period) Label() string {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Sprintf("%02d/%d", p.Month, p.Year)
	}
	return fmt.Sprintf("%s/%d", monthAbbrev[p.Month-1], p.Year)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Breakdown holds the independently tracked sub-totals of a month.
type Breakdown struct {
	RealizedIncome         Money
	RecurringIncome        Money
	RealizedCardExpense    Money
	RealizedAccountExpense Money
	RecurringExpense       Money
	InstallmentExpense     Money
	FinancingExpense       Money
}

// IncomeTotal sums the income sub-totals.
func (b Breakdown) IncomeTotal() Money {
	return b.RealizedIncome.Add(b.RecurringIncome)
}

// ExpenseTotal sums the expense sub-totals.
func (b Breakdown) ExpenseTotal() Money {
	return b.RealizedCardExpense.
		Add(b.RealizedAccountExpense).
		Add(b.RecurringExpense).
		Add(b.InstallmentExpense).
		Add(b.FinancingExpense)
}

// Totals is the part shared by a month bucket and its detail.
type Totals struct {
	Income    Money
	Expense   Money // non-negative magnitude
	Breakdown Breakdown
}

// Net is income minus expense.
func (t Totals) Net() Money { return t.Income.Sub(t.Expense) }

// MonthBucket is one month of the cash-flow projection.
type MonthBucket struct {
	Period         Period
	Label          string
	Totals         Totals
	ExpenseDisplay Money // -Totals.Expense, for charts that plot outflows below zero
	ClosingBalance Money
	Unavailable    []SourceKind // sources that failed to load; totals exclude them
}

// Partial reports whether some source failed for this month.
func (b MonthBucket) Partial() bool { return len(b.Unavailable) > 0 }

// MonthLines are the literal records behind each breakdown sub-total.
type MonthLines struct {
	RealizedIncome         []TransactionRecord
	RecurringIncome        []TransactionRecord
	RealizedCardExpense    []TransactionRecord
	RealizedAccountExpense []TransactionRecord
	RecurringExpense       []TransactionRecord
	InstallmentExpense     []TransactionRecord
	FinancingExpense       []TransactionRecord
}

// MonthDetail is the drill-down of a single month.
type MonthDetail struct {
	Period                Period
	Label                 string
	IsCurrentMonth        bool
	Lines                 MonthLines
	Totals                Totals
	TotalTransactionCount int
	RealizedCount         int
	ProjectedCount        int
	Unavailable           []SourceKind
}

func (d MonthDetail) Partial() bool { return len(d.Unavailable) > 0 }
