package projection

import (
	"errors"
	"iter"
	"testing"
	"time"

	"fluxo/internal/core"
)

// monthlyOn yields one occurrence per month on a fixed day.
type monthlyOn struct {
	day    int
	amount int64
}

func (m monthlyOn) Occurrences(from, to time.Time) iter.Seq[core.Occurrence] {
	return func(yield func(core.Occurrence) bool) {
		for t := time.Date(from.Year(), from.Month(), m.day, 0, 0, 0, 0, time.UTC); t.Before(to); t = t.AddDate(0, 1, 0) {
			if t.Before(from) {
				continue
			}
			if !yield(core.Occurrence{Date: core.DateOf(t), Amount: core.Money{Cents: m.amount}}) {
				return
			}
		}
	}
}

var today = time.Date(2026, time.October, 16, 9, 30, 0, 0, time.UTC)

func salaryAndLoan() Inputs {
	var payments []core.ScheduledPayment
	p := core.PeriodOf(today)
	for n := 1; n <= 6; n++ {
		payments = append(payments, core.ScheduledPayment{Number: n, Date: core.NewDate(p.Year, p.Month, 10), Amount: core.Money{Cents: 30000}})
		p = p.Next()
	}
	return Inputs{
		Accounts: []core.Account{{ID: "checking", Balance: core.Money{Cents: 100000}, Active: true}},
		Recurring: []core.RecurringRule{{
			ID: "salary", Description: "Salary", Kind: core.Income, Frequency: core.Monthly,
			Amount: core.Money{Cents: 500000}, Schedule: monthlyOn{day: 5, amount: 500000},
		}},
		Financings: []core.FinancingContract{{ID: "car", Description: "Car loan", System: core.AmortizationPrice, Payments: payments}},
	}
}

func mixedInputs() Inputs {
	in := salaryAndLoan()
	in.Transactions = []core.TransactionRecord{
		{ID: "t1", Date: core.NewDate(2026, 10, 1), Amount: core.Money{Cents: 2500}, Kind: core.Expense, Source: core.SourceRealized, Origin: core.OriginRef{Type: core.OriginCard, ID: "nubank"}},
		{ID: "t2", Date: core.NewDate(2026, 10, 31), Amount: core.Money{Cents: 4000}, Kind: core.Expense, Origin: core.OriginRef{Type: core.OriginAccount, ID: "checking"}},
		{ID: "t3", Date: core.NewDate(2026, 11, 1), Amount: core.Money{Cents: 7000}, Kind: core.Expense, Origin: core.OriginRef{Type: core.OriginAccount, ID: "checking"}},
		{ID: "t4", Date: core.NewDate(2026, 9, 30), Amount: core.Money{Cents: 100}, Kind: core.Income, Source: core.SourceRealized},
		{ID: "t5", Date: core.NewDate(2026, 10, 2), Amount: core.Money{Cents: 12000}, Kind: core.Income, Source: core.SourceRealized},
		{ID: "t6", Date: core.NewDate(2026, 10, 3), Amount: core.Money{Cents: 999}, Kind: core.Expense, Source: core.SourceRecurring},
	}
	in.Installments = []core.InstallmentPurchase{{
		ID: "tv", Description: "TV", TotalInstallments: 4, PaidInstallments: 1, CardID: "nubank",
		Dues: []core.InstallmentDue{
			{Number: 1, DueDate: core.NewDate(2026, 10, 10), Amount: core.Money{Cents: 25000}},
			{Number: 2, DueDate: core.NewDate(2026, 11, 10), Amount: core.Money{Cents: 25000}},
			{Number: 3, DueDate: core.NewDate(2026, 12, 10), Amount: core.Money{Cents: 25000}},
			{Number: 4, DueDate: core.NewDate(2027, 1, 10), Amount: core.Money{Cents: 25000}},
		},
	}}
	in.Recurring = append(in.Recurring, core.RecurringRule{
		ID: "gym", Description: "Gym", Kind: core.Expense, Frequency: core.Monthly,
		Amount: core.Money{Cents: 9000}, Schedule: monthlyOn{day: 31, amount: 9000},
	})
	return in
}

func TestProjectSalaryAndFinancing(t *testing.T) {
	buckets, err := Project(6, salaryAndLoan(), today)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if len(buckets) != 6 {
		t.Fatalf("len = %d, want 6", len(buckets))
	}

	prev := int64(100000)
	for i, b := range buckets {
		if b.Totals.Income.Cents != 500000 {
			t.Errorf("bucket %d income = %d, want 500000", i, b.Totals.Income.Cents)
		}
		if b.Totals.Expense.Cents != 30000 {
			t.Errorf("bucket %d expense = %d, want 30000", i, b.Totals.Expense.Cents)
		}
		if b.ExpenseDisplay.Cents != -30000 {
			t.Errorf("bucket %d display = %d", i, b.ExpenseDisplay.Cents)
		}
		if got := b.ClosingBalance.Cents - prev; got != 470000 {
			t.Errorf("bucket %d balance delta = %d, want 470000", i, got)
		}
		prev = b.ClosingBalance.Cents
	}
	if buckets[0].Label != "Oct/2026" || buckets[5].Period != (core.Period{Year: 2027, Month: 3}) {
		t.Errorf("range = %s..%s", buckets[0].Period, buckets[5].Period)
	}
}

func TestProjectConservation(t *testing.T) {
	buckets, err := Project(6, mixedInputs(), today)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range buckets {
		bd := b.Totals.Breakdown
		income := bd.RealizedIncome.Cents + bd.RecurringIncome.Cents
		expense := bd.RealizedCardExpense.Cents + bd.RealizedAccountExpense.Cents + bd.RecurringExpense.Cents +
			bd.InstallmentExpense.Cents + bd.FinancingExpense.Cents
		if income != b.Totals.Income.Cents || expense != b.Totals.Expense.Cents {
			t.Errorf("%s: sub-totals %d/%d, totals %d/%d", b.Period, income, expense, b.Totals.Income.Cents, b.Totals.Expense.Cents)
		}
	}
}

func TestProjectMixedBreakdown(t *testing.T) {
	buckets, err := Project(6, mixedInputs(), today)
	if err != nil {
		t.Fatal(err)
	}
	oct := buckets[0].Totals.Breakdown
	if oct.RealizedCardExpense.Cents != 2500 || oct.RealizedAccountExpense.Cents != 4000 {
		t.Errorf("Oct realized expense = %d/%d", oct.RealizedCardExpense.Cents, oct.RealizedAccountExpense.Cents)
	}
	if oct.RealizedIncome.Cents != 12000 {
		t.Errorf("Oct realized income = %d, want 12000", oct.RealizedIncome.Cents)
	}
	if oct.InstallmentExpense.Cents != 0 {
		t.Errorf("paid installment counted: %d", oct.InstallmentExpense.Cents)
	}
	if oct.RecurringExpense.Cents != 9000 {
		t.Errorf("Oct recurring expense = %d, want 9000", oct.RecurringExpense.Cents)
	}

	nov := buckets[1].Totals.Breakdown
	if nov.RealizedAccountExpense.Cents != 0 {
		t.Errorf("future realized must be zero, got %d", nov.RealizedAccountExpense.Cents)
	}
	if nov.InstallmentExpense.Cents != 25000 {
		t.Errorf("Nov installment = %d, want 25000", nov.InstallmentExpense.Cents)
	}
	if nov.RecurringExpense.Cents != 0 {
		t.Errorf("Nov has no 31st, recurring = %d", nov.RecurringExpense.Cents)
	}
	if buckets[4].Totals.Breakdown.InstallmentExpense.Cents != 0 {
		t.Error("installments past the last due must be zero")
	}
}

func TestProjectEmptyMonthsProduceZeroBuckets(t *testing.T) {
	buckets, err := Project(3, Inputs{}, today)
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 3 {
		t.Fatalf("len = %d", len(buckets))
	}
	for _, b := range buckets {
		if b.Totals != (core.Totals{}) || b.ClosingBalance.Cents != 0 || b.Partial() {
			t.Errorf("%s: %+v", b.Period, b)
		}
	}
}

func TestProjectRejectsHorizon(t *testing.T) {
	for _, h := range []int{0, -1} {
		_, err := Project(h, Inputs{}, today)
		if !errors.Is(err, core.ErrInputValidation) {
			t.Errorf("Project(%d) error = %v, want input validation", h, err)
		}
	}
}

func TestProjectIsRestartable(t *testing.T) {
	in := mixedInputs()
	a, _ := Project(6, in, today)
	b, _ := Project(6, in, today)
	for i := range a {
		if a[i].Totals != b[i].Totals || a[i].ClosingBalance != b[i].ClosingBalance {
			t.Fatalf("bucket %d differs between calls", i)
		}
	}
}

func TestProjectUnavailableMarkers(t *testing.T) {
	in := salaryAndLoan()
	in.Unavailable = []core.SourceKind{core.SourceRealized, core.SourceInstallment, core.SourceInstallment}

	buckets, err := Project(3, in, today)
	if err != nil {
		t.Fatal(err)
	}
	if got := buckets[0].Unavailable; len(got) != 2 {
		t.Errorf("current month markers = %v, want realized and installment", got)
	}
	if got := buckets[1].Unavailable; len(got) != 1 || got[0] != core.SourceInstallment {
		t.Errorf("future month markers = %v, want only installment", got)
	}
}

func TestDetailMatchesProjection(t *testing.T) {
	in := mixedInputs()
	buckets, err := Project(6, in, today)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range buckets {
		d, err := Detail(b.Period.Month, b.Period.Year, in, today, DefaultBounds())
		if err != nil {
			t.Fatalf("Detail(%s) error = %v", b.Period, err)
		}
		if d.Totals != b.Totals {
			t.Errorf("%s: detail %+v != bucket %+v", b.Period, d.Totals, b.Totals)
		}
	}
}

func TestNoDoubleCounting(t *testing.T) {
	in := mixedInputs()
	seen := map[string]int{}
	for p := range Months(core.PeriodOf(today), 6) {
		d, err := Detail(p.Month, p.Year, in, today, DefaultBounds())
		if err != nil {
			t.Fatal(err)
		}
		for _, list := range [][]core.TransactionRecord{
			d.Lines.RealizedIncome, d.Lines.RecurringIncome, d.Lines.RealizedCardExpense,
			d.Lines.RealizedAccountExpense, d.Lines.RecurringExpense, d.Lines.InstallmentExpense, d.Lines.FinancingExpense,
		} {
			for _, r := range list {
				seen[r.ID]++
			}
		}
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("record %s counted %d times", id, n)
		}
	}
	if seen["t2"] != 1 || seen["t6"] != 0 {
		t.Errorf("t2 seen %d, t6 seen %d", seen["t2"], seen["t6"])
	}
}

func TestDetailCounts(t *testing.T) {
	d, err := Detail(10, 2026, mixedInputs(), today, DefaultBounds())
	if err != nil {
		t.Fatal(err)
	}
	if !d.IsCurrentMonth {
		t.Error("IsCurrentMonth = false")
	}
	// t1, t2, t5 realized; salary, gym, car payment projected
	if d.RealizedCount != 3 || d.ProjectedCount != 3 || d.TotalTransactionCount != 6 {
		t.Errorf("counts = %d/%d/%d", d.TotalTransactionCount, d.RealizedCount, d.ProjectedCount)
	}
	if got := d.Lines.FinancingExpense[0].ID; got != "car#1" {
		t.Errorf("financing id = %q", got)
	}
	if got := d.Lines.RecurringIncome[0].ID; got != "salary#2026-10-05" {
		t.Errorf("recurring id = %q", got)
	}

	past, err := Detail(9, 2026, mixedInputs(), today, DefaultBounds())
	if err != nil {
		t.Fatal(err)
	}
	if past.IsCurrentMonth || past.RealizedCount != 1 {
		t.Errorf("September detail = %+v", past)
	}
}

func TestDetailErrors(t *testing.T) {
	tests := []struct {
		name  string
		month int
		year  int
		want  error
	}{
		{"month zero", 0, 2026, core.ErrOutOfRange},
		{"month thirteen", 13, 2026, core.ErrOutOfRange},
		{"beyond horizon", 4, 2027, core.ErrOutOfRange},
		{"last horizon month", 3, 2027, nil},
		{"before look-back", 9, 2025, core.ErrOutOfRange},
		{"oldest look-back month", 10, 2025, nil},
		{"non-positive year", 5, 0, core.ErrInputValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detail(tt.month, tt.year, Inputs{}, today, DefaultBounds())
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Detail() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Detail() error = %v, want %v", err, tt.want)
			}
		})
	}
}
