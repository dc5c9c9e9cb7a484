package core

import (
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestEffectiveClosingDay(t *testing.T) {
	tests := []struct {
		name string
		card Card
		want int
	}{
		{"explicit closing day", Card{DueDay: 10, ClosingDay: 3}, 3},
		{"derived from due day", Card{DueDay: 10}, 5},
		{"due day 6 derives 1", Card{DueDay: 6}, 1},
		{"due day 5 falls back to 25", Card{DueDay: 5}, 25},
		{"due day 1 falls back to 25", Card{DueDay: 1}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.card.EffectiveClosingDay(); got != tt.want {
				t.Errorf("EffectiveClosingDay() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCardValidate(t *testing.T) {
	good := Card{ID: "c1", DueDay: 10, CreditLimit: Money{Cents: 100000}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Card{
		{ID: "", DueDay: 10},
		{ID: "c", DueDay: 0},
		{ID: "c", DueDay: 32},
		{ID: "c", DueDay: 10, ClosingDay: 40},
		{ID: "c", DueDay: 10, CreditLimit: Money{Cents: -1}},
	}
	for i, c := range bads {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestKindFromSigned(t *testing.T) {
	k, m := KindFromSigned(-1250)
	if k != Expense || m.Cents != 1250 {
		t.Fatalf("got %s %d", k, m.Cents)
	}
	k, m = KindFromSigned(500)
	if k != Income || m.Cents != 500 {
		t.Fatalf("got %s %d", k, m.Cents)
	}
}

func TestPeriodArithmetic(t *testing.T) {
	p := Period{Year: 2026, Month: 12}
	if n := p.Next(); n != (Period{Year: 2027, Month: 1}) {
		t.Fatalf("Next() = %v", n)
	}
	if got := p.MonthsUntil(Period{Year: 2027, Month: 3}); got != 3 {
		t.Fatalf("MonthsUntil = %d, want 3", got)
	}
	if got := p.MonthsUntil(Period{Year: 2026, Month: 10}); got != -2 {
		t.Fatalf("MonthsUntil = %d, want -2", got)
	}
	if p.Label() != "Dec/2026" {
		t.Fatalf("Label() = %q", p.Label())
	}
	if !p.End().Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("End() = %v", p.End())
	}
}

func TestPeriodContainsLastDay(t *testing.T) {
	oct := Period{Year: 2026, Month: 10}
	nov := oct.Next()
	last := NewDate(2026, 10, 31)
	if !oct.Contains(last) {
		t.Fatal("October should contain Oct 31")
	}
	if nov.Contains(last) {
		t.Fatal("November must not contain Oct 31")
	}
}

func TestBreakdownTotals(t *testing.T) {
	b := Breakdown{
		RealizedIncome:         Money{Cents: 100},
		RecurringIncome:        Money{Cents: 200},
		RealizedCardExpense:    Money{Cents: 1},
		RealizedAccountExpense: Money{Cents: 2},
		RecurringExpense:       Money{Cents: 3},
		InstallmentExpense:     Money{Cents: 4},
		FinancingExpense:       Money{Cents: 5},
	}
	if b.IncomeTotal().Cents != 300 {
		t.Fatalf("IncomeTotal = %d", b.IncomeTotal().Cents)
	}
	if b.ExpenseTotal().Cents != 15 {
		t.Fatalf("ExpenseTotal = %d", b.ExpenseTotal().Cents)
	}
}
