package invoice

import (
	"testing"

	"fluxo/internal/core"
)

func TestSummarizeOverdueScenario(t *testing.T) {
	cards := []core.CardInvoice{
		{
			Card:     core.Card{ID: "nubank", DueDay: 10, ClosingDay: 3, CreditLimit: core.Money{Cents: 500000}, Active: true},
			Snapshot: core.InvoiceSnapshot{CurrentAmount: core.Money{Cents: 120000}, TotalMonthAmount: core.Money{Cents: 150000}, DaysToDueDate: intPtr(-2)},
		},
		{
			Card:     core.Card{ID: "inter", DueDay: 25, ClosingDay: 18, CreditLimit: core.Money{Cents: 300000}, Active: true},
			Snapshot: core.InvoiceSnapshot{CurrentAmount: core.Money{Cents: 40000}, TotalMonthAmount: core.Money{Cents: 50000}},
		},
		{
			Card:     core.Card{ID: "xp", DueDay: 20, ClosingDay: 12, CreditLimit: core.Money{Cents: 200000}, Active: true},
			Snapshot: core.InvoiceSnapshot{CurrentAmount: core.Money{Cents: 10000}, TotalMonthAmount: core.Money{Cents: 0}},
		},
		{
			Card:     core.Card{ID: "old", DueDay: 10, Active: false},
			Snapshot: core.InvoiceSnapshot{CurrentAmount: core.Money{Cents: 999999}, DaysToDueDate: intPtr(-5)},
		},
	}

	s := Summarize(cards, day(15))

	if len(s.Overdue) != 1 || s.Overdue[0].Card.ID != "nubank" {
		t.Fatalf("Overdue = %+v, want only nubank", s.Overdue)
	}
	if s.OverdueTotal.Cents != 120000 {
		t.Errorf("OverdueTotal = %d, want 120000", s.OverdueTotal.Cents)
	}
	if len(s.Open) != 1 || s.OpenTotal.Cents != 40000 {
		t.Errorf("Open = %d lines, total %d", len(s.Open), s.OpenTotal.Cents)
	}
	if len(s.Closed) != 1 || s.ClosedTotal.Cents != 10000 {
		t.Errorf("Closed = %d lines, total %d", len(s.Closed), s.ClosedTotal.Cents)
	}
	if s.Count() != 3 {
		t.Errorf("Count() = %d, inactive cards must be skipped", s.Count())
	}
	if s.TotalLimit.Cents != 1000000 || s.TotalUsed.Cents != 200000 || s.AvailableLimit.Cents != 800000 {
		t.Errorf("limits = %d/%d/%d", s.TotalLimit.Cents, s.TotalUsed.Cents, s.AvailableLimit.Cents)
	}
	if s.UsagePercent != 20 {
		t.Errorf("UsagePercent = %v, want 20", s.UsagePercent)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, day(1))
	if s.Count() != 0 || s.UsagePercent != 0 || s.AvailableLimit.Cents != 0 {
		t.Errorf("Summarize(nil) = %+v", s)
	}
}
