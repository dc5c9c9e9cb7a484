package invoice

import (
	"testing"
	"time"

	"fluxo/internal/core"
)

func intPtr(v int) *int { return &v }

func day(d int) time.Time {
	return time.Date(2026, time.October, d, 12, 0, 0, 0, time.UTC)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		card  core.Card
		days  *int
		today int
		want  core.InvoiceState
	}{
		{"closing day itself is open", core.Card{DueDay: 10, ClosingDay: 5}, nil, 5, core.InvoiceOpen},
		{"day after closing is closed", core.Card{DueDay: 10, ClosingDay: 5}, nil, 6, core.InvoiceClosed},
		{"negative days is overdue before closing", core.Card{DueDay: 10, ClosingDay: 5}, intPtr(-1), 3, core.InvoiceOverdue},
		{"negative days is overdue after closing", core.Card{DueDay: 10, ClosingDay: 5}, intPtr(-2), 15, core.InvoiceOverdue},
		{"zero days after closing is closed", core.Card{DueDay: 10, ClosingDay: 5}, intPtr(0), 10, core.InvoiceClosed},
		{"known days before closing is open", core.Card{DueDay: 10, ClosingDay: 5}, intPtr(7), 3, core.InvoiceOpen},
		{"fallback closing from due day", core.Card{DueDay: 20}, nil, 15, core.InvoiceOpen},
		{"fallback closing from due day, after", core.Card{DueDay: 20}, nil, 16, core.InvoiceClosed},
		{"early due day falls back to 25", core.Card{DueDay: 3}, nil, 25, core.InvoiceOpen},
		{"early due day falls back to 25, after", core.Card{DueDay: 3}, nil, 26, core.InvoiceClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.card, core.InvoiceSnapshot{DaysToDueDate: tt.days}, day(tt.today))
			if got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyIsTotal(t *testing.T) {
	days := []*int{nil, intPtr(-30), intPtr(-1), intPtr(0), intPtr(1), intPtr(45)}
	for due := 1; due <= 31; due++ {
		for closing := 0; closing <= 31; closing++ {
			for today := 1; today <= 31; today++ {
				for _, d := range days {
					state := Classify(core.Card{DueDay: due, ClosingDay: closing}, core.InvoiceSnapshot{DaysToDueDate: d}, day(today%28+1))
					switch state {
					case core.InvoiceOpen, core.InvoiceClosed, core.InvoiceOverdue:
					default:
						t.Fatalf("unexpected state %q for due=%d closing=%d today=%d", state, due, closing, today)
					}
					if d != nil && *d < 0 && state != core.InvoiceOverdue {
						t.Fatalf("negative days must be overdue, got %q", state)
					}
				}
			}
		}
	}
}

func TestEvaluateFallbackDaysToDue(t *testing.T) {
	tests := []struct {
		name  string
		due   int
		close int
		today int
		want  int
	}{
		{"due later this month", 28, 20, 22, 6},
		{"due wraps to next month", 10, 5, 20, 20},
		{"wrap ignores 31-day months", 1, 25, 31, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			today := time.Date(2026, time.October, tt.today, 0, 0, 0, 0, time.UTC)
			a := Evaluate(core.Card{DueDay: tt.due, ClosingDay: tt.close}, core.InvoiceSnapshot{}, today)
			if a.State != core.InvoiceClosed {
				t.Fatalf("State = %q, want closed", a.State)
			}
			if a.FromSnapshot {
				t.Error("FromSnapshot = true, want false")
			}
			if a.DaysToDue != tt.want {
				t.Errorf("DaysToDue = %d, want %d", a.DaysToDue, tt.want)
			}
		})
	}
}

func TestEvaluateKeepsSnapshotDays(t *testing.T) {
	a := Evaluate(core.Card{DueDay: 10, ClosingDay: 5}, core.InvoiceSnapshot{DaysToDueDate: intPtr(4)}, day(6))
	if !a.FromSnapshot || a.DaysToDue != 4 || a.ClosingDay != 5 {
		t.Errorf("Evaluate() = %+v", a)
	}
}
