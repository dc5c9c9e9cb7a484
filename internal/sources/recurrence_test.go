package sources

import (
	"testing"
	"time"

	"fluxo/internal/core"
)

func collect(s core.Schedule, from, to time.Time) []core.Date {
	var out []core.Date
	for occ := range s.Occurrences(from, to) {
		out = append(out, occ.Date)
	}
	return out
}

func month(y, m int) time.Time {
	return time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
}

func TestMonthlyStepper_Nth(t *testing.T) {
	start := core.NewDate(2026, 1, 31)

	tests := []struct {
		name string
		n    int
		want core.Date
	}{
		{"first occurrence is the start", 0, core.NewDate(2026, 1, 31)},
		{"february clamps to 28", 1, core.NewDate(2026, 2, 28)},
		{"march returns to 31", 2, core.NewDate(2026, 3, 31)},
		{"april clamps to 30", 3, core.NewDate(2026, 4, 30)},
		{"year rollover", 12, core.NewDate(2027, 1, 31)},
		{"leap february", 25, core.NewDate(2028, 2, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (MonthlyStepper{}).Nth(start, tt.n); got != tt.want {
				t.Errorf("MonthlyStepper.Nth() = %s, want %s", got.Format(time.DateOnly), tt.want.Format(time.DateOnly))
			}
		})
	}
}

func TestYearlyStepper_Nth(t *testing.T) {
	start := core.NewDate(2028, 2, 29)
	if got := (YearlyStepper{}).Nth(start, 1); got != core.NewDate(2029, 2, 28) {
		t.Errorf("Nth(1) = %s", got.Format(time.DateOnly))
	}
	if got := (YearlyStepper{}).Nth(start, 4); got != core.NewDate(2032, 2, 29) {
		t.Errorf("Nth(4) = %s", got.Format(time.DateOnly))
	}
}

func TestFrequencySchedule_Occurrences(t *testing.T) {
	amount := core.Money{Cents: 1000}
	end := core.NewDate(2026, 12, 5)

	tests := []struct {
		name  string
		start core.Date
		end   *core.Date
		freq  core.Frequency
		from  time.Time
		to    time.Time
		want  int
	}{
		{"daily over october", core.NewDate(2026, 9, 20), nil, core.Daily, month(2026, 10), month(2026, 11), 31},
		{"weekly over october", core.NewDate(2026, 10, 1), nil, core.Weekly, month(2026, 10), month(2026, 11), 5},
		{"monthly starts later", core.NewDate(2026, 10, 20), nil, core.Monthly, month(2026, 9), month(2027, 1), 3},
		{"monthly honours end", core.NewDate(2026, 1, 5), &end, core.Monthly, month(2026, 10), month(2027, 3), 3},
		{"yearly outside range", core.NewDate(2026, 3, 1), nil, core.Yearly, month(2026, 4), month(2027, 3), 0},
		{"empty range", core.NewDate(2026, 1, 1), nil, core.Daily, month(2026, 5), month(2026, 5), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewFrequencySchedule(tt.start, tt.end, tt.freq, amount)
			if err != nil {
				t.Fatalf("NewFrequencySchedule() error = %v", err)
			}
			got := collect(s, tt.from, tt.to)
			if len(got) != tt.want {
				t.Fatalf("got %d occurrences, want %d", len(got), tt.want)
			}
			for i, d := range got {
				if d.Before(tt.from) || !d.Before(tt.to) {
					t.Errorf("occurrence %s outside range", d.Format(time.DateOnly))
				}
				if i > 0 && !got[i-1].Before(d.Time) {
					t.Errorf("occurrences not ascending at %d", i)
				}
			}
		})
	}
}

func TestOccurrencesStopEarly(t *testing.T) {
	s, _ := NewFrequencySchedule(core.NewDate(2026, 1, 1), nil, core.Daily, core.Money{Cents: 1})
	n := 0
	for range s.Occurrences(month(2026, 1), month(2027, 1)) {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("n = %d", n)
	}
}

func TestGetStepper(t *testing.T) {
	for _, f := range []core.Frequency{core.Daily, core.Weekly, core.Monthly, core.Yearly} {
		if _, err := GetStepper(f); err != nil {
			t.Errorf("GetStepper(%s) error = %v", f, err)
		}
	}
	if _, err := GetStepper("hourly"); err == nil {
		t.Error("expected error for unknown frequency")
	}
	if _, err := NewFrequencySchedule(core.NewDate(2026, 5, 1), ptr(core.NewDate(2026, 4, 1)), core.Monthly, core.Money{Cents: 1}); err == nil {
		t.Error("expected error for end before start")
	}
}

type quarterly struct{}

func (quarterly) Nth(start core.Date, n int) core.Date {
	return MonthlyStepper{}.Nth(start, 3*n)
}

func TestRegisterStepper(t *testing.T) {
	const q core.Frequency = "quarterly"
	RegisterStepper(q, quarterly{})
	defer delete(steppers, q)

	s, err := NewFrequencySchedule(core.NewDate(2026, 1, 15), nil, q, core.Money{Cents: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := collect(s, month(2026, 1), month(2027, 1)); len(got) != 4 {
		t.Errorf("quarterly occurrences = %d, want 4", len(got))
	}
}

func TestMonthlyDues(t *testing.T) {
	dues := MonthlyDues(core.NewDate(2026, 11, 30), 3, core.Money{Cents: 500})
	if len(dues) != 3 || dues[0].Number != 1 || dues[2].Number != 3 {
		t.Fatalf("dues = %+v", dues)
	}
	if dues[1].DueDate != core.NewDate(2026, 12, 30) || dues[2].DueDate != core.NewDate(2027, 1, 30) {
		t.Errorf("dates = %v, %v", dues[1].DueDate, dues[2].DueDate)
	}
}

func ptr[T any](v T) *T { return &v }
