package sources

import (
	"fmt"
	"iter"
	"time"

	"fluxo/internal/core"
)

// Stepper computes the n-th occurrence (0-based) of a schedule starting at
// start. Each frequency has its own strategy.
type Stepper interface {
	Nth(start core.Date, n int) core.Date
}

// DailyStepper advances one calendar day per occurrence.
type DailyStepper struct{}

func (DailyStepper) Nth(start core.Date, n int) core.Date {
	return core.DateOf(start.AddDate(0, 0, n))
}

// WeeklyStepper advances seven days per occurrence.
type WeeklyStepper struct{}

func (WeeklyStepper) Nth(start core.Date, n int) core.Date {
	return core.DateOf(start.AddDate(0, 0, 7*n))
}

// MonthlyStepper keeps the start day of month, clamped to the last day of
// shorter months. Clamping never drifts: the 31st stays the 31st after
// February.
type MonthlyStepper struct{}

func (MonthlyStepper) Nth(start core.Date, n int) core.Date {
	months := start.Month() - 1 + n
	year := start.Year() + months/12
	month := months%12 + 1
	return core.NewDate(year, month, clampDay(year, month, start.Day()))
}

// YearlyStepper keeps month and day, clamping 29 February in common years.
type YearlyStepper struct{}

func (YearlyStepper) Nth(start core.Date, n int) core.Date {
	year := start.Year() + n
	return core.NewDate(year, start.Month(), clampDay(year, start.Month(), start.Day()))
}

func clampDay(year, month, day int) int {
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

var steppers = map[core.Frequency]Stepper{
	core.Daily:   DailyStepper{},
	core.Weekly:  WeeklyStepper{},
	core.Monthly: MonthlyStepper{},
	core.Yearly:  YearlyStepper{},
}

// GetStepper returns the stepping strategy of a frequency.
func GetStepper(f core.Frequency) (Stepper, error) {
	s, ok := steppers[f]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", f)
	}
	return s, nil
}

// RegisterStepper adds or replaces the strategy of a frequency.
func RegisterStepper(f core.Frequency, s Stepper) {
	steppers[f] = s
}

// FrequencySchedule is a fixed-amount schedule starting at Start and, when
// End is set, stopping after it.
type FrequencySchedule struct {
	Start     core.Date
	End       *core.Date
	Frequency core.Frequency
	Amount    core.Money

	stepper Stepper
}

// NewFrequencySchedule validates the frequency and returns the schedule.
func NewFrequencySchedule(start core.Date, end *core.Date, f core.Frequency, amount core.Money) (FrequencySchedule, error) {
	s, err := GetStepper(f)
	if err != nil {
		return FrequencySchedule{}, err
	}
	if err := start.Validate(); err != nil {
		return FrequencySchedule{}, fmt.Errorf("start date: %w", err)
	}
	if end != nil && end.Before(start.Time) {
		return FrequencySchedule{}, fmt.Errorf("end date %s before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return FrequencySchedule{Start: start, End: end, Frequency: f, Amount: amount, stepper: s}, nil
}

// Occurrences yields the occurrences dated in [from, to) in ascending order.
func (s FrequencySchedule) Occurrences(from, to time.Time) iter.Seq[core.Occurrence] {
	return func(yield func(core.Occurrence) bool) {
		stepper := s.stepper
		if stepper == nil {
			var err error
			if stepper, err = GetStepper(s.Frequency); err != nil {
				return
			}
		}
		for n := 0; ; n++ {
			d := stepper.Nth(s.Start, n)
			if !d.Before(to) || (s.End != nil && d.After(s.End.Time)) {
				return
			}
			if d.Before(from) {
				continue
			}
			if !yield(core.Occurrence{Date: d, Amount: s.Amount}) {
				return
			}
		}
	}
}

// MonthlyDues lays out count monthly dues of amount starting at first.
func MonthlyDues(first core.Date, count int, amount core.Money) []core.InstallmentDue {
	dues := make([]core.InstallmentDue, 0, count)
	for n := 0; n < count; n++ {
		dues = append(dues, core.InstallmentDue{Number: n + 1, DueDate: MonthlyStepper{}.Nth(first, n), Amount: amount})
	}
	return dues
}

// MonthlyPayments lays out count monthly financing payments starting at first.
func MonthlyPayments(first core.Date, count int, amount core.Money) []core.ScheduledPayment {
	out := make([]core.ScheduledPayment, 0, count)
	for _, d := range MonthlyDues(first, count, amount) {
		out = append(out, core.ScheduledPayment{Number: d.Number, Date: d.DueDate, Amount: d.Amount})
	}
	return out
}
