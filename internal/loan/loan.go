// Package loan computes fixed-rate mortgage repayments.
package loan

import (
	"fmt"
	"math"
)

// Terms describes a fixed-rate loan. RatePercent is the yearly rate,
// 3.5 for 3.5 %.
type Terms struct {
	Principal   float64
	RatePercent float64
	Years       int
}

// Validate rejects non-positive amounts and durations and negative rates.
func (t Terms) Validate() error {
	if t.Principal <= 0 {
		return fmt.Errorf("principal must be positive, got %v", t.Principal)
	}
	if t.RatePercent < 0 {
		return fmt.Errorf("rate must not be negative, got %v", t.RatePercent)
	}
	if t.Years <= 0 {
		return fmt.Errorf("duration must be positive, got %d years", t.Years)
	}
	return nil
}

// Months is the number of instalments.
func (t Terms) Months() int { return t.Years * 12 }

func (t Terms) monthlyRate() float64 { return t.RatePercent / 100 / 12 }

// MonthlyPayment returns the constant instalment of an amortized loan.
// A zero rate spreads the principal evenly.
func MonthlyPayment(principal, ratePercent float64, years int) float64 {
	n := float64(years * 12)
	if n <= 0 || principal <= 0 {
		return 0
	}
	r := ratePercent / 100 / 12
	if r == 0 {
		return principal / n
	}
	f := math.Pow(1+r, n)
	return principal * r * f / (f - 1)
}

// Payment is MonthlyPayment for t.
func (t Terms) Payment() float64 {
	return MonthlyPayment(t.Principal, t.RatePercent, t.Years)
}

// TotalCost is the sum of all instalments.
func (t Terms) TotalCost() float64 { return t.Payment() * float64(t.Months()) }

// Interest is the total cost minus the principal.
func (t Terms) Interest() float64 { return t.TotalCost() - t.Principal }

// Row is one month of an amortization schedule. Remaining is the balance
// before the instalment.
type Row struct {
	Month     int
	Remaining float64
	Interest  float64
	Principal float64
}

// Schedule returns the amortization rows of the first year, every 48th
// month and the last year.
func (t Terms) Schedule() []Row {
	return t.schedule(func(m, total int) bool {
		return m <= 12 || m > total-12 || m%48 == 0
	})
}

// FullSchedule returns every month.
func (t Terms) FullSchedule() []Row {
	return t.schedule(func(int, int) bool { return true })
}

func (t Terms) schedule(keep func(month, total int) bool) []Row {
	total := t.Months()
	if total <= 0 {
		return nil
	}
	payment := t.Payment()
	rate := t.monthlyRate()
	remaining := t.Principal

	var rows []Row
	for m := 1; m <= total; m++ {
		interest := remaining * rate
		principal := payment - interest
		if keep(m, total) {
			rows = append(rows, Row{Month: m, Remaining: remaining, Interest: interest, Principal: principal})
		}
		remaining -= principal
		if remaining < 0.01 {
			remaining = 0
		}
	}
	return rows
}
