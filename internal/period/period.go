// Package period resolves UStVA filing periods.
package period

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidQuarter is returned for quarters outside 1..4.
	ErrInvalidQuarter = errors.New("quarter must be between 1 and 4")

	// ErrInvalidYear is returned for years before 1.
	ErrInvalidYear = errors.New("year must be positive")
)

var quarterLabels = [4]string{
	"Januar - März",
	"April - Juni",
	"Juli - September",
	"Oktober - Dezember",
}

// TaxPeriod is a calendar quarter with its filing deadline. Bounds are
// inclusive and expressed in UTC.
type TaxPeriod struct {
	Year    int       `json:"year"`
	Quarter int       `json:"quarter"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	DueDate time.Time `json:"dueDate"`
}

// Resolve returns the period of the given quarter. The due date is the 10th
// of the month following the quarter; Q4 is due on 10 January of the next year.
func Resolve(year, quarter int) (TaxPeriod, error) {
	const op = "Resolve"

	if quarter < 1 || quarter > 4 {
		return TaxPeriod{}, fmt.Errorf("%s: %w (got %d)", op, ErrInvalidQuarter, quarter)
	}
	if year < 1 {
		return TaxPeriod{}, fmt.Errorf("%s: %w (got %d)", op, ErrInvalidYear, year)
	}

	firstMonth := time.Month((quarter-1)*3 + 1)
	start := time.Date(year, firstMonth, 1, 0, 0, 0, 0, time.UTC)
	next := start.AddDate(0, 3, 0)

	return TaxPeriod{
		Year:    year,
		Quarter: quarter,
		Start:   start,
		End:     next.Add(-time.Nanosecond),
		DueDate: time.Date(next.Year(), next.Month(), 10, 0, 0, 0, 0, time.UTC),
	}, nil
}

// MustResolve is Resolve for constant arguments; it panics on invalid input.
func MustResolve(year, quarter int) TaxPeriod {
	p, err := Resolve(year, quarter)
	if err != nil {
		panic(err)
	}
	return p
}

// Previous returns the quarter before the one containing now.
func Previous(now time.Time) TaxPeriod {
	year := now.Year()
	quarter := (int(now.Month())-1)/3 + 1
	if quarter == 1 {
		return MustResolve(year-1, 4)
	}
	return MustResolve(year, quarter-1)
}

// Contains reports whether t falls within the period bounds.
func (p TaxPeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// DueDateLabel formats the due date the German way, e.g. "10.04.2025".
func (p TaxPeriod) DueDateLabel() string {
	return p.DueDate.Format("02.01.2006")
}

// QuarterLabel returns the months covered, e.g. "Januar - März".
func (p TaxPeriod) QuarterLabel() string {
	if p.Quarter < 1 || p.Quarter > 4 {
		return ""
	}
	return quarterLabels[p.Quarter-1]
}

// String returns e.g. "Q1/2025".
func (p TaxPeriod) String() string {
	return fmt.Sprintf("Q%d/%d", p.Quarter, p.Year)
}

// IsZero reports whether the period was never resolved.
func (p TaxPeriod) IsZero() bool {
	return p.Quarter == 0
}
