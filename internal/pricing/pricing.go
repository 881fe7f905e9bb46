// Package pricing holds the dress-rental money and calendar rules.
// All functions are pure; callers supply "today".
package pricing

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DepositPercent of the total price is charged upfront.
	DepositPercent = 30
	// RefundPercent of the deposit is returned on early cancellation.
	RefundPercent = 90
	// RefundLeadDays is the minimum lead time for a refund.
	RefundLeadDays = 7
)

var ErrInvalidDateRange = errors.New("end date must not be before start date")

var (
	depositRate = decimal.New(DepositPercent, -2)
	refundRate  = decimal.New(RefundPercent, -2)
)

// DateOnly drops the time of day, keeping the calendar date as UTC midnight.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween is the absolute number of whole days between two calendar dates.
func DaysBetween(d1, d2 time.Time) int {
	diff := DateOnly(d2).Sub(DateOnly(d1))
	return int(math.Round(math.Abs(diff.Hours() / 24)))
}

// RentalDays counts both endpoints, so a same-day rental is one day.
func RentalDays(start, end time.Time) (int, error) {
	if DateOnly(end).Before(DateOnly(start)) {
		return 0, ErrInvalidDateRange
	}
	return DaysBetween(start, end) + 1, nil
}

func TotalPrice(rentPrice int64, start, end time.Time) (int64, error) {
	days, err := RentalDays(start, end)
	if err != nil {
		return 0, err
	}
	return rentPrice * int64(days), nil
}

// Deposit is 30% of the total, rounded half away from zero.
func Deposit(total int64) int64 {
	return decimal.NewFromInt(total).Mul(depositRate).Round(0).IntPart()
}

// DaysUntil is the lead time from today to start, zero once start has passed.
func DaysUntil(today, start time.Time) int {
	if DateOnly(start).Before(DateOnly(today)) {
		return 0
	}
	return DaysBetween(today, start)
}

// Refund returns 90% of the deposit with at least seven days of lead time, else nothing.
func Refund(deposit int64, daysUntilRental int) int64 {
	if daysUntilRental < 0 {
		daysUntilRental = 0
	}
	if daysUntilRental >= RefundLeadDays {
		return decimal.NewFromInt(deposit).Mul(refundRate).Round(0).IntPart()
	}
	return 0
}

// Overlaps reports whether two inclusive date ranges share at least one day.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return !DateOnly(s1).After(DateOnly(e2)) && !DateOnly(s2).After(DateOnly(e1))
}

// Breakdown is the priced result for one rental.
type Breakdown struct {
	RentalDays    int
	TotalPrice    int64
	DepositAmount int64
}

func Quote(rentPrice int64, start, end time.Time) (Breakdown, error) {
	days, err := RentalDays(start, end)
	if err != nil {
		return Breakdown{}, err
	}
	total := rentPrice * int64(days)
	return Breakdown{
		RentalDays:    days,
		TotalPrice:    total,
		DepositAmount: Deposit(total),
	}, nil
}
