package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same day", date("2026-01-10"), date("2026-01-10"), 0},
		{"forward", date("2026-01-10"), date("2026-01-12"), 2},
		{"backward", date("2026-01-12"), date("2026-01-10"), 2},
		{"month boundary", date("2026-01-30"), date("2026-02-02"), 3},
		{"leap year", date("2028-02-28"), date("2028-03-01"), 2},
		{
			"time of day ignored",
			time.Date(2026, 1, 10, 23, 59, 0, 0, time.UTC),
			time.Date(2026, 1, 11, 0, 1, 0, 0, time.UTC),
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.a, tt.b))
			assert.Equal(t, DaysBetween(tt.a, tt.b), DaysBetween(tt.b, tt.a))
		})
	}
}

func TestDaysBetween_DSTZone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// 2026-03-29 is a 23h day in Berlin.
	a := time.Date(2026, 3, 28, 12, 0, 0, 0, loc)
	b := time.Date(2026, 3, 30, 12, 0, 0, 0, loc)
	assert.Equal(t, 2, DaysBetween(a, b))
}

func TestRentalDaysAndTotal(t *testing.T) {
	days, err := RentalDays(date("2026-01-10"), date("2026-01-10"))
	require.NoError(t, err)
	assert.Equal(t, 1, days)

	days, err = RentalDays(date("2026-01-10"), date("2026-01-12"))
	require.NoError(t, err)
	assert.Equal(t, 3, days)

	total, err := TotalPrice(800000, date("2026-01-10"), date("2026-01-12"))
	require.NoError(t, err)
	assert.Equal(t, int64(2400000), total)
	assert.Zero(t, total%800000)

	_, err = RentalDays(date("2026-01-12"), date("2026-01-10"))
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = TotalPrice(800000, date("2026-01-12"), date("2026-01-10"))
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestDeposit(t *testing.T) {
	tests := []struct {
		total int64
		want  int64
	}{
		{1000000, 300000},
		{0, 0},
		{1, 0},   // 0.3
		{5, 2},   // 1.5 rounds up
		{15, 5},  // 4.5 rounds up
		{7, 2},   // 2.1
		{11, 3},  // 3.3
		{25, 8},  // 7.5
		{700001, 210000},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Deposit(tt.total), "total=%d", tt.total)
	}
}

func TestRefund(t *testing.T) {
	assert.Equal(t, int64(270000), Refund(300000, 10))
	assert.Equal(t, int64(0), Refund(300000, 3))
	assert.Equal(t, int64(270000), Refund(300000, 7), "seven days takes the refund branch")
	assert.Equal(t, int64(0), Refund(300000, 6))
	assert.Equal(t, int64(0), Refund(300000, -4))
	assert.Equal(t, int64(5), Refund(5, 30)) // 4.5 rounds up
	assert.Equal(t, int64(0), Refund(0, 30))
}

func TestDaysUntil(t *testing.T) {
	today := date("2026-01-01")
	assert.Equal(t, 10, DaysUntil(today, date("2026-01-11")))
	assert.Equal(t, 0, DaysUntil(today, date("2026-01-01")))
	assert.Equal(t, 0, DaysUntil(today, date("2025-12-20")))
}

func TestOverlaps(t *testing.T) {
	s, e := date("2026-01-10"), date("2026-01-12")

	assert.True(t, Overlaps(s, e, date("2026-01-11"), date("2026-01-15")))
	assert.False(t, Overlaps(s, e, date("2026-01-13"), date("2026-01-15")))
	assert.True(t, Overlaps(s, e, date("2026-01-12"), date("2026-01-12")), "shared end day")
	assert.True(t, Overlaps(s, e, date("2026-01-01"), date("2026-01-31")), "containing range")
	assert.False(t, Overlaps(s, e, date("2026-01-01"), date("2026-01-09")))
	assert.Equal(t,
		Overlaps(s, e, date("2026-01-11"), date("2026-01-15")),
		Overlaps(date("2026-01-11"), date("2026-01-15"), s, e),
	)
}

func TestQuote(t *testing.T) {
	b, err := Quote(500000, date("2026-03-01"), date("2026-03-02"))
	require.NoError(t, err)
	assert.Equal(t, Breakdown{RentalDays: 2, TotalPrice: 1000000, DepositAmount: 300000}, b)

	_, err = Quote(500000, date("2026-03-02"), date("2026-03-01"))
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}
