package attendance_test

import (
	"testing"
	"time"

	"github.com/mokumoku-dev/vctracker/internal/attendance"
	"github.com/mokumoku-dev/vctracker/internal/calendar"
	"github.com/mokumoku-dev/vctracker/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCalculator(t *testing.T, holidays ...string) *attendance.StreakCalculator {
	t.Helper()

	cal, err := calendar.New(&config.Calendar{
		Years:    []int{2024, 2025},
		Holidays: holidays,
	})
	require.NoError(t, err)

	return attendance.NewStreakCalculator(cal)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, calendar.JST)
}

func TestCalculateStreaks(t *testing.T) {
	t.Parallel()

	// 2025-01-17 is a Friday, 01-18/19 the weekend, 01-20 the Monday.
	tests := []struct {
		name                string
		attended            []time.Time
		target              time.Time
		expectedTotal       int
		expectedConsecutive int
		expectedFresh       bool
	}{
		{
			name:                "friday then monday is unbroken",
			attended:            []time.Time{day(2025, time.January, 17), day(2025, time.January, 20)},
			target:              day(2025, time.January, 20),
			expectedTotal:       2,
			expectedConsecutive: 2,
			expectedFresh:       true,
		},
		{
			name:                "monday absent breaks the chain",
			attended:            []time.Time{day(2025, time.January, 17), day(2025, time.January, 21)},
			target:              day(2025, time.January, 21),
			expectedTotal:       2,
			expectedConsecutive: 1,
			expectedFresh:       true,
		},
		{
			name: "weekend days count toward total but not the chain",
			attended: []time.Time{
				day(2025, time.January, 13), day(2025, time.January, 14),
				day(2025, time.January, 15), day(2025, time.January, 16),
				day(2025, time.January, 17), day(2025, time.January, 18), // Sat
				day(2025, time.January, 19), // Sun
				day(2025, time.January, 20), day(2025, time.January, 21),
				day(2025, time.January, 22),
			},
			target:              day(2025, time.January, 22),
			expectedTotal:       10,
			expectedConsecutive: 8,
			expectedFresh:       true,
		},
		{
			name:                "target not attended yields zero streak",
			attended:            []time.Time{day(2025, time.January, 14), day(2025, time.January, 15)},
			target:              day(2025, time.January, 16),
			expectedTotal:       2,
			expectedConsecutive: 0,
			expectedFresh:       false,
		},
		{
			name:                "first ever attendance",
			attended:            []time.Time{day(2025, time.January, 15)},
			target:              day(2025, time.January, 15),
			expectedTotal:       1,
			expectedConsecutive: 1,
			expectedFresh:       true,
		},
		{
			name:                "first attendance on a weekend",
			attended:            []time.Time{day(2025, time.January, 18)},
			target:              day(2025, time.January, 18),
			expectedTotal:       1,
			expectedConsecutive: 1,
			expectedFresh:       true,
		},
		{
			name:                "no history at all",
			attended:            nil,
			target:              day(2025, time.January, 15),
			expectedTotal:       0,
			expectedConsecutive: 0,
			expectedFresh:       false,
		},
		{
			name: "duplicate observations collapse to one date",
			attended: []time.Time{
				day(2025, time.January, 15),
				day(2025, time.January, 15),
				time.Date(2025, time.January, 15, 18, 30, 0, 0, calendar.JST),
			},
			target:              day(2025, time.January, 15),
			expectedTotal:       1,
			expectedConsecutive: 1,
			expectedFresh:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calc := newCalculator(t)

			stats, err := calc.Calculate(tt.attended, tt.target)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedTotal, stats.TotalDays)
			assert.Equal(t, tt.expectedConsecutive, stats.ConsecutiveDays)
			assert.Equal(t, tt.expectedFresh, stats.Fresh)
		})
	}
}

func TestCalculateWeekendAnchor(t *testing.T) {
	t.Parallel()

	// Attended Tue 01-14 through Thu 01-16, absent Fri 01-17, attended
	// Sat 01-18 which is also the target. The Saturday attendance anchors
	// the report even though it is not a business day; the chain counted
	// ends at Thursday, the most recent attended business day, giving
	// Thu + Wed + Tue = 3.
	calc := newCalculator(t)

	attended := []time.Time{
		day(2025, time.January, 14),
		day(2025, time.January, 15),
		day(2025, time.January, 16),
		day(2025, time.January, 18),
	}

	stats, err := calc.Calculate(attended, day(2025, time.January, 18))
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalDays)
	assert.Equal(t, 3, stats.ConsecutiveDays)
	assert.True(t, stats.Fresh)
}

func TestCalculateHolidayBridging(t *testing.T) {
	t.Parallel()

	// 2025-01-13 (Monday) is a holiday: attending Friday 01-10 and
	// Tuesday 01-14 is an unbroken business-day chain.
	calc := newCalculator(t, "2025-01-13")

	attended := []time.Time{
		day(2025, time.January, 10),
		day(2025, time.January, 14),
	}

	stats, err := calc.Calculate(attended, day(2025, time.January, 14))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalDays)
	assert.Equal(t, 2, stats.ConsecutiveDays)
}

func TestCalculateUncoveredYearIsFatal(t *testing.T) {
	t.Parallel()

	calc := newCalculator(t)

	// Walking back from early January 2024 leaves the covered range.
	attended := []time.Time{day(2024, time.January, 1), day(2023, time.December, 29)}

	_, err := calc.Calculate(attended, day(2024, time.January, 1))
	require.ErrorIs(t, err, calendar.ErrYearNotCovered)
}
