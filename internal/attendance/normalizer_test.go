package attendance_test

import (
	"testing"
	"time"

	"github.com/mokumoku-dev/vctracker/internal/attendance"
	"github.com/mokumoku-dev/vctracker/internal/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalizeForDate(t *testing.T) {
	t.Parallel()

	n := attendance.NewNormalizer(zap.NewNop())
	target := time.Date(2025, time.January, 15, 0, 0, 0, 0, calendar.JST)

	tests := []struct {
		name     string
		rows     []attendance.RawRow
		expected int
	}{
		{
			name: "well formed row on target date",
			rows: []attendance.RawRow{
				{"datetime_jst": "2025/01/15 09:30", "user_id": "111", "user_name": "alice"},
			},
			expected: 1,
		},
		{
			name: "non zero padded date form",
			rows: []attendance.RawRow{
				{"datetime_jst": "2025/1/15 09:30", "user_id": "111", "user_name": "alice"},
			},
			expected: 1,
		},
		{
			name: "other dates filtered out",
			rows: []attendance.RawRow{
				{"datetime_jst": "2025/01/14 23:59", "user_id": "111", "user_name": "alice"},
				{"datetime_jst": "2025/01/16 00:00", "user_id": "222", "user_name": "bob"},
			},
			expected: 0,
		},
		{
			name: "missing timestamp field skipped",
			rows: []attendance.RawRow{
				{"user_id": "111", "user_name": "alice"},
				{"datetime_jst": "2025/01/15 09:30", "user_id": "222", "user_name": "bob"},
			},
			expected: 1,
		},
		{
			name: "missing user id skipped",
			rows: []attendance.RawRow{
				{"datetime_jst": "2025/01/15 09:30", "user_id": "", "user_name": "ghost"},
				{"datetime_jst": "2025/01/15 09:30", "user_name": "ghost"},
			},
			expected: 0,
		},
		{
			name: "unparseable timestamp skipped",
			rows: []attendance.RawRow{
				{"datetime_jst": "yesterday", "user_id": "111", "user_name": "alice"},
			},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			events := n.NormalizeForDate(tt.rows, "focus-room", target)
			assert.Len(t, events, tt.expected)

			for _, e := range events {
				assert.Equal(t, "focus-room", e.ChannelName)
				assert.NotEmpty(t, e.UserID)
			}
		})
	}
}

func TestParseHistory(t *testing.T) {
	t.Parallel()

	n := attendance.NewNormalizer(zap.NewNop())

	history := n.ParseHistory(map[string][]attendance.RawRow{
		"focus-room": {
			{"datetime_jst": "2025/01/14 09:00", "user_id": "111", "user_name": "alice"},
			{"datetime_jst": "2025/01/14 12:00", "user_id": "111", "user_name": "alice"},
			{"datetime_jst": "2025/01/15 09:00", "user_id": "222", "user_name": "bob"},
			{"user_name": "broken"},
		},
		"lounge": {
			{"datetime_jst": "2025/1/15 21:00", "user_id": "111", "user_name": "alice"},
		},
	})

	require.Len(t, history, 2)

	// Revisits and same-day presence in two channels fold to one date each;
	// dates come back sorted.
	assert.Equal(t, []time.Time{
		day(2025, time.January, 14),
		day(2025, time.January, 15),
	}, history["111"])
	assert.Equal(t, []time.Time{day(2025, time.January, 15)}, history["222"])
}

func TestNormalizeForDateMalformedRowTolerance(t *testing.T) {
	t.Parallel()

	// One well-formed row and one with a missing field yield exactly one
	// event; a bad row never aborts the batch.
	n := attendance.NewNormalizer(zap.NewNop())
	target := time.Date(2025, time.January, 15, 0, 0, 0, 0, calendar.JST)

	rows := []attendance.RawRow{
		{"datetime_jst": "2025/01/15 10:00", "user_id": "111", "user_name": "alice"},
		{"user_name": "broken"},
	}

	events := n.NormalizeForDate(rows, "focus-room", target)

	require.Len(t, events, 1)
	assert.Equal(t, "111", events[0].UserID)
	assert.Equal(t, "alice", events[0].UserName)
}
