package attendance_test

import (
	"testing"
	"time"

	"github.com/mokumoku-dev/vctracker/internal/attendance"
	"github.com/mokumoku-dev/vctracker/internal/calendar"
	"github.com/mokumoku-dev/vctracker/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func summary(userID, userName string, channels ...string) attendance.DailyUserSummary {
	return attendance.DailyUserSummary{
		UserID:     userID,
		UserName:   userName,
		Channels:   channels,
		EventCount: len(channels),
	}
}

func existingRecord(channel, userID string, date time.Time) *types.AttendanceRecord {
	return &types.AttendanceRecord{
		ChannelName: channel,
		UserID:      userID,
		Date:        date,
		FirstSeenAt: date,
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	e := attendance.NewUpsertEngine(zap.NewNop())
	target := time.Date(2025, time.January, 15, 0, 0, 0, 0, calendar.JST)

	t.Run("new combinations are inserts", func(t *testing.T) {
		t.Parallel()

		decisions := e.Decide(target, []attendance.DailyUserSummary{
			summary("111", "alice", "focus-room", "lounge"),
		}, nil)

		require.Len(t, decisions, 2)
		assert.Equal(t, attendance.ActionInsert, decisions[0].Action)
		assert.Equal(t, attendance.ActionInsert, decisions[1].Action)
	})

	t.Run("already recorded combinations are skips", func(t *testing.T) {
		t.Parallel()

		decisions := e.Decide(target, []attendance.DailyUserSummary{
			summary("111", "alice", "focus-room", "lounge"),
		}, []*types.AttendanceRecord{
			existingRecord("focus-room", "111", target),
		})

		require.Len(t, decisions, 2)
		assert.Equal(t, "focus-room", decisions[0].ChannelName)
		assert.Equal(t, attendance.ActionSkip, decisions[0].Action)
		assert.Equal(t, "lounge", decisions[1].ChannelName)
		assert.Equal(t, attendance.ActionInsert, decisions[1].Action)
	})

	t.Run("records from other dates are ignored", func(t *testing.T) {
		t.Parallel()

		yesterday := target.AddDate(0, 0, -1)

		decisions := e.Decide(target, []attendance.DailyUserSummary{
			summary("111", "alice", "focus-room"),
		}, []*types.AttendanceRecord{
			existingRecord("focus-room", "111", yesterday),
		})

		require.Len(t, decisions, 1)
		assert.Equal(t, attendance.ActionInsert, decisions[0].Action)
	})

	t.Run("idempotent against its own output", func(t *testing.T) {
		t.Parallel()

		summaries := []attendance.DailyUserSummary{
			summary("111", "alice", "focus-room"),
			summary("222", "bob", "focus-room", "lounge"),
		}

		first := e.Decide(target, summaries, nil)
		inserted := attendance.Records(first, target, target)
		require.Len(t, inserted, 3)

		// A second run over the same inputs sees the first run's records
		// and inserts nothing.
		second := e.Decide(target, summaries, inserted)
		for _, d := range second {
			assert.Equal(t, attendance.ActionSkip, d.Action)
		}
	})
}

func TestRecords(t *testing.T) {
	t.Parallel()

	e := attendance.NewUpsertEngine(zap.NewNop())
	target := time.Date(2025, time.January, 15, 0, 0, 0, 0, calendar.JST)
	firstSeen := time.Date(2025, time.January, 15, 9, 30, 0, 0, calendar.JST)

	decisions := e.Decide(target, []attendance.DailyUserSummary{
		summary("111", "alice", "focus-room"),
	}, []*types.AttendanceRecord{
		existingRecord("lounge", "222", target),
	})

	records := attendance.Records(decisions, target, firstSeen)

	require.Len(t, records, 1)
	assert.Equal(t, "focus-room", records[0].ChannelName)
	assert.Equal(t, "111", records[0].UserID)
	assert.Equal(t, target, records[0].Date)
	assert.Equal(t, firstSeen, records[0].FirstSeenAt)
}
