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

func event(userID, userName, channel string) attendance.PresenceEvent {
	return attendance.PresenceEvent{
		Timestamp:   time.Date(2025, time.January, 15, 9, 0, 0, 0, calendar.JST),
		UserID:      userID,
		UserName:    userName,
		ChannelName: channel,
	}
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	a := attendance.NewAggregator(zap.NewNop())

	t.Run("groups events by user", func(t *testing.T) {
		t.Parallel()

		summaries := a.Aggregate([]attendance.PresenceEvent{
			event("111", "alice", "focus-room"),
			event("222", "bob", "focus-room"),
			event("111", "alice", "lounge"),
		})

		require.Len(t, summaries, 2)

		assert.Equal(t, "111", summaries[0].UserID)
		assert.Equal(t, []string{"focus-room", "lounge"}, summaries[0].Channels)
		assert.Equal(t, 2, summaries[0].EventCount)

		assert.Equal(t, "222", summaries[1].UserID)
		assert.Equal(t, []string{"focus-room"}, summaries[1].Channels)
		assert.Equal(t, 1, summaries[1].EventCount)
	})

	t.Run("channel revisits count events but dedupe channels", func(t *testing.T) {
		t.Parallel()

		summaries := a.Aggregate([]attendance.PresenceEvent{
			event("111", "alice", "focus-room"),
			event("111", "alice", "focus-room"),
			event("111", "alice", "focus-room"),
		})

		require.Len(t, summaries, 1)
		assert.Equal(t, []string{"focus-room"}, summaries[0].Channels)
		assert.Equal(t, 3, summaries[0].EventCount)
	})

	t.Run("last user name wins", func(t *testing.T) {
		t.Parallel()

		summaries := a.Aggregate([]attendance.PresenceEvent{
			event("111", "alice_old", "focus-room"),
			event("111", "alice_new", "lounge"),
		})

		require.Len(t, summaries, 1)
		assert.Equal(t, "alice_new", summaries[0].UserName)
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, a.Aggregate(nil))
	})

	t.Run("output order follows first appearance", func(t *testing.T) {
		t.Parallel()

		summaries := a.Aggregate([]attendance.PresenceEvent{
			event("333", "carol", "focus-room"),
			event("111", "alice", "focus-room"),
			event("333", "carol", "lounge"),
			event("222", "bob", "focus-room"),
		})

		require.Len(t, summaries, 3)
		assert.Equal(t, "333", summaries[0].UserID)
		assert.Equal(t, "111", summaries[1].UserID)
		assert.Equal(t, "222", summaries[2].UserID)
	})
}
