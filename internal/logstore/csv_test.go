package logstore

import (
	"testing"

	"github.com/mokumoku-dev/vctracker/internal/attendance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRows(t *testing.T) {
	t.Parallel()

	t.Run("parses header-keyed rows", func(t *testing.T) {
		t.Parallel()

		data := []byte("datetime_jst,user_id,user_name\n2025/1/15 09:00,111,alice\n2025/1/15 09:05,222,bob\n")

		rows, err := parseRows(data)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, "2025/1/15 09:00", rows[0]["datetime_jst"])
		assert.Equal(t, "111", rows[0]["user_id"])
		assert.Equal(t, "bob", rows[1]["user_name"])
	})

	t.Run("strips byte order mark", func(t *testing.T) {
		t.Parallel()

		data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("datetime_jst,user_id,user_name\n2025/1/15 09:00,111,alice\n")...)

		rows, err := parseRows(data)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "111", rows[0]["user_id"])
	})

	t.Run("drops rows with mismatched field count", func(t *testing.T) {
		t.Parallel()

		data := []byte("datetime_jst,user_id,user_name\n2025/1/15 09:00,111\n2025/1/15 09:05,222,bob\n")

		rows, err := parseRows(data)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "222", rows[0]["user_id"])
	})

	t.Run("empty input yields no rows", func(t *testing.T) {
		t.Parallel()

		rows, err := parseRows(nil)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestRenderRows(t *testing.T) {
	t.Parallel()

	rows := []attendance.RawRow{
		{"datetime_jst": "2025/1/15 09:00", "user_id": "111", "user_name": "alice"},
	}

	data, err := renderRows(rows)
	require.NoError(t, err)

	// Rendered output round-trips through the parser.
	parsed, err := parseRows(data)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, rows[0], parsed[0])

	// The BOM survives rendering.
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, data[:3])
}

func TestMergeSameDay(t *testing.T) {
	t.Parallel()

	existing := []attendance.RawRow{
		{"datetime_jst": "2025/1/14 09:00", "user_id": "111", "user_name": "alice"},
		{"datetime_jst": "2025/1/15 09:00", "user_id": "111", "user_name": "alice"},
	}

	incoming := []attendance.RawRow{
		{"datetime_jst": "2025/1/15 12:00", "user_id": "111", "user_name": "alice"},
		{"datetime_jst": "2025/1/15 12:00", "user_id": "222", "user_name": "bob"},
		{"datetime_jst": "2025/1/15 12:00", "user_id": "222", "user_name": "bob"},
	}

	merged, added := mergeSameDay(existing, incoming, "2025/1/15")

	// Alice was already logged today; Bob is appended exactly once.
	assert.Equal(t, 1, added)
	require.Len(t, merged, 3)
	assert.Equal(t, "222", merged[2]["user_id"])

	// Yesterday's entry never suppresses today's first observation.
	merged, added = mergeSameDay(existing[:1], incoming[:1], "2025/1/15")
	assert.Equal(t, 1, added)
	assert.Len(t, merged, 2)
}

func TestMergeSameDayMatchesDateExactly(t *testing.T) {
	t.Parallel()

	// "2025/1/2" shares a prefix with "2025/1/20" through "2025/1/29"; only
	// the exact date may suppress an incoming row.
	existing := []attendance.RawRow{
		{"datetime_jst": "2025/1/20 09:00", "user_id": "111", "user_name": "alice"},
	}

	incoming := []attendance.RawRow{
		{"datetime_jst": "2025/1/2 09:00", "user_id": "111", "user_name": "alice"},
	}

	merged, added := mergeSameDay(existing, incoming, "2025/1/2")

	assert.Equal(t, 1, added)
	assert.Len(t, merged, 2)
}
