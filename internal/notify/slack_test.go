package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mokumoku-dev/vctracker/internal/attendance"
	"github.com/mokumoku-dev/vctracker/internal/calendar"
	"github.com/mokumoku-dev/vctracker/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testReport(entries ...attendance.ReportEntry) *attendance.Report {
	return &attendance.Report{
		AsOf:    time.Date(2025, time.January, 15, 0, 0, 0, 0, calendar.JST),
		Entries: entries,
	}
}

func testConfig() *config.Slack {
	return &config.Slack{
		Greeting:       "もくもく、おつかれさまでした！",
		NoParticipants: "本日のVCログイン者はいませんでした。",
	}
}

func TestBuildBlocks(t *testing.T) {
	t.Parallel()

	e := NewSlackEmitter(testConfig(), zap.NewNop())

	t.Run("report with entries", func(t *testing.T) {
		t.Parallel()

		blocks := e.buildBlocks(testReport(
			attendance.ReportEntry{UserID: "111", UserName: "alice", TotalDays: 10, ConsecutiveDays: 3},
			attendance.ReportEntry{UserID: "222", UserName: "bob", TotalDays: 1, ConsecutiveDays: 1},
		))

		require.Len(t, blocks, 4)
		assert.Equal(t, "header", blocks[0].Type)
		assert.Contains(t, blocks[0].Text.Text, "2025-01-15")
		assert.Contains(t, blocks[1].Text.Text, "2名")
		assert.Equal(t, "divider", blocks[2].Type)

		// Two fields per user: name and totals.
		require.Len(t, blocks[3].Fields, 4)
		assert.Equal(t, "alice", blocks[3].Fields[0].Text)
		assert.Equal(t, "10日目 / 3日連続", blocks[3].Fields[1].Text)
	})

	t.Run("entries split into field chunks", func(t *testing.T) {
		t.Parallel()

		entries := make([]attendance.ReportEntry, 7)
		for i := range entries {
			entries[i] = attendance.ReportEntry{UserID: "1", UserName: "u", TotalDays: 1, ConsecutiveDays: 1}
		}

		blocks := e.buildBlocks(testReport(entries...))

		// 14 fields across two sections of at most 10.
		require.Len(t, blocks, 5)
		assert.Len(t, blocks[3].Fields, 10)
		assert.Len(t, blocks[4].Fields, 4)
	})

	t.Run("empty report", func(t *testing.T) {
		t.Parallel()

		blocks := e.buildBlocks(testReport())

		require.Len(t, blocks, 2)
		assert.Contains(t, blocks[1].Text.Text, "いませんでした")
	})

	t.Run("skips are annotated", func(t *testing.T) {
		t.Parallel()

		report := testReport(attendance.ReportEntry{UserID: "111", UserName: "alice", TotalDays: 1, ConsecutiveDays: 1})
		report.SkippedChannels = []string{"lounge"}

		blocks := e.buildBlocks(report)

		last := blocks[len(blocks)-1]
		assert.Contains(t, last.Text.Text, "未処理")
	})
}

func TestPublish(t *testing.T) {
	t.Parallel()

	t.Run("posts payload to webhook", func(t *testing.T) {
		t.Parallel()

		var received payload

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, sonic.Unmarshal(body, &received))

			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		cfg := testConfig()
		cfg.WebhookURL = server.URL

		e := NewSlackEmitter(cfg, zap.NewNop())

		err := e.Publish(context.Background(), testReport(
			attendance.ReportEntry{UserID: "111", UserName: "alice", TotalDays: 2, ConsecutiveDays: 2},
		))
		require.NoError(t, err)

		assert.NotEmpty(t, received.Text)
		assert.NotEmpty(t, received.Blocks)
	})

	t.Run("non-2xx status is an error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		cfg := testConfig()
		cfg.WebhookURL = server.URL

		e := NewSlackEmitter(cfg, zap.NewNop())

		err := e.Publish(context.Background(), testReport())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})
}
