package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/mokumoku-dev/vctracker/internal/attendance"
	"github.com/mokumoku-dev/vctracker/internal/setup/config"
	"go.uber.org/zap"
)

// Slack limits a section block to ten fields, so user entries are rendered
// in chunks of five name/stats pairs.
const fieldsPerSection = 10

// block is one Block Kit element of the webhook payload.
type block struct {
	Type   string  `json:"type"`
	Text   *text   `json:"text,omitempty"`
	Fields []*text `json:"fields,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// payload is the webhook message body: rendered blocks plus a plain-text
// fallback for notifications and clients without block support.
type payload struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

func plainText(s string) *text {
	return &text{Type: "plain_text", Text: s}
}

func mrkdwn(s string) *text {
	return &text{Type: "mrkdwn", Text: s}
}

// SlackEmitter publishes daily attendance reports to a Slack incoming
// webhook.
type SlackEmitter struct {
	cfg    *config.Slack
	client *http.Client
	logger *zap.Logger
}

// NewSlackEmitter creates a SlackEmitter.
func NewSlackEmitter(cfg *config.Slack, logger *zap.Logger) *SlackEmitter {
	return &SlackEmitter{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger.Named("slack"),
	}
}

// buildBlocks renders the report as Block Kit blocks.
func (e *SlackEmitter) buildBlocks(report *attendance.Report) []block {
	dateStr := report.AsOf.Format("2006-01-02")

	if len(report.Entries) == 0 {
		return []block{
			{Type: "header", Text: plainText(fmt.Sprintf("📅 %s の参加レポート", dateStr))},
			{Type: "section", Text: mrkdwn(e.cfg.NoParticipants)},
		}
	}

	blocks := []block{
		{Type: "header", Text: plainText(fmt.Sprintf("📅 %s の参加レポート", dateStr))},
		{Type: "section", Text: mrkdwn(fmt.Sprintf("%s\n本日の参加者は%d名です。", e.cfg.Greeting, len(report.Entries)))},
		{Type: "divider"},
	}

	var fields []*text

	for _, entry := range report.Entries {
		fields = append(fields,
			mrkdwn(entry.UserName),
			mrkdwn(fmt.Sprintf("%d日目 / %d日連続", entry.TotalDays, entry.ConsecutiveDays)))
	}

	for start := 0; start < len(fields); start += fieldsPerSection {
		end := min(start+fieldsPerSection, len(fields))
		blocks = append(blocks, block{Type: "section", Fields: fields[start:end]})
	}

	if len(report.SkippedChannels) > 0 || len(report.SkippedUsers) > 0 {
		blocks = append(blocks,
			block{Type: "divider"},
			block{Type: "section", Text: mrkdwn(fmt.Sprintf(
				"⚠️ 未処理: チャンネル%d件 / ユーザー%d件",
				len(report.SkippedChannels), len(report.SkippedUsers)))})
	}

	return blocks
}

// Publish posts the report to the webhook. Callers treat an error here as a
// delivery problem, not a run failure.
func (e *SlackEmitter) Publish(ctx context.Context, report *attendance.Report) error {
	body, err := sonic.Marshal(payload{
		Text:   report.Text(),
		Blocks: e.buildBlocks(report),
	})
	if err != nil {
		return fmt.Errorf("failed to encode slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	e.logger.Info("Published attendance report",
		zap.Time("as_of", report.AsOf),
		zap.Int("entries", len(report.Entries)))

	return nil
}
