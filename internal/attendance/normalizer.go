package attendance

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mokumoku-dev/vctracker/internal/calendar"
	"go.uber.org/zap"
)

// Normalizer turns raw header-keyed log rows into typed presence events.
// Malformed rows are skipped, never errored: a bad row must not abort the
// batch.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger.Named("normalizer")}
}

// NormalizeForDate parses the rows of one channel log and returns the events
// whose timestamp falls on the target date. Rows missing the timestamp or
// user ID fields are dropped silently.
func (n *Normalizer) NormalizeForDate(rows []RawRow, channelName string, targetDate time.Time) []PresenceEvent {
	targetDate = calendar.DateOf(targetDate)

	events := make([]PresenceEvent, 0, len(rows))
	skipped := 0

	for _, row := range rows {
		event, ok := n.normalizeRow(row, channelName)
		if !ok {
			skipped++
			continue
		}

		if !calendar.DateOf(event.Timestamp).Equal(targetDate) {
			continue
		}

		events = append(events, event)
	}

	if skipped > 0 {
		n.logger.Debug("Skipped malformed rows",
			zap.String("channel", channelName),
			zap.Int("skipped", skipped))
	}

	return events
}

// ParseHistory folds the raw rows of every channel log into each user's set
// of distinct attended dates, sorted ascending. The logs are the durable
// history even for days no aggregation run ever processed, so statistics
// recomputed from this fold stay correct across missed runs. Row tolerance
// matches NormalizeForDate.
func (n *Normalizer) ParseHistory(rowsByChannel map[string][]RawRow) map[string][]time.Time {
	seen := make(map[string]map[time.Time]struct{})

	for channelName, rows := range rowsByChannel {
		for _, row := range rows {
			event, ok := n.normalizeRow(row, channelName)
			if !ok {
				continue
			}

			date := calendar.DateOf(event.Timestamp)

			if seen[event.UserID] == nil {
				seen[event.UserID] = make(map[time.Time]struct{})
			}

			seen[event.UserID][date] = struct{}{}
		}
	}

	history := make(map[string][]time.Time, len(seen))

	for userID, dates := range seen {
		sorted := make([]time.Time, 0, len(dates))
		for d := range dates {
			sorted = append(sorted, d)
		}

		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
		history[userID] = sorted
	}

	return history
}

// normalizeRow parses a single row. The second return value reports whether
// the row was admitted.
func (n *Normalizer) normalizeRow(row RawRow, channelName string) (PresenceEvent, bool) {
	rawTimestamp, ok := row[FieldTimestamp]
	if !ok {
		return PresenceEvent{}, false
	}

	userID := strings.TrimSpace(row[FieldUserID])
	if userID == "" {
		// Events without a stable identity cannot be aggregated.
		return PresenceEvent{}, false
	}

	ts, err := parseLogTimestamp(strings.TrimSpace(rawTimestamp))
	if err != nil {
		return PresenceEvent{}, false
	}

	return PresenceEvent{
		Timestamp:   ts,
		UserID:      userID,
		UserName:    strings.TrimSpace(row[FieldUserName]),
		DisplayName: strings.TrimSpace(row[FieldUserName]),
		ChannelName: channelName,
	}, true
}

// parseLogTimestamp accepts the timestamp forms found in the logs. Upstream
// writers are inconsistent about zero padding, so both padded and unpadded
// day/month forms must parse, with and without a time component.
func parseLogTimestamp(value string) (time.Time, error) {
	layouts := []string{
		"2006/1/2 15:04:05",
		"2006/1/2 15:04",
		"2006/1/2",
	}

	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, value, calendar.JST); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}
