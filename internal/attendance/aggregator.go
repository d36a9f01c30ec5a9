package attendance

import (
	"sort"

	"go.uber.org/zap"
)

// Aggregator folds one target date's normalized events into one summary per
// distinct user.
type Aggregator struct {
	logger *zap.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(logger *zap.Logger) *Aggregator {
	return &Aggregator{logger: logger.Named("aggregator")}
}

// Aggregate groups events by user ID. Channels are deduplicated and sorted,
// the event count keeps raw revisits for later anomaly detection, and the
// user name is last-write-wins, so input ordering must be stable (source file
// order, then row order). Empty input yields an empty, valid result.
func (a *Aggregator) Aggregate(events []PresenceEvent) []DailyUserSummary {
	type accumulator struct {
		userName   string
		channels   map[string]struct{}
		eventCount int
	}

	byUser := make(map[string]*accumulator)
	order := make([]string, 0)

	for _, event := range events {
		acc, ok := byUser[event.UserID]
		if !ok {
			acc = &accumulator{channels: make(map[string]struct{})}
			byUser[event.UserID] = acc
			order = append(order, event.UserID)
		}

		acc.userName = event.UserName
		acc.channels[event.ChannelName] = struct{}{}
		acc.eventCount++
	}

	summaries := make([]DailyUserSummary, 0, len(byUser))

	for _, userID := range order {
		acc := byUser[userID]

		channels := make([]string, 0, len(acc.channels))
		for name := range acc.channels {
			channels = append(channels, name)
		}

		sort.Strings(channels)

		summaries = append(summaries, DailyUserSummary{
			UserID:     userID,
			UserName:   acc.userName,
			Channels:   channels,
			EventCount: acc.eventCount,
		})
	}

	a.logger.Debug("Aggregated daily user summaries",
		zap.Int("events", len(events)),
		zap.Int("users", len(summaries)))

	return summaries
}
