// Package attendance implements the aggregation and streak engine: raw
// presence rows are normalized into typed events, folded into per-day
// per-user summaries, reconciled against the canonical record set, and
// reduced to per-user statistics.
package attendance

import (
	"time"
)

// RawRow is one header-keyed row read from a channel log.
type RawRow map[string]string

// Log row field names written by the collector. Header-driven lookup keeps
// the normalizer tolerant of column reordering.
const (
	FieldTimestamp = "datetime_jst"
	FieldUserID    = "user_id"
	FieldUserName  = "user_name"
)

// PresenceEvent is one observation of a user in a voice channel.
type PresenceEvent struct {
	Timestamp   time.Time // Observation time in JST
	UserID      string    // Stable identifier, the join key for all aggregation
	UserName    string    // Human-readable label, not unique
	DisplayName string    // Server-specific display label
	ChannelName string    // Source log partition
}

// DailyUserSummary is one user's aggregated activity for exactly one date.
// A new summary supersedes the old one for that date; summaries are never
// mutated across runs.
type DailyUserSummary struct {
	UserID     string
	UserName   string   // Last event processed wins on conflicts
	Channels   []string // Distinct channels visited that day, sorted
	EventCount int      // Raw event count, channel revisits included
}
