package types

import (
	"time"

	"github.com/uptrace/bun"
)

// AttendanceRecord is the durable canonical fact "user X was present on date
// D in channel C". At most one record exists per (channel_name, user_id,
// date); re-observing the same key confirms existence and never duplicates.
type AttendanceRecord struct {
	bun.BaseModel `bun:"table:attendance_records"`

	ChannelName string    `bun:",pk"`                 // Source channel log partition
	UserID      string    `bun:",pk"`                 // Stable user identifier
	Date        time.Time `bun:",pk,type:date"`       // Attended calendar date
	UserName    string    `bun:",nullzero"`           // Label at first observation
	FirstSeenAt time.Time `bun:",notnull"`            // Immutable once set
}

// UserStatistics is the materialized per-user view, one row per user, fully
// overwritten each aggregation run. It must always be derivable from that
// user's AttendanceRecord history alone.
type UserStatistics struct {
	bun.BaseModel `bun:"table:user_statistics"`

	UserID          string    `bun:",pk"`           // Stable user identifier
	UserName        string    `bun:",nullzero"`     // Most recent label
	LastLoginDate   time.Time `bun:",type:date"`    // Most recent attended date
	ConsecutiveDays int       `bun:",notnull"`      // Business-day streak ending at LastLoginDate
	TotalDays       int       `bun:",notnull"`      // Lifetime distinct attended dates
	LastUpdated     time.Time `bun:",notnull"`      // When this row was recomputed
}
