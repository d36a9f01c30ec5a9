package attendance

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ReportEntry is one user's line in the published report.
type ReportEntry struct {
	UserID          string
	UserName        string
	TotalDays       int
	ConsecutiveDays int
}

// Report is the outcome of one aggregation run. It is always produced,
// regardless of partial failures; the skip lists annotate what could not be
// computed this run.
type Report struct {
	AsOf            time.Time
	Entries         []ReportEntry // Sorted by user name
	SkippedChannels []string      // Channels whose logs could not be read or written
	SkippedUsers    []string      // Users whose statistics could not be computed or stored
	NoData          bool          // No channel logs were available at all
	Inserted        int           // New canonical records written
	AlreadyPresent  int           // Combinations already recorded
}

// Sort orders entries by user name, then user ID for ties, matching the
// rendered report order.
func (r *Report) Sort() {
	sort.Slice(r.Entries, func(i, j int) bool {
		if r.Entries[i].UserName != r.Entries[j].UserName {
			return r.Entries[i].UserName < r.Entries[j].UserName
		}

		return r.Entries[i].UserID < r.Entries[j].UserID
	})
}

// Text renders the plain-text form of the report, used as the notification
// fallback and as local output when the report sink is unreachable.
func (r *Report) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Attendance report for %s\n", r.AsOf.Format("2006/01/02"))

	switch {
	case r.NoData:
		b.WriteString("No channel logs were available.\n")
	case len(r.Entries) == 0:
		b.WriteString("Nobody attended today.\n")
	default:
		fmt.Fprintf(&b, "%d participant(s):\n", len(r.Entries))

		for _, e := range r.Entries {
			name := e.UserName
			if name == "" {
				name = e.UserID
			}

			fmt.Fprintf(&b, "  %s: day %d total", name, e.TotalDays)

			if e.ConsecutiveDays > 1 {
				fmt.Fprintf(&b, ", %d business days in a row", e.ConsecutiveDays)
			}

			b.WriteString("\n")
		}
	}

	if len(r.SkippedChannels) > 0 {
		fmt.Fprintf(&b, "Skipped channels: %s\n", strings.Join(r.SkippedChannels, ", "))
	}

	if len(r.SkippedUsers) > 0 {
		fmt.Fprintf(&b, "Skipped users: %s\n", strings.Join(r.SkippedUsers, ", "))
	}

	return b.String()
}
