package attendance

import (
	"sort"
	"time"

	"github.com/mokumoku-dev/vctracker/internal/calendar"
	"github.com/mokumoku-dev/vctracker/internal/database/types"
)

// Statistics is one user's recomputed attendance statistics together with
// freshness: Fresh is false when the user did not attend the target date, so
// callers can distinguish "not attending today" from a freshly computed
// total instead of reporting stale-but-plausible numbers.
type Statistics struct {
	TotalDays       int
	ConsecutiveDays int
	LastLoginDate   time.Time
	Fresh           bool
}

// StreakCalculator reduces a user's full attended-date history to lifetime
// totals and the current consecutive business-day streak.
type StreakCalculator struct {
	cal *calendar.Calendar
}

// NewStreakCalculator creates a StreakCalculator.
func NewStreakCalculator(cal *calendar.Calendar) *StreakCalculator {
	return &StreakCalculator{cal: cal}
}

// Calculate computes statistics as of the target date from the complete set
// of attended dates.
//
// TotalDays counts every distinct attended date, weekends included: a user
// attending on a Saturday still logged a day.
//
// ConsecutiveDays is defined over business days only and is zero unless the
// target date itself was attended. An attended target date anchors the
// computation: the chain counted is the run of consecutively attended
// business days ending at the most recent attended business day. When the
// target date is itself a business day that run ends at the target; when it
// is a weekend or holiday the attendance still anchors the report, and the
// chain ends at the last business day the user showed up. Attending Friday
// and the following Monday is an unbroken chain; skipping a Monday breaks it.
// A user with no attended business day at all gets 1 for the anchor alone.
//
// The only error is a calendar year outside holiday coverage, which the
// caller must treat as fatal.
func (s *StreakCalculator) Calculate(attended []time.Time, targetDate time.Time) (Statistics, error) {
	targetDate = calendar.DateOf(targetDate)

	dates := make(map[time.Time]struct{}, len(attended))

	var last time.Time

	for _, d := range attended {
		d = calendar.DateOf(d)
		dates[d] = struct{}{}

		if d.After(last) && !d.After(targetDate) {
			last = d
		}
	}

	stats := Statistics{
		TotalDays:     len(dates),
		LastLoginDate: last,
	}

	if _, ok := dates[targetDate]; !ok {
		return stats, nil
	}

	stats.Fresh = true
	stats.LastLoginDate = targetDate

	anchor, err := s.chainAnchor(dates, targetDate)
	if err != nil {
		return Statistics{}, err
	}

	if anchor.IsZero() {
		// The anchor date is the user's only attendance on record.
		stats.ConsecutiveDays = 1
		return stats, nil
	}

	stats.ConsecutiveDays = 1
	cursor := anchor

	for {
		prev, err := s.cal.PreviousBusinessDay(cursor)
		if err != nil {
			return Statistics{}, err
		}

		if _, ok := dates[prev]; !ok {
			break
		}

		stats.ConsecutiveDays++
		cursor = prev
	}

	return stats, nil
}

// chainAnchor returns the most recent attended business day not after the
// target date, or the zero time when none exists.
func (s *StreakCalculator) chainAnchor(dates map[time.Time]struct{}, targetDate time.Time) (time.Time, error) {
	sorted := make([]time.Time, 0, len(dates))

	for d := range dates {
		if !d.After(targetDate) {
			sorted = append(sorted, d)
		}
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].After(sorted[j]) })

	for _, d := range sorted {
		ok, err := s.cal.IsBusinessDay(d)
		if err != nil {
			return time.Time{}, err
		}

		if ok {
			return d, nil
		}
	}

	return time.Time{}, nil
}

// Materialize converts computed statistics into the persisted row form.
func Materialize(userID, userName string, stats Statistics, now time.Time) *types.UserStatistics {
	return &types.UserStatistics{
		UserID:          userID,
		UserName:        userName,
		LastLoginDate:   stats.LastLoginDate,
		ConsecutiveDays: stats.ConsecutiveDays,
		TotalDays:       stats.TotalDays,
		LastUpdated:     now,
	}
}
