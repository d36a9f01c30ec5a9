// Package calendar implements the business-day calendar used for streak
// arithmetic. A business day is a weekday that is not a configured national
// holiday. All date arithmetic is anchored to JST, the timezone the presence
// logs are written in.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/mokumoku-dev/vctracker/internal/setup/config"
)

var (
	ErrYearNotCovered = errors.New("holiday table does not cover year")
	ErrNoYearsCovered = errors.New("calendar config covers no years")
	ErrInvalidHoliday = errors.New("invalid holiday date in calendar config")
)

// JST is the canonical timezone for all attendance dates.
var JST = time.FixedZone("JST", 9*60*60)

// Calendar answers business-day queries against a fixed holiday table.
// There are no side effects; the only failure mode is a query outside the
// configured year coverage, which callers must treat as fatal.
type Calendar struct {
	years    map[int]struct{}
	holidays map[string]struct{}
}

// New builds a Calendar from the calendar config section.
func New(cfg *config.Calendar) (*Calendar, error) {
	if len(cfg.Years) == 0 {
		return nil, ErrNoYearsCovered
	}

	years := make(map[int]struct{}, len(cfg.Years))
	for _, y := range cfg.Years {
		years[y] = struct{}{}
	}

	holidays := make(map[string]struct{}, len(cfg.Holidays))

	for _, h := range cfg.Holidays {
		d, err := time.ParseInLocation("2006-01-02", h, JST)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHoliday, h)
		}

		if _, ok := years[d.Year()]; !ok {
			return nil, fmt.Errorf("%w: holiday %q outside covered years", ErrInvalidHoliday, h)
		}

		holidays[d.Format("2006-01-02")] = struct{}{}
	}

	return &Calendar{years: years, holidays: holidays}, nil
}

// DateOf normalizes a timestamp to midnight JST of its calendar date.
// All map keying and date comparison in the engine goes through this.
func DateOf(t time.Time) time.Time {
	t = t.In(JST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, JST)
}

// IsBusinessDay reports whether the given date is a weekday that is not a
// configured holiday. Returns ErrYearNotCovered if the holiday table has no
// data for the queried year.
func (c *Calendar) IsBusinessDay(d time.Time) (bool, error) {
	d = DateOf(d)

	if _, ok := c.years[d.Year()]; !ok {
		return false, fmt.Errorf("%w: %d", ErrYearNotCovered, d.Year())
	}

	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false, nil
	}

	if _, ok := c.holidays[d.Format("2006-01-02")]; ok {
		return false, nil
	}

	return true, nil
}

// PreviousBusinessDay returns the nearest earlier business day, stepping
// backward one day at a time. The walk is bounded only by year coverage;
// leaving the covered range returns ErrYearNotCovered.
func (c *Calendar) PreviousBusinessDay(d time.Time) (time.Time, error) {
	cursor := DateOf(d)

	for {
		cursor = cursor.AddDate(0, 0, -1)

		ok, err := c.IsBusinessDay(cursor)
		if err != nil {
			return time.Time{}, err
		}

		if ok {
			return cursor, nil
		}
	}
}
