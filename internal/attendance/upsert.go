package attendance

import (
	"time"

	"github.com/mokumoku-dev/vctracker/internal/calendar"
	"github.com/mokumoku-dev/vctracker/internal/database/types"
	"go.uber.org/zap"
)

// UpsertAction classifies one (channel, user, date) combination.
type UpsertAction int

const (
	// ActionInsert marks a combination absent from the canonical record set.
	ActionInsert UpsertAction = iota
	// ActionSkip marks a combination already recorded; re-inserting would
	// duplicate the canonical fact.
	ActionSkip
)

// UpsertDecision is the outcome for one (channel, user) pair on the target
// date. There is deliberately no update action: presence on a day is a
// boolean that, once true, stays true.
type UpsertDecision struct {
	ChannelName string
	UserID      string
	UserName    string
	Action      UpsertAction
}

// UpsertEngine reconciles one day's summaries against a snapshot of the
// existing canonical records. The snapshot must be taken before any writes
// begin so the decision phase never races its own write phase.
type UpsertEngine struct {
	logger *zap.Logger
}

// NewUpsertEngine creates an UpsertEngine.
func NewUpsertEngine(logger *zap.Logger) *UpsertEngine {
	return &UpsertEngine{logger: logger.Named("upsert")}
}

// Decide computes the decision set for the target date from one consistent
// snapshot of existing records. Running it twice over the same inputs yields
// the same decisions; applying the resulting inserts is idempotent because
// the store treats key conflicts as skips.
func (e *UpsertEngine) Decide(
	targetDate time.Time, summaries []DailyUserSummary, existing []*types.AttendanceRecord,
) []UpsertDecision {
	targetDate = calendar.DateOf(targetDate)

	type key struct {
		channel string
		userID  string
	}

	recorded := make(map[key]struct{}, len(existing))

	for _, rec := range existing {
		if !calendar.DateOf(rec.Date).Equal(targetDate) {
			continue
		}

		recorded[key{channel: rec.ChannelName, userID: rec.UserID}] = struct{}{}
	}

	var decisions []UpsertDecision

	inserts := 0

	for _, summary := range summaries {
		for _, channel := range summary.Channels {
			decision := UpsertDecision{
				ChannelName: channel,
				UserID:      summary.UserID,
				UserName:    summary.UserName,
				Action:      ActionSkip,
			}

			if _, ok := recorded[key{channel: channel, userID: summary.UserID}]; !ok {
				decision.Action = ActionInsert
				inserts++
			}

			decisions = append(decisions, decision)
		}
	}

	e.logger.Debug("Computed upsert decisions",
		zap.Time("target_date", targetDate),
		zap.Int("decisions", len(decisions)),
		zap.Int("inserts", inserts))

	return decisions
}

// Records materializes the insert decisions as canonical records for the
// target date. FirstSeenAt is set once here and never rewritten.
func Records(decisions []UpsertDecision, targetDate, firstSeenAt time.Time) []*types.AttendanceRecord {
	targetDate = calendar.DateOf(targetDate)

	records := make([]*types.AttendanceRecord, 0, len(decisions))

	for _, d := range decisions {
		if d.Action != ActionInsert {
			continue
		}

		records = append(records, &types.AttendanceRecord{
			ChannelName: d.ChannelName,
			UserID:      d.UserID,
			Date:        targetDate,
			UserName:    d.UserName,
			FirstSeenAt: firstSeenAt,
		})
	}

	return records
}
