package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mokumoku-dev/vctracker/internal/calendar"
	"github.com/mokumoku-dev/vctracker/internal/database/types"
	"github.com/mokumoku-dev/vctracker/pkg/utils"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// ChannelLog identifies one channel's log within the log store.
type ChannelLog struct {
	ChannelName string
	FileID      string
}

// LogSource reads per-channel presence logs. Implemented by the Drive log
// store client.
type LogSource interface {
	ListChannelLogs(ctx context.Context) ([]ChannelLog, error)
	ReadLog(ctx context.Context, log ChannelLog) ([]RawRow, error)
}

// RecordStore persists canonical attendance records and derived statistics.
// Implemented by the database repository.
type RecordStore interface {
	// GetRecordsForDate returns a consistent snapshot of records for one date.
	GetRecordsForDate(ctx context.Context, date time.Time) ([]*types.AttendanceRecord, error)
	// InsertRecords inserts records, skipping keys that already exist.
	// Returns the number actually inserted.
	InsertRecords(ctx context.Context, records []*types.AttendanceRecord) (int, error)
	// GetAttendedDates returns every distinct attended date for one user.
	GetAttendedDates(ctx context.Context, userID string) ([]time.Time, error)
	// UpsertStatistics fully overwrites one user's statistics row.
	UpsertStatistics(ctx context.Context, stats *types.UserStatistics) error
}

// ReportEmitter publishes the finished report. Delivery failure must not
// fail the run; the runner degrades to local output.
type ReportEmitter interface {
	Publish(ctx context.Context, report *Report) error
}

// Runner executes one aggregation run for one target date end to end:
// read all channel logs, normalize, aggregate, upsert, recompute statistics,
// emit report. Reads fan out across channels; the upsert decision phase
// operates on a snapshot taken before any writes begin.
type Runner struct {
	logs       LogSource
	records    RecordStore
	emitter    ReportEmitter
	normalizer *Normalizer
	aggregator *Aggregator
	upsert     *UpsertEngine
	streak     *StreakCalculator
	maxReads   int
	dryRun     bool
	logger     *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithDryRun skips all writes; decisions and statistics are computed and
// reported but nothing is persisted or published.
func WithDryRun() RunnerOption {
	return func(r *Runner) { r.dryRun = true }
}

// WithMaxConcurrentReads bounds the channel-log read fan-out.
func WithMaxConcurrentReads(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxReads = n
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(
	logs LogSource, records RecordStore, emitter ReportEmitter,
	cal *calendar.Calendar, logger *zap.Logger, opts ...RunnerOption,
) *Runner {
	r := &Runner{
		logs:       logs,
		records:    records,
		emitter:    emitter,
		normalizer: NewNormalizer(logger),
		aggregator: NewAggregator(logger),
		upsert:     NewUpsertEngine(logger),
		streak:     NewStreakCalculator(cal),
		maxReads:   4,
		logger:     logger.Named("runner"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run performs one aggregation run. The returned report is non-nil whenever
// the run could proceed at all; a non-nil error means the run aborted on a
// fatal condition (calendar coverage) and nothing was emitted.
func (r *Runner) Run(ctx context.Context, targetDate time.Time) (*Report, error) {
	targetDate = calendar.DateOf(targetDate)
	report := &Report{AsOf: targetDate}

	r.logger.Info("Starting aggregation run",
		zap.Time("target_date", targetDate),
		zap.Bool("dry_run", r.dryRun))

	// Step 1: discover channel logs.
	handles, err := r.logs.ListChannelLogs(ctx)
	if err != nil {
		r.logger.Error("Failed to list channel logs", zap.Error(err))
	}

	if len(handles) == 0 {
		report.NoData = true
		r.publish(ctx, report)

		return report, nil
	}

	// Step 2: read and normalize each channel log, fanning out read-only.
	events, rawRows, skipped := r.readChannels(ctx, handles, targetDate)
	report.SkippedChannels = skipped

	// Step 3: aggregate into one summary per user.
	summaries := r.aggregator.Aggregate(events)
	if len(summaries) == 0 {
		r.publish(ctx, report)

		return report, nil
	}

	// Step 4: upsert decisions from one consistent snapshot, then writes.
	if err := r.reconcile(ctx, targetDate, summaries, report); err != nil {
		return nil, err
	}

	// Step 5: recompute statistics for every user present today, folding the
	// raw log history in so totals self-heal after missed runs.
	history := r.normalizer.ParseHistory(rawRows)
	if err := r.computeStatistics(ctx, targetDate, summaries, history, report); err != nil {
		return nil, err
	}

	// Step 6: emit whatever could be computed.
	report.Sort()
	r.publish(ctx, report)

	r.logger.Info("Aggregation run finished",
		zap.Int("participants", len(report.Entries)),
		zap.Int("inserted", report.Inserted),
		zap.Int("already_present", report.AlreadyPresent),
		zap.Strings("skipped_channels", report.SkippedChannels),
		zap.Strings("skipped_users", report.SkippedUsers))

	return report, nil
}

// readChannels reads every channel log concurrently and returns the target
// date's normalized events in stable order (channel list order, then row
// order), the raw rows of every readable log keyed by channel, and the
// channels that could not be read.
func (r *Runner) readChannels(
	ctx context.Context, handles []ChannelLog, targetDate time.Time,
) ([]PresenceEvent, map[string][]RawRow, []string) {
	var (
		perChannel = make([][]PresenceEvent, len(handles))
		rawRows    = make(map[string][]RawRow, len(handles))
		mu         sync.Mutex
		skipped    []string
	)

	p := pool.New().WithContext(ctx).WithMaxGoroutines(r.maxReads)

	for i, handle := range handles {
		p.Go(func(ctx context.Context) error {
			rows, err := utils.WithRetry(ctx, func() ([]RawRow, error) {
				return r.logs.ReadLog(ctx, handle)
			}, utils.GetReadRetryOptions())
			if err != nil {
				r.logger.Warn("Skipping unreadable channel log",
					zap.String("channel", handle.ChannelName),
					zap.Error(err))

				mu.Lock()
				skipped = append(skipped, handle.ChannelName)
				mu.Unlock()

				return nil // One channel's failure never blocks the others
			}

			perChannel[i] = r.normalizer.NormalizeForDate(rows, handle.ChannelName, targetDate)

			mu.Lock()
			rawRows[handle.ChannelName] = rows
			mu.Unlock()

			return nil
		})
	}

	if err := p.Wait(); err != nil {
		r.logger.Error("Error during channel log fan-out", zap.Error(err))
	}

	sort.Strings(skipped)

	var events []PresenceEvent
	for _, chunk := range perChannel {
		events = append(events, chunk...)
	}

	return events, rawRows, skipped
}

// reconcile snapshots the existing records for the date, computes the
// decision set and writes new records channel by channel so one channel's
// write failure cannot block the rest.
func (r *Runner) reconcile(
	ctx context.Context, targetDate time.Time, summaries []DailyUserSummary, report *Report,
) error {
	existing, err := utils.WithRetry(ctx, func() ([]*types.AttendanceRecord, error) {
		return r.records.GetRecordsForDate(ctx, targetDate)
	}, utils.GetReadRetryOptions())
	if err != nil {
		// Without the snapshot no write decision is safe; skip the upsert
		// unit but keep the run going so a report is still emitted.
		r.logger.Error("Failed to snapshot existing records, skipping upsert", zap.Error(err))

		for _, s := range summaries {
			report.SkippedUsers = append(report.SkippedUsers, s.UserID)
		}

		return nil
	}

	decisions := r.upsert.Decide(targetDate, summaries, existing)

	for _, d := range decisions {
		if d.Action == ActionSkip {
			report.AlreadyPresent++
		}
	}

	if r.dryRun {
		for _, d := range decisions {
			if d.Action == ActionInsert {
				report.Inserted++
			}
		}

		return nil
	}

	byChannel := make(map[string][]*types.AttendanceRecord)
	for _, rec := range Records(decisions, targetDate, time.Now().In(calendar.JST)) {
		byChannel[rec.ChannelName] = append(byChannel[rec.ChannelName], rec)
	}

	for channel, records := range byChannel {
		inserted, err := utils.WithRetry(ctx, func() (int, error) {
			return r.records.InsertRecords(ctx, records)
		}, utils.GetWriteRetryOptions())
		if err != nil {
			r.logger.Error("Failed to insert records for channel",
				zap.String("channel", channel),
				zap.Error(err))

			report.SkippedChannels = append(report.SkippedChannels, channel)

			continue
		}

		report.Inserted += inserted
		// Keys that existed by write time count as already present, same as
		// if they had been seen in the snapshot.
		report.AlreadyPresent += len(records) - inserted
	}

	sort.Strings(report.SkippedChannels)

	return nil
}

// computeStatistics recomputes each present user's statistics from the full
// record history plus the raw log history. Calendar coverage errors are
// fatal; store errors skip the affected user only, as does a target-date
// record that never got persisted: overwriting the row then would replace a
// live streak with stale numbers.
func (r *Runner) computeStatistics(
	ctx context.Context, targetDate time.Time, summaries []DailyUserSummary,
	history map[string][]time.Time, report *Report,
) error {
	now := time.Now().In(calendar.JST)
	alreadySkipped := make(map[string]struct{}, len(report.SkippedUsers))

	for _, id := range report.SkippedUsers {
		alreadySkipped[id] = struct{}{}
	}

	for _, summary := range summaries {
		if _, ok := alreadySkipped[summary.UserID]; ok {
			continue
		}

		attended, err := utils.WithRetry(ctx, func() ([]time.Time, error) {
			return r.records.GetAttendedDates(ctx, summary.UserID)
		}, utils.GetReadRetryOptions())
		if err != nil {
			r.logger.Warn("Skipping user, history unavailable",
				zap.String("user_id", summary.UserID),
				zap.Error(err))

			report.SkippedUsers = append(report.SkippedUsers, summary.UserID)

			continue
		}

		// The log history backfills days present in the CSVs but never
		// aggregated, so a missed run does not undercount totals forever.
		// Only dates before the target feed the backfill: whether the
		// target date counts is decided by the record write, so a failed
		// insert is not masked by today's rows.
		for _, d := range history[summary.UserID] {
			if d.Before(targetDate) {
				attended = append(attended, d)
			}
		}

		if r.dryRun {
			// A dry run has not inserted today's record, so anchor the
			// streak on the summary itself.
			attended = append(attended, targetDate)
		}

		stats, err := r.streak.Calculate(attended, targetDate)
		if err != nil {
			// No safe default exists for business-day arithmetic.
			return err
		}

		if !stats.Fresh {
			r.logger.Warn("Skipping user, target date record was not persisted",
				zap.String("user_id", summary.UserID))

			report.SkippedUsers = append(report.SkippedUsers, summary.UserID)

			continue
		}

		if !r.dryRun {
			row := Materialize(summary.UserID, summary.UserName, stats, now)
			_, err = utils.WithRetry(ctx, func() (struct{}, error) {
				return struct{}{}, r.records.UpsertStatistics(ctx, row)
			}, utils.GetWriteRetryOptions())

			if err != nil {
				r.logger.Warn("Skipping user, statistics write failed",
					zap.String("user_id", summary.UserID),
					zap.Error(err))

				report.SkippedUsers = append(report.SkippedUsers, summary.UserID)

				continue
			}
		}

		report.Entries = append(report.Entries, ReportEntry{
			UserID:          summary.UserID,
			UserName:        summary.UserName,
			TotalDays:       stats.TotalDays,
			ConsecutiveDays: stats.ConsecutiveDays,
		})
	}

	sort.Strings(report.SkippedUsers)

	return nil
}

// publish delivers the report, degrading to local output when the sink is
// unreachable. The report is considered produced either way.
func (r *Runner) publish(ctx context.Context, report *Report) {
	if r.dryRun {
		r.logger.Info("Dry run, report not published", zap.String("report", report.Text()))
		return
	}

	if err := r.emitter.Publish(ctx, report); err != nil {
		r.logger.Warn("Report delivery failed, emitting locally",
			zap.Error(err),
			zap.String("report", report.Text()))
	}
}
