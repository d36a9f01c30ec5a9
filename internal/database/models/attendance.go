package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mokumoku-dev/vctracker/internal/database/dbretry"
	"github.com/mokumoku-dev/vctracker/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// AttendanceModel handles database operations for canonical attendance records.
type AttendanceModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewAttendance creates a new attendance model instance.
func NewAttendance(db *bun.DB, logger *zap.Logger) *AttendanceModel {
	return &AttendanceModel{
		db:     db,
		logger: logger.Named("db_attendance"),
	}
}

// GetRecordsForDate retrieves all attendance records for a single date.
func (m *AttendanceModel) GetRecordsForDate(ctx context.Context, date time.Time) ([]*types.AttendanceRecord, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.AttendanceRecord, error) {
		var records []*types.AttendanceRecord

		err := m.db.NewSelect().
			Model(&records).
			Where("date = ?", date).
			Order("channel_name", "user_id").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get attendance records for date: %w", err)
		}

		return records, nil
	})
}

// InsertRecords stores new attendance records, leaving existing rows
// untouched on key conflicts. It returns how many rows were actually
// inserted; the difference from len(records) is the number of conflicts.
func (m *AttendanceModel) InsertRecords(ctx context.Context, records []*types.AttendanceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	inserted, err := dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		res, err := m.db.NewInsert().
			Model(&records).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to insert attendance records: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected row count: %w", err)
		}

		return affected, nil
	})
	if err != nil {
		return 0, err
	}

	m.logger.Debug("Inserted attendance records",
		zap.Int("submitted", len(records)),
		zap.Int64("inserted", inserted),
		zap.Int64("conflicts", int64(len(records))-inserted))

	return int(inserted), nil
}

// GetAttendedDates retrieves the distinct dates on which a user appears in
// any channel. This is the full history feeding streak computation.
func (m *AttendanceModel) GetAttendedDates(ctx context.Context, userID string) ([]time.Time, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]time.Time, error) {
		var dates []time.Time

		err := m.db.NewSelect().
			Model((*types.AttendanceRecord)(nil)).
			ColumnExpr("DISTINCT date").
			Where("user_id = ?", userID).
			Order("date").
			Scan(ctx, &dates)
		if err != nil {
			return nil, fmt.Errorf("failed to get attended dates: %w", err)
		}

		return dates, nil
	})
}

// GetRecordsForUser retrieves a user's attendance records ordered by date.
func (m *AttendanceModel) GetRecordsForUser(ctx context.Context, userID string) ([]*types.AttendanceRecord, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.AttendanceRecord, error) {
		var records []*types.AttendanceRecord

		err := m.db.NewSelect().
			Model(&records).
			Where("user_id = ?", userID).
			Order("date", "channel_name").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get attendance records for user: %w", err)
		}

		return records, nil
	})
}
