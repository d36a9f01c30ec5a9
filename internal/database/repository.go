package database

import (
	"context"
	"time"

	"github.com/mokumoku-dev/vctracker/internal/database/models"
	"github.com/mokumoku-dev/vctracker/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	attendance *models.AttendanceModel
	statistics *models.StatisticsModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		attendance: models.NewAttendance(db, logger),
		statistics: models.NewStatistics(db, logger),
	}
}

// Attendance returns the attendance record model repository.
func (r *Repository) Attendance() *models.AttendanceModel {
	return r.attendance
}

// Statistics returns the user statistics model repository.
func (r *Repository) Statistics() *models.StatisticsModel {
	return r.statistics
}

// Store is the thin record-store surface consumed by the aggregation
// pipeline. It exists so the pipeline depends on four operations instead of
// the whole repository.
type Store struct {
	repo *Repository
}

// NewStore creates a Store over the repository.
func NewStore(repo *Repository) *Store {
	return &Store{repo: repo}
}

// GetRecordsForDate retrieves all attendance records for a single date.
func (s *Store) GetRecordsForDate(ctx context.Context, date time.Time) ([]*types.AttendanceRecord, error) {
	return s.repo.Attendance().GetRecordsForDate(ctx, date)
}

// InsertRecords stores new attendance records, skipping key conflicts, and
// returns the count actually inserted.
func (s *Store) InsertRecords(ctx context.Context, records []*types.AttendanceRecord) (int, error) {
	return s.repo.Attendance().InsertRecords(ctx, records)
}

// GetAttendedDates retrieves the distinct dates a user attended.
func (s *Store) GetAttendedDates(ctx context.Context, userID string) ([]time.Time, error) {
	return s.repo.Attendance().GetAttendedDates(ctx, userID)
}

// UpsertStatistics overwrites a user's statistics row.
func (s *Store) UpsertStatistics(ctx context.Context, stats *types.UserStatistics) error {
	return s.repo.Statistics().UpsertStatistics(ctx, stats)
}
