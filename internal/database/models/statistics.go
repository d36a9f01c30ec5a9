package models

import (
	"context"
	"fmt"

	"github.com/mokumoku-dev/vctracker/internal/database/dbretry"
	"github.com/mokumoku-dev/vctracker/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// StatisticsModel handles database operations for per-user statistics rows.
type StatisticsModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewStatistics creates a new statistics model instance.
func NewStatistics(db *bun.DB, logger *zap.Logger) *StatisticsModel {
	return &StatisticsModel{
		db:     db,
		logger: logger.Named("db_statistics"),
	}
}

// UpsertStatistics overwrites a user's statistics row. Statistics are always
// recomputed from the full record history, so the new row wins completely.
func (m *StatisticsModel) UpsertStatistics(ctx context.Context, stats *types.UserStatistics) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(stats).
			On("CONFLICT (user_id) DO UPDATE").
			Set("user_name = EXCLUDED.user_name").
			Set("last_login_date = EXCLUDED.last_login_date").
			Set("consecutive_days = EXCLUDED.consecutive_days").
			Set("total_days = EXCLUDED.total_days").
			Set("last_updated = EXCLUDED.last_updated").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert user statistics: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Upserted user statistics",
		zap.String("user_id", stats.UserID),
		zap.Int("total_days", stats.TotalDays),
		zap.Int("consecutive_days", stats.ConsecutiveDays))

	return nil
}

// GetStatistics retrieves a user's statistics row, or nil when the user has
// no row yet.
func (m *StatisticsModel) GetStatistics(ctx context.Context, userID string) (*types.UserStatistics, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.UserStatistics, error) {
		stats := new(types.UserStatistics)

		err := m.db.NewSelect().
			Model(stats).
			Where("user_id = ?", userID).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get user statistics: %w", err)
		}

		return stats, nil
	})
}

// GetAllStatistics retrieves every statistics row ordered by user name.
func (m *StatisticsModel) GetAllStatistics(ctx context.Context) ([]*types.UserStatistics, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.UserStatistics, error) {
		var stats []*types.UserStatistics

		err := m.db.NewSelect().
			Model(&stats).
			Order("user_name", "user_id").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get all user statistics: %w", err)
		}

		return stats, nil
	})
}
