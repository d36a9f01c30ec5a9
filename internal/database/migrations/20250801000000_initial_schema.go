package migrations

import (
	"context"
	"fmt"

	"github.com/mokumoku-dev/vctracker/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		// Create tables
		models := []any{
			(*types.AttendanceRecord)(nil),
			(*types.UserStatistics)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
		}

		// Create indexes
		_, err := db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_attendance_records_user_date
			ON attendance_records (user_id, date);

			CREATE INDEX IF NOT EXISTS idx_attendance_records_date
			ON attendance_records (date);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_attendance_records_user_date;
			DROP INDEX IF EXISTS idx_attendance_records_date;

			DROP TABLE IF EXISTS user_statistics;
			DROP TABLE IF EXISTS attendance_records;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop schema: %w", err)
		}

		return nil
	})
}
