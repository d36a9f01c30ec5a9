package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mokumoku-dev/vctracker/internal/attendance"
	"github.com/mokumoku-dev/vctracker/internal/calendar"
	"github.com/mokumoku-dev/vctracker/internal/setup"
	"github.com/mokumoku-dev/vctracker/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const logDir = "logs/aggregator"

func main() {
	app := &cli.Command{
		Name:  "aggregator",
		Usage: "Aggregate voice channel attendance logs for one day",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "date",
				Usage: "Target date in YYYY-MM-DD form (defaults to today, JST)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Compute and log the report without writing or publishing",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	targetDate := time.Now().In(calendar.JST)

	if dateArg := c.String("date"); dateArg != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateArg, calendar.JST)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", dateArg, err)
		}

		targetDate = parsed
	}

	app, err := setup.InitializeApp(ctx, telemetry.ServiceAggregator, logDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	cal, err := calendar.New(&app.Config.Calendar)
	if err != nil {
		return fmt.Errorf("invalid calendar configuration: %w", err)
	}

	opts := []attendance.RunnerOption{
		attendance.WithMaxConcurrentReads(app.Config.Aggregation.MaxConcurrentReads),
	}
	if c.Bool("dry-run") {
		opts = append(opts, attendance.WithDryRun())
	}

	runner := attendance.NewRunner(
		app.LogStore, app.DB.Store(), app.Emitter, cal, app.Logger, opts...,
	)

	report, err := runner.Run(ctx, targetDate)
	if err != nil {
		return fmt.Errorf("aggregation run failed: %w", err)
	}

	app.Logger.Info("Run complete",
		zap.Time("target_date", report.AsOf),
		zap.Int("participants", len(report.Entries)),
		zap.Int("inserted", report.Inserted))

	return nil
}
