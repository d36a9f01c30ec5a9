package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mokumoku-dev/vctracker/internal/attendance"
	"github.com/mokumoku-dev/vctracker/internal/calendar"
	"github.com/mokumoku-dev/vctracker/internal/discord"
	"github.com/mokumoku-dev/vctracker/internal/setup"
	"github.com/mokumoku-dev/vctracker/internal/setup/telemetry"
	"github.com/mokumoku-dev/vctracker/pkg/utils"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const logDir = "logs/collector"

func main() {
	app := &cli.Command{
		Name:  "collector",
		Usage: "Record voice channel presence to the Drive log store",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "interval",
				Usage: "Polling interval in minutes (0 polls exactly once)",
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
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := setup.InitializeApp(ctx, telemetry.ServiceCollector, logDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	collector, err := discord.NewCollector(&app.Config.Discord, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to create presence collector: %w", err)
	}

	if err := collector.Open(ctx); err != nil {
		return fmt.Errorf("failed to connect to gateway: %w", err)
	}
	defer collector.Close(context.Background())

	interval := time.Duration(c.Int("interval")) * time.Minute
	if interval <= 0 {
		return poll(ctx, app, collector)
	}

	app.Logger.Info("Polling on interval", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := poll(ctx, app, collector); err != nil {
			app.Logger.Error("Poll failed", zap.Error(err))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			app.Logger.Info("Shutting down")
			return nil
		}
	}
}

// poll snapshots current channel presence and appends it to each channel's
// log. One channel's append failure does not block the others.
func poll(ctx context.Context, app *setup.App, collector *discord.Collector) error {
	events, err := collector.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot presence: %w", err)
	}

	if len(events) == 0 {
		app.Logger.Debug("No members in tracked channels")
		return nil
	}

	byChannel := make(map[string][]attendance.PresenceEvent)
	for _, event := range events {
		byChannel[event.ChannelName] = append(byChannel[event.ChannelName], event)
	}

	now := time.Now().In(calendar.JST)

	for channel, channelEvents := range byChannel {
		added, err := utils.WithRetry(ctx, func() (int, error) {
			return app.LogStore.AppendPresence(ctx, channel, channelEvents, now)
		}, utils.GetWriteRetryOptions())
		if err != nil {
			app.Logger.Error("Failed to append presence rows",
				zap.String("channel", channel),
				zap.Error(err))

			continue
		}

		if added > 0 {
			app.Logger.Info("Recorded presence",
				zap.String("channel", channel),
				zap.Int("members", len(channelEvents)),
				zap.Int("appended", added))
		}
	}

	return nil
}
