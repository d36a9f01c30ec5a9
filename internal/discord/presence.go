package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/mokumoku-dev/vctracker/internal/attendance"
	"github.com/mokumoku-dev/vctracker/internal/calendar"
	"github.com/mokumoku-dev/vctracker/internal/setup/config"
	"go.uber.org/zap"
)

// Collector observes the voice channels of one guild and produces presence
// events for the members currently connected.
type Collector struct {
	client bot.Client
	cfg    *config.Discord
	logger *zap.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

// NewCollector creates a gateway client with the voice-state intents and
// caches needed to snapshot channel presence.
func NewCollector(cfg *config.Discord, logger *zap.Logger) (*Collector, error) {
	c := &Collector{
		cfg:    cfg,
		logger: logger.Named("discord"),
		ready:  make(chan struct{}),
	}

	client, err := disgo.New(cfg.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildVoiceStates,
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(
				cache.FlagVoiceStates,
				cache.FlagChannels,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnReady: c.handleReady,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	c.client = client

	return c, nil
}

func (c *Collector) handleReady(*events.Ready) {
	c.readyOnce.Do(func() {
		close(c.ready)
	})
}

// Open connects to the gateway and blocks until the ready event arrives or
// the configured timeout elapses. Voice-state caches are only trustworthy
// after ready.
func (c *Collector) Open(ctx context.Context) error {
	if err := c.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	timeout := time.Duration(c.cfg.ReadyTimeout) * time.Second

	select {
	case <-c.ready:
		c.logger.Info("Gateway ready", zap.Uint64("guild_id", uint64(c.cfg.GuildID)))
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("gateway not ready after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts down the gateway connection.
func (c *Collector) Close(ctx context.Context) {
	c.client.Close(ctx)
}

// excluded reports whether a user is on the configured exclusion list.
func (c *Collector) excluded(userID snowflake.ID) bool {
	for _, id := range c.cfg.ExcludedUsers {
		if id == userID {
			return true
		}
	}

	return false
}

// channelName resolves a channel's display name, falling back to the raw ID
// when the lookup fails.
func (c *Collector) channelName(ctx context.Context, channelID snowflake.ID) string {
	if ch, ok := c.client.Caches().Channel(channelID); ok {
		return ch.Name()
	}

	ch, err := c.client.Rest().GetChannel(channelID, rest.WithCtx(ctx))
	if err != nil {
		c.logger.Warn("Failed to resolve channel name",
			zap.Uint64("channel_id", uint64(channelID)),
			zap.Error(err))

		return channelID.String()
	}

	return ch.Name()
}

// Snapshot returns one presence event per member currently connected to any
// of the configured voice channels. Bots and excluded users are dropped.
func (c *Collector) Snapshot(ctx context.Context) ([]attendance.PresenceEvent, error) {
	now := time.Now().In(calendar.JST)

	tracked := make(map[snowflake.ID]string, len(c.cfg.ChannelIDs))
	for _, channelID := range c.cfg.ChannelIDs {
		tracked[channelID] = c.channelName(ctx, channelID)
	}

	var events []attendance.PresenceEvent

	c.client.Caches().VoiceStatesForEach(c.cfg.GuildID, func(state discord.VoiceState) {
		if state.ChannelID == nil {
			return
		}

		name, ok := tracked[*state.ChannelID]
		if !ok || c.excluded(state.UserID) {
			return
		}

		member, err := c.client.Rest().GetMember(c.cfg.GuildID, state.UserID, rest.WithCtx(ctx))
		if err != nil {
			c.logger.Warn("Failed to resolve member, skipping",
				zap.Uint64("user_id", uint64(state.UserID)),
				zap.Error(err))

			return
		}

		if member.User.Bot {
			return
		}

		events = append(events, attendance.PresenceEvent{
			Timestamp:   now,
			UserID:      state.UserID.String(),
			UserName:    member.User.Username,
			DisplayName: member.EffectiveName(),
			ChannelName: name,
		})
	})

	c.logger.Info("Captured presence snapshot",
		zap.Int("members", len(events)),
		zap.Int("channels", len(tracked)))

	return events, nil
}
