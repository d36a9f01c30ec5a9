package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// CurrentVersion is the expected version of the config file.
const CurrentVersion = 1

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file.
	Version     int               `koanf:"version"`
	Debug       Debug             `koanf:"debug"`
	Retry       Retry             `koanf:"retry"`
	PostgreSQL  PostgreSQL        `koanf:"postgresql"`
	Discord     Discord           `koanf:"discord"`
	GoogleDrive GoogleDrive       `koanf:"google_drive"`
	Slack       Slack             `koanf:"slack"`
	Calendar    Calendar          `koanf:"calendar"`
	Aggregation AggregationConfig `koanf:"aggregation"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// Retry contains retry configuration for external calls.
type Retry struct {
	// Maximum retry attempts.
	MaxRetries uint64 `koanf:"max_retries"`
	// Initial retry delay in milliseconds.
	Delay int `koanf:"delay"`
	// Maximum retry delay in milliseconds.
	MaxDelay int `koanf:"max_delay"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Bot token for gateway authentication.
	Token string `koanf:"token"`
	// Guild ID containing the monitored voice channels.
	GuildID snowflake.ID `koanf:"guild_id"`
	// Voice channel IDs to monitor. Empty means all voice channels in the guild.
	ChannelIDs []snowflake.ID `koanf:"channel_ids"`
	// User IDs excluded from tracking (bots, operators).
	ExcludedUsers []snowflake.ID `koanf:"excluded_users"`
	// Gateway ready timeout in seconds.
	ReadyTimeout int `koanf:"ready_timeout"`
}

// GoogleDrive contains the Drive log store configuration.
type GoogleDrive struct {
	// Path to the service account JSON key file.
	ServiceAccountFile string `koanf:"service_account_file"`
	// Base folder path on Drive, e.g. "discord_vc_tracker".
	BaseFolder string `koanf:"base_folder"`
	// Environment suffix used as the per-channel CSV file name, e.g. "0_PRD".
	EnvSuffix string `koanf:"env_suffix"`
	// Optional shared drive ID.
	SharedDriveID string `koanf:"shared_drive_id"`
}

// Slack contains the report delivery configuration.
type Slack struct {
	// Incoming webhook URL for the report channel.
	WebhookURL string `koanf:"webhook_url"`
	// Greeting line prepended to the report.
	Greeting string `koanf:"greeting"`
	// Message shown when nobody attended.
	NoParticipants string `koanf:"no_participants"`
}

// Calendar contains the business-day calendar configuration.
type Calendar struct {
	// Years the holiday table covers. Querying outside this range is a
	// fatal configuration error.
	Years []int `koanf:"years"`
	// National holidays in YYYY-MM-DD form.
	Holidays []string `koanf:"holidays"`
}

// AggregationConfig contains aggregation run configuration.
type AggregationConfig struct {
	// Request timeout in milliseconds for external calls.
	RequestTimeout int `koanf:"request_timeout"`
	// Maximum channel logs read concurrently.
	MaxConcurrentReads int `koanf:"max_concurrent_reads"`
}

// LoadConfig loads the configuration from the first config.toml found in the
// search paths. Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".vctracker",
		homeDir + "/.vctracker/config",
		"/etc/vctracker/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/config.toml", path)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: config.toml", ErrConfigFileNotFound)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion(config.Version, CurrentVersion); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: expected version %d", ErrConfigVersionMissing, expected)
	}

	if current != expected {
		return fmt.Errorf("%w: found version %d, expected version %d",
			ErrConfigVersionMismatch, current, expected)
	}

	return nil
}
