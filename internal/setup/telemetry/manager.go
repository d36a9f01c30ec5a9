package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceType represents the type of service being initialized.
type ServiceType int

const (
	ServiceCollector ServiceType = iota
	ServiceAggregator
)

// Name returns the component name used for log directories.
func (s ServiceType) Name() string {
	switch s {
	case ServiceCollector:
		return "collector"
	case ServiceAggregator:
		return "aggregator"
	default:
		return "unknown"
	}
}

// Manager handles the creation and management of log files and directories.
// It maintains timestamped session logs and a "latest" symlink for easy access.
type Manager struct {
	instanceID        string // Unique identifier for this program instance
	componentName     string // Component identifier for this instance
	currentSessionDir string // Path to the current session's log directory
	logDir            string // Base directory for all logs
	level             string // Logging level (debug, info, warn, error)
	maxLogsToKeep     int    // Maximum number of log sessions to retain
}

// NewManager creates a new Manager instance.
func NewManager(serviceType ServiceType, logDir, level string, maxLogsToKeep int) *Manager {
	return &Manager{
		instanceID:    uuid.New().String(),
		componentName: serviceType.Name(),
		logDir:        logDir,
		level:         level,
		maxLogsToKeep: maxLogsToKeep,
	}
}

// GetLoggers initializes the main and database loggers.
// Returns separate loggers for main application and database logging.
func (lm *Manager) GetLoggers() (*zap.Logger, *zap.Logger, error) {
	if err := lm.setupLogDirectories(); err != nil {
		return nil, nil, err
	}

	mainLogger, err := lm.initLogger(filepath.Join(lm.currentSessionDir, "main.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize main logger: %w", err)
	}

	dbLogger, err := lm.initLogger(filepath.Join(lm.currentSessionDir, "database.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database logger: %w", err)
	}

	return mainLogger, dbLogger, nil
}

// GetInstanceID returns the unique instance identifier for this program run.
func (lm *Manager) GetInstanceID() string {
	return lm.instanceID
}

// GetCurrentSessionDir returns the current session directory.
func (lm *Manager) GetCurrentSessionDir() string {
	return lm.currentSessionDir
}

// setupLogDirectories creates the session directory, rotates old sessions and
// repoints the "latest" symlink.
func (lm *Manager) setupLogDirectories() error {
	sessionName := fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), lm.componentName)
	sessionDir := filepath.Join(lm.logDir, sessionName)

	if err := os.MkdirAll(sessionDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create session log directory: %w", err)
	}

	lm.currentSessionDir = sessionDir

	latestLink := filepath.Join(lm.logDir, "latest")
	_ = os.Remove(latestLink)
	_ = os.Symlink(sessionDir, latestLink)

	lm.rotateOldSessions()

	return nil
}

// rotateOldSessions removes the oldest session directories beyond the
// configured retention count.
func (lm *Manager) rotateOldSessions() {
	if lm.maxLogsToKeep <= 0 {
		return
	}

	entries, err := os.ReadDir(lm.logDir)
	if err != nil {
		return
	}

	var sessions []string

	for _, entry := range entries {
		if entry.IsDir() && entry.Name() != "latest" {
			sessions = append(sessions, entry.Name())
		}
	}

	if len(sessions) <= lm.maxLogsToKeep {
		return
	}

	// Session names sort chronologically by construction
	sort.Strings(sessions)

	for _, name := range sessions[:len(sessions)-lm.maxLogsToKeep] {
		_ = os.RemoveAll(filepath.Join(lm.logDir, name))
	}
}

// initLogger creates a logger writing to both the given file and the console.
func (lm *Manager) initLogger(logPath string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lm.level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(logFile),
		level,
	)

	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)

	logger := zap.New(
		zapcore.NewTee(fileCore, consoleCore),
		zap.Fields(zap.String("instance_id", lm.instanceID)),
	)

	return logger, nil
}
