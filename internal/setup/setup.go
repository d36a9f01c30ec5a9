package setup

import (
	"context"
	"log"

	"github.com/mokumoku-dev/vctracker/internal/database"
	"github.com/mokumoku-dev/vctracker/internal/logstore"
	"github.com/mokumoku-dev/vctracker/internal/notify"
	"github.com/mokumoku-dev/vctracker/internal/setup/config"
	"github.com/mokumoku-dev/vctracker/internal/setup/telemetry"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config     *config.Config       // Application configuration
	Logger     *zap.Logger          // Main application logger
	DBLogger   *zap.Logger          // Database-specific logger
	DB         database.Client      // Database connection pool
	LogStore   *logstore.Client     // Drive CSV log store
	Emitter    *notify.SlackEmitter // Report delivery
	LogManager *telemetry.Manager   // Log management system
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string) (*App, error) {
	// Load app configuration
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(serviceType, logDir, cfg.Debug.LogLevel, cfg.Debug.MaxLogsToKeep)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded configuration", zap.String("config_dir", configDir))

	// Initialize database, running any pending migrations
	db, err := database.NewConnection(ctx, &cfg.PostgreSQL, dbLogger, true)
	if err != nil {
		return nil, err
	}

	// Drive log store holds the raw per-channel attendance logs
	logStore, err := logstore.NewClient(ctx, &cfg.GoogleDrive, logger)
	if err != nil {
		return nil, err
	}

	// Report delivery
	emitter := notify.NewSlackEmitter(&cfg.Slack, logger)

	// Bundle all initialized components
	return &App{
		Config:     cfg,
		Logger:     logger,
		DBLogger:   dbLogger.Named("database"),
		DB:         db,
		LogStore:   logStore,
		Emitter:    emitter,
		LogManager: logManager,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(context.Context) {
	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Close database connections
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}
}
