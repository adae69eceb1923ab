package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jonesrussell/quiz-funnel/internal/api"
	"github.com/jonesrussell/quiz-funnel/internal/config"
	"github.com/jonesrussell/quiz-funnel/internal/enrich"
	"github.com/jonesrussell/quiz-funnel/internal/flow"
	"github.com/jonesrussell/quiz-funnel/internal/guard"
	"github.com/jonesrussell/quiz-funnel/internal/handler"
	"github.com/jonesrussell/quiz-funnel/internal/logger"
	"github.com/jonesrussell/quiz-funnel/internal/metrics"
	"github.com/jonesrussell/quiz-funnel/internal/session"
	"github.com/jonesrussell/quiz-funnel/internal/storage"
	"github.com/jonesrussell/quiz-funnel/internal/webhook"
	"github.com/jonesrussell/quiz-funnel/internal/wordpress"

	_ "github.com/lib/pq"
)

// Database connection timeout.
const dbPingTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	var db *sql.DB
	if !cfg.Database.Disabled {
		db, err = connectDatabase(cfg, log)
		if err != nil {
			log.Error("Failed to connect to database", logger.Error(err))
			return 1
		}
		defer func() { _ = db.Close() }()
	}

	return runServer(cfg, log, db)
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// configPath returns the config file location, overridable via CONFIG_PATH.
func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.yml"
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// connectDatabase opens and verifies a database connection.
func connectDatabase(cfg *config.Config, log logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.Database),
	)

	return db, nil
}

// runServer creates all dependencies and starts the HTTP server. db is nil
// when the database is disabled; the submission store then lives in memory
// and the audit trail is not persisted.
func runServer(cfg *config.Config, log logger.Logger, db *sql.DB) int {
	var store guard.SubmissionStore
	if db != nil {
		store = storage.NewSubmissionRepository(db)
	} else {
		log.Warn("Database disabled, submission records are in-memory only")
		store = storage.NewMemoryStore()
	}

	events := storage.NewEventBuffer(cfg.Service.EventBufferSize)
	if db != nil {
		eventStore := storage.NewEventStore(
			db, events, log,
			cfg.Service.EventFlushInterval.Std(), cfg.Service.EventFlushThreshold,
		)
		eventStore.Start()
		defer eventStore.Stop()
	}

	g := guard.New(store, cfg.Guard.Window.Std(), cfg.Guard.Cooldown.Std(), log)

	detector := wordpress.NewDetector(
		wordpress.NewClient(cfg.Detection.Timeout.Std()),
		cfg.Detection.CacheTTL.Std(),
		log,
	)
	defer detector.Stop()

	webhookClient := &http.Client{Timeout: cfg.Webhook.Timeout.Std()}
	wh := webhook.New(cfg.Webhook.URL, webhookClient, log)
	geo := enrich.NewGeoClient(cfg.Webhook.GeoURL, webhookClient, log)

	sessions := session.NewManager(cfg.Service.SessionTTL.Std())
	defer sessions.Stop()

	m := metrics.New()

	quizHandler := handler.NewQuizHandler(
		flow.NewDefaultSequencer(),
		sessions, g, detector, wh, geo, events, m, log,
		cfg.Detection.Debounce.Std(),
	)

	server := api.NewServer(cfg, quizHandler, m, log)

	log.Info("Quiz-funnel starting",
		logger.Int("port", cfg.Service.Port),
	)

	if err := server.Run(); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Quiz-funnel exited cleanly")
	return 0
}
