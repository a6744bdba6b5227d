// Package main is the entry point of the dashboard API server.
//
// The server exposes the REST API: roster and statistics reads,
// attendance writes, and the authenticated administrative endpoints.
// Scheduled jobs run in the worker binary; the server only reacts to
// requests and to risk escalation events raised by its own writes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/teamvidya/vidya-dropout/config"
	"github.com/teamvidya/vidya-dropout/internal/application/command"
	"github.com/teamvidya/vidya-dropout/internal/application/eventhandler"
	"github.com/teamvidya/vidya-dropout/internal/application/query"
	"github.com/teamvidya/vidya-dropout/internal/domain/risk"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/external/smtp"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/messaging"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/persistence/postgres"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/persistence/redis"
	httpiface "github.com/teamvidya/vidya-dropout/internal/interface/http"
	"github.com/teamvidya/vidya-dropout/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Vidya Dropout API server",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	httpLog := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     parseLogLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.Observability.LogCaller,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	pool := postgres.DefaultPoolSettings()
	pool.MaxConns = int32(cfg.Database.MaxOpenConns)
	pool.MinConns = int32(cfg.Database.MaxIdleConns)
	pool.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pool.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	dbConn, err := postgres.NewConnection(ctx, cfg.Database.URL, pool)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	log.Info("running database migrations...")
	if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		studentCache student.Cache
		statsCache   query.StatsCache
		redisCache   *redis.Cache
	)

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCache, err = connectRedis(cfg.Redis)
		if err != nil {
			// The dashboard works without the cache, just slower.
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			studentCache = redis.NewStudentCache(redisCache)
			statsCache = redis.NewStatsCache(redisCache, cfg.Redis.StatsTTL)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES & RISK MODEL
	// ─────────────────────────────────────────────────────────────────────────
	studentRepo := postgres.NewStudentRepository(dbConn)
	attendanceRepo := postgres.NewAttendanceRepository(dbConn)
	alertRepo := postgres.NewAlertRepository(dbConn)
	modelStore := postgres.NewModelStore(dbConn)

	classifier := risk.NewClassifier()
	if cfg.Features.MLPredictionsEnabled() {
		model, err := modelStore.Load(ctx)
		switch {
		case err == nil:
			classifier.SetModel(model)
			log.Info("risk model loaded", "trained_at", model.TrainedAt)
		case errors.Is(err, risk.ErrNoModel):
			log.Info("no trained risk model yet, using rule-based classification")
		default:
			return fmt.Errorf("failed to load risk model: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultConfig()
	busConfig.Logger = log
	eventBus := messaging.NewEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ALERT CHANNEL
	// ─────────────────────────────────────────────────────────────────────────
	smtpConfig := smtp.DefaultClientConfig(cfg.SMTP.Host, cfg.SMTP.From)
	smtpConfig.Port = cfg.SMTP.Port
	smtpConfig.Username = cfg.SMTP.Username
	smtpConfig.Password = cfg.SMTP.Password
	smtpConfig.SendTimeout = cfg.SMTP.SendTimeout
	smtpConfig.Disabled = cfg.SMTP.Disabled || !cfg.Features.NotificationsEnabled()
	smtpConfig.Logger = log
	alertChannel := smtp.NewClient(smtpConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	recompute := command.NewRecomputeProfilesHandler(
		studentRepo, attendanceRepo, classifier, eventBus, studentCache, cfg.Features)

	sendAlerts := command.NewSendRiskAlertsHandler(
		studentRepo, alertRepo, alertChannel, eventBus, cfg.Features,
		command.SendRiskAlertsHandlerConfig{
			Cooldown:         cfg.Scheduler.AlertCooldown,
			DefaultRecipient: cfg.SMTP.DefaultRecipient,
		})

	deps := httpiface.Dependencies{
		ListStudents:         query.NewListStudentsHandler(studentRepo, studentCache, cfg.Redis.ListTTL),
		GetStudent:           query.NewGetStudentHandler(studentRepo),
		GetKPIStats:          query.NewGetKPIStatsHandler(studentRepo, statsCache),
		GetDashboardStats:    query.NewGetDashboardStatsHandler(studentRepo, statsCache),
		GetMentorAdvice:      query.NewGetMentorAdviceHandler(studentRepo),
		GetAttendanceHistory: query.NewGetAttendanceHistoryHandler(studentRepo, attendanceRepo),

		MarkAttendance:          command.NewMarkAttendanceHandler(studentRepo, attendanceRepo, recompute, eventBus),
		UpdateAttendanceHistory: command.NewUpdateAttendanceHistoryHandler(studentRepo, attendanceRepo, recompute, eventBus),
		SendRiskAlerts:          sendAlerts,
		RecomputeProfiles:       recompute,
		ImportDataset: command.NewImportDatasetHandler(
			studentRepo, attendanceRepo, classifier, modelStore, eventBus, studentCache, cfg.Features),

		Logger: httpLog,
		Health: &healthChecker{db: dbConn, cache: redisCache},
	}

	// A risk escalation found during any recompute triggers an immediate
	// alert instead of waiting for the weekly sweep.
	if err := eventBus.Subscribe(eventhandler.NewOnRiskEscalatedHandler(studentRepo, sendAlerts, log)); err != nil {
		return fmt.Errorf("failed to subscribe escalation handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	server := httpiface.NewServer(cfg.HTTP, deps)
	serverErr := server.StartAsync()

	log.Info("Vidya Dropout API server is running", "address", cfg.HTTP.Addr())

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// healthChecker probes the backends for /health and /ready.
type healthChecker struct {
	db    *postgres.Connection
	cache *redis.Cache
}

func (h *healthChecker) Check(ctx context.Context) httpiface.HealthStatus {
	status := httpiface.HealthStatus{
		Healthy:    true,
		Ready:      true,
		Components: make(map[string]string),
	}

	if err := h.db.Ping(ctx); err != nil {
		status.Healthy = false
		status.Ready = false
		status.Message = "database unreachable"
		status.Components["postgres"] = "down"
	} else {
		status.Components["postgres"] = "up"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			// Degraded but serving: reads fall through to the database.
			status.Components["redis"] = "down"
		} else {
			status.Components["redis"] = "up"
		}
	}

	return status
}

// connectRedis builds the cache from either a URL or host/port settings.
func connectRedis(cfg config.RedisConfig) (*redis.Cache, error) {
	if cfg.URL != "" {
		return redis.NewCacheFromURL(cfg.URL)
	}

	rc := redis.DefaultConfig()
	rc.Host = cfg.Host
	rc.Port = cfg.Port
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	rc.PoolSize = cfg.PoolSize
	rc.MinIdleConns = cfg.MinIdleConns
	rc.DialTimeout = cfg.DialTimeout
	rc.ReadTimeout = cfg.ReadTimeout
	rc.WriteTimeout = cfg.WriteTimeout
	return redis.NewCache(rc)
}

// setupLogger builds the slog logger used by the infrastructure layer.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

// parseLogLevel maps the configured level onto the HTTP logger's scale.
func parseLogLevel(level string) logger.Level {
	switch level {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}
