// Package main is the entry point of the background worker.
//
// The worker owns the scheduled jobs of the early-warning service:
// hourly risk profile recomputation, the weekly at-risk alert sweep,
// and nightly model retraining.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teamvidya/vidya-dropout/config"
	"github.com/teamvidya/vidya-dropout/internal/application/command"
	"github.com/teamvidya/vidya-dropout/internal/application/eventhandler"
	"github.com/teamvidya/vidya-dropout/internal/domain/risk"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/external/smtp"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/messaging"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/persistence/postgres"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/persistence/redis"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/scheduler"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/scheduler/jobs"
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

	if !cfg.Scheduler.Enabled {
		return errors.New("scheduler is disabled, nothing for the worker to do")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Vidya Dropout worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

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

	// The worker needs the schema too; migrations are idempotent, so it
	// does not matter which binary runs first.
	if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var studentCache student.Cache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCache, err := connectRedis(cfg.Redis)
		if err != nil {
			log.Warn("failed to connect to Redis, cache invalidation disabled", "error", err)
		} else {
			defer redisCache.Close()
			studentCache = redis.NewStudentCache(redisCache)
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
	// 6. EVENT BUS & HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultConfig()
	busConfig.Logger = log
	eventBus := messaging.NewEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	smtpConfig := smtp.DefaultClientConfig(cfg.SMTP.Host, cfg.SMTP.From)
	smtpConfig.Port = cfg.SMTP.Port
	smtpConfig.Username = cfg.SMTP.Username
	smtpConfig.Password = cfg.SMTP.Password
	smtpConfig.SendTimeout = cfg.SMTP.SendTimeout
	smtpConfig.Disabled = cfg.SMTP.Disabled || !cfg.Features.NotificationsEnabled()
	smtpConfig.Logger = log
	alertChannel := smtp.NewClient(smtpConfig)

	recompute := command.NewRecomputeProfilesHandler(
		studentRepo, attendanceRepo, classifier, eventBus, studentCache, cfg.Features)

	sendAlerts := command.NewSendRiskAlertsHandler(
		studentRepo, alertRepo, alertChannel, eventBus, cfg.Features,
		command.SendRiskAlertsHandlerConfig{
			Cooldown:         cfg.Scheduler.AlertCooldown,
			DefaultRecipient: cfg.SMTP.DefaultRecipient,
		})

	if err := eventBus.Subscribe(eventhandler.NewOnRiskEscalatedHandler(studentRepo, sendAlerts, log)); err != nil {
		return fmt.Errorf("failed to subscribe escalation handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:            log,
		Timezone:          cfg.App.Location,
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
	})

	weeklyCron, err := scheduler.ParseCronExpression(cfg.Scheduler.WeeklyAlertsCron)
	if err != nil {
		return fmt.Errorf("invalid weekly alerts cron %q: %w", cfg.Scheduler.WeeklyAlertsCron, err)
	}

	registrations := []struct {
		job      scheduler.Job
		schedule scheduler.Schedule
	}{
		{
			job:      jobs.NewRecomputeProfilesJob(recompute, log),
			schedule: scheduler.NewIntervalSchedule(cfg.Scheduler.RecomputeInterval),
		},
		{
			job:      jobs.NewWeeklyAlertsJob(sendAlerts, log),
			schedule: weeklyCron,
		},
		{
			job:      jobs.NewRetrainModelJob(studentRepo, classifier, modelStore, eventBus, log),
			schedule: scheduler.NewIntervalSchedule(cfg.Scheduler.RetrainInterval),
		},
	}
	for _, r := range registrations {
		if err := sched.Register(r.job, r.schedule); err != nil {
			return fmt.Errorf("failed to register job %s: %w", r.job.Name(), err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	log.Info("Vidya Dropout worker is running",
		"timezone", cfg.App.Timezone,
		"recompute_interval", cfg.Scheduler.RecomputeInterval.String(),
		"weekly_alerts_cron", cfg.Scheduler.WeeklyAlertsCron,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	done := make(chan struct{})
	go func() {
		_ = sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("scheduler stop timed out, forcing exit")
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

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

// setupLogger builds the worker's slog logger.
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
