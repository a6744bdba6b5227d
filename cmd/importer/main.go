// Package main is the dataset import tool.
//
// It loads a school's roster and optional attendance history from CSV
// or Excel files into the database, trains the risk model on the
// imported metrics, and scores every profile. Intended for initial
// setup and for term-boundary reloads.
//
// Usage:
//
//	importer -roster students.csv [-attendance ledger.xlsx] [-reset]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/teamvidya/vidya-dropout/config"
	"github.com/teamvidya/vidya-dropout/internal/application/command"
	"github.com/teamvidya/vidya-dropout/internal/domain/risk"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/ingest"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/persistence/postgres"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/persistence/redis"
)

func main() {
	rosterPath := flag.String("roster", "", "path to the roster file (CSV or Excel), required")
	attendancePath := flag.String("attendance", "", "path to an attendance history file (CSV or Excel)")
	reset := flag.Bool("reset", false, "wipe the existing attendance ledger before loading")
	flag.Parse()

	if *rosterPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), *rosterPath, *attendancePath, *reset); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, rosterPath, attendancePath string, reset bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// ─────────────────────────────────────────────────────────────────────────
	// 1. PARSE INPUT FILES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("reading roster", "file", rosterPath)
	students, err := ingest.ReadRosterFile(rosterPath)
	if err != nil {
		return err
	}
	log.Info("roster parsed", "students", len(students))

	var attendance []command.AttendanceImportRow
	if attendancePath != "" {
		log.Info("reading attendance history", "file", attendancePath)
		attendance, err = ingest.ReadAttendanceFile(attendancePath)
		if err != nil {
			return err
		}
		log.Info("attendance history parsed", "records", len(attendance))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnection(ctx, cfg.Database.URL, postgres.DefaultPoolSettings())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. CACHE INVALIDATION TARGET (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var studentCache *redis.StudentCache
	if !cfg.Redis.Disabled {
		if redisCache, err := connectRedis(cfg.Redis); err == nil {
			defer redisCache.Close()
			studentCache = redis.NewStudentCache(redisCache)
		} else {
			log.Warn("redis unavailable, stale cache entries will expire on their own", "error", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. IMPORT
	// ─────────────────────────────────────────────────────────────────────────
	handler := command.NewImportDatasetHandler(
		postgres.NewStudentRepository(dbConn),
		postgres.NewAttendanceRepository(dbConn),
		risk.NewClassifier(),
		postgres.NewModelStore(dbConn),
		nil,
		cacheOrNil(studentCache),
		cfg.Features,
	)

	result, err := handler.Handle(ctx, command.ImportDatasetCommand{
		Students:    students,
		Attendance:  attendance,
		ResetLedger: reset,
	})
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPORT
	// ─────────────────────────────────────────────────────────────────────────
	fmt.Printf("Imported %d students and %d attendance records in %s\n",
		result.StudentsImported, result.AttendanceRecords, result.Duration.Round(time.Millisecond))
	if len(result.UnknownRolls) > 0 {
		fmt.Printf("Skipped attendance rows for unknown roll numbers: %v\n", result.UnknownRolls)
	}
	if result.ModelTrainedOn > 0 {
		fmt.Printf("Risk model trained on %d profiles at %s\n",
			result.ModelTrainedOn, result.ModelTrainedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Model training skipped, profiles scored by rules")
	}

	return nil
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
	return redis.NewCache(rc)
}

// cacheOrNil keeps a typed nil out of the handler's interface field.
func cacheOrNil(c *redis.StudentCache) student.Cache {
	if c == nil {
		return nil
	}
	return c
}
