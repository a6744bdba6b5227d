// Package jobs contains the scheduled jobs of the early-warning service.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/teamvidya/vidya-dropout/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE PROFILES JOB
// Hourly sweep keeping risk profiles in step with the attendance ledger
// even when nobody marks attendance through the API.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeProfilesJob periodically re-scores the whole roster.
type RecomputeProfilesJob struct {
	handler *command.RecomputeProfilesHandler
	logger  *slog.Logger

	lastRun atomic.Value // *command.RecomputeProfilesResult
}

// NewRecomputeProfilesJob creates a new RecomputeProfilesJob.
func NewRecomputeProfilesJob(handler *command.RecomputeProfilesHandler, logger *slog.Logger) *RecomputeProfilesJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecomputeProfilesJob{
		handler: handler,
		logger:  logger.With("job", "recompute_profiles"),
	}
}

// Name implements scheduler.Job.
func (j *RecomputeProfilesJob) Name() string {
	return "recompute_profiles"
}

// Description implements scheduler.Job.
func (j *RecomputeProfilesJob) Description() string {
	return "Recomputes attendance percentages and risk levels for the whole roster"
}

// Run implements scheduler.Job.
func (j *RecomputeProfilesJob) Run(ctx context.Context) error {
	result, err := j.handler.Handle(ctx, command.RecomputeProfilesCommand{Trigger: "scheduled"})
	if err != nil {
		return fmt.Errorf("recompute_profiles job: %w", err)
	}

	j.lastRun.Store(result)

	j.logger.Info("profiles recomputed",
		"students", result.TotalStudents,
		"scored", result.Scored,
		"risk_changes", result.RiskChanges,
		"escalations", result.Escalations,
		"duration", result.Duration.String(),
	)

	return nil
}

// LastRun returns the result of the most recent run, or nil.
func (j *RecomputeProfilesJob) LastRun() *command.RecomputeProfilesResult {
	result, _ := j.lastRun.Load().(*command.RecomputeProfilesResult)
	return result
}
