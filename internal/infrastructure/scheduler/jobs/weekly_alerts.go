package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/teamvidya/vidya-dropout/internal/application/command"
	"github.com/teamvidya/vidya-dropout/internal/domain/alerting"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY ALERTS JOB
// The Monday-morning sweep: every medium- and high-risk student's
// guardian and mentor get an email. Scheduled with the "0 9 * * 1" cron
// expression in the configured school timezone.
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyAlertsJob runs the scheduled bulk alert flow.
type WeeklyAlertsJob struct {
	handler *command.SendRiskAlertsHandler
	logger  *slog.Logger

	lastRun atomic.Value // *command.SendRiskAlertsResult
}

// NewWeeklyAlertsJob creates a new WeeklyAlertsJob.
func NewWeeklyAlertsJob(handler *command.SendRiskAlertsHandler, logger *slog.Logger) *WeeklyAlertsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeeklyAlertsJob{
		handler: handler,
		logger:  logger.With("job", "weekly_alerts"),
	}
}

// Name implements scheduler.Job.
func (j *WeeklyAlertsJob) Name() string {
	return "weekly_alerts"
}

// Description implements scheduler.Job.
func (j *WeeklyAlertsJob) Description() string {
	return "Sends the weekly review alerts for medium- and high-risk students"
}

// Run implements scheduler.Job.
func (j *WeeklyAlertsJob) Run(ctx context.Context) error {
	result, err := j.handler.Handle(ctx, command.SendRiskAlertsCommand{
		Reason: alerting.ReasonWeeklyReview,
		Levels: []student.RiskLevel{student.RiskHigh, student.RiskMedium},
	})
	if err != nil {
		return fmt.Errorf("weekly_alerts job: %w", err)
	}

	j.lastRun.Store(result)

	j.logger.Info("weekly alert sweep finished",
		"candidates", result.Candidates,
		"sent", result.Sent,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration", result.Duration.String(),
	)

	if result.Failed > 0 {
		return fmt.Errorf("weekly_alerts job: %d deliveries failed", result.Failed)
	}

	return nil
}

// LastRun returns the result of the most recent run, or nil.
func (j *WeeklyAlertsJob) LastRun() *command.SendRiskAlertsResult {
	result, _ := j.lastRun.Load().(*command.SendRiskAlertsResult)
	return result
}
