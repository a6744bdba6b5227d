// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/teamvidya/vidya-dropout/internal/domain/attendance"
	"github.com/teamvidya/vidya-dropout/internal/domain/risk"
	"github.com/teamvidya/vidya-dropout/internal/domain/shared"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE PROFILES COMMAND
// Recalculates every on-rolls student's attendance percentage from the
// ledger, re-scores dropout risk, and persists the changes in one batch.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeProfilesCommand triggers a full profile recomputation.
type RecomputeProfilesCommand struct {
	// Trigger records what started the run: "scheduled", "manual",
	// or "attendance". Informational only.
	Trigger string
}

// RecomputeProfilesResult contains the result of a recomputation pass.
type RecomputeProfilesResult struct {
	// TotalStudents is the number of on-rolls students considered.
	TotalStudents int

	// Scored is the number of students whose metrics were recomputed.
	Scored int

	// RiskChanges is the number of students whose level changed.
	RiskChanges int

	// Escalations is the subset of changes that increased severity.
	Escalations int

	// StartedAt is when the pass began.
	StartedAt time.Time

	// Duration is how long the pass took.
	Duration time.Duration
}

// FeatureGate exposes the runtime feature toggles the commands honour.
// Satisfied by config.FeatureFlags.
type FeatureGate interface {
	// MLPredictionsEnabled reports whether the trained model may be used.
	MLPredictionsEnabled() bool

	// NotificationsEnabled reports whether alert delivery is on.
	NotificationsEnabled() bool
}

// alwaysOnGate is the fallback when no gate is wired.
type alwaysOnGate struct{}

func (alwaysOnGate) MLPredictionsEnabled() bool { return true }
func (alwaysOnGate) NotificationsEnabled() bool { return true }

// RecomputeProfilesHandler handles the RecomputeProfilesCommand.
type RecomputeProfilesHandler struct {
	studentRepo    student.Repository
	attendanceRepo attendance.Repository
	classifier     *risk.Classifier
	eventPublisher shared.EventPublisher
	cache          student.Cache
	features       FeatureGate
}

// NewRecomputeProfilesHandler creates a new RecomputeProfilesHandler.
// The cache may be nil when Redis is disabled.
func NewRecomputeProfilesHandler(
	studentRepo student.Repository,
	attendanceRepo attendance.Repository,
	classifier *risk.Classifier,
	eventPublisher shared.EventPublisher,
	cache student.Cache,
	features FeatureGate,
) *RecomputeProfilesHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	if features == nil {
		features = alwaysOnGate{}
	}

	return &RecomputeProfilesHandler{
		studentRepo:    studentRepo,
		attendanceRepo: attendanceRepo,
		classifier:     classifier,
		eventPublisher: eventPublisher,
		cache:          cache,
		features:       features,
	}
}

// Handle executes the recomputation pass.
func (h *RecomputeProfilesHandler) Handle(ctx context.Context, cmd RecomputeProfilesCommand) (*RecomputeProfilesResult, error) {
	result := &RecomputeProfilesResult{StartedAt: time.Now().UTC()}

	summaries, err := h.attendanceRepo.SummarizeAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("recompute_profiles: failed to summarize attendance: %w", err)
	}

	// The whole roster: students without a single ledger row still get
	// scored, with attendance defaulting to zero.
	students, err := h.studentRepo.GetAll(ctx, student.ListOptions{SortBy: student.SortByRollNumber})
	if err != nil {
		return nil, fmt.Errorf("recompute_profiles: failed to load students: %w", err)
	}

	result.TotalStudents = len(students)
	if len(students) == 0 {
		result.Duration = time.Since(result.StartedAt)
		return result, nil
	}

	useModel := h.features.MLPredictionsEnabled()

	updates := make([]student.RiskUpdate, 0, len(students))
	events := make([]shared.Event, 0)

	for _, s := range students {
		metrics := s.Metrics()
		if sum, ok := summaries[s.ID]; ok {
			metrics.AttendancePct = student.Percent(sum.Pct())
		}

		level := h.classify(metrics, useModel)

		if err := s.ApplyMetrics(metrics); err != nil {
			return nil, fmt.Errorf("recompute_profiles: student %s: %w", s.ID, err)
		}

		previous, err := s.SetRisk(level)
		if err != nil {
			return nil, fmt.Errorf("recompute_profiles: student %s: %w", s.ID, err)
		}

		updates = append(updates, student.RiskUpdate{
			StudentID: s.ID,
			Metrics:   metrics,
			RiskLevel: level,
		})
		result.Scored++

		if previous != level {
			result.RiskChanges++
			event := shared.NewRiskChangedEvent(s, previous)
			if event.Escalated() {
				result.Escalations++
			}
			events = append(events, event)
		}
	}

	if err := h.studentRepo.UpdateRiskBatch(ctx, updates); err != nil {
		return nil, fmt.Errorf("recompute_profiles: failed to persist batch: %w", err)
	}

	h.invalidateCache(ctx)

	for _, event := range events {
		// Handler failures are logged by the bus; a lost event must not
		// fail the recompute.
		_ = h.eventPublisher.Publish(ctx, event)
	}
	_ = h.eventPublisher.Publish(ctx, shared.NewProfilesRecomputedEvent(result.Scored, result.RiskChanges))

	result.Duration = time.Since(result.StartedAt)
	return result, nil
}

// classify picks the risk level for one set of metrics.
func (h *RecomputeProfilesHandler) classify(m student.Metrics, useModel bool) student.RiskLevel {
	if useModel && h.classifier != nil {
		return h.classifier.Predict(m)
	}
	return risk.RuleLabel(m)
}

func (h *RecomputeProfilesHandler) invalidateCache(ctx context.Context) {
	if h.cache == nil {
		return
	}
	_ = h.cache.Invalidate(ctx)
}
