package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teamvidya/vidya-dropout/internal/domain/risk"
	"github.com/teamvidya/vidya-dropout/internal/domain/shared"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// RETRAIN MODEL JOB
// Nightly refit of the decision tree on the current roster, so the model
// tracks the school's real metric distribution instead of the import-day
// snapshot. The new model is persisted and swapped into the running
// classifier atomically.
// ══════════════════════════════════════════════════════════════════════════════

// MinTrainingRoster is the smallest roster worth fitting a tree on.
// Below it the rule ladder labels everything anyway.
const MinTrainingRoster = 10

// RetrainModelJob refits and persists the risk model.
type RetrainModelJob struct {
	studentRepo    student.Repository
	classifier     *risk.Classifier
	modelStore     risk.ModelStore
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	lastTrainedAt atomic.Value // time.Time
}

// NewRetrainModelJob creates a new RetrainModelJob.
func NewRetrainModelJob(
	studentRepo student.Repository,
	classifier *risk.Classifier,
	modelStore risk.ModelStore,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *RetrainModelJob {
	if logger == nil {
		logger = slog.Default()
	}
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}

	return &RetrainModelJob{
		studentRepo:    studentRepo,
		classifier:     classifier,
		modelStore:     modelStore,
		eventPublisher: eventPublisher,
		logger:         logger.With("job", "retrain_model"),
	}
}

// Name implements scheduler.Job.
func (j *RetrainModelJob) Name() string {
	return "retrain_model"
}

// Description implements scheduler.Job.
func (j *RetrainModelJob) Description() string {
	return "Refits the dropout risk model on the current roster metrics"
}

// Run implements scheduler.Job.
func (j *RetrainModelJob) Run(ctx context.Context) error {
	students, err := j.studentRepo.GetAll(ctx, student.ListOptions{SortBy: student.SortByRollNumber})
	if err != nil {
		return fmt.Errorf("retrain_model job: load roster: %w", err)
	}

	if len(students) < MinTrainingRoster {
		j.logger.Info("roster too small to retrain, keeping current model",
			"roster", len(students),
			"minimum", MinTrainingRoster,
		)
		return nil
	}

	metrics := make([]student.Metrics, 0, len(students))
	for _, s := range students {
		metrics = append(metrics, s.Metrics())
	}

	model, err := j.classifier.Train(metrics, risk.DefaultTrainOptions())
	if err != nil {
		return fmt.Errorf("retrain_model job: training failed: %w", err)
	}

	if err := j.modelStore.Save(ctx, model); err != nil {
		return fmt.Errorf("retrain_model job: persist model: %w", err)
	}

	j.lastTrainedAt.Store(model.TrainedAt)
	_ = j.eventPublisher.Publish(ctx,
		shared.NewModelTrainedEvent(model.Tree.TrainedOn, model.TrainedAt))

	j.logger.Info("risk model retrained",
		"trained_on", model.Tree.TrainedOn,
		"tree_depth", model.Tree.Depth(),
	)

	return nil
}

// LastTrainedAt returns when the job last produced a model.
func (j *RetrainModelJob) LastTrainedAt() time.Time {
	t, _ := j.lastTrainedAt.Load().(time.Time)
	return t
}
