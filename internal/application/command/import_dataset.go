package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teamvidya/vidya-dropout/internal/domain/attendance"
	"github.com/teamvidya/vidya-dropout/internal/domain/risk"
	"github.com/teamvidya/vidya-dropout/internal/domain/shared"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// IMPORT DATASET COMMAND
// The onboarding flow: load a school's roster and historical data, rebuild
// the attendance ledger, train the risk model, and score everyone.
// ══════════════════════════════════════════════════════════════════════════════

// ImportChunkSize is how many ledger rows go to the database per batch.
const ImportChunkSize = 500

// StudentImportRow is one roster row from an import file. Pointer fields
// distinguish "absent from the file" from a real zero; absent values get
// the domain defaults.
type StudentImportRow struct {
	RollNumber    int
	FullName      string
	Class         int
	GuardianEmail string
	MentorEmail   string
	AverageScore  *int
	ExamAttempts  *int
	FeeStatus     string
}

// AttendanceImportRow is one historical ledger row from an import file.
type AttendanceImportRow struct {
	RollNumber int
	Date       time.Time
	Status     attendance.Status
}

// ImportDatasetCommand contains a parsed dataset.
type ImportDatasetCommand struct {
	Students   []StudentImportRow
	Attendance []AttendanceImportRow

	// ResetLedger wipes the existing attendance ledger before loading.
	ResetLedger bool
}

// Validate validates the command.
func (c ImportDatasetCommand) Validate() error {
	if len(c.Students) == 0 {
		return errors.New("import_dataset: no student rows provided")
	}
	seen := make(map[int]bool, len(c.Students))
	for _, row := range c.Students {
		if row.RollNumber <= 0 {
			return fmt.Errorf("import_dataset: invalid roll number %d", row.RollNumber)
		}
		if seen[row.RollNumber] {
			return fmt.Errorf("import_dataset: duplicate roll number %d", row.RollNumber)
		}
		seen[row.RollNumber] = true
	}
	return nil
}

// ImportDatasetResult contains the outcome of an import.
type ImportDatasetResult struct {
	StudentsImported  int
	AttendanceRecords int

	// UnknownRolls lists attendance rows whose roll matched no roster row.
	UnknownRolls []int

	// ModelTrainedOn is the number of samples the model was fit on.
	ModelTrainedOn int

	// ModelTrainedAt is when training finished (zero when training was
	// skipped).
	ModelTrainedAt time.Time

	StartedAt time.Time
	Duration  time.Duration
}

// ImportDatasetHandler handles the ImportDatasetCommand.
type ImportDatasetHandler struct {
	studentRepo    student.Repository
	attendanceRepo attendance.Repository
	classifier     *risk.Classifier
	modelStore     risk.ModelStore
	eventPublisher shared.EventPublisher
	cache          student.Cache
	features       FeatureGate
}

// NewImportDatasetHandler creates a new ImportDatasetHandler.
func NewImportDatasetHandler(
	studentRepo student.Repository,
	attendanceRepo attendance.Repository,
	classifier *risk.Classifier,
	modelStore risk.ModelStore,
	eventPublisher shared.EventPublisher,
	cache student.Cache,
	features FeatureGate,
) *ImportDatasetHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	if features == nil {
		features = alwaysOnGate{}
	}

	return &ImportDatasetHandler{
		studentRepo:    studentRepo,
		attendanceRepo: attendanceRepo,
		classifier:     classifier,
		modelStore:     modelStore,
		eventPublisher: eventPublisher,
		cache:          cache,
		features:       features,
	}
}

// Handle executes the import.
func (h *ImportDatasetHandler) Handle(ctx context.Context, cmd ImportDatasetCommand) (*ImportDatasetResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &ImportDatasetResult{StartedAt: time.Now().UTC()}

	// 1. Upsert the roster so attendance rows have students to reference.
	for _, row := range cmd.Students {
		s, err := newStudentFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("import_dataset: roll %d: %w", row.RollNumber, err)
		}
		if err := h.studentRepo.Upsert(ctx, s); err != nil {
			return nil, fmt.Errorf("import_dataset: failed to upsert roll %d: %w", row.RollNumber, err)
		}
		result.StudentsImported++
	}

	// Re-read the roster: existing students kept their original IDs
	// through the upsert.
	byRoll, err := rollIndex(ctx, h.studentRepo)
	if err != nil {
		return nil, fmt.Errorf("import_dataset: failed to reload roster: %w", err)
	}

	// 2. Rebuild the attendance ledger in chunks.
	if cmd.ResetLedger {
		if err := h.attendanceRepo.DeleteAll(ctx); err != nil {
			return nil, fmt.Errorf("import_dataset: failed to reset ledger: %w", err)
		}
	}

	records := make([]attendance.Record, 0, len(cmd.Attendance))
	for _, row := range cmd.Attendance {
		s, ok := byRoll[student.RollNumber(row.RollNumber)]
		if !ok {
			result.UnknownRolls = append(result.UnknownRolls, row.RollNumber)
			continue
		}
		rec, err := attendance.NewRecord(s.ID, row.Date, row.Status)
		if err != nil {
			return nil, fmt.Errorf("import_dataset: attendance for roll %d: %w", row.RollNumber, err)
		}
		records = append(records, rec)
	}

	for start := 0; start < len(records); start += ImportChunkSize {
		end := start + ImportChunkSize
		if end > len(records) {
			end = len(records)
		}
		if err := h.attendanceRepo.UpsertBatch(ctx, records[start:end]); err != nil {
			return nil, fmt.Errorf("import_dataset: failed to write ledger chunk at %d: %w", start, err)
		}
	}
	result.AttendanceRecords = len(records)

	// 3. Merge ledger summaries into the imported metrics.
	summaries, err := h.attendanceRepo.SummarizeAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("import_dataset: failed to summarize ledger: %w", err)
	}

	metricsByID := make(map[string]student.Metrics, len(cmd.Students))
	allMetrics := make([]student.Metrics, 0, len(cmd.Students))
	for _, row := range cmd.Students {
		s, ok := byRoll[student.RollNumber(row.RollNumber)]
		if !ok {
			continue
		}
		m := metricsFromRow(row)
		if sum, ok := summaries[s.ID]; ok {
			m.AttendancePct = student.Percent(sum.Pct())
		}
		metricsByID[s.ID] = m
		allMetrics = append(allMetrics, m)
	}

	// 4. Fit a fresh model on the imported cohort.
	if h.features.MLPredictionsEnabled() {
		model, err := h.classifier.Train(allMetrics, risk.DefaultTrainOptions())
		if err != nil {
			return nil, fmt.Errorf("import_dataset: model training failed: %w", err)
		}
		if err := h.modelStore.Save(ctx, model); err != nil {
			return nil, fmt.Errorf("import_dataset: failed to persist model: %w", err)
		}
		result.ModelTrainedOn = model.Tree.TrainedOn
		result.ModelTrainedAt = model.TrainedAt
		_ = h.eventPublisher.Publish(ctx,
			shared.NewModelTrainedEvent(model.Tree.TrainedOn, model.TrainedAt))
	}

	// 5. Score everyone and persist in one batch.
	updates := make([]student.RiskUpdate, 0, len(metricsByID))
	for id, m := range metricsByID {
		level := risk.RuleLabel(m)
		if h.features.MLPredictionsEnabled() {
			level = h.classifier.Predict(m)
		}
		updates = append(updates, student.RiskUpdate{
			StudentID: id,
			Metrics:   m,
			RiskLevel: level,
		})
	}
	if err := h.studentRepo.UpdateRiskBatch(ctx, updates); err != nil {
		return nil, fmt.Errorf("import_dataset: failed to persist risk batch: %w", err)
	}

	if h.cache != nil {
		_ = h.cache.Invalidate(ctx)
	}
	_ = h.eventPublisher.Publish(ctx, shared.NewProfilesRecomputedEvent(len(updates), 0))

	result.Duration = time.Since(result.StartedAt)
	return result, nil
}

// newStudentFromRow builds a validated student from a roster row.
func newStudentFromRow(row StudentImportRow) (*student.Student, error) {
	return student.NewStudent(student.NewStudentParams{
		ID:            uuid.New().String(),
		RollNumber:    student.RollNumber(row.RollNumber),
		FullName:      row.FullName,
		Class:         student.Class(row.Class),
		GuardianEmail: student.Email(row.GuardianEmail),
		MentorEmail:   student.Email(row.MentorEmail),
	})
}

// metricsFromRow maps a roster row onto metrics, applying the domain
// defaults for absent values.
func metricsFromRow(row StudentImportRow) student.Metrics {
	m := student.Metrics{
		AttendancePct: student.DefaultAttendancePct,
		AverageScore:  student.DefaultAverageScore,
		ExamAttempts:  student.DefaultExamAttempts,
		FeeStatus:     student.DefaultFeeStatus,
	}
	if row.AverageScore != nil {
		m.AverageScore = student.Score(*row.AverageScore)
	}
	if row.ExamAttempts != nil {
		m.ExamAttempts = *row.ExamAttempts
	}
	if row.FeeStatus != "" {
		if fs := student.FeeStatus(row.FeeStatus); fs.IsValid() {
			m.FeeStatus = fs
		}
	}
	return m
}
