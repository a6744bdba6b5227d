package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teamvidya/vidya-dropout/internal/domain/attendance"
	"github.com/teamvidya/vidya-dropout/internal/domain/shared"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE ATTENDANCE HISTORY COMMAND
// Backfills or corrects dated ledger entries. Re-marking a day a student
// already has overwrites the earlier status.
// ══════════════════════════════════════════════════════════════════════════════

// HistoryEntry is one dated correction.
type HistoryEntry struct {
	RollNumber int
	Date       time.Time
	Status     attendance.Status
}

// UpdateAttendanceHistoryCommand contains a batch of dated corrections.
type UpdateAttendanceHistoryCommand struct {
	Entries []HistoryEntry
}

// Validate validates the command.
func (c UpdateAttendanceHistoryCommand) Validate() error {
	if len(c.Entries) == 0 {
		return errors.New("update_attendance_history: no entries provided")
	}
	for _, e := range c.Entries {
		if e.RollNumber <= 0 {
			return fmt.Errorf("update_attendance_history: invalid roll number %d", e.RollNumber)
		}
		if e.Date.IsZero() {
			return fmt.Errorf("update_attendance_history: roll %d: %w", e.RollNumber, attendance.ErrZeroDate)
		}
		if !e.Status.IsValid() {
			return fmt.Errorf("update_attendance_history: %w: %q", attendance.ErrInvalidStatus, e.Status)
		}
	}
	return nil
}

// UpdateAttendanceHistoryResult contains the outcome of the backfill.
type UpdateAttendanceHistoryResult struct {
	// RecordsWritten is the number of ledger rows upserted.
	RecordsWritten int

	// UnknownRolls lists roll numbers that matched no student.
	UnknownRolls []int

	// Recompute is the result of the follow-up profile recomputation.
	Recompute *RecomputeProfilesResult
}

// UpdateAttendanceHistoryHandler handles the UpdateAttendanceHistoryCommand.
type UpdateAttendanceHistoryHandler struct {
	studentRepo    student.Repository
	attendanceRepo attendance.Repository
	recompute      *RecomputeProfilesHandler
	eventPublisher shared.EventPublisher
}

// NewUpdateAttendanceHistoryHandler creates a new handler.
func NewUpdateAttendanceHistoryHandler(
	studentRepo student.Repository,
	attendanceRepo attendance.Repository,
	recompute *RecomputeProfilesHandler,
	eventPublisher shared.EventPublisher,
) *UpdateAttendanceHistoryHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}

	return &UpdateAttendanceHistoryHandler{
		studentRepo:    studentRepo,
		attendanceRepo: attendanceRepo,
		recompute:      recompute,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the update attendance history command.
func (h *UpdateAttendanceHistoryHandler) Handle(ctx context.Context, cmd UpdateAttendanceHistoryCommand) (*UpdateAttendanceHistoryResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	byRoll, err := rollIndex(ctx, h.studentRepo)
	if err != nil {
		return nil, fmt.Errorf("update_attendance_history: failed to load roster: %w", err)
	}

	result := &UpdateAttendanceHistoryResult{}

	records := make([]attendance.Record, 0, len(cmd.Entries))
	for _, entry := range cmd.Entries {
		s, ok := byRoll[student.RollNumber(entry.RollNumber)]
		if !ok {
			result.UnknownRolls = append(result.UnknownRolls, entry.RollNumber)
			continue
		}

		rec, err := attendance.NewRecord(s.ID, entry.Date, entry.Status)
		if err != nil {
			return nil, fmt.Errorf("update_attendance_history: roll %d: %w", entry.RollNumber, err)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("update_attendance_history: no entries matched enrolled students (%d unknown rolls)",
			len(result.UnknownRolls))
	}

	if err := h.attendanceRepo.UpsertBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("update_attendance_history: failed to write ledger: %w", err)
	}
	result.RecordsWritten = len(records)

	// One event per distinct day keeps the stream meaningful for
	// subscribers that react to marking.
	perDay := make(map[time.Time]int)
	for _, rec := range records {
		perDay[rec.Date]++
	}
	for day, count := range perDay {
		_ = h.eventPublisher.Publish(ctx, shared.NewAttendanceMarkedEvent(day, count))
	}

	recompute, err := h.recompute.Handle(ctx, RecomputeProfilesCommand{Trigger: "attendance"})
	if err != nil {
		return result, fmt.Errorf("update_attendance_history: recompute after backfill failed: %w", err)
	}
	result.Recompute = recompute

	return result, nil
}
