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
// MARK ATTENDANCE COMMAND
// Records one school day's attendance for a set of students, then
// recomputes risk profiles so the dashboard reflects the new ledger.
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceEntry is one student's outcome for the day, keyed by roll
// number as the front desk enters it.
type AttendanceEntry struct {
	RollNumber int
	Status     attendance.Status
}

// MarkAttendanceCommand contains a day's attendance sheet.
type MarkAttendanceCommand struct {
	// Date is the school day being marked. Zero means today.
	Date time.Time

	// Entries is the per-student sheet.
	Entries []AttendanceEntry
}

// Validate validates the command.
func (c MarkAttendanceCommand) Validate() error {
	if len(c.Entries) == 0 {
		return errors.New("mark_attendance: no entries provided")
	}
	for _, e := range c.Entries {
		if e.RollNumber <= 0 {
			return fmt.Errorf("mark_attendance: invalid roll number %d", e.RollNumber)
		}
		if !e.Status.IsValid() {
			return fmt.Errorf("mark_attendance: %w: %q", attendance.ErrInvalidStatus, e.Status)
		}
	}
	return nil
}

// MarkAttendanceResult contains the outcome of the marking.
type MarkAttendanceResult struct {
	// Date is the normalized school day that was marked.
	Date time.Time

	// RecordsWritten is the number of ledger rows upserted.
	RecordsWritten int

	// UnknownRolls lists roll numbers that matched no student.
	UnknownRolls []int

	// Recompute is the result of the follow-up profile recomputation.
	Recompute *RecomputeProfilesResult
}

// MarkAttendanceHandler handles the MarkAttendanceCommand.
type MarkAttendanceHandler struct {
	studentRepo    student.Repository
	attendanceRepo attendance.Repository
	recompute      *RecomputeProfilesHandler
	eventPublisher shared.EventPublisher
}

// NewMarkAttendanceHandler creates a new MarkAttendanceHandler.
func NewMarkAttendanceHandler(
	studentRepo student.Repository,
	attendanceRepo attendance.Repository,
	recompute *RecomputeProfilesHandler,
	eventPublisher shared.EventPublisher,
) *MarkAttendanceHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}

	return &MarkAttendanceHandler{
		studentRepo:    studentRepo,
		attendanceRepo: attendanceRepo,
		recompute:      recompute,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the mark attendance command.
func (h *MarkAttendanceHandler) Handle(ctx context.Context, cmd MarkAttendanceCommand) (*MarkAttendanceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	date := cmd.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	day := attendance.Day(date)

	byRoll, err := rollIndex(ctx, h.studentRepo)
	if err != nil {
		return nil, fmt.Errorf("mark_attendance: failed to load roster: %w", err)
	}

	result := &MarkAttendanceResult{Date: day}

	records := make([]attendance.Record, 0, len(cmd.Entries))
	for _, entry := range cmd.Entries {
		s, ok := byRoll[student.RollNumber(entry.RollNumber)]
		if !ok {
			result.UnknownRolls = append(result.UnknownRolls, entry.RollNumber)
			continue
		}

		rec, err := attendance.NewRecord(s.ID, day, entry.Status)
		if err != nil {
			return nil, fmt.Errorf("mark_attendance: roll %d: %w", entry.RollNumber, err)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("mark_attendance: no entries matched enrolled students (%d unknown rolls)",
			len(result.UnknownRolls))
	}

	if err := h.attendanceRepo.UpsertBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("mark_attendance: failed to write ledger: %w", err)
	}
	result.RecordsWritten = len(records)

	_ = h.eventPublisher.Publish(ctx, shared.NewAttendanceMarkedEvent(day, len(records)))

	recompute, err := h.recompute.Handle(ctx, RecomputeProfilesCommand{Trigger: "attendance"})
	if err != nil {
		// The ledger write already landed; surface the recompute
		// failure without losing the marking result.
		return result, fmt.Errorf("mark_attendance: recompute after marking failed: %w", err)
	}
	result.Recompute = recompute

	return result, nil
}

// rollIndex loads the on-rolls roster keyed by roll number.
func rollIndex(ctx context.Context, repo student.Repository) (map[student.RollNumber]*student.Student, error) {
	students, err := repo.GetAll(ctx, student.ListOptions{SortBy: student.SortByRollNumber})
	if err != nil {
		return nil, err
	}

	byRoll := make(map[student.RollNumber]*student.Student, len(students))
	for _, s := range students {
		byRoll[s.RollNumber] = s
	}
	return byRoll, nil
}
