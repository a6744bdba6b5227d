package query

import (
	"context"
	"fmt"
	"time"

	"github.com/teamvidya/vidya-dropout/internal/domain/attendance"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE HISTORY QUERY
// ══════════════════════════════════════════════════════════════════════════════

// HistoryWindow selects how much of the ledger to return.
type HistoryWindow string

const (
	// WindowRecent - the last seven marked days, newest first.
	WindowRecent HistoryWindow = "recent"
	// WindowFull - the whole ledger, oldest first.
	WindowFull HistoryWindow = "full"
)

// RecentDays is how many entries the recent window holds.
const RecentDays = 7

// AttendanceHistoryQuery requests one student's ledger.
type AttendanceHistoryQuery struct {
	StudentID string
	Window    HistoryWindow
}

// Validate validates the query.
func (q AttendanceHistoryQuery) Validate() error {
	if q.StudentID == "" {
		return fmt.Errorf("get_attendance_history: student id is required")
	}
	switch q.Window {
	case "", WindowRecent, WindowFull:
		return nil
	default:
		return fmt.Errorf("get_attendance_history: unknown window %q", q.Window)
	}
}

// AttendanceEntryView is one ledger row in API shape.
type AttendanceEntryView struct {
	Date     string    `json:"date"`
	Status   string    `json:"status"`
	MarkedAt time.Time `json:"marked_at"`
}

// AttendanceHistory is the ledger payload for one student.
type AttendanceHistory struct {
	StudentID  string                `json:"student_id"`
	RollNumber int                   `json:"roll_number"`
	Window     HistoryWindow         `json:"window"`
	Summary    AttendanceSummaryView `json:"summary"`
	Entries    []AttendanceEntryView `json:"entries"`
}

// AttendanceSummaryView is the aggregate over the whole ledger.
type AttendanceSummaryView struct {
	TotalDays  int `json:"total_days"`
	DaysMarked int `json:"days_marked"`
	Present    int `json:"present"`
	Percentage int `json:"percentage"`
}

// GetAttendanceHistoryHandler handles the attendance history query.
type GetAttendanceHistoryHandler struct {
	studentRepo    student.Repository
	attendanceRepo attendance.Repository
}

// NewGetAttendanceHistoryHandler creates a new handler.
func NewGetAttendanceHistoryHandler(
	studentRepo student.Repository,
	attendanceRepo attendance.Repository,
) *GetAttendanceHistoryHandler {
	return &GetAttendanceHistoryHandler{
		studentRepo:    studentRepo,
		attendanceRepo: attendanceRepo,
	}
}

// Handle returns one student's ledger in the requested window. The
// summary always covers the full ledger regardless of the window.
func (h *GetAttendanceHistoryHandler) Handle(ctx context.Context, q AttendanceHistoryQuery) (*AttendanceHistory, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s, err := h.studentRepo.GetByID(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_attendance_history: %w", err)
	}

	window := q.Window
	if window == "" {
		window = WindowRecent
	}

	var records []attendance.Record
	switch window {
	case WindowRecent:
		records, err = h.attendanceRepo.GetRecent(ctx, s.ID, RecentDays)
	case WindowFull:
		records, err = h.attendanceRepo.GetHistory(ctx, s.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("get_attendance_history: load ledger: %w", err)
	}

	summary, err := h.attendanceRepo.SummarizeStudent(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("get_attendance_history: summarize: %w", err)
	}

	entries := make([]AttendanceEntryView, 0, len(records))
	for _, rec := range records {
		entries = append(entries, AttendanceEntryView{
			Date:     rec.Date.Format("2006-01-02"),
			Status:   rec.Status.String(),
			MarkedAt: rec.MarkedAt,
		})
	}

	return &AttendanceHistory{
		StudentID:  s.ID,
		RollNumber: int(s.RollNumber),
		Window:     window,
		Summary: AttendanceSummaryView{
			TotalDays:  summary.TotalDays,
			DaysMarked: summary.DaysMarked,
			Present:    summary.Present,
			Percentage: summary.Pct(),
		},
		Entries: entries,
	}, nil
}
