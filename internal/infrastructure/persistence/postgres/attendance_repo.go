package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/teamvidya/vidya-dropout/internal/domain/attendance"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRepository implements attendance.Repository for PostgreSQL.
type AttendanceRepository struct {
	conn *Connection
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(conn *Connection) *AttendanceRepository {
	return &AttendanceRepository{conn: conn}
}

// UpsertBatch writes records, overwriting on (student_id, date).
// Re-marking the same day replaces the earlier status.
func (r *AttendanceRepository) UpsertBatch(ctx context.Context, records []attendance.Record) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO daily_attendance (student_id, date, status, marked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, date) DO UPDATE SET
			status = EXCLUDED.status,
			marked_at = EXCLUDED.marked_at
	`

	// Keep students.last_marked_at in step with the ledger so the
	// unmarked-student sweep sees fresh data.
	markQuery := `
		UPDATE students
		SET last_marked_at = GREATEST(COALESCE(last_marked_at, 'epoch'::timestamptz), $2)
		WHERE id = $1
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query, rec.StudentID, rec.Date, string(rec.Status), rec.MarkedAt)
		batch.Queue(markQuery, rec.StudentID, rec.Date)
	}

	results := r.conn.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			if IsForeignKeyViolation(err) {
				return fmt.Errorf("attendance batch references unknown student: %w", err)
			}
			return fmt.Errorf("failed to upsert attendance batch: %w", err)
		}
	}

	return nil
}

// GetRecent returns the newest records for a student, newest first.
func (r *AttendanceRepository) GetRecent(ctx context.Context, studentID string, limit int) ([]attendance.Record, error) {
	query := `
		SELECT student_id, date, status, marked_at
		FROM daily_attendance
		WHERE student_id = $1
		ORDER BY date DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent attendance: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// GetHistory returns a student's full ledger, oldest first.
func (r *AttendanceRepository) GetHistory(ctx context.Context, studentID string) ([]attendance.Record, error) {
	query := `
		SELECT student_id, date, status, marked_at
		FROM daily_attendance
		WHERE student_id = $1
		ORDER BY date ASC
	`

	rows, err := r.conn.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance history: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// summarySelect mirrors the domain summary rules: excused days are marked
// but stay out of the denominator; late counts as present.
const summarySelect = `
	SELECT student_id,
		   COUNT(*) FILTER (WHERE status != 'excused') AS total_days,
		   COUNT(*) AS days_marked,
		   COUNT(*) FILTER (WHERE status IN ('present', 'late')) AS present
	FROM daily_attendance
`

// SummarizeAll aggregates the whole ledger per student.
func (r *AttendanceRepository) SummarizeAll(ctx context.Context) (map[string]attendance.Summary, error) {
	rows, err := r.conn.Query(ctx, summarySelect+" GROUP BY student_id")
	if err != nil {
		return nil, fmt.Errorf("failed to summarize attendance: %w", err)
	}
	defer rows.Close()

	summaries := make(map[string]attendance.Summary)
	for rows.Next() {
		var sum attendance.Summary
		if err := rows.Scan(&sum.StudentID, &sum.TotalDays, &sum.DaysMarked, &sum.Present); err != nil {
			return nil, fmt.Errorf("failed to scan attendance summary: %w", err)
		}
		summaries[sum.StudentID] = sum
	}

	return summaries, rows.Err()
}

// SummarizeStudent aggregates one student's ledger. A student with no
// records gets a zero summary, not an error.
func (r *AttendanceRepository) SummarizeStudent(ctx context.Context, studentID string) (attendance.Summary, error) {
	row := r.conn.QueryRow(ctx, summarySelect+" WHERE student_id = $1 GROUP BY student_id", studentID)

	var sum attendance.Summary
	err := row.Scan(&sum.StudentID, &sum.TotalDays, &sum.DaysMarked, &sum.Present)
	if err != nil {
		if IsNoRows(err) {
			return attendance.Summary{StudentID: studentID}, nil
		}
		return attendance.Summary{}, fmt.Errorf("failed to summarize student attendance: %w", err)
	}

	return sum, nil
}

// CountForDate returns how many records exist for a school day.
func (r *AttendanceRepository) CountForDate(ctx context.Context, date time.Time) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM daily_attendance WHERE date = $1",
		attendance.Day(date),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attendance for date: %w", err)
	}
	return count, nil
}

// DeleteAll wipes the ledger. Only the importer's reset path uses it.
func (r *AttendanceRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.conn.Exec(ctx, "DELETE FROM daily_attendance"); err != nil {
		return fmt.Errorf("failed to clear attendance ledger: %w", err)
	}
	return nil
}

func (r *AttendanceRepository) scanRecords(rows pgx.Rows) ([]attendance.Record, error) {
	records := make([]attendance.Record, 0)
	for rows.Next() {
		var rec attendance.Record
		var status string
		if err := rows.Scan(&rec.StudentID, &rec.Date, &status, &rec.MarkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		rec.Status = attendance.Status(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}
