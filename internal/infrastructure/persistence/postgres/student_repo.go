package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// studentColumns is the canonical SELECT list for students.
const studentColumns = `id, roll_number, full_name, class, guardian_email, mentor_email,
	   attendance_pct, average_score, exam_attempts, fee_status, risk_level,
	   status, last_marked_at, profile_updated_at, created_at, updated_at`

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new student.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (
			id, roll_number, full_name, class, guardian_email, mentor_email,
			attendance_pct, average_score, exam_attempts, fee_status, risk_level,
			status, last_marked_at, profile_updated_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.conn.Exec(ctx, query, r.insertArgs(s)...)
	if err != nil {
		if IsUniqueViolation(err) {
			return student.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// Upsert inserts a student or, when the roll number exists, replaces the
// profile fields. The importer calls this once per roster row.
func (r *StudentRepository) Upsert(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (
			id, roll_number, full_name, class, guardian_email, mentor_email,
			attendance_pct, average_score, exam_attempts, fee_status, risk_level,
			status, last_marked_at, profile_updated_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (roll_number) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			class = EXCLUDED.class,
			guardian_email = EXCLUDED.guardian_email,
			mentor_email = EXCLUDED.mentor_email,
			attendance_pct = EXCLUDED.attendance_pct,
			average_score = EXCLUDED.average_score,
			exam_attempts = EXCLUDED.exam_attempts,
			fee_status = EXCLUDED.fee_status,
			risk_level = EXCLUDED.risk_level,
			status = EXCLUDED.status,
			profile_updated_at = EXCLUDED.profile_updated_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query, r.insertArgs(s)...)
	if err != nil {
		return fmt.Errorf("failed to upsert student: %w", err)
	}

	return nil
}

// GetByID returns a student by internal ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanStudent(row)
}

// GetByRollNumber returns a student by roll number.
func (r *StudentRepository) GetByRollNumber(ctx context.Context, roll student.RollNumber) (*student.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE roll_number = $1", studentColumns)

	row := r.conn.QueryRow(ctx, query, int(roll))
	return r.scanStudent(row)
}

// Update persists all mutable fields of a student.
func (r *StudentRepository) Update(ctx context.Context, s *student.Student) error {
	query := `
		UPDATE students SET
			full_name = $1,
			class = $2,
			guardian_email = $3,
			mentor_email = $4,
			attendance_pct = $5,
			average_score = $6,
			exam_attempts = $7,
			fee_status = $8,
			risk_level = $9,
			status = $10,
			last_marked_at = $11,
			profile_updated_at = $12,
			updated_at = $13
		WHERE id = $14
	`

	result, err := r.conn.Exec(ctx, query,
		s.FullName,
		int(s.Class),
		string(s.GuardianEmail),
		string(s.MentorEmail),
		float64(s.AttendancePct),
		float64(s.AverageScore),
		s.ExamAttempts,
		string(s.FeeStatus),
		string(s.RiskLevel),
		string(s.Status),
		nullableTime(s.LastMarkedAt),
		nullableTime(s.ProfileUpdatedAt),
		time.Now().UTC(),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}

	if result.RowsAffected() == 0 {
		return student.ErrStudentNotFound
	}

	return nil
}

// UpdateRiskBatch applies recomputed metrics and risk levels in one batch.
func (r *StudentRepository) UpdateRiskBatch(ctx context.Context, updates []student.RiskUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	query := `
		UPDATE students SET
			attendance_pct = $1,
			average_score = $2,
			exam_attempts = $3,
			fee_status = $4,
			risk_level = $5,
			profile_updated_at = $6,
			updated_at = $6
		WHERE id = $7
	`

	now := time.Now().UTC()

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(query,
			float64(u.Metrics.AttendancePct),
			float64(u.Metrics.AverageScore),
			u.Metrics.ExamAttempts,
			string(u.Metrics.FeeStatus),
			string(u.RiskLevel),
			now,
			u.StudentID,
		)
	}

	results := r.conn.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for range updates {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to apply risk batch: %w", err)
		}
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// List Operations
// ─────────────────────────────────────────────────────────────────────────────

// GetAll returns students according to the list options.
func (r *StudentRepository) GetAll(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	where := "status IN ('enrolled', 'inactive')"
	if opts.IncludeOffRolls {
		where = "TRUE"
	}

	query := fmt.Sprintf(
		"SELECT %s FROM students WHERE %s ORDER BY %s LIMIT $1 OFFSET $2",
		studentColumns, where, orderClause(opts),
	)

	// LIMIT NULL means no limit; recompute passes Limit <= 0 to get
	// the whole roster.
	var limit interface{}
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	rows, err := r.conn.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	return r.scanStudents(rows)
}

// GetByRiskLevels returns on-rolls students at any of the given levels.
func (r *StudentRepository) GetByRiskLevels(ctx context.Context, levels []student.RiskLevel) ([]*student.Student, error) {
	if len(levels) == 0 {
		return []*student.Student{}, nil
	}

	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = string(l)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM students
		WHERE status IN ('enrolled', 'inactive') AND risk_level = ANY($1)
		ORDER BY %s, roll_number
	`, studentColumns, riskSeverityExpr+" DESC")

	rows, err := r.conn.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("failed to query students by risk: %w", err)
	}
	defer rows.Close()

	return r.scanStudents(rows)
}

// FindUnmarkedSince returns on-rolls students whose attendance has not been
// marked since the given date.
func (r *StudentRepository) FindUnmarkedSince(ctx context.Context, since time.Time) ([]*student.Student, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM students
		WHERE status IN ('enrolled', 'inactive')
		  AND (last_marked_at IS NULL OR last_marked_at < $1)
		ORDER BY roll_number
	`, studentColumns)

	rows, err := r.conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query unmarked students: %w", err)
	}
	defer rows.Close()

	return r.scanStudents(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Aggregates
// ─────────────────────────────────────────────────────────────────────────────

// Count returns the total number of on-rolls students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM students WHERE status IN ('enrolled', 'inactive')",
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return count, nil
}

// CountByRiskLevel returns per-level counts for on-rolls students.
func (r *StudentRepository) CountByRiskLevel(ctx context.Context) ([]student.RiskCount, error) {
	query := `
		SELECT risk_level, COUNT(*)
		FROM students
		WHERE status IN ('enrolled', 'inactive')
		GROUP BY risk_level
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count by risk level: %w", err)
	}
	defer rows.Close()

	counts := make([]student.RiskCount, 0, 4)
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan risk count: %w", err)
		}
		counts = append(counts, student.RiskCount{
			Level: student.RiskLevel(level),
			Count: count,
		})
	}

	return counts, rows.Err()
}

// CountByFeeStatus returns the number of on-rolls students with the given fee status.
func (r *StudentRepository) CountByFeeStatus(ctx context.Context, status student.FeeStatus) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM students WHERE status IN ('enrolled', 'inactive') AND fee_status = $1",
		string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count by fee status: %w", err)
	}
	return count, nil
}

// AverageAttendance returns the mean attendance percentage across on-rolls students.
func (r *StudentRepository) AverageAttendance(ctx context.Context) (float64, error) {
	var avg float64
	err := r.conn.QueryRow(ctx,
		"SELECT COALESCE(AVG(attendance_pct), 0) FROM students WHERE status IN ('enrolled', 'inactive')",
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to average attendance: %w", err)
	}
	return avg, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

// riskSeverityExpr orders risk levels by severity in SQL.
const riskSeverityExpr = `CASE risk_level
	WHEN 'high' THEN 3
	WHEN 'medium' THEN 2
	WHEN 'low' THEN 1
	ELSE 0 END`

// orderClause maps list options to a safe ORDER BY expression.
// Sort fields are a closed set, never user input.
func orderClause(opts student.ListOptions) string {
	dir := "ASC"
	if opts.Descending {
		dir = "DESC"
	}

	switch opts.SortBy {
	case student.SortByAttendance:
		return "attendance_pct " + dir + ", roll_number"
	case student.SortByScore:
		return "average_score " + dir + ", roll_number"
	case student.SortByRisk:
		return riskSeverityExpr + " " + dir + ", roll_number"
	default:
		return "roll_number " + dir
	}
}

func (r *StudentRepository) insertArgs(s *student.Student) []interface{} {
	return []interface{}{
		s.ID,
		int(s.RollNumber),
		s.FullName,
		int(s.Class),
		string(s.GuardianEmail),
		string(s.MentorEmail),
		float64(s.AttendancePct),
		float64(s.AverageScore),
		s.ExamAttempts,
		string(s.FeeStatus),
		string(s.RiskLevel),
		string(s.Status),
		nullableTime(s.LastMarkedAt),
		nullableTime(s.ProfileUpdatedAt),
		s.CreatedAt,
		s.UpdatedAt,
	}
}

// scanStudent scans a single student row.
func (r *StudentRepository) scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	var roll, class int
	var guardianEmail, mentorEmail, feeStatus, riskLevel, status string
	var attendancePct, averageScore float64
	var lastMarkedAt, profileUpdatedAt *time.Time

	err := row.Scan(
		&s.ID,
		&roll,
		&s.FullName,
		&class,
		&guardianEmail,
		&mentorEmail,
		&attendancePct,
		&averageScore,
		&s.ExamAttempts,
		&feeStatus,
		&riskLevel,
		&status,
		&lastMarkedAt,
		&profileUpdatedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, student.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	s.RollNumber = student.RollNumber(roll)
	s.Class = student.Class(class)
	s.GuardianEmail = student.Email(guardianEmail)
	s.MentorEmail = student.Email(mentorEmail)
	s.AttendancePct = student.Percent(attendancePct)
	s.AverageScore = student.Score(averageScore)
	s.FeeStatus = student.FeeStatus(feeStatus)
	s.RiskLevel = student.RiskLevel(riskLevel)
	s.Status = student.Status(status)
	if lastMarkedAt != nil {
		s.LastMarkedAt = *lastMarkedAt
	}
	if profileUpdatedAt != nil {
		s.ProfileUpdatedAt = *profileUpdatedAt
	}

	return &s, nil
}

// scanStudents scans multiple student rows.
func (r *StudentRepository) scanStudents(rows pgx.Rows) ([]*student.Student, error) {
	students := make([]*student.Student, 0)
	for rows.Next() {
		s, err := r.scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
