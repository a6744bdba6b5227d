package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/teamvidya/vidya-dropout/internal/domain/alerting"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// alertColumns is the canonical SELECT list for alerts.
const alertColumns = `id, student_id, roll_number, student_name, risk_level, reason,
	   channel, recipient, subject, body, status, attempts, last_error,
	   created_at, sent_at`

// ══════════════════════════════════════════════════════════════════════════════
// ALERT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AlertRepository implements alerting.Repository for PostgreSQL.
type AlertRepository struct {
	conn *Connection
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(conn *Connection) *AlertRepository {
	return &AlertRepository{conn: conn}
}

// Create inserts a new alert.
func (r *AlertRepository) Create(ctx context.Context, a *alerting.Alert) error {
	query := `
		INSERT INTO alerts (
			id, student_id, roll_number, student_name, risk_level, reason,
			channel, recipient, subject, body, status, attempts, last_error,
			created_at, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.conn.Exec(ctx, query,
		a.ID,
		a.StudentID,
		int(a.RollNumber),
		a.StudentName,
		string(a.RiskLevel),
		string(a.Reason),
		string(a.Channel),
		a.Recipient,
		a.Subject,
		a.Body,
		string(a.Status),
		a.Attempts,
		a.LastError,
		a.CreatedAt,
		nullableTime(a.SentAt),
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("alert references unknown student %s: %w", a.StudentID, err)
		}
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// Update persists the alert's delivery state.
func (r *AlertRepository) Update(ctx context.Context, a *alerting.Alert) error {
	query := `
		UPDATE alerts SET
			status = $1,
			attempts = $2,
			last_error = $3,
			sent_at = $4
		WHERE id = $5
	`

	result, err := r.conn.Exec(ctx, query,
		string(a.Status),
		a.Attempts,
		a.LastError,
		nullableTime(a.SentAt),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}

	if result.RowsAffected() == 0 {
		return alerting.ErrAlertNotFound
	}

	return nil
}

// GetByID returns an alert by ID.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerting.Alert, error) {
	query := fmt.Sprintf("SELECT %s FROM alerts WHERE id = $1", alertColumns)

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanAlert(row)
}

// GetByStudent returns a student's alerts, newest first.
func (r *AlertRepository) GetByStudent(ctx context.Context, studentID string, limit int) ([]*alerting.Alert, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM alerts
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, alertColumns)

	rows, err := r.conn.Query(ctx, query, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query student alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*alerting.Alert, 0)
	for rows.Next() {
		a, err := r.scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// LastSentAt returns when the student was last successfully alerted.
// The zero time means never.
func (r *AlertRepository) LastSentAt(ctx context.Context, studentID string) (time.Time, error) {
	var sentAt *time.Time
	err := r.conn.QueryRow(ctx, `
		SELECT MAX(sent_at) FROM alerts
		WHERE student_id = $1 AND status = 'sent'
	`, studentID).Scan(&sentAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last alert time: %w", err)
	}

	if sentAt == nil {
		return time.Time{}, nil
	}
	return *sentAt, nil
}

// CountSince returns the number of alerts created after the cutoff,
// grouped by status.
func (r *AlertRepository) CountSince(ctx context.Context, cutoff time.Time) (map[alerting.AlertStatus]int, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT status, COUNT(*) FROM alerts
		WHERE created_at >= $1
		GROUP BY status
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	defer rows.Close()

	counts := make(map[alerting.AlertStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan alert count: %w", err)
		}
		counts[alerting.AlertStatus(status)] = count
	}

	return counts, rows.Err()
}

func (r *AlertRepository) scanAlert(row pgx.Row) (*alerting.Alert, error) {
	var a alerting.Alert
	var roll int
	var riskLevel, reason, channel, status string
	var sentAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.StudentID,
		&roll,
		&a.StudentName,
		&riskLevel,
		&reason,
		&channel,
		&a.Recipient,
		&a.Subject,
		&a.Body,
		&status,
		&a.Attempts,
		&a.LastError,
		&a.CreatedAt,
		&sentAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, alerting.ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}

	a.RollNumber = student.RollNumber(roll)
	a.RiskLevel = student.RiskLevel(riskLevel)
	a.Reason = alerting.Reason(reason)
	a.Channel = alerting.ChannelType(channel)
	a.Status = alerting.AlertStatus(status)
	if sentAt != nil {
		a.SentAt = *sentAt
	}

	return &a, nil
}
