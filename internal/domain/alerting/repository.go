package alerting

import (
	"context"
	"time"
)

// Repository is the persistence port for the alert log.
type Repository interface {
	// Create inserts a new alert.
	Create(ctx context.Context, a *Alert) error

	// Update persists the alert's delivery state.
	Update(ctx context.Context, a *Alert) error

	// GetByID returns an alert by ID.
	GetByID(ctx context.Context, id string) (*Alert, error)

	// GetByStudent returns a student's alerts, newest first.
	GetByStudent(ctx context.Context, studentID string, limit int) ([]*Alert, error)

	// LastSentAt returns when the student was last successfully alerted.
	// The zero time means never.
	LastSentAt(ctx context.Context, studentID string) (time.Time, error)

	// CountSince returns the number of alerts created after the cutoff,
	// grouped by status.
	CountSince(ctx context.Context, cutoff time.Time) (map[AlertStatus]int, error)
}
