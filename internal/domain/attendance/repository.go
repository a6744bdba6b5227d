package attendance

import (
	"context"
	"time"
)

// Repository is the persistence port for the attendance ledger.
type Repository interface {
	// UpsertBatch writes records, overwriting on (student_id, date).
	// Marking the same day twice is idempotent.
	UpsertBatch(ctx context.Context, records []Record) error

	// GetRecent returns the newest records for a student, newest first.
	GetRecent(ctx context.Context, studentID string, limit int) ([]Record, error)

	// GetHistory returns a student's full ledger, oldest first.
	GetHistory(ctx context.Context, studentID string) ([]Record, error)

	// SummarizeAll aggregates the whole ledger per student.
	SummarizeAll(ctx context.Context) (map[string]Summary, error)

	// SummarizeStudent aggregates one student's ledger.
	SummarizeStudent(ctx context.Context, studentID string) (Summary, error)

	// CountForDate returns how many records exist for a school day.
	CountForDate(ctx context.Context, date time.Time) (int, error)

	// DeleteAll wipes the ledger. Only the importer's reset path uses it.
	DeleteAll(ctx context.Context) error
}
