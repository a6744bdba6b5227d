package student

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// SortField selects the ordering of student lists.
type SortField string

const (
	// SortByRollNumber - natural dashboard order.
	SortByRollNumber SortField = "roll_number"
	// SortByAttendance - worst attendance first when descending is false.
	SortByAttendance SortField = "attendance_pct"
	// SortByScore - order by average score.
	SortByScore SortField = "average_score"
	// SortByRisk - order by risk severity.
	SortByRisk SortField = "risk_level"
)

// ListOptions controls pagination and ordering of student queries.
// A Limit of zero or less means no limit.
type ListOptions struct {
	Limit      int
	Offset     int
	SortBy     SortField
	Descending bool

	// IncludeOffRolls also returns students who left or graduated.
	IncludeOffRolls bool
}

// DefaultListOptions returns options suitable for the dashboard list.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  500,
		Offset: 0,
		SortBy: SortByRollNumber,
	}
}

// WithLimit returns a copy with the given page size.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// WithOffRolls returns a copy that includes former students.
func (o ListOptions) WithOffRolls() ListOptions {
	o.IncludeOffRolls = true
	return o
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RiskCount is the number of students at one risk level.
type RiskCount struct {
	Level RiskLevel
	Count int
}

// RiskUpdate is one entry of a batch risk reclassification.
type RiskUpdate struct {
	StudentID string
	Metrics   Metrics
	RiskLevel RiskLevel
}

// Repository is the persistence port for students.
type Repository interface {
	// Create inserts a new student. Returns ErrStudentAlreadyExists when
	// the roll number is taken.
	Create(ctx context.Context, s *Student) error

	// Upsert inserts or, when the roll number exists, replaces the profile
	// fields of a student. Used by the bulk importer.
	Upsert(ctx context.Context, s *Student) error

	// GetByID returns a student by internal ID.
	GetByID(ctx context.Context, id string) (*Student, error)

	// GetByRollNumber returns a student by roll number.
	GetByRollNumber(ctx context.Context, roll RollNumber) (*Student, error)

	// GetAll returns students according to the list options.
	GetAll(ctx context.Context, opts ListOptions) ([]*Student, error)

	// GetByRiskLevels returns on-rolls students at any of the given levels.
	GetByRiskLevels(ctx context.Context, levels []RiskLevel) ([]*Student, error)

	// Update persists all mutable fields of a student.
	Update(ctx context.Context, s *Student) error

	// UpdateRiskBatch applies recomputed metrics and risk levels in one
	// round trip per batch.
	UpdateRiskBatch(ctx context.Context, updates []RiskUpdate) error

	// Count returns the total number of on-rolls students.
	Count(ctx context.Context) (int, error)

	// CountByRiskLevel returns per-level counts for on-rolls students.
	CountByRiskLevel(ctx context.Context) ([]RiskCount, error)

	// CountByFeeStatus returns the number of on-rolls students with the
	// given fee status.
	CountByFeeStatus(ctx context.Context, status FeeStatus) (int, error)

	// AverageAttendance returns the mean attendance percentage across
	// on-rolls students. Zero students yields zero, not an error.
	AverageAttendance(ctx context.Context) (float64, error)

	// FindUnmarkedSince returns on-rolls students whose attendance has not
	// been marked since the given date.
	FindUnmarkedSince(ctx context.Context, since time.Time) ([]*Student, error)
}

// Cache is the read-side cache port for student lists.
type Cache interface {
	// GetList returns the cached dashboard list, or an error on miss.
	GetList(ctx context.Context) ([]*Student, error)

	// SetList stores the dashboard list with a TTL.
	SetList(ctx context.Context, students []*Student, ttl time.Duration) error

	// Invalidate drops every cached student view.
	Invalidate(ctx context.Context) error
}
