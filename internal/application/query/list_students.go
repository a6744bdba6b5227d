// Package query contains read operations (CQRS - Queries).
// Queries never change state; they shape domain data for the dashboard.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST STUDENTS QUERY
// The dashboard roster, cache-aside over Redis.
// ══════════════════════════════════════════════════════════════════════════════

// ListStudentsQuery controls the roster listing.
type ListStudentsQuery struct {
	// Limit and Offset page through the roster. Zero limit means the
	// roster default.
	Limit  int
	Offset int

	// SortBy and Descending order the list. Empty means roll number.
	SortBy     student.SortField
	Descending bool

	// IncludeOffRolls also returns students who left or graduated.
	IncludeOffRolls bool
}

// StudentView is the dashboard shape of one student.
type StudentView struct {
	ID               string    `json:"id"`
	RollNumber       int       `json:"roll_number"`
	FullName         string    `json:"full_name"`
	Class            int       `json:"class"`
	GuardianEmail    string    `json:"guardian_email,omitempty"`
	MentorEmail      string    `json:"mentor_email,omitempty"`
	AttendancePct    int       `json:"attendance_pct"`
	AverageScore     int       `json:"average_score"`
	ExamAttempts     int       `json:"exam_attempts"`
	FeeStatus        string    `json:"fee_status"`
	RiskLevel        string    `json:"risk_level"`
	Status           string    `json:"status"`
	LastMarkedAt     time.Time `json:"last_marked_at,omitempty"`
	ProfileUpdatedAt time.Time `json:"profile_updated_at,omitempty"`
}

// NewStudentView maps a domain student to its dashboard shape.
func NewStudentView(s *student.Student) StudentView {
	return StudentView{
		ID:               s.ID,
		RollNumber:       int(s.RollNumber),
		FullName:         s.FullName,
		Class:            int(s.Class),
		GuardianEmail:    s.GuardianEmail.String(),
		MentorEmail:      s.MentorEmail.String(),
		AttendancePct:    int(s.AttendancePct),
		AverageScore:     int(s.AverageScore),
		ExamAttempts:     s.ExamAttempts,
		FeeStatus:        s.FeeStatus.String(),
		RiskLevel:        s.RiskLevel.String(),
		Status:           string(s.Status),
		LastMarkedAt:     s.LastMarkedAt,
		ProfileUpdatedAt: s.ProfileUpdatedAt,
	}
}

// ListStudentsHandler handles the ListStudentsQuery.
type ListStudentsHandler struct {
	repo    student.Repository
	cache   student.Cache
	listTTL time.Duration
}

// NewListStudentsHandler creates a new ListStudentsHandler.
// The cache may be nil when Redis is disabled.
func NewListStudentsHandler(repo student.Repository, cache student.Cache, listTTL time.Duration) *ListStudentsHandler {
	if listTTL <= 0 {
		listTTL = 2 * time.Minute
	}
	return &ListStudentsHandler{
		repo:    repo,
		cache:   cache,
		listTTL: listTTL,
	}
}

// Handle executes the listing. Only the default roster view (no paging,
// default order) goes through the cache; filtered views hit the database.
func (h *ListStudentsHandler) Handle(ctx context.Context, q ListStudentsQuery) ([]StudentView, error) {
	cacheable := h.cache != nil && q.isDefault()

	if cacheable {
		if students, err := h.cache.GetList(ctx); err == nil {
			return toViews(students), nil
		}
	}

	opts := student.DefaultListOptions()
	if q.Limit > 0 {
		opts.Limit = q.Limit
	}
	opts.Offset = q.Offset
	if q.SortBy != "" {
		opts.SortBy = q.SortBy
	}
	opts.Descending = q.Descending
	opts.IncludeOffRolls = q.IncludeOffRolls

	students, err := h.repo.GetAll(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list_students: %w", err)
	}

	if cacheable {
		_ = h.cache.SetList(ctx, students, h.listTTL)
	}

	return toViews(students), nil
}

func (q ListStudentsQuery) isDefault() bool {
	return q.Limit == 0 && q.Offset == 0 &&
		(q.SortBy == "" || q.SortBy == student.SortByRollNumber) &&
		!q.Descending && !q.IncludeOffRolls
}

func toViews(students []*student.Student) []StudentView {
	views := make([]StudentView, 0, len(students))
	for _, s := range students {
		views = append(views, NewStudentView(s))
	}
	return views
}
