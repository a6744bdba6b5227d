package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// StudentCache is the Redis-backed implementation of the student.Cache port.
// It caches the dashboard roster as a single JSON blob; the roster is small
// (a school, not a district) and always read whole.
type StudentCache struct {
	cache *Cache
}

// NewStudentCache creates a new StudentCache instance.
func NewStudentCache(cache *Cache) *StudentCache {
	return &StudentCache{cache: cache}
}

// cachedStudent is the wire form of a student in Redis. A separate struct
// keeps the cache format stable when the domain entity grows fields.
type cachedStudent struct {
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
	LastMarkedAt     time.Time `json:"last_marked_at"`
	ProfileUpdatedAt time.Time `json:"profile_updated_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GetList returns the cached dashboard list, or ErrCacheMiss.
func (c *StudentCache) GetList(ctx context.Context) ([]*student.Student, error) {
	var cached []cachedStudent
	if err := c.cache.Get(ctx, KeyStudentList, &cached); err != nil {
		return nil, err
	}

	students := make([]*student.Student, 0, len(cached))
	for i := range cached {
		students = append(students, cached[i].toDomain())
	}

	return students, nil
}

// SetList stores the dashboard list with a TTL.
func (c *StudentCache) SetList(ctx context.Context, students []*student.Student, ttl time.Duration) error {
	cached := make([]cachedStudent, 0, len(students))
	for _, s := range students {
		cached = append(cached, fromDomain(s))
	}

	if err := c.cache.Set(ctx, KeyStudentList, cached, ttl); err != nil {
		return fmt.Errorf("cache student list: %w", err)
	}

	return nil
}

// Invalidate drops every cached student view. Also drops the stats keys:
// every write that changes the roster changes the widgets too.
func (c *StudentCache) Invalidate(ctx context.Context) error {
	if err := c.cache.DeleteByPrefix(ctx, PrefixStudents); err != nil {
		return err
	}
	return c.cache.DeleteByPrefix(ctx, PrefixStats)
}

func fromDomain(s *student.Student) cachedStudent {
	return cachedStudent{
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
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func (c cachedStudent) toDomain() *student.Student {
	return &student.Student{
		ID:               c.ID,
		RollNumber:       student.RollNumber(c.RollNumber),
		FullName:         c.FullName,
		Class:            student.Class(c.Class),
		GuardianEmail:    student.Email(c.GuardianEmail),
		MentorEmail:      student.Email(c.MentorEmail),
		AttendancePct:    student.Percent(c.AttendancePct),
		AverageScore:     student.Score(c.AverageScore),
		ExamAttempts:     c.ExamAttempts,
		FeeStatus:        student.FeeStatus(c.FeeStatus),
		RiskLevel:        student.RiskLevel(c.RiskLevel),
		Status:           student.Status(c.Status),
		LastMarkedAt:     c.LastMarkedAt,
		ProfileUpdatedAt: c.ProfileUpdatedAt,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}
