// Package student contains the core domain model of the Vidya Dropout
// early-warning system. No external dependencies live here.
package student

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// RollNumber is the school-assigned identifier of a student.
// It is unique within the institution and stable across academic years.
type RollNumber int

// IsValid reports whether the roll number is positive.
func (r RollNumber) IsValid() bool {
	return r > 0
}

// Class is the grade a student is enrolled in (1-12).
type Class int

// IsValid reports whether the class is within the supported range.
func (c Class) IsValid() bool {
	return c >= 1 && c <= 12
}

// Percent is a whole-number percentage in [0, 100].
// Used for attendance; fractional values round to the nearest point.
type Percent int

// IsValid reports whether the percentage is within range.
func (p Percent) IsValid() bool {
	return p >= 0 && p <= 100
}

// Score is an average test score in [0, 100].
type Score int

// IsValid reports whether the score is within range.
func (s Score) IsValid() bool {
	return s >= 0 && s <= 100
}

// Email is a guardian or mentor contact address.
type Email string

// IsValid performs a light structural check. Full RFC validation is not the
// domain's job; delivery failures are handled by the alerting layer.
func (e Email) IsValid() bool {
	s := string(e)
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\n\r")
}

// String returns the address as a plain string.
func (e Email) String() string {
	return string(e)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// FeeStatus describes the state of a student's fee account.
type FeeStatus string

const (
	// FeePaid - fees settled for the current term.
	FeePaid FeeStatus = "paid"
	// FeeDue - an installment is due but not yet late.
	FeeDue FeeStatus = "due"
	// FeeOverdue - payment deadline has passed.
	FeeOverdue FeeStatus = "overdue"
)

// IsValid reports whether the fee status is a known value.
func (f FeeStatus) IsValid() bool {
	switch f {
	case FeePaid, FeeDue, FeeOverdue:
		return true
	default:
		return false
	}
}

// String returns the status as a plain string.
func (f FeeStatus) String() string {
	return string(f)
}

// RiskLevel is the model's dropout-risk classification of a student.
type RiskLevel string

const (
	// RiskUnknown - profile has never been scored.
	RiskUnknown RiskLevel = "unknown"
	// RiskLow - no intervention needed.
	RiskLow RiskLevel = "low"
	// RiskMedium - early signs; mentor follow-up recommended.
	RiskMedium RiskLevel = "medium"
	// RiskHigh - immediate intervention required.
	RiskHigh RiskLevel = "high"
)

// IsValid reports whether the risk level is a known value.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskUnknown, RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// NeedsIntervention returns true for levels that trigger mentor alerts.
func (r RiskLevel) NeedsIntervention() bool {
	return r == RiskMedium || r == RiskHigh
}

// Severity orders risk levels for comparisons (unknown < low < medium < high).
func (r RiskLevel) Severity() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// String returns the level as a plain string.
func (r RiskLevel) String() string {
	return string(r)
}

// Status is the enrollment status of a student.
type Status string

const (
	// StatusEnrolled - student is attending the school.
	StatusEnrolled Status = "enrolled"
	// StatusInactive - long unexplained absence, still on the rolls.
	StatusInactive Status = "inactive"
	// StatusLeft - student has dropped out or transferred.
	StatusLeft Status = "left"
	// StatusGraduated - student completed the final class.
	StatusGraduated Status = "graduated"
)

// IsValid reports whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusEnrolled, StatusInactive, StatusLeft, StatusGraduated:
		return true
	default:
		return false
	}
}

// IsOnRolls returns true while the student should appear on dashboards
// and receive risk scoring.
func (s Status) IsOnRolls() bool {
	return s == StatusEnrolled || s == StatusInactive
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is the central entity of the early-warning system: one row per
// enrolled student, carrying the merged attendance/score/fee metrics that
// the risk model scores.
type Student struct {
	// ID - internal unique identifier (UUID string).
	ID string

	// RollNumber - school-assigned identifier, unique.
	RollNumber RollNumber

	// FullName - student's display name.
	FullName string

	// Class - grade the student is enrolled in.
	Class Class

	// GuardianEmail - contact for alert notifications. May be empty.
	GuardianEmail Email

	// MentorEmail - assigned mentor's contact. May be empty.
	MentorEmail Email

	// AttendancePct - overall attendance, recomputed from the daily ledger.
	AttendancePct Percent

	// AverageScore - mean test score across subjects.
	AverageScore Score

	// ExamAttempts - number of attempts used on board/unit exams.
	ExamAttempts int

	// FeeStatus - state of the fee account.
	FeeStatus FeeStatus

	// RiskLevel - latest classification.
	RiskLevel RiskLevel

	// Status - enrollment status.
	Status Status

	// LastMarkedAt - date of the most recent attendance record.
	LastMarkedAt time.Time

	// ProfileUpdatedAt - when metrics/risk were last recomputed.
	ProfileUpdatedAt time.Time

	// CreatedAt - record creation time.
	CreatedAt time.Time

	// UpdatedAt - last modification time.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidRollNumber - roll number must be positive.
	ErrInvalidRollNumber = errors.New("invalid roll number: must be positive")

	// ErrInvalidClass - class must be 1-12.
	ErrInvalidClass = errors.New("invalid class: must be between 1 and 12")

	// ErrInvalidFullName - full name must be 1-100 chars.
	ErrInvalidFullName = errors.New("invalid full name: must be 1-100 chars")

	// ErrInvalidEmail - malformed contact address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidPercent - percentage out of range.
	ErrInvalidPercent = errors.New("invalid percentage: must be 0-100")

	// ErrInvalidScore - score out of range.
	ErrInvalidScore = errors.New("invalid score: must be 0-100")

	// ErrInvalidExamAttempts - attempts must be at least 1.
	ErrInvalidExamAttempts = errors.New("invalid exam attempts: must be >= 1")

	// ErrInvalidFeeStatus - unknown fee status.
	ErrInvalidFeeStatus = errors.New("invalid fee status")

	// ErrInvalidRiskLevel - unknown risk level.
	ErrInvalidRiskLevel = errors.New("invalid risk level")

	// ErrStudentNotFound - student does not exist.
	ErrStudentNotFound = errors.New("student not found")

	// ErrStudentAlreadyExists - roll number already registered.
	ErrStudentAlreadyExists = errors.New("student already exists")

	// ErrStudentNotOnRolls - student has left or graduated.
	ErrStudentNotOnRolls = errors.New("student is not on the rolls")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// Defaults applied when a data source is missing a metric. Mirrors the
// intake pipeline's behaviour: a student with no attendance ledger scores
// 0%, unknown test results assume a mid-range 50, and fee accounts are
// presumed settled until the fee file says otherwise.
const (
	DefaultAttendancePct = Percent(0)
	DefaultAverageScore  = Score(50)
	DefaultExamAttempts  = 1
	DefaultFeeStatus     = FeePaid
)

// NewStudentParams holds the parameters for registering a student.
type NewStudentParams struct {
	ID            string
	RollNumber    RollNumber
	FullName      string
	Class         Class
	GuardianEmail Email
	MentorEmail   Email
}

// NewStudent creates a student with validated fields and default metrics.
func NewStudent(params NewStudentParams) (*Student, error) {
	if params.ID == "" {
		return nil, errors.New("student id is required")
	}

	if !params.RollNumber.IsValid() {
		return nil, ErrInvalidRollNumber
	}

	fullName := strings.TrimSpace(params.FullName)
	if len(fullName) == 0 || len(fullName) > 100 {
		return nil, ErrInvalidFullName
	}

	if !params.Class.IsValid() {
		return nil, ErrInvalidClass
	}

	if params.GuardianEmail != "" && !params.GuardianEmail.IsValid() {
		return nil, fmt.Errorf("%w: guardian %q", ErrInvalidEmail, params.GuardianEmail)
	}

	if params.MentorEmail != "" && !params.MentorEmail.IsValid() {
		return nil, fmt.Errorf("%w: mentor %q", ErrInvalidEmail, params.MentorEmail)
	}

	now := time.Now().UTC()

	return &Student{
		ID:            params.ID,
		RollNumber:    params.RollNumber,
		FullName:      fullName,
		Class:         params.Class,
		GuardianEmail: params.GuardianEmail,
		MentorEmail:   params.MentorEmail,
		AttendancePct: DefaultAttendancePct,
		AverageScore:  DefaultAverageScore,
		ExamAttempts:  DefaultExamAttempts,
		FeeStatus:     DefaultFeeStatus,
		RiskLevel:     RiskUnknown,
		Status:        StatusEnrolled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics is the scored subset of a student profile.
type Metrics struct {
	AttendancePct Percent
	AverageScore  Score
	ExamAttempts  int
	FeeStatus     FeeStatus
}

// ApplyMetrics merges freshly computed metrics into the profile.
// Invalid fields reject the whole update; the profile is left unchanged.
func (s *Student) ApplyMetrics(m Metrics) error {
	if !m.AttendancePct.IsValid() {
		return ErrInvalidPercent
	}
	if !m.AverageScore.IsValid() {
		return ErrInvalidScore
	}
	if m.ExamAttempts < 1 {
		return ErrInvalidExamAttempts
	}
	if !m.FeeStatus.IsValid() {
		return ErrInvalidFeeStatus
	}

	s.AttendancePct = m.AttendancePct
	s.AverageScore = m.AverageScore
	s.ExamAttempts = m.ExamAttempts
	s.FeeStatus = m.FeeStatus
	s.ProfileUpdatedAt = time.Now().UTC()
	s.UpdatedAt = s.ProfileUpdatedAt
	return nil
}

// Metrics returns the scored subset of the profile.
func (s *Student) Metrics() Metrics {
	return Metrics{
		AttendancePct: s.AttendancePct,
		AverageScore:  s.AverageScore,
		ExamAttempts:  s.ExamAttempts,
		FeeStatus:     s.FeeStatus,
	}
}

// SetRisk records a new classification and returns the previous level.
func (s *Student) SetRisk(level RiskLevel) (previous RiskLevel, err error) {
	if !level.IsValid() {
		return s.RiskLevel, ErrInvalidRiskLevel
	}

	previous = s.RiskLevel
	s.RiskLevel = level
	s.ProfileUpdatedAt = time.Now().UTC()
	s.UpdatedAt = s.ProfileUpdatedAt
	return previous, nil
}

// NeedsIntervention reports whether the student should appear in alert runs.
func (s *Student) NeedsIntervention() bool {
	return s.Status.IsOnRolls() && s.RiskLevel.NeedsIntervention()
}

// IsEnrolled reports whether the student is still on the rolls.
func (s *Student) IsEnrolled() bool {
	return s.Status.IsOnRolls()
}

// MarkAttended records that an attendance entry exists for the given date.
func (s *Student) MarkAttended(date time.Time) {
	if date.After(s.LastMarkedAt) {
		s.LastMarkedAt = date
	}
	s.UpdatedAt = time.Now().UTC()
}

// MarkInactive flags a long unexplained absence.
func (s *Student) MarkInactive() error {
	if !s.Status.IsOnRolls() {
		return ErrStudentNotOnRolls
	}
	s.Status = StatusInactive
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkLeft records that the student has dropped out or transferred.
func (s *Student) MarkLeft() error {
	if !s.Status.IsOnRolls() {
		return ErrStudentNotOnRolls
	}
	s.Status = StatusLeft
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkGraduated records completion of the final class.
func (s *Student) MarkGraduated() error {
	if !s.Status.IsOnRolls() {
		return ErrStudentNotOnRolls
	}
	s.Status = StatusGraduated
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// AlertRecipients returns the addresses an at-risk alert should reach.
// Guardians come first; duplicates and empty addresses are dropped.
func (s *Student) AlertRecipients() []Email {
	recipients := make([]Email, 0, 2)
	if s.GuardianEmail != "" {
		recipients = append(recipients, s.GuardianEmail)
	}
	if s.MentorEmail != "" && s.MentorEmail != s.GuardianEmail {
		recipients = append(recipients, s.MentorEmail)
	}
	return recipients
}

// String returns a compact representation for logging.
func (s *Student) String() string {
	return fmt.Sprintf(
		"Student{ID: %s, Roll: %d, Class: %d, Attendance: %d%%, Score: %d, Risk: %s}",
		s.ID, s.RollNumber, s.Class, s.AttendancePct, s.AverageScore, s.RiskLevel,
	)
}

// Clone returns a copy of the student.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}
