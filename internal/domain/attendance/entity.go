// Package attendance contains the daily attendance ledger: one record per
// student per school day, and the summaries the risk model is fed from.
package attendance

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the outcome of one school day for one student.
type Status string

const (
	// StatusPresent - attended the full day.
	StatusPresent Status = "present"
	// StatusAbsent - did not attend.
	StatusAbsent Status = "absent"
	// StatusLate - arrived late; counts as present for the ratio.
	StatusLate Status = "late"
	// StatusExcused - authorised absence; excluded from the ratio.
	StatusExcused Status = "excused"
)

// IsValid reports whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	default:
		return false
	}
}

// CountsAsPresent reports whether the day counts toward the present tally.
func (s Status) CountsAsPresent() bool {
	return s == StatusPresent || s == StatusLate
}

// CountsTowardTotal reports whether the day enters the denominator.
// Excused absences do not penalise the percentage.
func (s Status) CountsTowardTotal() bool {
	return s != StatusExcused
}

// String returns the status as a plain string.
func (s Status) String() string {
	return string(s)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record is one attendance entry. Date carries day precision only; the
// pair (StudentID, Date) is unique and re-marking overwrites.
type Record struct {
	StudentID string
	Date      time.Time
	Status    Status
	MarkedAt  time.Time
}

var (
	// ErrInvalidStatus - unknown attendance status.
	ErrInvalidStatus = errors.New("invalid attendance status")

	// ErrMissingStudentID - record without a student.
	ErrMissingStudentID = errors.New("attendance record requires a student id")

	// ErrZeroDate - record without a date.
	ErrZeroDate = errors.New("attendance record requires a date")

	// ErrFutureDate - attendance cannot be marked ahead of time.
	ErrFutureDate = errors.New("attendance date is in the future")
)

// NewRecord creates a validated attendance record. The date is truncated
// to day precision in UTC.
func NewRecord(studentID string, date time.Time, status Status) (Record, error) {
	if studentID == "" {
		return Record{}, ErrMissingStudentID
	}
	if date.IsZero() {
		return Record{}, ErrZeroDate
	}
	if !status.IsValid() {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	day := Day(date)
	if day.After(Day(time.Now().UTC())) {
		return Record{}, ErrFutureDate
	}

	return Record{
		StudentID: studentID,
		Date:      day,
		Status:    status,
		MarkedAt:  time.Now().UTC(),
	}, nil
}

// Day truncates a time to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

// Summary aggregates one student's ledger into the ratio the risk model uses.
type Summary struct {
	StudentID  string
	TotalDays  int
	DaysMarked int // including excused days
	Present    int
}

// Pct returns the rounded attendance percentage. A student with no
// countable days scores zero.
func (s Summary) Pct() int {
	if s.TotalDays <= 0 {
		return 0
	}
	return int(math.Round(float64(s.Present) / float64(s.TotalDays) * 100))
}

// Summarize folds a slice of records into per-student summaries.
// Record order does not matter.
func Summarize(records []Record) map[string]Summary {
	summaries := make(map[string]Summary)
	for _, rec := range records {
		sum := summaries[rec.StudentID]
		sum.StudentID = rec.StudentID
		sum.DaysMarked++
		if rec.Status.CountsTowardTotal() {
			sum.TotalDays++
		}
		if rec.Status.CountsAsPresent() {
			sum.Present++
		}
		summaries[rec.StudentID] = sum
	}
	return summaries
}
