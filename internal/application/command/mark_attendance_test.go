package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamvidya/vidya-dropout/internal/domain/attendance"
	"github.com/teamvidya/vidya-dropout/internal/domain/risk"
	"github.com/teamvidya/vidya-dropout/internal/domain/shared"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

func newMarkFixture(t *testing.T) (*MarkAttendanceHandler, *memStudentRepo, *memAttendanceRepo, *capturingPublisher) {
	t.Helper()
	healthy := student.Metrics{AttendancePct: 0, AverageScore: 82, ExamAttempts: 1, FeeStatus: student.FeePaid}
	students := &memStudentRepo{students: []*student.Student{
		enrolledStudent(t, "a", 1, healthy, student.RiskUnknown),
		enrolledStudent(t, "b", 2, healthy, student.RiskUnknown),
	}}
	ledger := &memAttendanceRepo{}
	publisher := &capturingPublisher{}
	recompute := NewRecomputeProfilesHandler(students, ledger, risk.NewClassifier(), publisher, nil, stubGate{ml: false, notify: true})
	h := NewMarkAttendanceHandler(students, ledger, recompute, publisher)
	return h, students, ledger, publisher
}

func TestMarkAttendanceWritesLedgerAndRecomputes(t *testing.T) {
	h, students, ledger, publisher := newMarkFixture(t)

	day := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)
	result, err := h.Handle(context.Background(), MarkAttendanceCommand{
		Date: day,
		Entries: []AttendanceEntry{
			{RollNumber: 1, Status: attendance.StatusPresent},
			{RollNumber: 2, Status: attendance.StatusAbsent},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, day, result.Date)
	assert.Equal(t, 2, result.RecordsWritten)
	assert.Empty(t, result.UnknownRolls)
	assert.Len(t, ledger.records, 2)

	require.NotNil(t, result.Recompute)
	assert.Equal(t, 2, result.Recompute.Scored)
	assert.Equal(t, student.Percent(100), students.students[0].AttendancePct)
	assert.Equal(t, student.Percent(0), students.students[1].AttendancePct)

	assert.Len(t, publisher.ofType(shared.EventAttendanceMarked), 1)
}

func TestMarkAttendanceNormalizesTimestampToDay(t *testing.T) {
	h, _, ledger, _ := newMarkFixture(t)

	result, err := h.Handle(context.Background(), MarkAttendanceCommand{
		Date:    time.Date(2025, 7, 14, 13, 45, 12, 0, time.UTC),
		Entries: []AttendanceEntry{{RollNumber: 1, Status: attendance.StatusLate}},
	})
	require.NoError(t, err)

	want := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, result.Date)
	require.Len(t, ledger.records, 1)
	assert.Equal(t, want, ledger.records[0].Date)
}

func TestMarkAttendanceReportsUnknownRolls(t *testing.T) {
	h, _, ledger, _ := newMarkFixture(t)

	result, err := h.Handle(context.Background(), MarkAttendanceCommand{
		Date: time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC),
		Entries: []AttendanceEntry{
			{RollNumber: 1, Status: attendance.StatusPresent},
			{RollNumber: 42, Status: attendance.StatusPresent},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.RecordsWritten)
	assert.Equal(t, []int{42}, result.UnknownRolls)
	assert.Len(t, ledger.records, 1)
}

func TestMarkAttendanceAllUnknownFails(t *testing.T) {
	h, _, ledger, _ := newMarkFixture(t)

	_, err := h.Handle(context.Background(), MarkAttendanceCommand{
		Date:    time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC),
		Entries: []AttendanceEntry{{RollNumber: 42, Status: attendance.StatusPresent}},
	})
	assert.ErrorContains(t, err, "no entries matched")
	assert.Empty(t, ledger.records)
}

func TestMarkAttendanceValidation(t *testing.T) {
	h, _, _, _ := newMarkFixture(t)

	_, err := h.Handle(context.Background(), MarkAttendanceCommand{})
	assert.ErrorContains(t, err, "no entries")

	_, err = h.Handle(context.Background(), MarkAttendanceCommand{
		Entries: []AttendanceEntry{{RollNumber: 1, Status: "vacation"}},
	})
	assert.ErrorIs(t, err, attendance.ErrInvalidStatus)
}
