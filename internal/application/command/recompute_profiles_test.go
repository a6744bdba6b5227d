package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamvidya/vidya-dropout/internal/domain/attendance"
	"github.com/teamvidya/vidya-dropout/internal/domain/risk"
	"github.com/teamvidya/vidya-dropout/internal/domain/shared"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

func enrolledStudent(t *testing.T, id string, roll student.RollNumber, m student.Metrics, level student.RiskLevel) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{
		ID:         id,
		RollNumber: roll,
		FullName:   "Student " + id,
		Class:      9,
	})
	require.NoError(t, err)
	require.NoError(t, s.ApplyMetrics(m))
	if level != student.RiskUnknown {
		_, err = s.SetRisk(level)
		require.NoError(t, err)
	}
	return s
}

func newRecomputeFixture(students *memStudentRepo, ledger *memAttendanceRepo) (*RecomputeProfilesHandler, *capturingPublisher, *memCache) {
	publisher := &capturingPublisher{}
	cache := &memCache{}
	h := NewRecomputeProfilesHandler(students, ledger, risk.NewClassifier(), publisher, cache, stubGate{ml: false, notify: true})
	return h, publisher, cache
}

func TestRecomputeAppliesLedgerAttendance(t *testing.T) {
	healthy := student.Metrics{AttendancePct: 0, AverageScore: 82, ExamAttempts: 1, FeeStatus: student.FeePaid}
	students := &memStudentRepo{students: []*student.Student{
		enrolledStudent(t, "a", 1, healthy, student.RiskUnknown),
	}}
	ledger := &memAttendanceRepo{summaries: map[string]attendance.Summary{
		"a": {StudentID: "a", TotalDays: 10, DaysMarked: 10, Present: 9},
	}}
	h, _, _ := newRecomputeFixture(students, ledger)

	result, err := h.Handle(context.Background(), RecomputeProfilesCommand{Trigger: "manual"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Scored)
	assert.Equal(t, student.Percent(90), students.students[0].AttendancePct)
	assert.Equal(t, student.RiskLow, students.students[0].RiskLevel)
}

func TestRecomputeScoresStudentsWithoutLedgerRows(t *testing.T) {
	// A brand new roster has no attendance at all; everyone still gets a
	// risk level, with attendance treated as zero.
	defaults := student.Metrics{
		AttendancePct: student.DefaultAttendancePct,
		AverageScore:  student.DefaultAverageScore,
		ExamAttempts:  student.DefaultExamAttempts,
		FeeStatus:     student.DefaultFeeStatus,
	}
	students := &memStudentRepo{students: []*student.Student{
		enrolledStudent(t, "a", 1, defaults, student.RiskUnknown),
	}}
	h, _, _ := newRecomputeFixture(students, &memAttendanceRepo{})

	result, err := h.Handle(context.Background(), RecomputeProfilesCommand{Trigger: "scheduled"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Scored)
	assert.NotEqual(t, student.RiskUnknown, students.students[0].RiskLevel)
}

func TestRecomputeCountsChangesAndEscalations(t *testing.T) {
	critical := student.Metrics{AttendancePct: 55, AverageScore: 30, ExamAttempts: 4, FeeStatus: student.FeeOverdue}
	healthy := student.Metrics{AttendancePct: 92, AverageScore: 81, ExamAttempts: 1, FeeStatus: student.FeePaid}

	students := &memStudentRepo{students: []*student.Student{
		// Was low, metrics now critical: change and escalation.
		enrolledStudent(t, "worsened", 1, critical, student.RiskLow),
		// Was high, metrics now healthy: change, not an escalation.
		enrolledStudent(t, "improved", 2, healthy, student.RiskHigh),
		// Already high with critical metrics: no change.
		enrolledStudent(t, "steady", 3, critical, student.RiskHigh),
	}}
	h, publisher, _ := newRecomputeFixture(students, &memAttendanceRepo{summaries: map[string]attendance.Summary{
		"worsened": {StudentID: "worsened", TotalDays: 20, Present: 11},
		"improved": {StudentID: "improved", TotalDays: 20, Present: 18},
		"steady":   {StudentID: "steady", TotalDays: 20, Present: 11},
	}})

	result, err := h.Handle(context.Background(), RecomputeProfilesCommand{Trigger: "scheduled"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalStudents)
	assert.Equal(t, 3, result.Scored)
	assert.Equal(t, 2, result.RiskChanges)
	assert.Equal(t, 1, result.Escalations)

	assert.Len(t, publisher.ofType(shared.EventRiskEscalated), 1)
	assert.Len(t, publisher.ofType(shared.EventRiskChanged), 1)
	assert.Len(t, publisher.ofType(shared.EventProfilesRecomputed), 1)
}

func TestRecomputePersistsOneBatch(t *testing.T) {
	healthy := student.Metrics{AttendancePct: 92, AverageScore: 81, ExamAttempts: 1, FeeStatus: student.FeePaid}
	students := &memStudentRepo{students: []*student.Student{
		enrolledStudent(t, "a", 1, healthy, student.RiskLow),
		enrolledStudent(t, "b", 2, healthy, student.RiskLow),
	}}
	h, _, cache := newRecomputeFixture(students, &memAttendanceRepo{})

	_, err := h.Handle(context.Background(), RecomputeProfilesCommand{Trigger: "scheduled"})
	require.NoError(t, err)

	require.Len(t, students.riskBatches, 1)
	assert.Len(t, students.riskBatches[0], 2)
	assert.Equal(t, 1, cache.invalidations)
}

func TestRecomputeSkipsOffRollsStudents(t *testing.T) {
	healthy := student.Metrics{AttendancePct: 92, AverageScore: 81, ExamAttempts: 1, FeeStatus: student.FeePaid}
	left := enrolledStudent(t, "gone", 2, healthy, student.RiskLow)
	require.NoError(t, left.MarkLeft())

	students := &memStudentRepo{students: []*student.Student{
		enrolledStudent(t, "here", 1, healthy, student.RiskLow),
		left,
	}}
	h, _, _ := newRecomputeFixture(students, &memAttendanceRepo{})

	result, err := h.Handle(context.Background(), RecomputeProfilesCommand{Trigger: "scheduled"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalStudents)
}

func TestRecomputeEmptyRoster(t *testing.T) {
	students := &memStudentRepo{}
	h, publisher, cache := newRecomputeFixture(students, &memAttendanceRepo{})

	result, err := h.Handle(context.Background(), RecomputeProfilesCommand{Trigger: "scheduled"})
	require.NoError(t, err)

	assert.Zero(t, result.TotalStudents)
	assert.Empty(t, students.riskBatches)
	assert.Empty(t, publisher.events)
	assert.Zero(t, cache.invalidations)
}

func TestRecomputeWorksWithoutCache(t *testing.T) {
	healthy := student.Metrics{AttendancePct: 92, AverageScore: 81, ExamAttempts: 1, FeeStatus: student.FeePaid}
	students := &memStudentRepo{students: []*student.Student{
		enrolledStudent(t, "a", 1, healthy, student.RiskLow),
	}}
	h := NewRecomputeProfilesHandler(students, &memAttendanceRepo{}, risk.NewClassifier(), nil, nil, nil)

	_, err := h.Handle(context.Background(), RecomputeProfilesCommand{Trigger: "manual"})
	require.NoError(t, err)
}
