package advice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

func profiled(t *testing.T, level student.RiskLevel, att student.Percent, score student.Score) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{
		ID:         "stu-1",
		RollNumber: 1,
		FullName:   "Asha Verma",
		Class:      9,
	})
	require.NoError(t, err)
	require.NoError(t, s.ApplyMetrics(student.Metrics{
		AttendancePct: att,
		AverageScore:  score,
		ExamAttempts:  1,
		FeeStatus:     student.FeePaid,
	}))
	_, err = s.SetRisk(level)
	require.NoError(t, err)
	return s
}

func TestForPicksDominantConcern(t *testing.T) {
	tests := []struct {
		name  string
		s     *student.Student
		wants string
	}{
		{"high risk", profiled(t, student.RiskHigh, 55, 30), "immediate intervention"},
		{"medium, attendance driven", profiled(t, student.RiskMedium, 68, 70), "reasons for absence"},
		{"medium, score driven", profiled(t, student.RiskMedium, 85, 52), "extra tutorial"},
		{"medium, no single driver", profiled(t, student.RiskMedium, 85, 70), "check-in"},
		{"low risk", profiled(t, student.RiskLow, 92, 81), "performing well"},
		{"never scored", profiled(t, student.RiskUnknown, 92, 81), "performing well"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, For(tt.s), tt.wants)
		})
	}
}

func TestForAttendanceWinsOverScores(t *testing.T) {
	// Both metrics below their lines: attendance is the headline.
	s := profiled(t, student.RiskMedium, 68, 52)
	assert.Contains(t, For(s), "reasons for absence")
}
