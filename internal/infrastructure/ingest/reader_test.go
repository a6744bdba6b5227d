package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamvidya/vidya-dropout/internal/domain/attendance"
)

func TestReadRosterCSV(t *testing.T) {
	input := strings.Join([]string{
		"roll_number,full_name,class,guardian_email,mentor_email,average_score,exam_attempts,fee_status",
		"12,Asha Verma,9,parent@example.com,mentor@example.com,72.4,1,paid",
		"13,Ravi Kumar,9,,,,,",
		"", // trailing blank line
	}, "\n")

	rows, err := ReadRoster(strings.NewReader(input), "csv")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	asha := rows[0]
	assert.Equal(t, 12, asha.RollNumber)
	assert.Equal(t, "Asha Verma", asha.FullName)
	assert.Equal(t, 9, asha.Class)
	assert.Equal(t, "parent@example.com", asha.GuardianEmail)
	assert.Equal(t, "mentor@example.com", asha.MentorEmail)
	require.NotNil(t, asha.AverageScore)
	assert.Equal(t, 72, *asha.AverageScore)
	require.NotNil(t, asha.ExamAttempts)
	assert.Equal(t, 1, *asha.ExamAttempts)
	assert.Equal(t, "paid", asha.FeeStatus)

	ravi := rows[1]
	assert.Equal(t, 13, ravi.RollNumber)
	assert.Nil(t, ravi.AverageScore, "absent score stays nil so defaults apply downstream")
	assert.Nil(t, ravi.ExamAttempts)
	assert.Empty(t, ravi.FeeStatus)
}

func TestReadRosterHeaderCaseInsensitive(t *testing.T) {
	input := "Roll_Number,FULL_NAME,Class\n7,Meena Iyer,8\n"

	rows, err := ReadRoster(strings.NewReader(input), "csv")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Meena Iyer", rows[0].FullName)
}

func TestReadRosterMissingRequiredColumn(t *testing.T) {
	input := "roll_number,class\n1,9\n"

	_, err := ReadRoster(strings.NewReader(input), "csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "full_name")
}

func TestReadRosterInvalidRollNumber(t *testing.T) {
	input := "roll_number,full_name,class\nabc,Asha Verma,9\n"

	_, err := ReadRoster(strings.NewReader(input), "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadRosterEmptyFile(t *testing.T) {
	_, err := ReadRoster(strings.NewReader("roll_number,full_name,class\n"), "csv")
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestReadAttendanceCSV(t *testing.T) {
	input := strings.Join([]string{
		"roll_number,date,status",
		"12,2025-07-14,present",
		"12,2025-07-15,Absent",
		"13,2025-07-14,excused",
	}, "\n")

	rows, err := ReadAttendance(strings.NewReader(input), "csv")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 12, rows[0].RollNumber)
	assert.Equal(t, time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Equal(t, attendance.StatusPresent, rows[0].Status)
	assert.Equal(t, attendance.StatusAbsent, rows[1].Status, "status matching ignores case")
	assert.Equal(t, attendance.StatusExcused, rows[2].Status)
}

func TestReadAttendanceInvalidDate(t *testing.T) {
	input := "roll_number,date,status\n12,14/07/2025,present\n"

	_, err := ReadAttendance(strings.NewReader(input), "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2006-01-02")
}

func TestReadAttendanceInvalidStatus(t *testing.T) {
	input := "roll_number,date,status\n12,2025-07-14,vacation\n"

	_, err := ReadAttendance(strings.NewReader(input), "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vacation")
}

func TestReadGridUnsupportedFormat(t *testing.T) {
	_, err := ReadRoster(strings.NewReader("x"), "pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseRoundedInt(t *testing.T) {
	cases := map[string]int{
		"72":   72,
		"72.4": 72,
		"72.5": 73,
		"0":    0,
	}
	for input, want := range cases {
		got, err := parseRoundedInt(input)
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", input)
	}

	_, err := parseRoundedInt("n/a")
	assert.Error(t, err)
}
