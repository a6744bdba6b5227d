package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordTruncatesToDay(t *testing.T) {
	stamp := time.Date(2025, 7, 14, 13, 45, 12, 0, time.UTC)

	rec, err := NewRecord("stu-1", stamp, StatusPresent)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.False(t, rec.MarkedAt.IsZero())
}

func TestNewRecordValidation(t *testing.T) {
	now := time.Now().UTC()

	_, err := NewRecord("", now, StatusPresent)
	assert.ErrorIs(t, err, ErrMissingStudentID)

	_, err = NewRecord("stu-1", time.Time{}, StatusPresent)
	assert.ErrorIs(t, err, ErrZeroDate)

	_, err = NewRecord("stu-1", now, Status("vacation"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = NewRecord("stu-1", now.Add(48*time.Hour), StatusPresent)
	assert.ErrorIs(t, err, ErrFutureDate)
}

func TestStatusCounting(t *testing.T) {
	assert.True(t, StatusPresent.CountsAsPresent())
	assert.True(t, StatusLate.CountsAsPresent(), "late arrivals still attended")
	assert.False(t, StatusAbsent.CountsAsPresent())
	assert.False(t, StatusExcused.CountsAsPresent())

	assert.True(t, StatusAbsent.CountsTowardTotal())
	assert.False(t, StatusExcused.CountsTowardTotal(), "excused days must not penalise the ratio")
}

func TestSummaryPct(t *testing.T) {
	tests := []struct {
		name    string
		summary Summary
		want    int
	}{
		{"empty ledger", Summary{}, 0},
		{"perfect", Summary{TotalDays: 10, Present: 10}, 100},
		{"two thirds rounds up", Summary{TotalDays: 3, Present: 2}, 67},
		{"one third rounds down", Summary{TotalDays: 3, Present: 1}, 33},
		{"only excused days", Summary{DaysMarked: 4}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.summary.Pct())
		})
	}
}

func TestSummarize(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC) }
	records := []Record{
		{StudentID: "a", Date: day(1), Status: StatusPresent},
		{StudentID: "a", Date: day(2), Status: StatusLate},
		{StudentID: "a", Date: day(3), Status: StatusAbsent},
		{StudentID: "a", Date: day(4), Status: StatusExcused},
		{StudentID: "b", Date: day(1), Status: StatusAbsent},
	}

	summaries := Summarize(records)
	require.Len(t, summaries, 2)

	a := summaries["a"]
	assert.Equal(t, 4, a.DaysMarked)
	assert.Equal(t, 3, a.TotalDays, "the excused day leaves the denominator")
	assert.Equal(t, 2, a.Present)
	assert.Equal(t, 67, a.Pct())

	b := summaries["b"]
	assert.Equal(t, 0, b.Present)
	assert.Equal(t, 0, b.Pct())
}
