package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToISTOffset(t *testing.T) {
	utc := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)
	ist := ToIST(utc)

	assert.Equal(t, 5, ist.Hour())
	assert.Equal(t, 30, ist.Minute())
}

func TestIsSameDayAcrossMidnightUTC(t *testing.T) {
	// 19:30 UTC is already 01:00 the next day in IST.
	lateUTC := time.Date(2025, 7, 14, 19, 30, 0, 0, time.UTC)
	nextIST := Date(2025, 7, 15)

	assert.True(t, IsSameDay(lateUTC, nextIST))
	assert.False(t, IsSameDay(lateUTC, Date(2025, 7, 14)))
}

func TestStartAndEndOfDay(t *testing.T) {
	at := DateTime(2025, 7, 14, 13, 45, 12)

	start := StartOfDay(at)
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, 14, start.Day())

	end := EndOfDay(at)
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 14, end.Day())
}

func TestStartOfWeekIsMonday(t *testing.T) {
	// 2025-07-16 is a Wednesday; the week starts Monday the 14th.
	wednesday := Date(2025, 7, 16)
	start := StartOfWeek(wednesday)
	assert.Equal(t, time.Monday, start.Weekday())
	assert.Equal(t, 14, start.Day())

	// Sunday belongs to the week that began the previous Monday.
	sunday := Date(2025, 7, 20)
	assert.Equal(t, 14, StartOfWeek(sunday).Day())

	end := EndOfWeek(wednesday)
	assert.Equal(t, time.Sunday, end.Weekday())
	assert.Equal(t, 20, end.Day())
}

func TestDaysBetween(t *testing.T) {
	a := Date(2025, 7, 14)
	b := Date(2025, 7, 20)

	assert.Equal(t, 6, DaysBetween(a, b))
	assert.Equal(t, 6, DaysBetween(b, a), "order does not matter")
	assert.Equal(t, 0, DaysBetween(a, DateTime(2025, 7, 14, 23, 0, 0)))
}

func TestSchoolDays(t *testing.T) {
	saturday := Date(2025, 7, 19)
	friday := Date(2025, 7, 18)

	assert.True(t, IsWeekend(saturday))
	assert.False(t, IsSchoolDay(saturday))
	assert.True(t, IsSchoolDay(friday))

	// Friday's next school day skips the weekend.
	next := NextSchoolDay(friday)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 21, next.Day())
}

func TestSchoolHoursAndAlertWindow(t *testing.T) {
	assert.True(t, IsSchoolHours(DateTime(2025, 7, 14, 10, 0, 0)))
	assert.False(t, IsSchoolHours(DateTime(2025, 7, 14, 16, 0, 0)))
	assert.False(t, IsSchoolHours(DateTime(2025, 7, 14, 7, 59, 0)))

	assert.True(t, IsSafeAlertTime(DateTime(2025, 7, 14, 20, 59, 0)))
	assert.False(t, IsSafeAlertTime(DateTime(2025, 7, 14, 21, 0, 0)))
	assert.False(t, IsSafeAlertTime(DateTime(2025, 7, 14, 6, 30, 0)))
}

func TestParseAndFormatRoundTrip(t *testing.T) {
	parsed, err := ParseDate("2025-07-14")
	require.NoError(t, err)

	assert.Equal(t, "2025-07-14", FormatDateStr(parsed))
	assert.Equal(t, "14 July 2025", FormatHumanDateStr(parsed))

	_, err = ParseDate("14/07/2025")
	assert.Error(t, err)
}

func TestFormatRelative(t *testing.T) {
	now := Now()

	assert.Equal(t, "just now", FormatRelative(now.Add(-30*time.Second)))
	assert.Equal(t, "5m ago", FormatRelative(now.Add(-5*time.Minute)))
	assert.Equal(t, "3h ago", FormatRelative(now.Add(-3*time.Hour)))
	assert.Equal(t, "yesterday", FormatRelative(now.Add(-25*time.Hour)))
	assert.Equal(t, "3d ago", FormatRelative(now.Add(-3*24*time.Hour)))
	assert.Equal(t, "2w ago", FormatRelative(now.Add(-15*24*time.Hour)))
}
