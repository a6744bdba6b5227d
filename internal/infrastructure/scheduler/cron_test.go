package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpressionFieldCount(t *testing.T) {
	_, err := ParseCronExpression("0 9 * *")
	assert.Error(t, err)

	_, err = ParseCronExpression("0 9 * * 1 extra")
	assert.Error(t, err)
}

func TestParseCronExpressionInvalidValues(t *testing.T) {
	cases := []string{
		"60 * * * *",  // minute out of range
		"* 24 * * *",  // hour out of range
		"* * * * 7",   // weekday out of range
		"*/0 * * * *", // zero step
		"abc * * * *",
	}

	for _, expr := range cases {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, "expression %q should not parse", expr)
	}
}

func TestCronNextWeeklyMonday(t *testing.T) {
	ce, err := ParseCronExpression(EveryMonday9AM)
	require.NoError(t, err)

	// Wednesday 2025-07-16, 14:30
	after := time.Date(2025, 7, 16, 14, 30, 0, 0, time.UTC)
	next := ce.Next(after)

	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.Equal(t, time.Date(2025, 7, 21, 9, 0, 0, 0, time.UTC), next)
}

func TestCronNextSameDayBeforeFireTime(t *testing.T) {
	ce := MustParseCronExpression(EveryMonday9AM)

	// Monday 2025-07-14, 08:00 - should fire one hour later, same day.
	after := time.Date(2025, 7, 14, 8, 0, 0, 0, time.UTC)
	next := ce.Next(after)

	assert.Equal(t, time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC), next)
}

func TestCronNextStepExpression(t *testing.T) {
	ce := MustParseCronExpression("*/15 * * * *")

	after := time.Date(2025, 7, 14, 10, 7, 0, 0, time.UTC)
	next := ce.Next(after)
	assert.Equal(t, 15, next.Minute())

	next = ce.Next(next)
	assert.Equal(t, 30, next.Minute())
}

func TestCronNextRespectsLocation(t *testing.T) {
	ist := time.FixedZone("Asia/Kolkata", 5*3600+30*60)
	ce := MustParseCronExpression(EveryDay9AM)

	// 08:59 IST should fire at 09:00 IST, not 09:00 UTC.
	after := time.Date(2025, 7, 14, 8, 59, 0, 0, ist)
	next := ce.Next(after)

	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, ist.String(), next.Location().String())
}

func TestIntervalScheduleNext(t *testing.T) {
	s := NewIntervalSchedule(time.Hour)

	now := time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(time.Hour), s.Next(now))
	assert.Equal(t, "@every 1h0m0s", s.String())
}
