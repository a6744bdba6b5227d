// Package timeutil provides timezone utilities for Indian Standard Time
// (UTC+5:30). Attendance dates, the weekly alert window, and report
// timestamps are all anchored to the school's local calendar, so every
// date operation goes through here. No external dependencies - uses only
// standard library.
package timeutil

import (
	"fmt"
	"time"
)

// IST is Indian Standard Time (UTC+5:30, no DST).
var IST = time.FixedZone("Asia/Kolkata", 5*60*60+30*60)

// Now returns the current time in IST.
func Now() time.Time {
	return time.Now().In(IST)
}

// ToIST converts a time to IST.
func ToIST(t time.Time) time.Time {
	return t.In(IST)
}

// Date creates a time in IST with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, IST)
}

// DateTime creates a time in IST with the given date and time.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, IST)
}

// StartOfDay returns the start of the day (00:00:00) in IST.
func StartOfDay(t time.Time) time.Time {
	local := ToIST(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, IST)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in IST.
func EndOfDay(t time.Time) time.Time {
	local := ToIST(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, IST)
}

// StartOfWeek returns the start of the week (Monday 00:00:00) in IST.
func StartOfWeek(t time.Time) time.Time {
	local := ToIST(t)
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(local.AddDate(0, 0, -(weekday - 1)))
}

// EndOfWeek returns the end of the week (Sunday 23:59:59) in IST.
func EndOfWeek(t time.Time) time.Time {
	return EndOfDay(StartOfWeek(t).AddDate(0, 0, 6))
}

// StartOfMonth returns the start of the month in IST. Fee reminders and
// attendance reports roll over on month boundaries.
func StartOfMonth(t time.Time) time.Time {
	local := ToIST(t)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, IST)
}

// IsToday checks if the given time is today in IST.
func IsToday(t time.Time) bool {
	return IsSameDay(t, Now())
}

// IsSameDay checks if two times are on the same calendar day in IST.
func IsSameDay(t1, t2 time.Time) bool {
	a, b := ToIST(t1), ToIST(t2)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// DaysBetween calculates the number of calendar days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a := StartOfDay(t1)
	b := StartOfDay(t2)
	days := int(b.Sub(a).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// DaysSince calculates the number of days since the given time.
func DaysSince(t time.Time) int {
	return DaysBetween(t, Now())
}

// IsWeekend checks if the given time is on a weekend.
func IsWeekend(t time.Time) bool {
	weekday := ToIST(t).Weekday()
	return weekday == time.Saturday || weekday == time.Sunday
}

// IsSchoolDay checks if the given time is on a school day (Mon-Fri).
func IsSchoolDay(t time.Time) bool {
	return !IsWeekend(t)
}

// NextSchoolDay returns the next school day (skipping weekends).
func NextSchoolDay(t time.Time) time.Time {
	next := ToIST(t).AddDate(0, 0, 1)
	for IsWeekend(next) {
		next = next.AddDate(0, 0, 1)
	}
	return StartOfDay(next)
}

// School hours.
const (
	// SchoolDayStart is when the school day starts (8:00 AM).
	SchoolDayStart = 8
	// SchoolDayEnd is when the school day ends (4:00 PM).
	SchoolDayEnd = 16
)

// IsSchoolHours checks if the given time is within school hours (8:00-16:00).
func IsSchoolHours(t time.Time) bool {
	hour := ToIST(t).Hour()
	return hour >= SchoolDayStart && hour < SchoolDayEnd
}

// IsSafeAlertTime checks if it is appropriate to send alerts to mentors
// and parents (9:00-21:00).
func IsSafeAlertTime(t time.Time) bool {
	hour := ToIST(t).Hour()
	return hour >= 9 && hour < 21
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the standard time format (HH:MM).
	FormatTime = "15:04"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatHumanDate is a human-readable format used in alert emails.
	FormatHumanDate = "2 January 2006"
)

// FormatIST formats a time in IST with the given layout.
func FormatIST(t time.Time, layout string) string {
	return ToIST(t).Format(layout)
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in IST.
func FormatDateStr(t time.Time) string {
	return FormatIST(t, FormatDate)
}

// FormatHumanDateStr formats a time for display in outgoing mail.
func FormatHumanDateStr(t time.Time) string {
	return FormatIST(t, FormatHumanDate)
}

// ParseIST parses a time string in IST.
func ParseIST(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, IST)
}

// ParseDate parses a date string (YYYY-MM-DD) in IST.
func ParseDate(value string) (time.Time, error) {
	return ParseIST(FormatDate, value)
}

// FormatRelative returns a human-readable relative time string for
// "last marked" and "last alerted" displays.
func FormatRelative(t time.Time) string {
	d := Now().Sub(ToIST(t))
	if d < 0 {
		d = -d
	}

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%dd ago", days)
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	default:
		return FormatDateStr(t)
	}
}
