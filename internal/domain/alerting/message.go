package alerting

import (
	"fmt"
	"strings"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// Subject prefixes by risk level. High-risk subjects are deliberately
// blunt so they stand out in a guardian's inbox.
const (
	subjectPrefixHigh   = "[URGENT] Dropout risk alert"
	subjectPrefixMedium = "Early-warning notice"
	subjectPrefixOther  = "Student progress update"
)

// BuildSubject composes the alert subject line for a student.
func BuildSubject(s *student.Student) string {
	prefix := subjectPrefixOther
	switch s.RiskLevel {
	case student.RiskHigh:
		prefix = subjectPrefixHigh
	case student.RiskMedium:
		prefix = subjectPrefixMedium
	}
	return fmt.Sprintf("%s: %s (roll no. %d)", prefix, s.FullName, s.RollNumber)
}

// BuildBody composes the plain-text alert body: the risk classification,
// the metrics behind it, and the suggested intervention.
func BuildBody(s *student.Student, suggestion string, reason Reason) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dear Guardian/Mentor,\n\n")
	fmt.Fprintf(&b, "This is a notification from the student early-warning system.\n\n")
	fmt.Fprintf(&b, "Student:         %s\n", s.FullName)
	fmt.Fprintf(&b, "Roll number:     %d\n", s.RollNumber)
	fmt.Fprintf(&b, "Class:           %d\n", s.Class)
	fmt.Fprintf(&b, "Risk level:      %s\n", strings.ToUpper(s.RiskLevel.String()))
	fmt.Fprintf(&b, "Attendance:      %d%%\n", s.AttendancePct)
	fmt.Fprintf(&b, "Average score:   %d\n", s.AverageScore)
	fmt.Fprintf(&b, "Fee status:      %s\n\n", s.FeeStatus)

	switch reason {
	case ReasonWeeklyReview:
		b.WriteString("This alert was raised during the scheduled weekly review of at-risk students.\n\n")
	case ReasonRiskEscalated:
		b.WriteString("This alert was raised because the student's risk level has increased.\n\n")
	case ReasonManual:
		b.WriteString("This alert was sent by a school administrator.\n\n")
	}

	if suggestion != "" {
		fmt.Fprintf(&b, "Recommended action:\n%s\n\n", suggestion)
	}

	b.WriteString("Please contact the class mentor to discuss next steps.\n\n")
	b.WriteString("Vidya Dropout Early-Warning System\n")

	return b.String()
}
