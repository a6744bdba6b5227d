// Package advice turns a student's risk profile into a concrete
// intervention suggestion for mentors.
package advice

import (
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// Thresholds separating the medium-risk explanations. A medium-risk
// student below the attendance line gets an attendance-focused suggestion;
// below the score line, an academic one; otherwise a general check-in.
const (
	attendanceConcernBelow = 75
	scoreConcernBelow      = 60
)

// Suggestion texts, keyed by the dominant concern.
const (
	suggestionHealthy = "Student is performing well. Continue to provide " +
		"encouragement and monitor progress."

	suggestionHigh = "High priority: the model predicts a high risk. This " +
		"student's low attendance and scores require immediate intervention. " +
		"Recommend a parent-teacher meeting to discuss a personalized " +
		"support plan."

	suggestionMediumAttendance = "The model predicts a medium risk, " +
		"primarily due to low attendance. A follow-up conversation is needed " +
		"to understand the reasons for absence and reinforce the importance " +
		"of regular classes."

	suggestionMediumScores = "The model predicts a medium risk because " +
		"academic scores are dropping. Suggest scheduling extra tutorial " +
		"sessions and focusing on weaker subjects."

	suggestionMediumGeneral = "The model predicts a medium risk. While " +
		"individual metrics aren't critical, the overall pattern is " +
		"concerning. Recommend a check-in to discuss any challenges the " +
		"student may be facing."
)

// For returns the mentor suggestion for a student's current profile.
func For(s *student.Student) string {
	switch s.RiskLevel {
	case student.RiskHigh:
		return suggestionHigh
	case student.RiskMedium:
		switch {
		case int(s.AttendancePct) < attendanceConcernBelow:
			return suggestionMediumAttendance
		case int(s.AverageScore) < scoreConcernBelow:
			return suggestionMediumScores
		default:
			return suggestionMediumGeneral
		}
	default:
		return suggestionHealthy
	}
}
