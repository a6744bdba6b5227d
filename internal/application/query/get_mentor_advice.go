package query

import (
	"context"
	"fmt"

	"github.com/teamvidya/vidya-dropout/internal/domain/advice"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// MENTOR ADVICE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// MentorAdvice is the suggestion payload for one student.
type MentorAdvice struct {
	StudentID  string `json:"student_id"`
	RollNumber int    `json:"roll_number"`
	FullName   string `json:"full_name"`
	RiskLevel  string `json:"risk_level"`
	Suggestion string `json:"suggestion"`
}

// GetMentorAdviceHandler handles the mentor advice query.
type GetMentorAdviceHandler struct {
	repo student.Repository
}

// NewGetMentorAdviceHandler creates a new GetMentorAdviceHandler.
func NewGetMentorAdviceHandler(repo student.Repository) *GetMentorAdviceHandler {
	return &GetMentorAdviceHandler{repo: repo}
}

// Handle returns the intervention suggestion for one student.
// Passes through student.ErrStudentNotFound for unknown IDs.
func (h *GetMentorAdviceHandler) Handle(ctx context.Context, studentID string) (*MentorAdvice, error) {
	s, err := h.repo.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get_mentor_advice: %w", err)
	}

	return &MentorAdvice{
		StudentID:  s.ID,
		RollNumber: int(s.RollNumber),
		FullName:   s.FullName,
		RiskLevel:  s.RiskLevel.String(),
		Suggestion: advice.For(s),
	}, nil
}
