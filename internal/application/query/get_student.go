package query

import (
	"context"
	"fmt"
	"strconv"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentHandler returns one student's profile.
type GetStudentHandler struct {
	repo student.Repository
}

// NewGetStudentHandler creates a new GetStudentHandler.
func NewGetStudentHandler(repo student.Repository) *GetStudentHandler {
	return &GetStudentHandler{repo: repo}
}

// Handle resolves the reference and returns the profile. A reference
// that parses as a number is treated as a roll number, anything else as
// the internal ID; the dashboard links by roll, integrations by ID.
func (h *GetStudentHandler) Handle(ctx context.Context, ref string) (*StudentView, error) {
	var (
		s   *student.Student
		err error
	)

	if roll, convErr := strconv.Atoi(ref); convErr == nil {
		s, err = h.repo.GetByRollNumber(ctx, student.RollNumber(roll))
	} else {
		s, err = h.repo.GetByID(ctx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("get_student: %w", err)
	}

	view := NewStudentView(s)
	return &view, nil
}
