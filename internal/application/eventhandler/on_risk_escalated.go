// Package eventhandler contains domain event handlers.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teamvidya/vidya-dropout/internal/application/command"
	"github.com/teamvidya/vidya-dropout/internal/domain/alerting"
	"github.com/teamvidya/vidya-dropout/internal/domain/shared"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON RISK ESCALATED HANDLER
// Fires an immediate alert when recomputation pushes a student to high
// risk, instead of waiting for the Monday sweep. The weekly review stays
// the safety net; this handler shortens the reaction time for the cases
// where a week is too long.
// ══════════════════════════════════════════════════════════════════════════════

// OnRiskEscalatedHandler reacts to risk escalation events.
type OnRiskEscalatedHandler struct {
	studentRepo student.Repository
	alerts      *command.SendRiskAlertsHandler
	logger      *slog.Logger

	// onlyHigh limits immediate alerts to the high level; medium-risk
	// students wait for the weekly review.
	onlyHigh bool
}

// NewOnRiskEscalatedHandler creates a new OnRiskEscalatedHandler.
func NewOnRiskEscalatedHandler(
	studentRepo student.Repository,
	alerts *command.SendRiskAlertsHandler,
	logger *slog.Logger,
) *OnRiskEscalatedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnRiskEscalatedHandler{
		studentRepo: studentRepo,
		alerts:      alerts,
		logger:      logger.With("handler", "on_risk_escalated"),
		onlyHigh:    true,
	}
}

// InterestedIn implements shared.EventHandler.
func (h *OnRiskEscalatedHandler) InterestedIn() []shared.EventType {
	return []shared.EventType{shared.EventRiskEscalated}
}

// Handle implements shared.EventHandler.
func (h *OnRiskEscalatedHandler) Handle(ctx context.Context, event shared.Event) error {
	riskEvent, ok := event.(*shared.RiskChangedEvent)
	if !ok {
		h.logger.Warn("received unexpected event type",
			"event_type", event.EventType(),
		)
		return nil
	}

	if h.onlyHigh && riskEvent.NewLevel != student.RiskHigh {
		return nil
	}

	s, err := h.studentRepo.GetByID(ctx, riskEvent.StudentID)
	if err != nil {
		return fmt.Errorf("on_risk_escalated: get student: %w", err)
	}

	// The risk may have been recomputed again between publish and
	// handling; trust the current state, not the event.
	if !s.NeedsIntervention() {
		h.logger.Info("escalation no longer applies, skipping alert",
			"student_id", s.ID,
			"risk_level", s.RiskLevel.String(),
		)
		return nil
	}

	sent, err := h.alerts.AlertStudent(ctx, s, alerting.ReasonRiskEscalated, false)
	if err != nil {
		return fmt.Errorf("on_risk_escalated: alert student %s: %w", s.ID, err)
	}

	h.logger.Info("escalation alert processed",
		"student_id", s.ID,
		"roll_number", int(s.RollNumber),
		"previous_level", riskEvent.PreviousLevel.String(),
		"new_level", riskEvent.NewLevel.String(),
		"alerts_sent", sent,
	)

	return nil
}
