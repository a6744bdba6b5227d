package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teamvidya/vidya-dropout/internal/domain/advice"
	"github.com/teamvidya/vidya-dropout/internal/domain/alerting"
	"github.com/teamvidya/vidya-dropout/internal/domain/shared"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEND RISK ALERTS COMMAND
// The bulk alert flow: one email per at-risk student to each of their
// recipients. Used by the weekly job and the admin endpoint.
// ══════════════════════════════════════════════════════════════════════════════

// SendRiskAlertsCommand triggers a bulk alert run.
type SendRiskAlertsCommand struct {
	// Reason records why the run happens; it lands in the alert log and
	// the message body.
	Reason alerting.Reason

	// Levels restricts which risk levels are alerted. Empty means
	// medium and high.
	Levels []student.RiskLevel

	// Force bypasses the per-student cooldown.
	Force bool
}

// SendRiskAlertsResult contains the outcome of an alert run.
type SendRiskAlertsResult struct {
	// Candidates is the number of at-risk students found.
	Candidates int

	// Sent is the number of alerts delivered.
	Sent int

	// Failed is the number of alerts whose delivery failed.
	Failed int

	// Skipped is the number of alerts suppressed (cooldown, no
	// recipient, notifications disabled).
	Skipped int

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is how long the run took.
	Duration time.Duration
}

// SendRiskAlertsHandlerConfig contains configuration for the handler.
type SendRiskAlertsHandlerConfig struct {
	// Cooldown is the minimum interval between alerts for one student.
	Cooldown time.Duration

	// DefaultRecipient receives alerts for students without contacts.
	// Empty means such students are skipped.
	DefaultRecipient string
}

// DefaultSendRiskAlertsHandlerConfig returns default configuration.
func DefaultSendRiskAlertsHandlerConfig() SendRiskAlertsHandlerConfig {
	return SendRiskAlertsHandlerConfig{
		Cooldown: 6 * 24 * time.Hour,
	}
}

// SendRiskAlertsHandler handles the SendRiskAlertsCommand.
type SendRiskAlertsHandler struct {
	studentRepo    student.Repository
	alertRepo      alerting.Repository
	channel        alerting.Channel
	eventPublisher shared.EventPublisher
	features       FeatureGate
	config         SendRiskAlertsHandlerConfig
}

// NewSendRiskAlertsHandler creates a new SendRiskAlertsHandler.
func NewSendRiskAlertsHandler(
	studentRepo student.Repository,
	alertRepo alerting.Repository,
	channel alerting.Channel,
	eventPublisher shared.EventPublisher,
	features FeatureGate,
	config SendRiskAlertsHandlerConfig,
) *SendRiskAlertsHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	if features == nil {
		features = alwaysOnGate{}
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultSendRiskAlertsHandlerConfig().Cooldown
	}

	return &SendRiskAlertsHandler{
		studentRepo:    studentRepo,
		alertRepo:      alertRepo,
		channel:        channel,
		eventPublisher: eventPublisher,
		features:       features,
		config:         config,
	}
}

// Handle executes the bulk alert run. One student's failure never aborts
// the rest of the batch.
func (h *SendRiskAlertsHandler) Handle(ctx context.Context, cmd SendRiskAlertsCommand) (*SendRiskAlertsResult, error) {
	result := &SendRiskAlertsResult{StartedAt: time.Now().UTC()}

	if !h.features.NotificationsEnabled() {
		result.Duration = time.Since(result.StartedAt)
		return result, nil
	}

	levels := cmd.Levels
	if len(levels) == 0 {
		levels = []student.RiskLevel{student.RiskHigh, student.RiskMedium}
	}

	students, err := h.studentRepo.GetByRiskLevels(ctx, levels)
	if err != nil {
		return nil, fmt.Errorf("send_risk_alerts: failed to load at-risk students: %w", err)
	}

	result.Candidates = len(students)

	for _, s := range students {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		h.alertStudent(ctx, s, cmd, result)
	}

	result.Duration = time.Since(result.StartedAt)
	return result, nil
}

// AlertStudent raises and delivers alerts for a single student. The
// escalation event handler uses this path for immediate notifications.
func (h *SendRiskAlertsHandler) AlertStudent(ctx context.Context, s *student.Student, reason alerting.Reason, force bool) (sent int, err error) {
	result := &SendRiskAlertsResult{StartedAt: time.Now().UTC()}
	if !h.features.NotificationsEnabled() {
		return 0, nil
	}
	h.alertStudent(ctx, s, SendRiskAlertsCommand{Reason: reason, Force: force}, result)
	if result.Failed > 0 {
		return result.Sent, fmt.Errorf("send_risk_alerts: %d of %d deliveries failed for student %s",
			result.Failed, result.Failed+result.Sent, s.ID)
	}
	return result.Sent, nil
}

func (h *SendRiskAlertsHandler) alertStudent(ctx context.Context, s *student.Student, cmd SendRiskAlertsCommand, result *SendRiskAlertsResult) {
	if !cmd.Force {
		lastSent, err := h.alertRepo.LastSentAt(ctx, s.ID)
		if err == nil && !lastSent.IsZero() && time.Since(lastSent) < h.config.Cooldown {
			result.Skipped++
			return
		}
	}

	recipients := s.AlertRecipients()
	if len(recipients) == 0 {
		if h.config.DefaultRecipient == "" {
			result.Skipped++
			return
		}
		recipients = []student.Email{student.Email(h.config.DefaultRecipient)}
	}

	subject := alerting.BuildSubject(s)
	body := alerting.BuildBody(s, advice.For(s), cmd.Reason)

	for _, recipient := range recipients {
		alert, err := alerting.NewAlert(alerting.NewAlertParams{
			ID:        uuid.New().String(),
			Student:   s,
			Reason:    cmd.Reason,
			Channel:   h.channel.Type(),
			Recipient: recipient.String(),
			Subject:   subject,
			Body:      body,
		})
		if err != nil {
			result.Skipped++
			continue
		}

		if err := h.alertRepo.Create(ctx, alert); err != nil {
			result.Failed++
			continue
		}

		delivery := h.channel.Send(ctx, alert)
		alert.RecordAttempt(delivery)

		if err := h.alertRepo.Update(ctx, alert); err != nil {
			// The attempt happened; count it by its outcome even when
			// the log write fails.
			_ = err
		}

		if delivery.Success {
			result.Sent++
		} else {
			result.Failed++
		}

		_ = h.eventPublisher.Publish(ctx,
			shared.NewAlertDeliveredEvent(alert.ID, s.ID, alert.Recipient, delivery.Success))
	}
}
