// Package alerting contains the alert domain: messages sent to guardians
// and mentors when a student's dropout risk calls for intervention.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL
// ══════════════════════════════════════════════════════════════════════════════

// ChannelType identifies a delivery channel.
type ChannelType string

const (
	// ChannelEmail - delivery over SMTP.
	ChannelEmail ChannelType = "email"

	// ChannelWebhook - delivery to an external endpoint (future).
	ChannelWebhook ChannelType = "webhook"
)

// IsValid reports whether the channel type is known.
func (ct ChannelType) IsValid() bool {
	switch ct {
	case ChannelEmail, ChannelWebhook:
		return true
	default:
		return false
	}
}

// String returns the channel type as a plain string.
func (ct ChannelType) String() string {
	return string(ct)
}

// DeliveryResult is the outcome of one delivery attempt.
type DeliveryResult struct {
	// Success - whether the message was accepted by the channel.
	Success bool

	// Channel - the channel that attempted delivery.
	Channel ChannelType

	// DeliveredAt - time of the attempt.
	DeliveredAt time.Time

	// Error - delivery error when Success is false.
	Error error

	// Retryable - whether a later attempt could succeed.
	Retryable bool
}

// NewSuccessResult builds a successful delivery result.
func NewSuccessResult(channel ChannelType) DeliveryResult {
	return DeliveryResult{
		Success:     true,
		Channel:     channel,
		DeliveredAt: time.Now().UTC(),
	}
}

// NewFailureResult builds a failed delivery result.
func NewFailureResult(channel ChannelType, err error, retryable bool) DeliveryResult {
	return DeliveryResult{
		Success:     false,
		Channel:     channel,
		DeliveredAt: time.Now().UTC(),
		Error:       err,
		Retryable:   retryable,
	}
}

// Channel delivers alerts. Implementations live in infrastructure.
type Channel interface {
	// Type returns the channel's type.
	Type() ChannelType

	// Send delivers one alert and reports the result. A non-nil error is
	// reserved for channel-level failures; per-message failures are
	// carried in the result.
	Send(ctx context.Context, alert *Alert) DeliveryResult
}

// ══════════════════════════════════════════════════════════════════════════════
// ALERT ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	// StatusPending - created, not yet attempted.
	StatusPending AlertStatus = "pending"
	// StatusSent - accepted by the channel.
	StatusSent AlertStatus = "sent"
	// StatusFailed - all attempts exhausted.
	StatusFailed AlertStatus = "failed"
	// StatusSkipped - suppressed (cooldown, no recipients, or feature off).
	StatusSkipped AlertStatus = "skipped"
)

// IsValid reports whether the status is known.
func (s AlertStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Reason explains why an alert was raised.
type Reason string

const (
	// ReasonWeeklyReview - scheduled weekly at-risk sweep.
	ReasonWeeklyReview Reason = "weekly_review"
	// ReasonRiskEscalated - risk level rose during recomputation.
	ReasonRiskEscalated Reason = "risk_escalated"
	// ReasonManual - triggered by an operator through the API.
	ReasonManual Reason = "manual"
)

// Alert is one notification about one student to one recipient.
type Alert struct {
	// ID - unique identifier (UUID string).
	ID string

	// StudentID - the student the alert concerns.
	StudentID string

	// RollNumber - denormalised for message templates and log lines.
	RollNumber student.RollNumber

	// StudentName - denormalised display name.
	StudentName string

	// RiskLevel - the level at the time the alert was raised.
	RiskLevel student.RiskLevel

	// Reason - why the alert was raised.
	Reason Reason

	// Channel - how the alert is delivered.
	Channel ChannelType

	// Recipient - destination address.
	Recipient string

	// Subject - message subject line.
	Subject string

	// Body - plain-text message body.
	Body string

	// Status - lifecycle state.
	Status AlertStatus

	// Attempts - number of delivery attempts made.
	Attempts int

	// LastError - most recent delivery error text.
	LastError string

	// CreatedAt - when the alert was raised.
	CreatedAt time.Time

	// SentAt - when delivery succeeded (zero until then).
	SentAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidChannel - unknown channel type.
	ErrInvalidChannel = errors.New("invalid alert channel")

	// ErrMissingRecipient - alert with no destination.
	ErrMissingRecipient = errors.New("alert requires a recipient")

	// ErrMissingStudent - alert without a student reference.
	ErrMissingStudent = errors.New("alert requires a student id")

	// ErrAlertNotFound - alert does not exist.
	ErrAlertNotFound = errors.New("alert not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY
// ══════════════════════════════════════════════════════════════════════════════

// NewAlertParams holds the parameters for raising an alert.
type NewAlertParams struct {
	ID        string
	Student   *student.Student
	Reason    Reason
	Channel   ChannelType
	Recipient string
	Subject   string
	Body      string
}

// NewAlert creates a pending alert with validated fields.
func NewAlert(params NewAlertParams) (*Alert, error) {
	if params.ID == "" {
		return nil, errors.New("alert id is required")
	}
	if params.Student == nil || params.Student.ID == "" {
		return nil, ErrMissingStudent
	}
	if !params.Channel.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChannel, params.Channel)
	}
	if params.Recipient == "" {
		return nil, ErrMissingRecipient
	}

	return &Alert{
		ID:          params.ID,
		StudentID:   params.Student.ID,
		RollNumber:  params.Student.RollNumber,
		StudentName: params.Student.FullName,
		RiskLevel:   params.Student.RiskLevel,
		Reason:      params.Reason,
		Channel:     params.Channel,
		Recipient:   params.Recipient,
		Subject:     params.Subject,
		Body:        params.Body,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttempt folds a delivery result into the alert's state.
func (a *Alert) RecordAttempt(result DeliveryResult) {
	a.Attempts++
	if result.Success {
		a.Status = StatusSent
		a.SentAt = result.DeliveredAt
		a.LastError = ""
		return
	}

	a.Status = StatusFailed
	if result.Error != nil {
		a.LastError = result.Error.Error()
	}
}

// Skip marks the alert as suppressed with a reason.
func (a *Alert) Skip(why string) {
	a.Status = StatusSkipped
	a.LastError = why
}

// String returns a compact representation for logging.
func (a *Alert) String() string {
	return fmt.Sprintf("Alert{ID: %s, Student: %s, Risk: %s, To: %s, Status: %s}",
		a.ID, a.StudentID, a.RiskLevel, a.Recipient, a.Status)
}
