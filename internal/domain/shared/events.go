// Package shared contains domain types used across all domain packages:
// events and the publishing port.
package shared

import (
	"context"
	"time"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// EventType represents the type of a domain event.
type EventType string

const (
	// Student events
	EventStudentRegistered EventType = "student.registered"
	EventStudentLeft       EventType = "student.left"

	// Risk events
	EventRiskChanged   EventType = "risk.changed"
	EventRiskEscalated EventType = "risk.escalated"
	EventModelTrained  EventType = "risk.model_trained"

	// Attendance events
	EventAttendanceMarked EventType = "attendance.marked"

	// Alerting events
	EventAlertSent   EventType = "alert.sent"
	EventAlertFailed EventType = "alert.failed"

	// System events
	EventProfilesRecomputed EventType = "system.profiles_recomputed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced the event.
	AggregateID() string
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event.
func (e BaseEvent) EventType() EventType { return e.Type }

// OccurredAt implements Event.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID implements Event.
func (e BaseEvent) AggregateID() string { return e.AggregateId }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONCRETE EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// RiskChangedEvent fires when recomputation assigns a different risk level.
type RiskChangedEvent struct {
	BaseEvent
	StudentID     string            `json:"student_id"`
	RollNumber    int               `json:"roll_number"`
	PreviousLevel student.RiskLevel `json:"previous_level"`
	NewLevel      student.RiskLevel `json:"new_level"`
}

// NewRiskChangedEvent creates a risk change event. When the new level is
// more severe than the previous one, the event type is EventRiskEscalated.
func NewRiskChangedEvent(s *student.Student, previous student.RiskLevel) *RiskChangedEvent {
	eventType := EventRiskChanged
	if s.RiskLevel.Severity() > previous.Severity() {
		eventType = EventRiskEscalated
	}
	return &RiskChangedEvent{
		BaseEvent:     NewBaseEvent(eventType, s.ID),
		StudentID:     s.ID,
		RollNumber:    int(s.RollNumber),
		PreviousLevel: previous,
		NewLevel:      s.RiskLevel,
	}
}

// Escalated reports whether the change increased severity.
func (e *RiskChangedEvent) Escalated() bool {
	return e.NewLevel.Severity() > e.PreviousLevel.Severity()
}

// AttendanceMarkedEvent fires after a batch of attendance records lands.
type AttendanceMarkedEvent struct {
	BaseEvent
	Date    time.Time `json:"date"`
	Records int       `json:"records"`
}

// NewAttendanceMarkedEvent creates an attendance event.
func NewAttendanceMarkedEvent(date time.Time, records int) *AttendanceMarkedEvent {
	return &AttendanceMarkedEvent{
		BaseEvent: NewBaseEvent(EventAttendanceMarked, date.Format("2006-01-02")),
		Date:      date,
		Records:   records,
	}
}

// AlertDeliveredEvent fires after an alert delivery attempt settles.
type AlertDeliveredEvent struct {
	BaseEvent
	AlertID   string `json:"alert_id"`
	StudentID string `json:"student_id"`
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
}

// NewAlertDeliveredEvent creates an alert outcome event.
func NewAlertDeliveredEvent(alertID, studentID, recipient string, success bool) *AlertDeliveredEvent {
	eventType := EventAlertSent
	if !success {
		eventType = EventAlertFailed
	}
	return &AlertDeliveredEvent{
		BaseEvent: NewBaseEvent(eventType, alertID),
		AlertID:   alertID,
		StudentID: studentID,
		Recipient: recipient,
		Success:   success,
	}
}

// ModelTrainedEvent fires after a new risk model is fitted and persisted.
type ModelTrainedEvent struct {
	BaseEvent
	TrainedOn int       `json:"trained_on"`
	TrainedAt time.Time `json:"trained_at"`
}

// NewModelTrainedEvent creates a model training event.
func NewModelTrainedEvent(trainedOn int, trainedAt time.Time) *ModelTrainedEvent {
	return &ModelTrainedEvent{
		BaseEvent: NewBaseEvent(EventModelTrained, "risk_model"),
		TrainedOn: trainedOn,
		TrainedAt: trainedAt,
	}
}

// ProfilesRecomputedEvent fires after a full recomputation pass.
type ProfilesRecomputedEvent struct {
	BaseEvent
	StudentsScored int `json:"students_scored"`
	RiskChanges    int `json:"risk_changes"`
}

// NewProfilesRecomputedEvent creates a recomputation summary event.
func NewProfilesRecomputedEvent(scored, changes int) *ProfilesRecomputedEvent {
	return &ProfilesRecomputedEvent{
		BaseEvent:      NewBaseEvent(EventProfilesRecomputed, "profiles"),
		StudentsScored: scored,
		RiskChanges:    changes,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// EventPublisher publishes domain events to interested handlers.
type EventPublisher interface {
	// Publish delivers an event. Implementations must not block the
	// publishing caller on slow handlers.
	Publish(ctx context.Context, event Event) error
}

// EventHandler consumes domain events.
type EventHandler interface {
	// Handle processes one event.
	Handle(ctx context.Context, event Event) error

	// InterestedIn returns the event types the handler subscribes to.
	InterestedIn() []EventType
}

// NoopPublisher discards events. Used where eventing is disabled.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }
