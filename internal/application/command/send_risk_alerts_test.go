package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamvidya/vidya-dropout/internal/domain/alerting"
	"github.com/teamvidya/vidya-dropout/internal/domain/shared"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

func alertableStudent(t *testing.T, id string, roll student.RollNumber, level student.RiskLevel, guardian student.Email) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{
		ID:            id,
		RollNumber:    roll,
		FullName:      "Student " + id,
		Class:         9,
		GuardianEmail: guardian,
	})
	require.NoError(t, err)
	_, err = s.SetRisk(level)
	require.NoError(t, err)
	return s
}

func newAlertsFixture(t *testing.T, cfg SendRiskAlertsHandlerConfig) (*SendRiskAlertsHandler, *memStudentRepo, *memAlertRepo, *stubChannel, *capturingPublisher) {
	t.Helper()
	students := &memStudentRepo{}
	alerts := &memAlertRepo{lastSent: map[string]time.Time{}}
	channel := &stubChannel{}
	publisher := &capturingPublisher{}
	h := NewSendRiskAlertsHandler(students, alerts, channel, publisher, stubGate{ml: true, notify: true}, cfg)
	return h, students, alerts, channel, publisher
}

func TestSendRiskAlertsDefaultsToMediumAndHigh(t *testing.T) {
	h, students, _, channel, publisher := newAlertsFixture(t, SendRiskAlertsHandlerConfig{})
	students.students = []*student.Student{
		alertableStudent(t, "a", 1, student.RiskHigh, "a@example.com"),
		alertableStudent(t, "b", 2, student.RiskMedium, "b@example.com"),
		alertableStudent(t, "c", 3, student.RiskLow, "c@example.com"),
	}

	result, err := h.Handle(context.Background(), SendRiskAlertsCommand{Reason: alerting.ReasonWeeklyReview})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Candidates, "low-risk students are never swept")
	assert.Equal(t, 2, result.Sent)
	assert.Zero(t, result.Failed)
	assert.Len(t, channel.sent, 2)
	assert.Len(t, publisher.ofType(shared.EventAlertSent), 2)
}

func TestSendRiskAlertsHonoursCooldown(t *testing.T) {
	h, students, alerts, channel, _ := newAlertsFixture(t, SendRiskAlertsHandlerConfig{Cooldown: 6 * 24 * time.Hour})
	students.students = []*student.Student{
		alertableStudent(t, "recent", 1, student.RiskHigh, "r@example.com"),
		alertableStudent(t, "stale", 2, student.RiskHigh, "s@example.com"),
	}
	alerts.lastSent["recent"] = time.Now().Add(-2 * 24 * time.Hour)
	alerts.lastSent["stale"] = time.Now().Add(-10 * 24 * time.Hour)

	result, err := h.Handle(context.Background(), SendRiskAlertsCommand{Reason: alerting.ReasonWeeklyReview})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, channel.sent, 1)
	assert.Equal(t, "stale", channel.sent[0].StudentID)
}

func TestSendRiskAlertsForceBypassesCooldown(t *testing.T) {
	h, students, alerts, _, _ := newAlertsFixture(t, SendRiskAlertsHandlerConfig{Cooldown: 6 * 24 * time.Hour})
	students.students = []*student.Student{
		alertableStudent(t, "recent", 1, student.RiskHigh, "r@example.com"),
	}
	alerts.lastSent["recent"] = time.Now().Add(-time.Hour)

	result, err := h.Handle(context.Background(), SendRiskAlertsCommand{Reason: alerting.ReasonManual, Force: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Zero(t, result.Skipped)
}

func TestSendRiskAlertsSkipsStudentsWithoutContacts(t *testing.T) {
	h, students, _, channel, _ := newAlertsFixture(t, SendRiskAlertsHandlerConfig{})
	students.students = []*student.Student{
		alertableStudent(t, "orphan", 1, student.RiskHigh, ""),
	}

	result, err := h.Handle(context.Background(), SendRiskAlertsCommand{Reason: alerting.ReasonWeeklyReview})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, channel.sent)
}

func TestSendRiskAlertsFallsBackToDefaultRecipient(t *testing.T) {
	h, students, _, channel, _ := newAlertsFixture(t, SendRiskAlertsHandlerConfig{DefaultRecipient: "office@school.example"})
	students.students = []*student.Student{
		alertableStudent(t, "orphan", 1, student.RiskHigh, ""),
	}

	result, err := h.Handle(context.Background(), SendRiskAlertsCommand{Reason: alerting.ReasonWeeklyReview})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	require.Len(t, channel.sent, 1)
	assert.Equal(t, "office@school.example", channel.sent[0].Recipient)
}

func TestSendRiskAlertsDisabledByFeatureFlag(t *testing.T) {
	students := &memStudentRepo{students: []*student.Student{
		alertableStudent(t, "a", 1, student.RiskHigh, "a@example.com"),
	}}
	channel := &stubChannel{}
	h := NewSendRiskAlertsHandler(students, &memAlertRepo{}, channel, nil, stubGate{ml: true, notify: false}, SendRiskAlertsHandlerConfig{})

	result, err := h.Handle(context.Background(), SendRiskAlertsCommand{Reason: alerting.ReasonWeeklyReview})
	require.NoError(t, err)

	assert.Zero(t, result.Candidates)
	assert.Empty(t, channel.sent)
}

func TestSendRiskAlertsCountsDeliveryFailures(t *testing.T) {
	h, students, alerts, channel, publisher := newAlertsFixture(t, SendRiskAlertsHandlerConfig{})
	channel.fail = true
	students.students = []*student.Student{
		alertableStudent(t, "a", 1, student.RiskHigh, "a@example.com"),
	}

	result, err := h.Handle(context.Background(), SendRiskAlertsCommand{Reason: alerting.ReasonWeeklyReview})
	require.NoError(t, err, "a delivery failure must not abort the batch")

	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Sent)
	require.Len(t, alerts.alerts, 1)
	assert.Equal(t, alerting.StatusFailed, alerts.alerts[0].Status)
	assert.Len(t, publisher.ofType(shared.EventAlertFailed), 1)
}

func TestSendRiskAlertsOnePerRecipient(t *testing.T) {
	h, students, _, channel, _ := newAlertsFixture(t, SendRiskAlertsHandlerConfig{})
	s := alertableStudent(t, "a", 1, student.RiskHigh, "guardian@example.com")
	s.MentorEmail = "mentor@example.com"
	students.students = []*student.Student{s}

	result, err := h.Handle(context.Background(), SendRiskAlertsCommand{Reason: alerting.ReasonWeeklyReview})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Sent)
	require.Len(t, channel.sent, 2)
	assert.Equal(t, "guardian@example.com", channel.sent[0].Recipient)
	assert.Equal(t, "mentor@example.com", channel.sent[1].Recipient)
}

func TestAlertStudentReportsFailures(t *testing.T) {
	h, _, _, channel, _ := newAlertsFixture(t, SendRiskAlertsHandlerConfig{})
	channel.fail = true
	s := alertableStudent(t, "a", 1, student.RiskHigh, "a@example.com")

	sent, err := h.AlertStudent(context.Background(), s, alerting.ReasonRiskEscalated, true)
	assert.Error(t, err)
	assert.Zero(t, sent)
}
