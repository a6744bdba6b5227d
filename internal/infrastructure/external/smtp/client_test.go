package smtp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamvidya/vidya-dropout/internal/domain/alerting"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

func testAlert(t *testing.T) *alerting.Alert {
	t.Helper()

	s, err := student.NewStudent(student.NewStudentParams{
		ID:            "s-1",
		RollNumber:    12,
		FullName:      "Asha Verma",
		Class:         9,
		GuardianEmail: "guardian@example.com",
	})
	require.NoError(t, err)
	_, err = s.SetRisk(student.RiskHigh)
	require.NoError(t, err)

	alert, err := alerting.NewAlert(alerting.NewAlertParams{
		ID:        "a-1",
		Student:   s,
		Reason:    alerting.ReasonWeeklyReview,
		Channel:   alerting.ChannelEmail,
		Recipient: "guardian@example.com",
		Subject:   alerting.BuildSubject(s),
		Body:      alerting.BuildBody(s, "meet the mentor", alerting.ReasonWeeklyReview),
	})
	require.NoError(t, err)
	return alert
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendDisabledReportsSuccess(t *testing.T) {
	client := NewClient(ClientConfig{
		Host:     "mail.example.com",
		From:     "alerts@vidya.school",
		Disabled: true,
		Logger:   quietLogger(),
	})

	result := client.Send(context.Background(), testAlert(t))

	assert.True(t, result.Success)
	assert.Equal(t, alerting.ChannelEmail, result.Channel)
}

func TestSendBuildsWellFormedMessage(t *testing.T) {
	var captured []byte
	var capturedTo []string

	client := NewClient(ClientConfig{
		Host:   "mail.example.com",
		Port:   587,
		From:   "alerts@vidya.school",
		Logger: quietLogger(),
	})
	client.sendMail = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		captured = msg
		capturedTo = to
		return nil
	}

	alert := testAlert(t)
	result := client.Send(context.Background(), alert)

	require.True(t, result.Success)
	assert.Equal(t, []string{"guardian@example.com"}, capturedTo)

	text := string(captured)
	assert.Contains(t, text, "From: alerts@vidya.school\r\n")
	assert.Contains(t, text, "To: guardian@example.com\r\n")
	assert.Contains(t, text, "Subject: [URGENT] Dropout risk alert: Asha Verma (roll no. 12)\r\n")
	assert.Contains(t, text, "Risk level:      HIGH")

	// Headers end before the body starts.
	headerEnd := strings.Index(text, "\r\n\r\n")
	require.Positive(t, headerEnd)
	assert.Contains(t, text[headerEnd:], "Dear Guardian/Mentor,")
}

func TestSendFailureIsReportedNotReturned(t *testing.T) {
	client := NewClient(ClientConfig{
		Host:   "mail.example.com",
		From:   "alerts@vidya.school",
		Logger: quietLogger(),
	})
	client.sendMail = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("454 relay unavailable")
	}

	result := client.Send(context.Background(), testAlert(t))

	assert.False(t, result.Success)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "relay unavailable")
}

func TestSanitizeHeaderStripsNewlines(t *testing.T) {
	assert.Equal(t, "a b c", sanitizeHeader("a\r\nb\nc"))
}
