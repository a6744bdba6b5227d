// Package smtp implements the email alert channel. It wraps net/smtp
// with retries and a circuit breaker: school mail relays rate-limit
// aggressively, and a dead relay must not take the weekly sweep down
// with it.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/teamvidya/vidya-dropout/internal/domain/alerting"
	"github.com/teamvidya/vidya-dropout/pkg/circuitbreaker"
	"github.com/teamvidya/vidya-dropout/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the SMTP client.
type ClientConfig struct {
	// Host is the mail relay hostname.
	Host string

	// Port is the relay port (587 for STARTTLS submission).
	Port int

	// Username and Password authenticate against the relay. Empty
	// username skips authentication (local relays).
	Username string
	Password string

	// From is the sender address on outgoing alerts.
	From string

	// SendTimeout bounds one delivery attempt.
	SendTimeout time.Duration

	// Disabled switches the client to log-only mode: alerts are
	// reported as sent but only written to the log. Used in
	// development and tests.
	Disabled bool

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(host, from string) ClientConfig {
	return ClientConfig{
		Host:        host,
		Port:        587,
		From:        from,
		SendTimeout: 15 * time.Second,
	}
}

// Addr returns the relay address in "host:port" format.
func (c ClientConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ErrChannelDisabled marks deliveries suppressed by configuration.
var ErrChannelDisabled = errors.New("smtp: channel disabled")

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client delivers alerts over SMTP. It implements alerting.Channel.
type Client struct {
	config  ClientConfig
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger

	// sendMail is swappable for tests; defaults to smtp.SendMail.
	sendMail func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewClient creates a new SMTP alert channel.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 15 * time.Second
	}

	logger := config.Logger.With("component", "smtp")

	breaker := circuitbreaker.SMTPBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("mail relay circuit state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})

	return &Client{
		config:   config,
		retrier:  retry.SMTPRetrier(),
		breaker:  breaker,
		logger:   logger,
		sendMail: smtp.SendMail,
	}
}

// Type implements alerting.Channel.
func (c *Client) Type() alerting.ChannelType {
	return alerting.ChannelEmail
}

// Send implements alerting.Channel. Delivery failures come back in the
// result, not as an error; the bulk flow decides what to do with them.
func (c *Client) Send(ctx context.Context, alert *alerting.Alert) alerting.DeliveryResult {
	if c.config.Disabled {
		c.logger.Info("alert delivery disabled, logging instead",
			"alert_id", alert.ID,
			"recipient", alert.Recipient,
			"subject", alert.Subject,
		)
		return alerting.NewSuccessResult(alerting.ChannelEmail)
	}

	msg := c.buildMessage(alert)

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.deliver(ctx, alert.Recipient, msg)
		})
	})

	if err != nil {
		retryable := !errors.Is(err, circuitbreaker.ErrCircuitOpen) && !retry.IsPermanent(err)
		c.logger.Error("alert delivery failed",
			"alert_id", alert.ID,
			"recipient", alert.Recipient,
			"error", err,
		)
		return alerting.NewFailureResult(alerting.ChannelEmail, err, retryable)
	}

	c.logger.Info("alert delivered",
		"alert_id", alert.ID,
		"recipient", alert.Recipient,
	)
	return alerting.NewSuccessResult(alerting.ChannelEmail)
}

// deliver performs one SMTP transaction under the send timeout.
// smtp.SendMail has no context support, so the call runs in a goroutine
// and the timeout abandons it.
func (c *Client) deliver(ctx context.Context, recipient string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.SendTimeout)
	defer cancel()

	var auth smtp.Auth
	if c.config.Username != "" {
		auth = smtp.PlainAuth("", c.config.Username, c.config.Password, c.config.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- c.sendMail(c.config.Addr(), auth, c.config.From, []string{recipient}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp: send to %s: %w", recipient, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp: send to %s: %w", recipient, ctx.Err())
	}
}

// buildMessage assembles the RFC 822 message bytes.
func (c *Client) buildMessage(alert *alerting.Alert) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", c.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", alert.Recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(alert.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("\r\n")
	b.WriteString(alert.Body)

	return []byte(b.String())
}

// sanitizeHeader strips CR/LF so alert content cannot inject headers.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// IsHealthy reports whether the breaker currently admits traffic.
func (c *Client) IsHealthy() bool {
	return !c.breaker.IsOpen()
}
