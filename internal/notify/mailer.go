// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ResetSubject is the subject line of password reset emails.
const ResetSubject = "TrackMint - Reset Your Password"

var resetBody = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>Reset your password</h2>
  <p>We received a request to reset the password for your TrackMint account.</p>
  <p><a href="{{.Link}}">Choose a new password</a></p>
  <p>{{if .Expiry}}This link expires in {{.Expiry}}.{{else}}This link expires shortly.{{end}} If you did not ask for a reset you can ignore this email.</p>
</body>
</html>
`))

// MailerConfig configures SMTP delivery.
type MailerConfig struct {
	Addr        string
	From        string
	User        string
	Password    string
	FrontendURL string
	// ResetTTL is the reset token lifetime quoted in the email. Zero leaves
	// the duration out.
	ResetTTL time.Duration
	Timeout  time.Duration
	// MaxRetries bounds retries after the first attempt.
	MaxRetries uint64
	// BaseDelay is the first backoff delay; later delays double.
	BaseDelay time.Duration
}

// Transport hands one composed message to a mail server.
type Transport interface {
	Send(ctx context.Context, from, to string, msg []byte) error
}

// Mailer sends reset links over SMTP, retrying transient failures.
type Mailer struct {
	cfg       MailerConfig
	transport Transport
	logger    *slog.Logger
}

// NewMailer creates a Mailer that talks SMTP to cfg.Addr.
func NewMailer(cfg MailerConfig, logger *slog.Logger) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		cfg:       cfg,
		transport: newSMTPTransport(cfg),
		logger:    logger.With("component", "notify.mailer", "smtp_addr", cfg.Addr),
	}
}

// WithTransport returns a copy of m that delivers through t.
func (m *Mailer) WithTransport(t Transport) *Mailer {
	cp := *m
	cp.transport = t
	return &cp
}

// SendPasswordReset implements auth.Notifier.
func (m *Mailer) SendPasswordReset(ctx context.Context, email, token string) error {
	msg, err := m.compose(email, token)
	if err != nil {
		return oops.Code("SMTP_COMPOSE_FAILED").Wrap(err)
	}

	start := time.Now()
	attempt := 0
	backoff := retry.WithMaxRetries(m.cfg.MaxRetries, retry.NewExponential(m.cfg.BaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		sendErr := m.transport.Send(ctx, m.cfg.From, email, msg)
		if sendErr == nil {
			return nil
		}
		if permanent(sendErr) {
			return sendErr
		}
		m.logger.WarnContext(ctx, "reset email attempt failed", "attempt", attempt, "error", sendErr.Error())
		return retry.RetryableError(sendErr)
	})
	if err != nil {
		return oops.Code("SMTP_SEND_FAILED").
			With("smtp_addr", m.cfg.Addr).
			With("attempts", attempt).
			Wrap(err)
	}

	m.logger.InfoContext(ctx, "reset email sent", "attempts", attempt, "elapsed", time.Since(start))
	return nil
}

func (m *Mailer) compose(to, token string) ([]byte, error) {
	var body bytes.Buffer
	data := struct{ Link, Expiry string }{
		Link:   ResetLink(m.cfg.FrontendURL, token),
		Expiry: expiryText(m.cfg.ResetTTL),
	}
	if err := resetBody.Execute(&body, data); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	msg.WriteString("From: " + m.cfg.From + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + ResetSubject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// expiryText renders d in whole hours or minutes, or "" when d is below a
// minute.
func expiryText(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return strconv.FormatInt(n, 10) + " " + unit + "s"
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int64(d/time.Minute), "minute")
	default:
		return ""
	}
}

// permanent reports whether the server rejected the message outright (5xx).
func permanent(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code >= 500
}

type smtpTransport struct {
	addr    string
	host    string
	auth    smtp.Auth
	timeout time.Duration
}

func newSMTPTransport(cfg MailerConfig) *smtpTransport {
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		host = cfg.Addr
	}
	t := &smtpTransport{addr: cfg.Addr, host: host, timeout: cfg.Timeout}
	if cfg.User != "" || cfg.Password != "" {
		t.auth = smtp.PlainAuth("", cfg.User, cfg.Password, host)
	}
	return t
}

func (t *smtpTransport) Send(ctx context.Context, from, to string, msg []byte) error {
	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Now().Add(t.timeout))

	c, err := smtp.NewClient(conn, t.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: t.host, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}
	if t.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(t.auth); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
