package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"
	ProviderResend   = "resend"
	ProviderNoop     = "noop"
)

var ErrMailSkipped = errors.New("mail provider not configured, message skipped")

// Email is one outgoing message. HTML is normalized by the providers before sending.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer is the delivery capability behind every provider.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
	Name() string
}

// SMTPConfig holds the SMTP transport settings.
type SMTPConfig struct {
	Host       string // e.g. "smtp.gmail.com"
	Port       int    // 587 (STARTTLS) or 465 (SMTPS)
	Username   string
	Password   string
	UseSSL     bool
	RequireTLS bool
}

func (c SMTPConfig) complete() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

type MailConfig struct {
	Provider       string // smtp | sendgrid | resend | noop | auto
	From           string
	FromName       string
	AppName        string
	SMTP           SMTPConfig
	SendGridAPIKey string
	ResendAPIKey   string
	ResetPageURL   string
}

// NewMailer picks the provider: the explicit one, else resend, sendgrid, smtp in that
// order depending on which credentials exist, else a no-op sender.
func NewMailer(cfg MailConfig, logger *slog.Logger) Mailer {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == "auto" {
		switch {
		case cfg.ResendAPIKey != "":
			provider = ProviderResend
		case cfg.SendGridAPIKey != "":
			provider = ProviderSendGrid
		case cfg.SMTP.complete():
			provider = ProviderSMTP
		default:
			provider = ProviderNoop
		}
	}

	switch provider {
	case ProviderResend:
		if cfg.ResendAPIKey != "" {
			return &resendMailer{client: resend.NewClient(cfg.ResendAPIKey), from: formatFromHeader(cfg.FromName, cfg.From)}
		}
	case ProviderSendGrid:
		if cfg.SendGridAPIKey != "" {
			return &sendGridMailer{client: sendgrid.NewSendClient(cfg.SendGridAPIKey), from: cfg.From, fromName: cfg.FromName}
		}
	case ProviderSMTP:
		if cfg.SMTP.complete() {
			from := cfg.From
			if from == "" {
				from = cfg.SMTP.Username
			}
			return &smtpMailer{cfg: cfg.SMTP, from: from, fromName: cfg.FromName}
		}
	}

	if provider != ProviderNoop {
		logger.Warn("mail provider selected but not configured, falling back to noop", "provider", provider)
	}
	return &noopMailer{logger: logger}
}

// ------------------- noop -------------------

type noopMailer struct {
	logger *slog.Logger
}

func (n *noopMailer) Name() string { return ProviderNoop }

func (n *noopMailer) Send(_ context.Context, msg Email) error {
	n.logger.Warn("mail skipped, no provider configured", "to", msg.To, "subject", msg.Subject)
	return ErrMailSkipped
}

// ------------------- SendGrid -------------------

type sendGridMailer struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

func (s *sendGridMailer) Name() string { return ProviderSendGrid }

func (s *sendGridMailer) Send(ctx context.Context, msg Email) error {
	m := sgmail.NewSingleEmail(
		sgmail.NewEmail(s.fromName, s.from),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		msg.Text,
		normalizeEmailHTML(msg.HTML),
	)
	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// ------------------- Resend -------------------

type resendMailer struct {
	client *resend.Client
	from   string
}

func (r *resendMailer) Name() string { return ProviderResend }

func (r *resendMailer) Send(ctx context.Context, msg Email) error {
	_, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    normalizeEmailHTML(msg.HTML),
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// ------------------- SMTP -------------------

type smtpMailer struct {
	cfg      SMTPConfig
	from     string
	fromName string
}

func (s *smtpMailer) Name() string { return ProviderSMTP }

func (s *smtpMailer) Send(ctx context.Context, msg Email) error {
	body := buildMIMEMessage(formatFromHeader(s.fromName, s.from), msg, time.Now())

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	tlsCfg := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	var (
		conn net.Conn
		err  error
	)
	if s.cfg.UseSSL {
		// SMTPS, usually port 465
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if !s.cfg.UseSSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err = c.StartTLS(tlsCfg); err != nil {
				return err
			}
		} else if s.cfg.RequireTLS {
			return fmt.Errorf("server does not support STARTTLS and RequireTLS=true")
		}
	}

	if err = c.Auth(auth); err != nil {
		return err
	}
	if err = c.Mail(s.from); err != nil {
		return err
	}
	if err = c.Rcpt(msg.To); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(body); err != nil {
		return err
	}
	return w.Close()
}

func buildMIMEMessage(from string, msg Email, now time.Time) []byte {
	boundary := fmt.Sprintf("alt_%d", now.UnixNano())

	var b bytes.Buffer
	write := func(format string, a ...any) { _, _ = fmt.Fprintf(&b, format, a...) }

	write("From: %s\r\n", from)
	write("To: %s\r\n", msg.To)
	write("Subject: %s\r\n", mime.BEncoding.Encode("UTF-8", msg.Subject))
	write("Date: %s\r\n", now.Format(time.RFC1123Z))
	write("MIME-Version: 1.0\r\n")
	write("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	write("--%s\r\n", boundary)
	write("Content-Type: text/plain; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", msg.Text)

	write("--%s\r\n", boundary)
	write("Content-Type: text/html; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", normalizeEmailHTML(msg.HTML))

	write("--%s--\r\n", boundary)
	return b.Bytes()
}

func formatFromHeader(name, addr string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("UTF-8", name), addr)
}

// normalizeEmailHTML wraps fragments in a UTF-8 document and escapes the inverted
// punctuation some clients mangle.
func normalizeEmailHTML(html string) string {
	html = strings.NewReplacer("¡", "&iexcl;", "¿", "&iquest;").Replace(html)

	lower := strings.ToLower(html)
	if !strings.Contains(lower, "<html") {
		return `<!doctype html><html><head><meta charset="UTF-8"></head><body>` + html + `</body></html>`
	}
	if !strings.Contains(lower, "charset") {
		if i := strings.Index(lower, "<head>"); i >= 0 {
			return html[:i+len("<head>")] + `<meta charset="UTF-8">` + html[i+len("<head>"):]
		}
		if i := strings.Index(lower, "<html"); i >= 0 {
			if end := strings.Index(lower[i:], ">"); end >= 0 {
				at := i + end + 1
				return html[:at] + `<head><meta charset="UTF-8"></head>` + html[at:]
			}
		}
	}
	return html
}
