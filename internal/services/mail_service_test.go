package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMailService(t *testing.T, mailer Mailer) *mailService {
	t.Helper()
	svc, err := NewMailService(MailConfig{AppName: "Tienda", ResetPageURL: "https://shop.example.com/reset.html"}, mailer)
	require.NoError(t, err)
	ms := svc.(*mailService)
	ms.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return ms
}

func TestMailService_ResetLinkCarriesEscapedToken(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newTestMailService(t, mailer)

	require.NoError(t, svc.SendMailToResetPassword(context.Background(), "ana@example.com", "a+b/c"))

	sent := mailer.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@example.com", sent[0].To)
	assert.Equal(t, "Recupera tu contraseña", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "https://shop.example.com/reset.html?token=a%2Bb%2Fc")
	assert.Contains(t, sent[0].HTML, "Tienda")
	assert.Contains(t, sent[0].HTML, "2026")
}

func TestMailService_TemplateRowsAndEscaping(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newTestMailService(t, mailer)

	err := svc.SendTemplate(context.Background(), "x@example.com", EmailData{
		Title: "Pedido",
		Intro: "<script>alert(1)</script>",
		Rows:  []EmailRow{{Label: "Total", Value: "$12.990"}},
	})
	require.NoError(t, err)

	sent := mailer.all()[0]
	assert.NotContains(t, sent.HTML, "<script>")
	assert.Contains(t, sent.HTML, "$12.990")
	assert.Contains(t, sent.Text, "Total: $12.990")
}

func TestMailService_PropagatesProviderError(t *testing.T) {
	svc := newTestMailService(t, &fakeMailer{err: errors.New("smtp down")})
	err := svc.SendWelcome(context.Background(), "x@example.com", "Ana")
	assert.EqualError(t, err, "smtp down")
}

func TestNewMailer_Autodetect(t *testing.T) {
	log := discardLogger()

	cases := []struct {
		name string
		cfg  MailConfig
		want string
	}{
		{"resend wins", MailConfig{ResendAPIKey: "re_x", SendGridAPIKey: "SG.x"}, ProviderResend},
		{"sendgrid", MailConfig{SendGridAPIKey: "SG.x"}, ProviderSendGrid},
		{"smtp", MailConfig{SMTP: SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p"}}, ProviderSMTP},
		{"nothing", MailConfig{}, ProviderNoop},
		{"explicit without key", MailConfig{Provider: "sendgrid"}, ProviderNoop},
		{"explicit smtp over keys", MailConfig{Provider: "smtp", ResendAPIKey: "re_x", SMTP: SMTPConfig{Host: "h", Username: "u", Password: "p"}}, ProviderSMTP},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NewMailer(tc.cfg, log).Name())
		})
	}
}

func TestNoopMailer_ReportsSkipped(t *testing.T) {
	err := NewMailer(MailConfig{}, discardLogger()).Send(context.Background(), Email{To: "a@b.c"})
	assert.ErrorIs(t, err, ErrMailSkipped)
}

func TestNormalizeEmailHTML(t *testing.T) {
	out := normalizeEmailHTML("<p>¡Hola! ¿Todo bien?</p>")
	assert.True(t, strings.HasPrefix(out, "<!doctype html><html><head><meta charset=\"UTF-8\">"))
	assert.Contains(t, out, "&iexcl;Hola! &iquest;Todo bien?")

	out = normalizeEmailHTML("<html><head><title>x</title></head><body>y</body></html>")
	assert.Contains(t, out, `<head><meta charset="UTF-8"><title>`)

	already := `<html><head><meta charset="UTF-8"></head><body>y</body></html>`
	assert.Equal(t, already, normalizeEmailHTML(already))
}

func TestBuildMIMEMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := string(buildMIMEMessage(formatFromHeader("Tienda Ñuñoa", "no-reply@example.com"), Email{
		To: "ana@example.com", Subject: "Confirmación de pago", HTML: "<p>ok</p>", Text: "ok",
	}, now))

	assert.Contains(t, raw, "From: =?UTF-8?q?Tienda_=C3=91u=C3=B1oa?= <no-reply@example.com>\r\n")
	assert.Contains(t, raw, "To: ana@example.com\r\n")
	assert.Contains(t, raw, "Subject: =?UTF-8?b?")
	assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, raw, `<meta charset="UTF-8"></head><body><p>ok</p>`)
	assert.True(t, strings.HasSuffix(raw, "--\r\n"))
}
