// services/mail_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"
)

type IMailService interface {
	SendMailToNotifyUser(ctx context.Context, to, subject, body, ctaText, ctaURL string) error
	SendMailToResetPassword(ctx context.Context, email, token string) error
	SendWelcome(ctx context.Context, email, name string) error
	SendTemplate(ctx context.Context, to string, data EmailData) error
	Provider() string
}

type mailService struct {
	cfg     MailConfig
	mailer  Mailer
	htmlTpl *template.Template
	textTpl *texttemplate.Template
	now     func() time.Time
}

func NewMailService(cfg MailConfig, mailer Mailer) (IMailService, error) {
	htmlTpl, err := template.New("html").Parse(baseHTMLTemplate)
	if err != nil {
		return nil, err
	}
	textTpl, err := texttemplate.New("text").Parse(plainTextTemplate)
	if err != nil {
		return nil, err
	}
	return &mailService{
		cfg:     cfg,
		mailer:  mailer,
		htmlTpl: htmlTpl,
		textTpl: textTpl,
		now:     time.Now,
	}, nil
}

// ------------------- Public API -------------------

func (s *mailService) Provider() string { return s.mailer.Name() }

func (s *mailService) SendMailToNotifyUser(ctx context.Context, to, subject, body, ctaText, ctaURL string) error {
	return s.SendTemplate(ctx, to, EmailData{
		Title:     subject,
		Intro:     body,
		ButtonURL: ctaURL,
		ButtonTxt: ctaText,
	})
}

func (s *mailService) SendMailToResetPassword(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s?token=%s", strings.TrimRight(s.cfg.ResetPageURL, "/"), url.QueryEscape(token))
	return s.SendTemplate(ctx, to, EmailData{
		Title:     "Recupera tu contraseña",
		Intro:     "Recibimos una solicitud para restablecer tu contraseña. El enlace es válido por una hora. Si no fuiste tú, ignora este correo.",
		ButtonURL: link,
		ButtonTxt: "Restablecer contraseña",
	})
}

func (s *mailService) SendWelcome(ctx context.Context, to, name string) error {
	greeting := "¡Bienvenido!"
	if n := strings.TrimSpace(name); n != "" {
		greeting = fmt.Sprintf("¡Bienvenido, %s!", n)
	}
	return s.SendTemplate(ctx, to, EmailData{
		Title: greeting,
		Intro: fmt.Sprintf("Tu cuenta en %s quedó creada. Ya puedes comprar y revisar tus pedidos.", s.cfg.AppName),
	})
}

func (s *mailService) SendTemplate(ctx context.Context, to string, data EmailData) error {
	if data.AppName == "" {
		data.AppName = s.cfg.AppName
	}
	data.Year = s.now().Year()

	html, text, err := s.renderEmail(data)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, Email{To: to, Subject: data.Title, HTML: html, Text: text})
}

// ------------------- Rendering -------------------

type EmailRow struct {
	Label string
	Value string
}

type EmailData struct {
	Title     string
	Intro     string
	Rows      []EmailRow
	Outro     string
	ButtonURL string
	ButtonTxt string
	AppName   string
	Year      int
}

const baseHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body { margin: 0; padding: 0; background: #f4f5f7; color: #1f2933; font-family: -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; }
    .wrapper { width: 100%; padding: 32px 12px; box-sizing: border-box; }
    .container { max-width: 600px; margin: 0 auto; background: #ffffff; border-radius: 12px; overflow: hidden; border: 1px solid #e4e7eb; }
    .header { padding: 24px 28px; background: #111827; color: #f9fafb; font-weight: 700; font-size: 20px; }
    .content { padding: 28px; }
    h1 { margin: 0 0 16px; font-size: 24px; }
    p { margin: 0 0 16px; line-height: 1.6; }
    table.summary { width: 100%; border-collapse: collapse; margin: 8px 0 20px; }
    table.summary td { padding: 8px 0; border-bottom: 1px solid #eef0f2; font-size: 15px; }
    table.summary td.label { color: #616e7c; width: 45%; }
    .btn { display: inline-block; padding: 14px 28px; background: #2563eb; color: #ffffff !important; text-decoration: none; border-radius: 8px; font-weight: 600; }
    .muted { color: #7b8794; font-size: 13px; word-break: break-all; }
    .footer { padding: 20px 28px; color: #9aa5b1; font-size: 12px; text-align: center; border-top: 1px solid #eef0f2; }
  </style>
</head>
<body>
  <div class="wrapper">
    <div class="container">
      <div class="header">{{.AppName}}</div>
      <div class="content">
        <h1>{{.Title}}</h1>
        <p>{{.Intro}}</p>
        {{if .Rows}}
        <table class="summary">
          {{range .Rows}}<tr><td class="label">{{.Label}}</td><td>{{.Value}}</td></tr>
          {{end}}
        </table>
        {{end}}
        {{if .Outro}}<p>{{.Outro}}</p>{{end}}
        {{if .ButtonURL}}
          <p><a class="btn" href="{{.ButtonURL}}">{{.ButtonTxt}}</a></p>
          <p class="muted">Si el botón no funciona, copia este enlace en tu navegador:<br>{{.ButtonURL}}</p>
        {{end}}
      </div>
      <div class="footer">© {{.Year}} {{.AppName}}</div>
    </div>
  </div>
</body>
</html>`

const plainTextTemplate = `{{.Title}}

{{.Intro}}
{{range .Rows}}
{{.Label}}: {{.Value}}{{end}}
{{if .Outro}}
{{.Outro}}
{{end}}{{if .ButtonURL}}
{{.ButtonTxt}}: {{.ButtonURL}}
{{end}}
-- {{.AppName}} (c) {{.Year}}
`

func (s *mailService) renderEmail(data EmailData) (html string, text string, err error) {
	var hb, tb bytes.Buffer
	if err = s.htmlTpl.Execute(&hb, data); err != nil {
		return "", "", err
	}
	if err = s.textTpl.Execute(&tb, data); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}
