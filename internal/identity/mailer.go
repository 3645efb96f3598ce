// AngelaMos | 2026
// mailer.go

package identity

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"

	"github.com/planejarpatrimonio/backend/internal/config"
)

// Message is one transactional mail: a recovery link or a sign-in code.
type Message struct {
	To      string
	Name    string
	Subject string
	Link    string
	Code    string
	Purpose OTPType
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPMailer struct {
	cfg    config.MailConfig
	server string
	auth   smtp.Auth
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost)
	}

	return &SMTPMailer{
		cfg:    cfg,
		server: cfg.SMTPHost + ":" + cfg.SMTPPort,
		auth:   auth,
	}
}

func (m *SMTPMailer) Send(_ context.Context, msg Message) error {
	body, err := renderMessage(msg)
	if err != nil {
		return err
	}

	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}

	var raw bytes.Buffer
	fmt.Fprintf(&raw, "To: %s\r\n", msg.To)
	fmt.Fprintf(&raw, "From: %s\r\n", from)
	fmt.Fprintf(&raw, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&raw, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&raw, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&raw, "\r\n")
	raw.WriteString(body)

	if err := smtp.SendMail(m.server, m.auth, m.cfg.From, []string{msg.To}, raw.Bytes()); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	return nil
}

// LogMailer writes mails to the log instead of delivering them. Used when
// SMTP is not configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "mail not delivered, smtp disabled",
		"to", msg.To,
		"subject", msg.Subject,
		"purpose", msg.Purpose,
		"link", msg.Link,
	)
	return nil
}

func NewMailer(cfg config.MailConfig, logger *slog.Logger) Mailer {
	if cfg.Enabled() {
		return NewSMTPMailer(cfg)
	}
	return NewLogMailer(logger)
}

var messageTemplate = template.Must(template.New("mail").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Subject}}</title></head>
<body style="font-family: sans-serif; color: #1f2937; max-width: 600px; margin: 0 auto;">
    <h2>Planejar Patrimônio</h2>
    <p>Olá{{if .Name}}, {{.Name}}{{end}}.</p>
    {{if eq .Purpose "recovery"}}
    <p>Recebemos um pedido para redefinir sua senha.</p>
    {{else}}
    <p>Use o link abaixo para acessar sua conta.</p>
    {{end}}
    <p><a href="{{.Link}}">{{.Link}}</a></p>
    <p>Código: <strong>{{.Code}}</strong></p>
    <p style="font-size: 12px; color: #6b7280;">Se você não fez este pedido, ignore este e-mail.</p>
</body>
</html>`))

func renderMessage(msg Message) (string, error) {
	var buf bytes.Buffer
	if err := messageTemplate.Execute(&buf, msg); err != nil {
		return "", fmt.Errorf("render mail: %w", err)
	}
	return buf.String(), nil
}
