package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// Message is an outbound plain-text mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer builds an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("jobs: mail recipient missing")
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return m.send(addr, auth, m.cfg.From, []string{msg.To}, m.encode(msg))
}

func (m *SMTPMailer) encode(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(m.cfg.From))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", headerValue(msg.Subject)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// headerValue folds line breaks so a value cannot start a new header.
func headerValue(v string) string {
	return strings.Join(strings.FieldsFunc(v, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	Logger *slog.Logger
}

// Send implements Mailer.
func (m LogMailer) Send(ctx context.Context, msg Message) error {
	m.Logger.InfoContext(ctx, "mail not sent (no smtp host)", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}

// LowStockMessage renders the notification mail for payload.
func LowStockMessage(p LowStockPayload) Message {
	var body strings.Builder
	body.WriteString("A material has fallen below its warning threshold.\n\n")
	fmt.Fprintf(&body, "Material: %s\n", p.MaterialName)
	fmt.Fprintf(&body, "Current quantity: %s %s\n", p.Quantity, p.Unit)
	fmt.Fprintf(&body, "Warning threshold: %s %s\n", p.WarningQuantity, p.Unit)
	fmt.Fprintf(&body, "Triggered by: %s\n", p.TriggeredBy)
	if !p.TriggeredAt.IsZero() {
		fmt.Fprintf(&body, "Time: %s\n", p.TriggeredAt.Format("2006-01-02 15:04:05 MST"))
	}
	return Message{
		To:      p.To,
		Subject: headerValue("[Stockroom] Low stock: " + p.MaterialName),
		Body:    body.String(),
	}
}
