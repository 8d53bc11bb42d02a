package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"crosslist/internal/domain/notification"
)

// MailConfig holds SMTP settings for the mail sink.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Mail delivers notifications as plain-text email.
type Mail struct {
	cfg    MailConfig
	client *mail.Client
}

// NewMail creates a mail sink.
func NewMail(cfg MailConfig) (*Mail, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}
	return &Mail{cfg: cfg, client: client}, nil
}

// Send implements notification.Sink.
func (m *Mail) Send(ctx context.Context, n *notification.Notification) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(m.cfg.To...); err != nil {
		return fmt.Errorf("set recipients: %w", err)
	}
	msg.Subject(fmt.Sprintf("[%s] %s", n.Severity, n.Title))

	var body strings.Builder
	body.WriteString(n.Message)
	if len(n.Metadata) > 0 {
		body.WriteString("\n\n")
		for key, value := range n.Metadata {
			fmt.Fprintf(&body, "%s: %v\n", key, value)
		}
	}
	msg.SetBodyString(mail.TypeTextPlain, body.String())

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
