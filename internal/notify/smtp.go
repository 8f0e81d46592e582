package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPConfig configures SMTPChannel.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // "Name <addr>" or a bare address; defaults to Username
}

// SMTPChannel delivers messages as multipart (text + HTML) email.
type SMTPChannel struct {
	cfg SMTPConfig
}

// NewSMTPChannel creates an SMTPChannel.
func NewSMTPChannel(cfg SMTPConfig) *SMTPChannel {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPChannel{cfg: cfg}
}

func (c *SMTPChannel) Name() string { return "smtp" }

// Send dials the server, sends one message and disconnects. A client per send keeps
// concurrent deliveries independent.
func (c *SMTPChannel) Send(ctx context.Context, to Recipient, msg Message) error {
	m, err := c.buildMessage(to, msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(c.cfg.Host,
		mail.WithPort(c.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(c.cfg.Username),
		mail.WithPassword(c.cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to.Address, err)
	}
	return nil
}

func (c *SMTPChannel) buildMessage(to Recipient, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(c.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", c.cfg.From, err)
	}
	if err := m.AddToFormat(to.Name, to.Address); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to.Address, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}
