package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

// SMTPChannel submits mail directly over authenticated SMTP. It is
// the fallback path when Graph is unavailable; attachments are read
// from disk at send time.
type SMTPChannel struct {
	Host      string
	Port      int
	SSL       bool
	User      string
	Pass      string
	Recipient string

	Log *logrus.Logger
}

func NewSMTPChannel(host string, port int, ssl bool, user, pass, recipient string, log *logrus.Logger) *SMTPChannel {
	return &SMTPChannel{
		Host:      host,
		Port:      port,
		SSL:       ssl,
		User:      user,
		Pass:      pass,
		Recipient: recipient,
		Log:       log,
	}
}

func (s *SMTPChannel) Name() string { return "smtp" }

func (s *SMTPChannel) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(s.User),
		mail.WithPassword(s.Pass),
		mail.WithTimeout(30 * time.Second),
	}
	if s.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	return mail.NewClient(s.Host, opts...)
}

// Verify dials the transport once so a broken fallback configuration
// shows up at startup instead of during the first failed delivery.
func (s *SMTPChannel) Verify(ctx context.Context) error {
	c, err := s.client()
	if err != nil {
		return err
	}
	if err := c.DialWithContext(ctx); err != nil {
		return err
	}
	return c.Close()
}

func (s *SMTPChannel) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.FromFormat("Trascrizione Vocale", s.User); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(s.Recipient); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	m.AttachFile(msg.AudioPath, mail.WithFileName(msg.AudioName))
	if err := m.AttachReader(msg.TranscriptName, strings.NewReader(msg.Body)); err != nil {
		return fmt.Errorf("smtp transcript attachment: %w", err)
	}

	c, err := s.client()
	if err != nil {
		return err
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	s.Log.WithField("to", s.Recipient).Info("mail sent via SMTP fallback")
	return nil
}
