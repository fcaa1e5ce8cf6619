package mail

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/protomind/user-service/internal/core/domain"
)

// SMTPConfig captures the SMTP relay and the envelope sender.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// SMTPSender renders a mail and delivers it through an SMTP relay.
type SMTPSender struct {
	renderer *Renderer
	from     string
	fromName string
	send     func(msgs ...*gomail.Message) error
}

func NewSMTPSender(cfg SMTPConfig, renderer *Renderer) *SMTPSender {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTPSender{
		renderer: renderer,
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
		send:     dialer.DialAndSend,
	}
}

// newSMTPSenderWith delivers through s instead of dialing a relay.
func newSMTPSenderWith(s gomail.Sender, from, fromName string, renderer *Renderer) *SMTPSender {
	return &SMTPSender{
		renderer: renderer,
		from:     from,
		fromName: fromName,
		send:     func(msgs ...*gomail.Message) error { return gomail.Send(s, msgs...) },
	}
}

func (s *SMTPSender) Send(ctx context.Context, m domain.Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rendered, err := s.renderer.Render(m.View, m.Data)
	if err != nil {
		return err
	}

	if err := s.send(buildMessage(s.from, s.fromName, m, rendered)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", m.To, err)
	}
	return nil
}

func buildMessage(from, fromName string, m domain.Mail, rendered Rendered) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", from, fromName)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)

	switch {
	case rendered.Text != "" && rendered.HTML != "":
		msg.SetBody("text/plain", rendered.Text)
		msg.AddAlternative("text/html", rendered.HTML)
	case rendered.HTML != "":
		msg.SetBody("text/html", rendered.HTML)
	default:
		msg.SetBody("text/plain", rendered.Text)
	}

	for _, a := range m.Attachments {
		content := a.Content
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		msg.Attach(a.FileName, settings...)
	}
	return msg
}

// LogSender renders mail and logs the envelope instead of delivering it.
// Used for local development (MAIL_DRIVER=log).
type LogSender struct {
	renderer *Renderer
	log      zerolog.Logger
}

func NewLogSender(renderer *Renderer, log zerolog.Logger) *LogSender {
	return &LogSender{renderer: renderer, log: log}
}

func (s *LogSender) Send(_ context.Context, m domain.Mail) error {
	rendered, err := s.renderer.Render(m.View, m.Data)
	if err != nil {
		return err
	}
	s.log.Info().
		Str("to", m.To).
		Str("subject", m.Subject).
		Str("view", m.View).
		Int("html_bytes", len(rendered.HTML)).
		Int("text_bytes", len(rendered.Text)).
		Msg("mail not delivered: log driver")
	return nil
}
