package purchaseorder

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
)

// Email is an outbound notification.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// NewSender relays through SMTP when SMTP_HOST is set and otherwise only
// logs the notification.
func NewSender(cfg config.Config, logger *zap.Logger) (Sender, error) {
	smtp := cfg.Notification.SMTP
	if smtp.Host == "" {
		logger.Info("smtp host not configured; notifications are logged only")
		return logSender{logger: logger}, nil
	}

	opts := []mail.Option{
		mail.WithPort(smtp.Port),
		mail.WithTimeout(smtp.Timeout),
		mail.WithTLSPolicy(tlsPolicy(smtp.TLSPolicy)),
	}
	if smtp.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(smtp.Username),
			mail.WithPassword(smtp.Password),
		)
	}
	client, err := mail.NewClient(smtp.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	logger.Info("smtp sender configured", zap.String("host", smtp.Host), zap.Int("port", smtp.Port))
	return &smtpSender{client: client, logger: logger}, nil
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch name {
	case "opportunistic":
		return mail.TLSOpportunistic
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSMandatory
	}
}

type smtpSender struct {
	client *mail.Client
	logger *zap.Logger
}

func (s *smtpSender) Send(ctx context.Context, email Email) error {
	msg, err := buildMessage(email)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", email.To, err)
	}
	s.logger.Info("notification sent", zap.String("to", email.To), zap.String("subject", email.Subject))
	return nil
}

func buildMessage(email Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(email.From); err != nil {
		return nil, fmt.Errorf("sender address %q: %w", email.From, err)
	}
	if err := msg.To(email.To); err != nil {
		return nil, fmt.Errorf("recipient address %q: %w", email.To, err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Body)
	return msg, nil
}

type logSender struct {
	logger *zap.Logger
}

func (s logSender) Send(_ context.Context, email Email) error {
	s.logger.Info("notification logged",
		zap.String("from", email.From),
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
	)
	return nil
}
