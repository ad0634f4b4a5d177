package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	pkglogger "github.com/BradenHooton/keypass/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// EmailMessage is a single outbound email with plain text and HTML bodies
type EmailMessage struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers an email and returns the transport's message id
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) (string, error)
}

// sesAPI is the part of the SES client the mailer uses
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends emails using AWS SES
type SESMailer struct {
	client      sesAPI
	fromAddress string
	logger      *slog.Logger
}

// NewSESMailer creates a mailer backed by the default AWS credential chain
func NewSESMailer(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESMailer{
		client:      ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

func (m *SESMailer) Send(ctx context.Context, msg EmailMessage) (string, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(m.fromAddress),
		Destination: &types.Destination{
			ToAddresses: msg.To,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(msg.HTML)},
				Text: &types.Content{Data: aws.String(msg.Text)},
			},
		},
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("ses send failed: %w", err)
	}

	return aws.ToString(result.MessageId), nil
}

// SMTPMailer sends emails through an SMTP relay
type SMTPMailer struct {
	dialer      *gomail.Dialer
	fromAddress string
	domain      string
}

// NewSMTPMailer creates a mailer for the given relay
func NewSMTPMailer(host string, port int, username, password, fromAddress string) *SMTPMailer {
	return &SMTPMailer{
		dialer:      gomail.NewDialer(host, port, username, password),
		fromAddress: fromAddress,
		domain:      host,
	}
}

func (m *SMTPMailer) buildMessage(msg EmailMessage, messageID string) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.fromAddress)
	gm.SetHeader("To", msg.To...)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", messageID, m.domain))
	gm.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		gm.AddAlternative("text/html", msg.HTML)
	}
	return gm
}

func (m *SMTPMailer) Send(ctx context.Context, msg EmailMessage) (string, error) {
	messageID := uuid.New().String()
	gm := m.buildMessage(msg, messageID)

	// gomail has no context support, so the dial runs aside and ctx bounds the wait
	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(gm)
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("smtp send failed: %w", err)
		}
		return messageID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// LogMailer writes messages to the log instead of delivering them.
// Bodies are not logged because they carry one-time codes.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg EmailMessage) (string, error) {
	messageID := uuid.New().String()
	recipients := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		recipients = append(recipients, pkglogger.SanitizedEmail(to))
	}
	m.logger.InfoContext(ctx, "email suppressed",
		slog.Any("to", recipients),
		slog.String("subject", msg.Subject),
		slog.String("message_id", messageID))
	return messageID, nil
}

// Notifier composes the emails the application sends
type Notifier struct {
	mailer     Mailer
	adminEmail string
	logger     *slog.Logger
}

// NewNotifier creates a Notifier. An empty adminEmail disables admin notices.
func NewNotifier(mailer Mailer, adminEmail string, logger *slog.Logger) *Notifier {
	return &Notifier{
		mailer:     mailer,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

// SendVerificationCode emails a one-time code to the account holder
func (n *Notifier) SendVerificationCode(ctx context.Context, to, code string, validFor time.Duration) error {
	minutes := int(validFor.Minutes())

	msg := EmailMessage{
		To:      []string{to},
		Subject: "Verification Code",
		Text: fmt.Sprintf("Verify your email\n\nYour verification code is %s.\nIt expires in %d minutes.\n\n"+
			"If you did not request this code, you can ignore this email.\n", code, minutes),
		HTML: fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <p>Verify your email</p>
    <h1 style="letter-spacing: 4px;">%s</h1>
    <p>This code expires in %d minutes.</p>
    <p style="color: #666; font-size: 12px;">If you did not request this code, you can ignore this email.</p>
</body>
</html>
`, html.EscapeString(code), minutes),
	}

	messageID, err := n.mailer.Send(ctx, msg)
	if err != nil {
		n.logger.Error("failed to send verification code",
			slog.String("email", pkglogger.SanitizedEmail(to)),
			slog.Any("error", err))
		return err
	}

	n.logger.Info("verification code sent",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("message_id", messageID))
	return nil
}

// NotifyAdmin emails the operator. Failures are logged and never returned.
func (n *Notifier) NotifyAdmin(ctx context.Context, subject, text string) {
	if n.adminEmail == "" {
		return
	}

	msg := EmailMessage{
		To:      []string{n.adminEmail},
		Subject: subject,
		Text:    text,
		HTML:    fmt.Sprintf("<h2>%s</h2>", html.EscapeString(text)),
	}

	if _, err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.Warn("failed to send admin notification",
			slog.String("subject", subject),
			slog.Any("error", err))
	}
}
