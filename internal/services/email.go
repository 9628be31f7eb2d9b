package services

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/socialspace/socialspace/internal/config"
	"github.com/socialspace/socialspace/internal/logging"
)

// EmailProvider delivers a plain-text email to a single recipient.
type EmailProvider interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewEmailProvider picks the provider named by configuration. Unknown
// providers fall back to console output so a misconfigured deployment
// still runs.
func NewEmailProvider(cfg config.EmailConfig) EmailProvider {
	switch cfg.Provider {
	case "resend":
		return NewResendProvider(cfg)
	default:
		return NewConsoleProvider(cfg)
	}
}

// ConsoleProvider logs emails instead of sending them. Used in development
// and tests.
type ConsoleProvider struct {
	from   string
	logger *logging.Logger
}

func NewConsoleProvider(cfg config.EmailConfig) *ConsoleProvider {
	return &ConsoleProvider{
		from:   cfg.FromAddress,
		logger: logging.Default,
	}
}

func (p *ConsoleProvider) Send(_ context.Context, to, subject, body string) error {
	p.logger.Info("email (console provider)", map[string]interface{}{
		"from":    p.from,
		"to":      to,
		"subject": subject,
		"body":    body,
	})
	return nil
}

// ResendProvider sends email through the Resend API.
type ResendProvider struct {
	client *resend.Client
	from   string
}

func NewResendProvider(cfg config.EmailConfig) *ResendProvider {
	return &ResendProvider{
		client: resend.NewClient(cfg.ResendAPIKey),
		from:   fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress),
	}
}

func (p *ResendProvider) Send(ctx context.Context, to, subject, body string) error {
	_, err := p.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    p.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("sending email via resend: %w", err)
	}
	return nil
}
