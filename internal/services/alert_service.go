package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// AlertService sends security notification emails. Sends are fire-and-forget:
// a mail failure is logged and never blocks the authentication path.
type AlertService interface {
	SendAccountLocked(ctx context.Context, email string, lockedUntil time.Time)
	SendSuspiciousActivity(ctx context.Context, email, summary string)
}

// SESAlertService sends alerts using AWS SES
type SESAlertService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewSESAlertService creates a new AWS SES alert service
func NewSESAlertService(region, fromAddress string, logger *slog.Logger) (*SESAlertService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESAlertService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendAccountLocked notifies the account owner that repeated failed logins
// locked the account
func (s *SESAlertService) SendAccountLocked(ctx context.Context, email string, lockedUntil time.Time) {
	subject := "Your account has been temporarily locked"
	body := fmt.Sprintf(`Your account was locked after repeated failed sign-in attempts.

The lock expires at %s. If these attempts were not yours, change your password as soon as the lock lifts and review your active sessions.

This is an automated security message. Please do not reply.
`, lockedUntil.UTC().Format(time.RFC1123))

	s.send(ctx, email, subject, body)
}

// SendSuspiciousActivity notifies the account owner about suspicious activity
func (s *SESAlertService) SendSuspiciousActivity(ctx context.Context, email, summary string) {
	subject := "Suspicious activity on your account"
	body := fmt.Sprintf(`We noticed unusual activity on your account:

%s

If this was you, no action is needed. Otherwise, change your password and review your active sessions.

This is an automated security message. Please do not reply.
`, summary)

	s.send(ctx, email, subject, body)
}

func (s *SESAlertService) send(ctx context.Context, email, subject, body string) {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(body),
				},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		s.logger.Error("failed to send security alert email",
			slog.String("subject", subject),
			slog.Any("error", err))
		return
	}

	s.logger.Info("security alert email sent", slog.String("subject", subject))
}

// NoopAlertService is used when alert emails are disabled
type NoopAlertService struct{}

func (NoopAlertService) SendAccountLocked(ctx context.Context, email string, lockedUntil time.Time) {
}

func (NoopAlertService) SendSuspiciousActivity(ctx context.Context, email, summary string) {}
