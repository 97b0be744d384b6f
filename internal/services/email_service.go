package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/medalroll/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Mailer defines the interface for sending emails
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// SESClient is the subset of the SES API the mailer uses
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESMailer sends emails using AWS SES
type AWSSESMailer struct {
	sesClient   SESClient
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESMailer creates a new AWS SES mailer from the default credential chain
func NewAWSSESMailer(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*AWSSESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewAWSSESMailerWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

// NewAWSSESMailerWithClient wraps an existing SES client
func NewAWSSESMailerWithClient(client SESClient, fromAddress string, logger *slog.Logger) *AWSSESMailer {
	return &AWSSESMailer{
		sesClient:   client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// SendEmail sends a multipart html/text message
func (s *AWSSESMailer) SendEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(textBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("email", logger.SanitizedEmail(to)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("email", logger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogMailer writes messages to the log instead of delivering them. Used in development.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	m.logger.Info("email not delivered (log mailer)",
		slog.String("email", logger.SanitizedEmail(to)),
		slog.String("subject", subject),
		slog.Int("text_length", len(textBody)))
	return nil
}
