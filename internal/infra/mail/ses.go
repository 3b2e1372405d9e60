package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"github.com/medicore/auth-service/internal/core/port"
	"github.com/medicore/auth-service/internal/infra/config"
	"github.com/medicore/auth-service/internal/infra/logger"
)

// SESMailer delivers mail through Amazon SES.
type SESMailer struct {
	client      *sesv2.Client
	fromAddress string
	fromName    string
	logger      *zap.Logger
}

var _ port.Mailer = (*SESMailer)(nil)

// NewSESMailer loads the default AWS config for the configured region and
// constructs a SES-backed mailer.
func NewSESMailer(ctx context.Context, cfg config.MailSettings, log *zap.Logger) (*SESMailer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	log.Info("SES mailer initialized",
		zap.String("region", cfg.AWSRegion),
		zap.String("from", logger.MaskEmail(cfg.FromAddress)),
	)

	return &SESMailer{
		client:      sesv2.NewFromConfig(awsCfg),
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		logger:      log,
	}, nil
}

// Send delivers the mail through the SES SendEmail API.
func (m *SESMailer) Send(ctx context.Context, mail port.Mail) error {
	from := m.fromAddress
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.fromAddress)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{mail.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(mail.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(mail.HTMLBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(mail.TextBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}

	fields := []zap.Field{
		zap.String("to", logger.MaskEmail(mail.To)),
		zap.String("subject", mail.Subject),
	}
	if result.MessageId != nil {
		fields = append(fields, zap.String("message_id", *result.MessageId))
	}
	m.logger.Info("Email sent", fields...)

	return nil
}
