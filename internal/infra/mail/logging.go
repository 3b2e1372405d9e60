package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/medicore/auth-service/internal/core/port"
	"github.com/medicore/auth-service/internal/infra/logger"
)

// LoggingMailer logs outbound mail instead of delivering it. Selected when
// no from-address is configured, typically in development.
type LoggingMailer struct {
	logger *zap.Logger
}

var _ port.Mailer = (*LoggingMailer)(nil)

// NewLoggingMailer constructs a development mailer.
func NewLoggingMailer(log *zap.Logger) *LoggingMailer {
	return &LoggingMailer{logger: log}
}

// Send records the mail at info level. The body is logged verbatim so
// developers can read the one-time code out of local logs.
func (m *LoggingMailer) Send(_ context.Context, mail port.Mail) error {
	m.logger.Info("Mail delivery skipped (no mailer configured)",
		zap.String("to", logger.MaskEmail(mail.To)),
		zap.String("subject", mail.Subject),
		zap.String("text_body", mail.TextBody),
	)
	return nil
}
