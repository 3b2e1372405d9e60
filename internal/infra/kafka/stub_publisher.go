package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/medicore/auth-service/internal/core/domain"
	"github.com/medicore/auth-service/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no
// brokers are configured, typically in development.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

var _ port.EventPublisher = (*StubPublisher)(nil)

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishAccountVerified logs auth.account.verified events.
func (p *StubPublisher) PublishAccountVerified(_ context.Context, event domain.AccountVerifiedEvent) error {
	payload := map[string]any{
		"account_id":  event.AccountID,
		"role":        event.Role,
		"verified_at": event.VerifiedAt,
		"metadata":    event.Metadata,
	}
	p.logEvent("auth.account.verified", event.AccountID, event.VerifiedAt, payload)
	return nil
}

// PublishPasswordChanged logs auth.account.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"account_id":       event.AccountID,
		"changed_at":       event.ChangedAt,
		"sessions_revoked": event.SessionsRevoked,
		"metadata":         event.Metadata,
	}
	p.logEvent("auth.account.password.changed", event.AccountID, event.ChangedAt, payload)
	return nil
}

// PublishSessionRevoked logs auth.session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	payload := map[string]any{
		"session_id": event.SessionID,
		"account_id": event.AccountID,
		"reason":     event.Reason,
		"revoked_at": event.RevokedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent("auth.session.revoked", event.AccountID, event.RevokedAt, payload)
	return nil
}
