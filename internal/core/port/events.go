package port

import (
	"context"

	"github.com/medicore/auth-service/internal/core/domain"
)

// EventPublisher fans authentication lifecycle events out to downstream
// consumers. Publish failures are logged, never surfaced to callers.
type EventPublisher interface {
	PublishAccountVerified(ctx context.Context, event domain.AccountVerifiedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
}
