package port

import (
	"context"
	"time"

	"github.com/medicore/auth-service/internal/core/domain"
)

// OTPRepository stores hashed one-time code challenges keyed by
// (identifier, purpose). Store replaces any prior challenge for the same
// key atomically.
type OTPRepository interface {
	Store(ctx context.Context, challenge domain.OTPChallenge, ttl time.Duration) error
	Fetch(ctx context.Context, identifier string, purpose domain.OTPPurpose) (*domain.OTPChallenge, error)
	IncrementAttempts(ctx context.Context, identifier string, purpose domain.OTPPurpose) (int, error)
	Delete(ctx context.Context, identifier string, purpose domain.OTPPurpose) error
}
