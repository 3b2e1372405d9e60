package port

import (
	"context"
	"time"

	"github.com/medicore/auth-service/internal/core/domain"
)

// SessionRepository deals with session storage. CreateActive and
// RevokeAllForAccount must be atomic with respect to each other for the
// same account so the single-active-session invariant holds under
// concurrent logins, resets, and logouts.
type SessionRepository interface {
	// CreateActive deactivates every active session for the account and
	// inserts the new one in a single transaction.
	CreateActive(ctx context.Context, session domain.Session) error
	GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	// RotateAccessToken swaps the access token hash in place for a still
	// active session. Returns repository.ErrConflict when the session was
	// concurrently revoked.
	RotateAccessToken(ctx context.Context, sessionID string, accessTokenHash string, accessExpiresAt time.Time) error
	Revoke(ctx context.Context, sessionID string, reason string, at time.Time) error
	RevokeAllForAccount(ctx context.Context, accountID string, reason string, at time.Time) (int, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.Session, error)
}
