package port

import (
	"context"
	"time"

	"github.com/medicore/auth-service/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
// Implementations must enforce uniqueness on username and email fields and
// surface violations as repository.ErrConflict.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByIdentifier resolves an account by username, index number, or
	// either email address.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)
	// MarkVerified flips a pending account to active exactly once. A second
	// call for the same account returns repository.ErrNotFound.
	MarkVerified(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	UpdateSecurityCode(ctx context.Context, id string, securityCodeHash string) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
}
