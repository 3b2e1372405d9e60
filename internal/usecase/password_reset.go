package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medicore/auth-service/internal/core/domain"
	"github.com/medicore/auth-service/internal/core/port"
	"github.com/medicore/auth-service/internal/infra/config"
	"github.com/medicore/auth-service/internal/infra/logger"
	"github.com/medicore/auth-service/internal/infra/mail"
	"github.com/medicore/auth-service/internal/infra/security"
	"github.com/medicore/auth-service/internal/repository"
)

// PasswordResetService runs the forgot-password flow: a hashed reset
// challenge delivered by mail, followed by a password change that revokes
// every session the account holds.
type PasswordResetService struct {
	accounts  port.AccountRepository
	otps      *OTPService
	sessions  *SessionService
	mailer    port.Mailer
	events    port.EventPublisher
	rateLimit port.RateLimitStore
	cfg       config.RateLimitSettings
	validator *security.PasswordValidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(
	accounts port.AccountRepository,
	otps *OTPService,
	sessions *SessionService,
	mailer port.Mailer,
	events port.EventPublisher,
	rateLimit port.RateLimitStore,
	cfg config.RateLimitSettings,
	validator *security.PasswordValidator,
	log *zap.Logger,
) *PasswordResetService {
	return &PasswordResetService{
		accounts:  accounts,
		otps:      otps,
		sessions:  sessions,
		mailer:    mailer,
		events:    events,
		rateLimit: rateLimit,
		cfg:       cfg,
		validator: validator,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RequestReset issues a password-reset challenge for the account behind the
// identifier. The call reports success for unknown identifiers, for a
// challenge still in its reissue cooldown, and for a failed mail delivery
// alike, so the response shape never reveals whether the account exists.
// Only the identifier-keyed rate limit surfaces, since it applies uniformly.
func (s *PasswordResetService) RequestReset(ctx context.Context, identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier is required")
	}

	now := s.now().UTC()
	limitKey := "password_reset:" + identifier

	if err := s.checkRateLimit(ctx, limitKey, now); err != nil {
		return err
	}
	s.recordAttempt(ctx, limitKey, now)

	account, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("password reset requested for unknown identifier",
				zap.String("identifier", logger.MaskString(identifier)),
			)
			return nil
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	code, err := s.otps.Issue(ctx, account.Email, domain.OTPPurposePasswordReset)
	if err != nil {
		if errors.Is(err, ErrOTPThrottled) {
			s.logger.Info("password reset challenge still in cooldown",
				zap.String("account_id", account.ID),
			)
			return nil
		}
		return err
	}

	ttlMinutes := int(s.otps.TTL().Minutes())
	if err := s.mailer.Send(ctx, mail.PasswordResetMail(account.Email, code, ttlMinutes)); err != nil {
		s.logger.Error("reset mail delivery failed",
			zap.String("email", logger.MaskEmail(account.Email)),
			zap.Error(err),
		)
		return nil
	}

	s.logger.Info("password reset challenge issued",
		zap.String("account_id", account.ID),
		zap.String("email", logger.MaskEmail(account.Email)),
	)

	return nil
}

// Reset consumes a password-reset challenge, replaces the password, and
// revokes every session the account holds. The challenge is single use:
// a second submission of the same code fails with ErrOTPNotFound.
func (s *PasswordResetService) Reset(ctx context.Context, identifier, code, newPassword string) error {
	account, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOTPMismatch
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if err := s.validator.Validate(newPassword); err != nil {
		return err
	}

	if err := s.otps.Verify(ctx, account.Email, domain.OTPPurposePasswordReset, code); err != nil {
		return err
	}

	passwordHash, err := security.HashSecret(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	if err := s.accounts.UpdatePassword(ctx, account.ID, passwordHash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	revoked, err := s.sessions.InvalidateAll(ctx, account.ID, "password_reset")
	if err != nil {
		s.logger.Error("revoke sessions after password reset failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
		revoked = 0
	}

	s.logger.Info("password reset completed",
		zap.String("account_id", account.ID),
		zap.Int("sessions_revoked", revoked),
	)

	if s.events != nil {
		event := domain.PasswordChangedEvent{
			AccountID:       account.ID,
			ChangedAt:       now,
			SessionsRevoked: revoked,
		}
		if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
			s.logger.Warn("publish password changed event failed",
				zap.String("account_id", account.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (s *PasswordResetService) checkRateLimit(ctx context.Context, key string, now time.Time) error {
	if s.rateLimit == nil || s.cfg.PasswordResetMaxAttempts <= 0 {
		return nil
	}

	if err := s.rateLimit.TrimWindow(ctx, key, s.cfg.WindowDuration, now); err != nil {
		return fmt.Errorf("trim rate limit window: %w", err)
	}

	count, err := s.rateLimit.CountAttempts(ctx, key, s.cfg.WindowDuration, now)
	if err != nil {
		return fmt.Errorf("count attempts: %w", err)
	}
	if count >= s.cfg.PasswordResetMaxAttempts {
		return &ThrottledError{RetryAfter: retryAfter(ctx, s.rateLimit, key, s.cfg.WindowDuration, now)}
	}

	return nil
}

func (s *PasswordResetService) recordAttempt(ctx context.Context, key string, now time.Time) {
	if s.rateLimit == nil {
		return
	}
	if err := s.rateLimit.RecordAttempt(ctx, key, now); err != nil {
		s.logger.Warn("record rate limit attempt failed", zap.Error(err))
	}
}
