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
	"github.com/medicore/auth-service/internal/infra/security"
	"github.com/medicore/auth-service/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the identifier or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountPending indicates the account requires verification before login.
	ErrAccountPending = errors.New("account pending verification")
	// ErrInactiveAccount indicates the account is locked or disabled.
	ErrInactiveAccount = errors.New("account is not active")
	// ErrInvalidSecurityCode indicates a doctor login with a wrong security code.
	ErrInvalidSecurityCode = errors.New("invalid security code")
	// ErrTooManyAttempts indicates the login rate limit tripped for the identifier.
	ErrTooManyAttempts = errors.New("too many attempts")
)

// ThrottledError wraps ErrTooManyAttempts with how long the caller should
// wait before the sliding window frees a slot.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %s", e.RetryAfter)
}

func (e *ThrottledError) Unwrap() error { return ErrTooManyAttempts }

// retryAfter derives the wait until the oldest attempt in the window ages
// out. Falls back to the full window when the store cannot say.
func retryAfter(ctx context.Context, store port.RateLimitStore, key string, window time.Duration, now time.Time) time.Duration {
	oldest, ok, err := store.OldestAttempt(ctx, key, window, now)
	if err != nil || !ok {
		return window
	}
	wait := oldest.Add(window).Sub(now)
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

// AuthService coordinates the login flow: rate limiting, credential
// verification, and session establishment.
type AuthService struct {
	accounts  port.AccountRepository
	sessions  *SessionService
	rateLimit port.RateLimitStore
	cfg       config.RateLimitSettings
	logger    *zap.Logger
	metrics   port.MetricsRecorder
	now       func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	accounts port.AccountRepository,
	sessions *SessionService,
	rateLimit port.RateLimitStore,
	cfg config.RateLimitSettings,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		accounts:  accounts,
		sessions:  sessions,
		rateLimit: rateLimit,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithMetrics attaches an outcome counter recorder. A nil service leaves
// login attempts uncounted.
func (s *AuthService) WithMetrics(m port.MetricsRecorder) {
	s.metrics = m
}

func (s *AuthService) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginAttempt(outcome)
	}
}

// Login verifies credentials and establishes the account's single active
// session. Doctors additionally present a security code. Failures against
// unknown and known identifiers are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, identifier, password, securityCode string) (TokenPair, *domain.Account, error) {
	if identifier == "" || password == "" {
		s.countLogin("invalid_credentials")
		return TokenPair{}, nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	limitKey := "login:" + identifier

	if err := s.checkRateLimit(ctx, limitKey, now); err != nil {
		if errors.Is(err, ErrTooManyAttempts) {
			s.countLogin("rate_limited")
		}
		return TokenPair{}, nil, err
	}

	account, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordAttempt(ctx, limitKey, now)
			s.countLogin("invalid_credentials")
			return TokenPair{}, nil, ErrInvalidCredentials
		}
		return TokenPair{}, nil, fmt.Errorf("lookup account: %w", err)
	}

	ok, err := security.VerifySecret(password, account.PasswordHash)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.recordAttempt(ctx, limitKey, now)
		s.countLogin("invalid_credentials")
		return TokenPair{}, nil, ErrInvalidCredentials
	}

	if account.Status == domain.AccountStatusPending {
		s.countLogin("account_pending")
		return TokenPair{}, nil, ErrAccountPending
	}
	if !account.CanAuthenticate() {
		s.countLogin("account_inactive")
		return TokenPair{}, nil, ErrInactiveAccount
	}

	if account.Role == domain.RoleDoctor {
		if account.SecurityCodeHash == nil || securityCode == "" {
			s.recordAttempt(ctx, limitKey, now)
			s.countLogin("invalid_security_code")
			return TokenPair{}, nil, ErrInvalidSecurityCode
		}
		ok, err := security.VerifySecret(securityCode, *account.SecurityCodeHash)
		if err != nil {
			return TokenPair{}, nil, fmt.Errorf("verify security code: %w", err)
		}
		if !ok {
			s.recordAttempt(ctx, limitKey, now)
			s.countLogin("invalid_security_code")
			return TokenPair{}, nil, ErrInvalidSecurityCode
		}
	}

	pair, _, err := s.sessions.Establish(ctx, *account)
	if err != nil {
		return TokenPair{}, nil, err
	}

	if err := s.accounts.RecordLogin(ctx, account.ID, now); err != nil {
		s.logger.Warn("record login failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	s.countLogin("success")
	s.logger.Info("login succeeded",
		zap.String("account_id", account.ID),
		zap.String("email", logger.MaskEmail(account.Email)),
		zap.String("role", string(account.Role)),
	)

	sanitized := *account
	sanitized.PasswordHash = ""
	sanitized.SecurityCodeHash = nil

	return pair, &sanitized, nil
}

func (s *AuthService) checkRateLimit(ctx context.Context, key string, now time.Time) error {
	if s.rateLimit == nil || s.cfg.LoginMaxAttempts <= 0 {
		return nil
	}

	if err := s.rateLimit.TrimWindow(ctx, key, s.cfg.WindowDuration, now); err != nil {
		return fmt.Errorf("trim rate limit window: %w", err)
	}

	count, err := s.rateLimit.CountAttempts(ctx, key, s.cfg.WindowDuration, now)
	if err != nil {
		return fmt.Errorf("count attempts: %w", err)
	}
	if count >= s.cfg.LoginMaxAttempts {
		return &ThrottledError{RetryAfter: retryAfter(ctx, s.rateLimit, key, s.cfg.WindowDuration, now)}
	}

	return nil
}

func (s *AuthService) recordAttempt(ctx context.Context, key string, now time.Time) {
	if s.rateLimit == nil {
		return
	}
	if err := s.rateLimit.RecordAttempt(ctx, key, now); err != nil {
		s.logger.Warn("record rate limit attempt failed", zap.Error(err))
	}
}
