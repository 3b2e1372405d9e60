package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medicore/auth-service/internal/core/domain"
	"github.com/medicore/auth-service/internal/core/port"
	"github.com/medicore/auth-service/internal/infra/config"
	"github.com/medicore/auth-service/internal/infra/security"
	"github.com/medicore/auth-service/internal/repository"
)

var (
	// ErrOTPNotFound indicates no challenge exists for the identifier and purpose.
	ErrOTPNotFound = errors.New("otp not found")
	// ErrOTPExpired indicates the challenge outlived its validity window.
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPMismatch indicates the submitted code does not match the challenge.
	ErrOTPMismatch = errors.New("otp mismatch")
	// ErrOTPThrottled indicates a reissue was requested inside the cooldown window.
	ErrOTPThrottled = errors.New("otp reissue throttled")
	// ErrOTPAttemptsExceeded indicates the challenge burned through its attempt budget.
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
)

// OTPService issues and verifies one-time code challenges. Codes are stored
// only as Argon2id hashes; the plaintext leaves this service exactly once,
// in Issue's return value.
type OTPService struct {
	otps    port.OTPRepository
	cfg     config.OTPSettings
	metrics port.MetricsRecorder
	now     func() time.Time
}

// NewOTPService constructs an OTPService.
func NewOTPService(otps port.OTPRepository, cfg config.OTPSettings) *OTPService {
	return &OTPService{otps: otps, cfg: cfg, now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (s *OTPService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithMetrics attaches an outcome counter recorder.
func (s *OTPService) WithMetrics(m port.MetricsRecorder) {
	s.metrics = m
}

func (s *OTPService) countVerification(purpose domain.OTPPurpose, outcome string) {
	if s.metrics != nil {
		s.metrics.OTPVerification(string(purpose), outcome)
	}
}

// TTL exposes the challenge validity window for mail composition.
func (s *OTPService) TTL() time.Duration {
	return s.cfg.TTL
}

// Issue creates a fresh challenge and returns the plaintext code. A
// challenge issued within the reissue cooldown of its predecessor is
// rejected with ErrOTPThrottled; outside the cooldown the new challenge
// atomically replaces the old one.
func (s *OTPService) Issue(ctx context.Context, identifier string, purpose domain.OTPPurpose) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("identifier is required")
	}
	if !purpose.Valid() {
		return "", fmt.Errorf("unknown otp purpose %q", purpose)
	}

	now := s.now().UTC()

	existing, err := s.otps.Fetch(ctx, identifier, purpose)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("fetch existing otp: %w", err)
	}
	if existing != nil && now.Before(existing.CreatedAt.Add(s.cfg.ReissueCooldown)) {
		return "", ErrOTPThrottled
	}

	code, err := security.GenerateNumericCode(s.codeLength(purpose))
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}

	codeHash, err := security.HashSecret(code)
	if err != nil {
		return "", fmt.Errorf("hash otp code: %w", err)
	}

	challenge := domain.OTPChallenge{
		Identifier: identifier,
		Purpose:    purpose,
		CodeHash:   codeHash,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.TTL),
	}

	if err := s.otps.Store(ctx, challenge, s.cfg.TTL); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	if s.metrics != nil {
		s.metrics.OTPIssued(string(purpose))
	}

	return code, nil
}

// Verify checks a submitted code against the stored challenge. A matching
// code consumes the challenge; a mismatch burns an attempt, and burning the
// last one consumes the challenge too.
func (s *OTPService) Verify(ctx context.Context, identifier string, purpose domain.OTPPurpose, code string) error {
	code = strings.TrimSpace(code)
	if identifier == "" || code == "" {
		return ErrOTPMismatch
	}

	challenge, err := s.otps.Fetch(ctx, identifier, purpose)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.countVerification(purpose, "not_found")
			return ErrOTPNotFound
		}
		return fmt.Errorf("fetch otp: %w", err)
	}

	now := s.now().UTC()
	if challenge.IsExpired(now) {
		_ = s.otps.Delete(ctx, identifier, purpose)
		s.countVerification(purpose, "expired")
		return ErrOTPExpired
	}

	if challenge.Attempts >= s.cfg.MaxAttempts {
		_ = s.otps.Delete(ctx, identifier, purpose)
		s.countVerification(purpose, "attempts_exceeded")
		return ErrOTPAttemptsExceeded
	}

	ok, err := security.VerifySecret(code, challenge.CodeHash)
	if err != nil {
		return fmt.Errorf("verify otp code: %w", err)
	}
	if !ok {
		attempts, incErr := s.otps.IncrementAttempts(ctx, identifier, purpose)
		if incErr != nil && !errors.Is(incErr, repository.ErrNotFound) {
			return fmt.Errorf("increment otp attempts: %w", incErr)
		}
		if attempts >= s.cfg.MaxAttempts {
			_ = s.otps.Delete(ctx, identifier, purpose)
			s.countVerification(purpose, "attempts_exceeded")
			return ErrOTPAttemptsExceeded
		}
		s.countVerification(purpose, "mismatch")
		return ErrOTPMismatch
	}

	if err := s.otps.Delete(ctx, identifier, purpose); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("consume otp: %w", err)
	}

	s.countVerification(purpose, "success")
	return nil
}

func (s *OTPService) codeLength(purpose domain.OTPPurpose) int {
	if purpose == domain.OTPPurposePasswordReset {
		return s.cfg.ResetCodeLength
	}
	return s.cfg.VerifyCodeLength
}
