package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medicore/auth-service/internal/core/domain"
	"github.com/medicore/auth-service/internal/core/port"
	"github.com/medicore/auth-service/internal/infra/logger"
	"github.com/medicore/auth-service/internal/infra/mail"
	"github.com/medicore/auth-service/internal/infra/security"
	"github.com/medicore/auth-service/internal/repository"
)

var (
	// ErrAccountExists indicates the username or email is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidRole indicates an unknown account role.
	ErrInvalidRole = errors.New("invalid role")
	// ErrAccountAlreadyVerified indicates a verification replay against an active account.
	ErrAccountAlreadyVerified = errors.New("account already verified")
	// ErrMailDelivery indicates the challenge was created but the mail could not be sent.
	ErrMailDelivery = errors.New("mail delivery failed")

	// ErrSecurityCodeRequired marks a doctor registration without the
	// clinic-issued security code.
	ErrSecurityCodeRequired = errors.New("security code required")
)

// RegisterInput carries the fields required to create an account.
type RegisterInput struct {
	Username       string
	Email          string
	SecondaryEmail string
	Password       string
	SecurityCode   string
	Role           domain.Role
}

// RegistrationService creates accounts in the pending state and walks them
// through OTP verification to active.
type RegistrationService struct {
	accounts  port.AccountRepository
	otps      *OTPService
	sessions  *SessionService
	mailer    port.Mailer
	events    port.EventPublisher
	validator *security.PasswordValidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	accounts port.AccountRepository,
	otps *OTPService,
	sessions *SessionService,
	mailer port.Mailer,
	events port.EventPublisher,
	validator *security.PasswordValidator,
	log *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		accounts:  accounts,
		otps:      otps,
		sessions:  sessions,
		mailer:    mailer,
		events:    events,
		validator: validator,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Register creates a pending account and issues its email-verify challenge.
// The account persists even when the challenge mail cannot be delivered;
// that failure surfaces as ErrMailDelivery so the caller can offer a resend.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if !input.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if err := s.validator.Validate(input.Password); err != nil {
		return nil, err
	}

	passwordHash, err := security.HashSecret(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:                 uuid.NewString(),
		Username:           username,
		Email:              email,
		PasswordHash:       passwordHash,
		Role:               input.Role,
		Status:             domain.AccountStatusPending,
		RegisteredAt:       now,
		LastPasswordChange: now,
	}

	if secondary := strings.ToLower(strings.TrimSpace(input.SecondaryEmail)); secondary != "" {
		account.SecondaryEmail = &secondary
	}

	if input.Role == domain.RoleDoctor {
		if input.SecurityCode == "" {
			return nil, ErrSecurityCodeRequired
		}
		codeHash, err := security.HashSecret(input.SecurityCode)
		if err != nil {
			return nil, fmt.Errorf("hash security code: %w", err)
		}
		account.SecurityCodeHash = &codeHash
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.Info("account registered",
		zap.String("account_id", account.ID),
		zap.String("email", logger.MaskEmail(account.Email)),
		zap.String("role", string(account.Role)),
	)

	sanitized := account
	sanitized.PasswordHash = ""
	sanitized.SecurityCodeHash = nil

	if err := s.sendVerification(ctx, account.Email); err != nil {
		return &sanitized, err
	}

	return &sanitized, nil
}

// RequestVerification reissues the email-verify challenge, subject to the
// reissue cooldown.
func (s *RegistrationService) RequestVerification(ctx context.Context, identifier string) error {
	account, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Do not disclose whether the identifier exists.
			s.logger.Info("verification requested for unknown identifier",
				zap.String("identifier", logger.MaskString(identifier)),
			)
			return nil
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if account.IsVerified() {
		return ErrAccountAlreadyVerified
	}

	return s.sendVerification(ctx, account.Email)
}

// VerifyAccount consumes an email-verify challenge, activates the account
// and establishes its first session. The pending-to-active transition
// happens at most once.
func (s *RegistrationService) VerifyAccount(ctx context.Context, identifier, code string) (TokenPair, *domain.Account, error) {
	account, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, nil, ErrOTPMismatch
		}
		return TokenPair{}, nil, fmt.Errorf("lookup account: %w", err)
	}

	if err := s.otps.Verify(ctx, account.Email, domain.OTPPurposeEmailVerify, code); err != nil {
		return TokenPair{}, nil, err
	}

	now := s.now().UTC()
	if err := s.accounts.MarkVerified(ctx, account.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, nil, ErrAccountAlreadyVerified
		}
		return TokenPair{}, nil, fmt.Errorf("mark account verified: %w", err)
	}

	account.Status = domain.AccountStatusActive
	account.VerifiedAt = &now

	s.logger.Info("account verified",
		zap.String("account_id", account.ID),
		zap.String("email", logger.MaskEmail(account.Email)),
	)

	if s.events != nil {
		event := domain.AccountVerifiedEvent{
			AccountID:  account.ID,
			Role:       account.Role,
			VerifiedAt: now,
		}
		if err := s.events.PublishAccountVerified(ctx, event); err != nil {
			s.logger.Warn("publish account verified event failed",
				zap.String("account_id", account.ID),
				zap.Error(err),
			)
		}
	}

	pair, _, err := s.sessions.Establish(ctx, *account)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("establish first session: %w", err)
	}

	sanitized := *account
	sanitized.PasswordHash = ""
	sanitized.SecurityCodeHash = nil

	return pair, &sanitized, nil
}

func (s *RegistrationService) sendVerification(ctx context.Context, email string) error {
	code, err := s.otps.Issue(ctx, email, domain.OTPPurposeEmailVerify)
	if err != nil {
		return err
	}

	ttlMinutes := int(s.otps.TTL().Minutes())
	if err := s.mailer.Send(ctx, mail.VerificationMail(email, code, ttlMinutes)); err != nil {
		s.logger.Error("verification mail delivery failed",
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err),
		)
		return ErrMailDelivery
	}

	return nil
}
