package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/medicore/auth-service/internal/core/domain"
	"github.com/medicore/auth-service/internal/infra/config"
	"github.com/medicore/auth-service/internal/infra/security"
)

func testRateLimitSettings() config.RateLimitSettings {
	return config.RateLimitSettings{
		WindowDuration:           time.Minute,
		LoginMaxAttempts:         3,
		PasswordResetMaxAttempts: 3,
	}
}

type authFixture struct {
	svc      *AuthService
	sessions *SessionService
	accounts *memAccountRepo
	current  *time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	issuer, err := security.NewTokenIssuer("auth-service", "access-secret-0123456789", "refresh-secret-0123456789", 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := &now
	issuer.WithClock(func() time.Time { return *current })

	accounts := newMemAccountRepo()
	sessions := NewSessionService(newMemSessionRepo(), issuer, &captureEvents{}, zaptest.NewLogger(t))
	sessions.WithClock(func() time.Time { return *current })

	svc := NewAuthService(accounts, sessions, newMemRateLimitStore(), testRateLimitSettings(), zaptest.NewLogger(t))
	svc.WithClock(func() time.Time { return *current })

	return &authFixture{svc: svc, sessions: sessions, accounts: accounts, current: current}
}

func (f *authFixture) seedAccount(t *testing.T, role domain.Role, status domain.AccountStatus, password, securityCode string) domain.Account {
	t.Helper()

	passwordHash, err := security.HashSecret(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	account := domain.Account{
		ID:           uuid.NewString(),
		Username:     "jdoe",
		Email:        "jdoe@example.com",
		PasswordHash: passwordHash,
		Role:         role,
		Status:       status,
		RegisteredAt: *f.current,
	}

	if securityCode != "" {
		codeHash, err := security.HashSecret(securityCode)
		if err != nil {
			t.Fatalf("hash security code: %v", err)
		}
		account.SecurityCodeHash = &codeHash
	}

	if err := f.accounts.Create(context.Background(), account); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	return account
}

func TestLoginSuccess(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, domain.RoleStudent, domain.AccountStatusActive, "Sup3rSecret!", "")

	pair, account, err := f.svc.Login(context.Background(), "jdoe", "Sup3rSecret!", "")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}
	if account.PasswordHash != "" || account.SecurityCodeHash != nil {
		t.Fatal("returned account must not carry secret hashes")
	}
	if account.LastLogin != nil {
		// Sanitized snapshot was taken before RecordLogin ran; the store
		// has the timestamp.
		t.Fatal("sanitized snapshot should predate the login stamp")
	}

	stored, err := f.accounts.GetByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("get stored account: %v", err)
	}
	if stored.LastLogin == nil {
		t.Fatal("expected last login to be recorded")
	}
}

func TestLoginByEmailIdentifier(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, domain.RoleStudent, domain.AccountStatusActive, "Sup3rSecret!", "")

	if _, _, err := f.svc.Login(context.Background(), "jdoe@example.com", "Sup3rSecret!", ""); err != nil {
		t.Fatalf("login by email returned error: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, domain.RoleStudent, domain.AccountStatusActive, "Sup3rSecret!", "")

	_, _, err := f.svc.Login(context.Background(), "jdoe", "wrong", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownIdentifierIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, domain.RoleStudent, domain.AccountStatusActive, "Sup3rSecret!", "")

	_, _, errUnknown := f.svc.Login(context.Background(), "nobody", "Sup3rSecret!", "")
	_, _, errWrongPassword := f.svc.Login(context.Background(), "jdoe", "wrong", "")

	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrongPassword, ErrInvalidCredentials) {
		t.Fatalf("both failures must map to ErrInvalidCredentials, got %v and %v", errUnknown, errWrongPassword)
	}
}

func TestLoginPendingAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, domain.RoleStudent, domain.AccountStatusPending, "Sup3rSecret!", "")

	_, _, err := f.svc.Login(context.Background(), "jdoe", "Sup3rSecret!", "")
	if !errors.Is(err, ErrAccountPending) {
		t.Fatalf("expected ErrAccountPending, got %v", err)
	}
}

func TestLoginLockedAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, domain.RoleStudent, domain.AccountStatusLocked, "Sup3rSecret!", "")

	_, _, err := f.svc.Login(context.Background(), "jdoe", "Sup3rSecret!", "")
	if !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
}

func TestLoginDoctorSecurityCode(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, domain.RoleDoctor, domain.AccountStatusActive, "Sup3rSecret!", "314159")

	if _, _, err := f.svc.Login(context.Background(), "jdoe", "Sup3rSecret!", ""); !errors.Is(err, ErrInvalidSecurityCode) {
		t.Fatalf("expected ErrInvalidSecurityCode without code, got %v", err)
	}
	if _, _, err := f.svc.Login(context.Background(), "jdoe", "Sup3rSecret!", "000000"); !errors.Is(err, ErrInvalidSecurityCode) {
		t.Fatalf("expected ErrInvalidSecurityCode with wrong code, got %v", err)
	}
	if _, _, err := f.svc.Login(context.Background(), "jdoe", "Sup3rSecret!", "314159"); err != nil {
		t.Fatalf("expected doctor login to succeed, got %v", err)
	}
}

func TestLoginRateLimited(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, domain.RoleStudent, domain.AccountStatusActive, "Sup3rSecret!", "")

	for i := 0; i < 3; i++ {
		if _, _, err := f.svc.Login(context.Background(), "jdoe", "wrong", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// The limit blocks even correct credentials.
	if _, _, err := f.svc.Login(context.Background(), "jdoe", "Sup3rSecret!", ""); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}

	// The window slides open again.
	*f.current = f.current.Add(2 * time.Minute)
	if _, _, err := f.svc.Login(context.Background(), "jdoe", "Sup3rSecret!", ""); err != nil {
		t.Fatalf("expected login to succeed after window, got %v", err)
	}
}

func TestLoginThrottledCarriesRetryAfter(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, domain.RoleStudent, domain.AccountStatusActive, "Sup3rSecret!", "")

	for i := 0; i < 3; i++ {
		if _, _, err := f.svc.Login(context.Background(), "jdoe", "wrong", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// Half the window has already elapsed since the oldest failure.
	*f.current = f.current.Add(30 * time.Second)

	_, _, err := f.svc.Login(context.Background(), "jdoe", "Sup3rSecret!", "")

	var throttled *ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected a ThrottledError, got %v", err)
	}
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("ThrottledError must match ErrTooManyAttempts, got %v", err)
	}
	if throttled.RetryAfter != 30*time.Second {
		t.Fatalf("expected 30s until the oldest attempt ages out, got %s", throttled.RetryAfter)
	}
}

func TestLoginOutcomeCounters(t *testing.T) {
	f := newAuthFixture(t)
	metrics := newCaptureMetrics()
	f.svc.WithMetrics(metrics)
	f.seedAccount(t, domain.RoleStudent, domain.AccountStatusActive, "Sup3rSecret!", "")

	if _, _, err := f.svc.Login(context.Background(), "jdoe", "Sup3rSecret!", ""); err != nil {
		t.Fatalf("login returned error: %v", err)
	}
	if _, _, err := f.svc.Login(context.Background(), "jdoe", "wrong", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	for i := 0; i < 2; i++ {
		f.svc.Login(context.Background(), "jdoe", "wrong", "")
	}
	if _, _, err := f.svc.Login(context.Background(), "jdoe", "Sup3rSecret!", ""); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}

	if got := metrics.loginCount("success"); got != 1 {
		t.Fatalf("expected 1 success, got %d", got)
	}
	if got := metrics.loginCount("invalid_credentials"); got != 3 {
		t.Fatalf("expected 3 invalid_credentials, got %d", got)
	}
	if got := metrics.loginCount("rate_limited"); got != 1 {
		t.Fatalf("expected 1 rate_limited, got %d", got)
	}
}
