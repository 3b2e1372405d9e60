package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/medicore/auth-service/internal/core/domain"
	"github.com/medicore/auth-service/internal/infra/security"
)

func newTestSessionService(t *testing.T) (*SessionService, *memSessionRepo, *captureEvents, *time.Time) {
	t.Helper()

	issuer, err := security.NewTokenIssuer("auth-service", "access-secret-0123456789", "refresh-secret-0123456789", 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := &now
	issuer.WithClock(func() time.Time { return *current })

	repo := newMemSessionRepo()
	events := &captureEvents{}
	svc := NewSessionService(repo, issuer, events, zaptest.NewLogger(t))
	svc.WithClock(func() time.Time { return *current })

	return svc, repo, events, current
}

func activeAccount() domain.Account {
	return domain.Account{
		ID:     "account-1",
		Role:   domain.RoleStudent,
		Status: domain.AccountStatusActive,
	}
}

func TestSessionEstablishAndAuthenticate(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t)
	ctx := context.Background()

	pair, session, err := svc.Establish(ctx, activeAccount())
	if err != nil {
		t.Fatalf("Establish returned error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected non-empty token pair")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}
	if session.SessionType != domain.SessionTypeLogin {
		t.Fatalf("unexpected session type %q", session.SessionType)
	}

	got, claims, err := svc.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if got.ID != session.ID {
		t.Fatalf("expected session %s, got %s", session.ID, got.ID)
	}
	if claims.AccountID != "account-1" {
		t.Fatalf("unexpected account in claims: %s", claims.AccountID)
	}
}

func TestSessionSingleActivePerAccount(t *testing.T) {
	svc, repo, _, current := newTestSessionService(t)
	ctx := context.Background()

	first, _, err := svc.Establish(ctx, activeAccount())
	if err != nil {
		t.Fatalf("first Establish returned error: %v", err)
	}

	*current = current.Add(time.Minute)
	second, _, err := svc.Establish(ctx, activeAccount())
	if err != nil {
		t.Fatalf("second Establish returned error: %v", err)
	}

	if repo.activeCount("account-1") != 1 {
		t.Fatalf("expected exactly one active session, got %d", repo.activeCount("account-1"))
	}

	// The first session's tokens are dead.
	if _, _, err := svc.Authenticate(ctx, first.AccessToken); err == nil {
		t.Fatal("displaced session's access token must not authenticate")
	}
	if _, _, err := svc.Authenticate(ctx, second.AccessToken); err != nil {
		t.Fatalf("new session's access token must authenticate: %v", err)
	}
}

func TestSessionConcurrentLoginsLeaveOneActive(t *testing.T) {
	svc, repo, _, _ := newTestSessionService(t)
	ctx := context.Background()

	const logins = 8
	errs := make(chan error, logins)

	var wg sync.WaitGroup
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Establish(ctx, activeAccount())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Establish returned error: %v", err)
		}
	}

	if got := repo.activeCount("account-1"); got != 1 {
		t.Fatalf("expected exactly one active session after %d concurrent logins, got %d", logins, got)
	}

	sessions, err := repo.ListByAccount(ctx, "account-1")
	if err != nil {
		t.Fatalf("ListByAccount returned error: %v", err)
	}
	if len(sessions) != logins {
		t.Fatalf("expected %d session rows, got %d", logins, len(sessions))
	}
}

func TestSessionLoginRacingInvalidateAll(t *testing.T) {
	svc, repo, _, _ := newTestSessionService(t)
	ctx := context.Background()

	if _, _, err := svc.Establish(ctx, activeAccount()); err != nil {
		t.Fatalf("Establish returned error: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, _, err := svc.Establish(ctx, activeAccount()); err != nil {
			t.Errorf("Establish returned error: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := svc.InvalidateAll(ctx, "account-1", "password_reset"); err != nil {
			t.Errorf("InvalidateAll returned error: %v", err)
		}
	}()
	wg.Wait()

	// Either order is fine; what must never happen is an active session
	// that predates the revocation surviving alongside the new one.
	if got := repo.activeCount("account-1"); got > 1 {
		t.Fatalf("expected at most one active session, got %d", got)
	}
}

func TestSessionAuthenticateRejectsGarbage(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t)

	_, _, err := svc.Authenticate(context.Background(), "not-a-jwt")
	if !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
}

func TestSessionAuthenticateExpiredToken(t *testing.T) {
	svc, _, _, current := newTestSessionService(t)
	ctx := context.Background()

	pair, _, err := svc.Establish(ctx, activeAccount())
	if err != nil {
		t.Fatalf("Establish returned error: %v", err)
	}

	*current = current.Add(16 * time.Minute)
	_, _, err = svc.Authenticate(ctx, pair.AccessToken)
	if !errors.Is(err, ErrExpiredAccessToken) {
		t.Fatalf("expected ErrExpiredAccessToken, got %v", err)
	}
}

func TestSessionRefreshRotatesAccessToken(t *testing.T) {
	svc, _, _, current := newTestSessionService(t)
	ctx := context.Background()

	pair, _, err := svc.Establish(ctx, activeAccount())
	if err != nil {
		t.Fatalf("Establish returned error: %v", err)
	}

	*current = current.Add(10 * time.Minute)
	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if rotated.AccessToken == pair.AccessToken {
		t.Fatal("expected a fresh access token")
	}
	if rotated.RefreshToken != pair.RefreshToken {
		t.Fatal("refresh token must be preserved across rotation")
	}

	// Rotation invalidates the previous access token immediately.
	if _, _, err := svc.Authenticate(ctx, pair.AccessToken); err == nil {
		t.Fatal("old access token must not authenticate after rotation")
	}
	if _, _, err := svc.Authenticate(ctx, rotated.AccessToken); err != nil {
		t.Fatalf("rotated access token must authenticate: %v", err)
	}
}

func TestSessionRefreshRejectsAccessToken(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t)
	ctx := context.Background()

	pair, _, err := svc.Establish(ctx, activeAccount())
	if err != nil {
		t.Fatalf("Establish returned error: %v", err)
	}

	// An access token presented as a refresh token fails verification:
	// different secret, different kind claim.
	if _, err := svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestSessionRefreshAfterRevocation(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t)
	ctx := context.Background()

	pair, _, err := svc.Establish(ctx, activeAccount())
	if err != nil {
		t.Fatalf("Establish returned error: %v", err)
	}

	if _, err := svc.InvalidateAll(ctx, "account-1", "password_reset"); err != nil {
		t.Fatalf("InvalidateAll returned error: %v", err)
	}

	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestSessionLogout(t *testing.T) {
	svc, _, events, _ := newTestSessionService(t)
	ctx := context.Background()

	pair, _, err := svc.Establish(ctx, activeAccount())
	if err != nil {
		t.Fatalf("Establish returned error: %v", err)
	}

	if err := svc.Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	if _, _, err := svc.Authenticate(ctx, pair.AccessToken); err == nil {
		t.Fatal("access token must not authenticate after logout")
	}

	// Replayed logout is rejected, not silently accepted.
	if err := svc.Logout(ctx, pair.AccessToken); err == nil {
		t.Fatal("expected error on logout replay")
	}

	if len(events.sessionRevoked) != 1 {
		t.Fatalf("expected 1 session revoked event, got %d", len(events.sessionRevoked))
	}
	if events.sessionRevoked[0].Reason != "logout" {
		t.Fatalf("unexpected revoke reason %q", events.sessionRevoked[0].Reason)
	}
}

func TestSessionInvalidateAllCount(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t)
	ctx := context.Background()

	if _, _, err := svc.Establish(ctx, activeAccount()); err != nil {
		t.Fatalf("Establish returned error: %v", err)
	}

	count, err := svc.InvalidateAll(ctx, "account-1", "password_reset")
	if err != nil {
		t.Fatalf("InvalidateAll returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 revoked session, got %d", count)
	}

	// No active sessions left; a second pass revokes nothing.
	count, err = svc.InvalidateAll(ctx, "account-1", "password_reset")
	if err != nil {
		t.Fatalf("second InvalidateAll returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 revoked sessions, got %d", count)
	}
}
