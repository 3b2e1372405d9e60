package security

import (
	"errors"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer("medicore-auth",
		"access-secret-0123456789", "refresh-secret-0123456789",
		15*time.Minute, 168*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	return issuer
}

func TestNewTokenIssuerRequiresDistinctSecrets(t *testing.T) {
	if _, err := NewTokenIssuer("svc", "same-secret", "same-secret", 0, 0); err == nil {
		t.Fatal("expected identical secrets to be rejected")
	}
	if _, err := NewTokenIssuer("svc", "", "refresh", 0, 0); err == nil {
		t.Fatal("expected empty access secret to be rejected")
	}
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.IssueAccess("acct-1")
	if err != nil {
		t.Fatalf("IssueAccess returned error: %v", err)
	}

	claims, err := issuer.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess returned error: %v", err)
	}
	if claims.AccountID != "acct-1" {
		t.Fatalf("account id = %q, want acct-1", claims.AccountID)
	}
	if claims.Kind != TokenKindAccess {
		t.Fatalf("kind = %q, want access", claims.Kind)
	}
	if claims.Issuer != "medicore-auth" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id")
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	issuer := newTestIssuer(t)

	access, err := issuer.IssueAccess("acct-1")
	if err != nil {
		t.Fatalf("IssueAccess returned error: %v", err)
	}
	refresh, err := issuer.IssueRefresh("acct-1")
	if err != nil {
		t.Fatalf("IssueRefresh returned error: %v", err)
	}

	if _, err := issuer.VerifyRefresh(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token verified as refresh: %v", err)
	}
	if _, err := issuer.VerifyAccess(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh token verified as access: %v", err)
	}
}

func TestVerifyAccessExpired(t *testing.T) {
	issuer := newTestIssuer(t)
	current := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	issuer.WithClock(func() time.Time { return current })

	token, err := issuer.IssueAccess("acct-1")
	if err != nil {
		t.Fatalf("IssueAccess returned error: %v", err)
	}

	current = current.Add(16 * time.Minute)
	if _, err := issuer.VerifyAccess(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyAccessGarbage(t *testing.T) {
	issuer := newTestIssuer(t)

	for _, token := range []string{"", "   ", "not.a.jwt", "a.b"} {
		if _, err := issuer.VerifyAccess(token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewTokenIssuer("medicore-auth",
		"other-access-secret-01234", "other-refresh-secret-01234",
		15*time.Minute, 168*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}

	token, err := other.IssueAccess("acct-1")
	if err != nil {
		t.Fatalf("IssueAccess returned error: %v", err)
	}

	if _, err := issuer.VerifyAccess(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign signature, got %v", err)
	}
}

func TestIssuedTokensAreUnique(t *testing.T) {
	issuer := newTestIssuer(t)
	fixed := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	issuer.WithClock(func() time.Time { return fixed })

	first, err := issuer.IssueAccess("acct-1")
	if err != nil {
		t.Fatalf("IssueAccess returned error: %v", err)
	}
	second, err := issuer.IssueAccess("acct-1")
	if err != nil {
		t.Fatalf("IssueAccess returned error: %v", err)
	}
	if first == second {
		t.Fatal("two tokens issued at the same instant must differ")
	}
}
