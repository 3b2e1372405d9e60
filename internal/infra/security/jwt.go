package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenInvalid indicates the token is malformed or its signature does not verify.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates the token's signature verified but it has expired.
	ErrTokenExpired = errors.New("token expired")
)

// TokenKind distinguishes the two halves of the issued pair.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims carries the account identity embedded in issued tokens.
type Claims struct {
	AccountID string    `json:"uid"`
	Kind      TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenIssuer creates and verifies the signed access/refresh token pair.
// It is stateless: the session registry owns the mapping from issued
// tokens to session records. Access and refresh tokens are signed with
// distinct secrets and carry distinct expiries.
type TokenIssuer struct {
	issuer        string
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(issuer, accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return nil, fmt.Errorf("signing secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	return &TokenIssuer{
		issuer:        issuer,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (t *TokenIssuer) WithClock(clock func() time.Time) {
	if clock != nil {
		t.now = clock
	}
}

// AccessTTL returns the configured access token lifetime.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// IssueAccess signs a short-lived access token for the account.
func (t *TokenIssuer) IssueAccess(accountID string) (string, error) {
	return t.issue(accountID, TokenKindAccess, t.accessSecret, t.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for the account.
func (t *TokenIssuer) IssueRefresh(accountID string) (string, error) {
	return t.issue(accountID, TokenKindRefresh, t.refreshSecret, t.refreshTTL)
}

func (t *TokenIssuer) issue(accountID string, kind TokenKind, secret []byte, ttl time.Duration) (string, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", fmt.Errorf("account id is required")
	}

	now := t.now()
	claims := Claims{
		AccountID: accountID,
		Kind:      kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}

	return signed, nil
}

// VerifyAccess validates an access token and returns its claims.
func (t *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return t.verify(token, TokenKindAccess, t.accessSecret)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (t *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	return t.verify(token, TokenKindRefresh, t.refreshSecret)
}

func (t *TokenIssuer) verify(token string, kind TokenKind, secret []byte) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Kind != kind {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.AccountID) == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
