package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medicore/auth-service/internal/core/domain"
	"github.com/medicore/auth-service/internal/core/port"
	"github.com/medicore/auth-service/internal/infra/security"
	"github.com/medicore/auth-service/internal/repository"
)

var (
	// ErrSessionNotFound indicates no session owns the presented token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionRevoked indicates the session was revoked ahead of validation.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrSessionExpired indicates the session expired before validation.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionConflict indicates the session changed concurrently during rotation.
	ErrSessionConflict = errors.New("session conflict")
	// ErrInvalidAccessToken indicates the access token is malformed or its signature failed.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the access token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrInvalidRefreshToken indicates the refresh token does not exist or was revoked.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrExpiredRefreshToken indicates the refresh token has expired.
	ErrExpiredRefreshToken = errors.New("refresh token expired")
)

// TokenPair carries a freshly issued access/refresh token pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// SessionService is the session registry: it owns the single-active-session
// invariant and the token-to-session binding. Tokens are persisted only as
// SHA-256 hashes.
type SessionService struct {
	sessions port.SessionRepository
	issuer   *security.TokenIssuer
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions port.SessionRepository, issuer *security.TokenIssuer, events port.EventPublisher, logger *zap.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		issuer:   issuer,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Establish issues a token pair and registers the session, displacing any
// previously active session for the account.
func (s *SessionService) Establish(ctx context.Context, account domain.Account) (TokenPair, *domain.Session, error) {
	accessToken, err := s.issuer.IssueAccess(account.ID)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := s.issuer.IssueRefresh(account.ID)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("issue refresh token: %w", err)
	}

	now := s.now().UTC()
	pair := TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now.Add(s.issuer.AccessTTL()),
		RefreshExpiresAt: now.Add(s.issuer.RefreshTTL()),
	}

	session := domain.Session{
		ID:               uuid.NewString(),
		AccountID:        account.ID,
		Role:             account.Role,
		AccessTokenHash:  security.HashToken(accessToken),
		RefreshTokenHash: security.HashToken(refreshToken),
		SessionType:      domain.SessionTypeLogin,
		CreatedAt:        now,
		AccessExpiresAt:  pair.AccessExpiresAt,
		ExpiresAt:        pair.RefreshExpiresAt,
	}

	if err := s.sessions.CreateActive(ctx, session); err != nil {
		return TokenPair{}, nil, fmt.Errorf("create session: %w", err)
	}

	return pair, &session, nil
}

// Authenticate validates an access token end to end: signature and expiry
// first, then the registry binding. A cryptographically valid token whose
// session was revoked or rotated away is rejected.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (*domain.Session, *security.Claims, error) {
	claims, err := s.issuer.VerifyAccess(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, nil, ErrExpiredAccessToken
		}
		return nil, nil, ErrInvalidAccessToken
	}

	session, err := s.sessions.GetByAccessTokenHash(ctx, security.HashToken(accessToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("lookup session: %w", err)
	}

	now := s.now().UTC()
	if session.RevokedAt != nil {
		return nil, nil, ErrSessionRevoked
	}
	if !session.IsActive(now) {
		return nil, nil, ErrSessionExpired
	}

	return session, claims, nil
}

// Refresh rotates the session's access token. The previous access token is
// invalidated the moment the registry row updates; the refresh token and
// the session's overall lifetime are untouched.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return TokenPair{}, ErrExpiredRefreshToken
		}
		return TokenPair{}, ErrInvalidRefreshToken
	}

	session, err := s.sessions.GetByRefreshTokenHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, fmt.Errorf("lookup session: %w", err)
	}

	now := s.now().UTC()
	if session.RevokedAt != nil {
		return TokenPair{}, ErrSessionRevoked
	}
	if !session.IsActive(now) {
		return TokenPair{}, ErrSessionExpired
	}

	accessToken, err := s.issuer.IssueAccess(claims.AccountID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	accessExpiresAt := now.Add(s.issuer.AccessTTL())
	if err := s.sessions.RotateAccessToken(ctx, session.ID, security.HashToken(accessToken), accessExpiresAt); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return TokenPair{}, ErrSessionConflict
		}
		return TokenPair{}, fmt.Errorf("rotate access token: %w", err)
	}

	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: session.ExpiresAt,
	}, nil
}

// Logout revokes the session owning the access token. Revoking an already
// revoked session is reported as ErrSessionRevoked rather than success so
// replayed logouts stay visible.
func (s *SessionService) Logout(ctx context.Context, accessToken string) error {
	session, _, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if err := s.sessions.Revoke(ctx, session.ID, "logout", now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionRevoked
		}
		return fmt.Errorf("revoke session: %w", err)
	}

	s.publishRevoked(ctx, session.ID, session.AccountID, "logout", now)
	return nil
}

// InvalidateAll revokes every active session for the account and returns
// how many were displaced.
func (s *SessionService) InvalidateAll(ctx context.Context, accountID, reason string) (int, error) {
	now := s.now().UTC()

	count, err := s.sessions.RevokeAllForAccount(ctx, accountID, reason, now)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}

	if count > 0 {
		s.publishRevoked(ctx, "", accountID, reason, now)
	}

	return count, nil
}

// List returns the account's session history, newest first.
func (s *SessionService) List(ctx context.Context, accountID string) ([]domain.Session, error) {
	sessions, err := s.sessions.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionService) publishRevoked(ctx context.Context, sessionID, accountID, reason string, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.SessionRevokedEvent{
		SessionID: sessionID,
		AccountID: accountID,
		Reason:    reason,
		RevokedAt: at,
	}
	if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
		s.logger.Warn("publish session revoked event failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}
