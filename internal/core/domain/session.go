package domain

import "time"

// SessionType records whether the session is live or has been terminated.
type SessionType string

const (
	SessionTypeLogin  SessionType = "LOGIN"
	SessionTypeLogout SessionType = "LOGOUT"
)

// Session binds an issued token pair to a single account. Tokens are stored
// as SHA-256 hashes; the registry looks sessions up by those hashes.
// ExpiresAt bounds the whole session (refresh window), AccessExpiresAt bounds
// the currently valid access token and moves forward on rotation.
type Session struct {
	ID               string
	AccountID        string
	Role             Role
	AccessTokenHash  string
	RefreshTokenHash string
	SessionType      SessionType
	CreatedAt        time.Time
	AccessExpiresAt  time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	RevokeReason     *string
}

// IsActive reports whether the session may still authenticate requests.
func (s Session) IsActive(at time.Time) bool {
	if s.RevokedAt != nil || s.SessionType == SessionTypeLogout {
		return false
	}
	return s.ExpiresAt.After(at)
}

// Revoke marks the session terminated. Returns true when the session
// changed state.
func (s *Session) Revoke(at time.Time, reason string) bool {
	if s.RevokedAt != nil {
		return false
	}
	s.RevokedAt = &at
	s.RevokeReason = &reason
	s.SessionType = SessionTypeLogout
	return true
}
