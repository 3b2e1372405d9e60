package domain

import "time"

// AccountVerifiedEvent is published when an account completes OTP verification.
type AccountVerifiedEvent struct {
	EventID    string         `json:"event_id"`
	AccountID  string         `json:"account_id"`
	Role       Role           `json:"role"`
	VerifiedAt time.Time      `json:"verified_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// PasswordChangedEvent is published after a password reset completes.
type PasswordChangedEvent struct {
	EventID         string         `json:"event_id"`
	AccountID       string         `json:"account_id"`
	ChangedAt       time.Time      `json:"changed_at"`
	SessionsRevoked int            `json:"sessions_revoked"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// SessionRevokedEvent is published when a session leaves the active state.
type SessionRevokedEvent struct {
	EventID   string         `json:"event_id"`
	SessionID string         `json:"session_id"`
	AccountID string         `json:"account_id"`
	Reason    string         `json:"reason"`
	RevokedAt time.Time      `json:"revoked_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
