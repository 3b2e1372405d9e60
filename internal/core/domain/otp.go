package domain

import "time"

// OTPPurpose scopes a challenge to the flow that issued it.
type OTPPurpose string

const (
	OTPPurposeEmailVerify   OTPPurpose = "email_verify"
	OTPPurposePasswordReset OTPPurpose = "password_reset"
)

// Valid reports whether the purpose is a known challenge scope.
func (p OTPPurpose) Valid() bool {
	return p == OTPPurposeEmailVerify || p == OTPPurposePasswordReset
}

// OTPChallenge is a stored one-time code challenge. The code itself is
// only ever persisted as an Argon2id hash; the plaintext exists solely in
// the issuing call's return value.
type OTPChallenge struct {
	Identifier string
	Purpose    OTPPurpose
	CodeHash   string
	Attempts   int
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// IsExpired reports whether the challenge has elapsed its validity window.
func (c OTPChallenge) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}
