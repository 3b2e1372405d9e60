package domain

import "time"

// Role tags the kind of principal an account represents.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
	RoleStudent Role = "student"
)

// Valid reports whether the role is one of the known principal kinds.
func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RoleStaff, RoleStudent:
		return true
	}
	return false
}

// AccountStatus enumerates possible account states.
type AccountStatus string

const (
	AccountStatusPending  AccountStatus = "pending"
	AccountStatusActive   AccountStatus = "active"
	AccountStatusLocked   AccountStatus = "locked"
	AccountStatusDisabled AccountStatus = "disabled"
)

// Account mirrors the persisted representation in the accounts table.
// Username holds the login identifier (a username for doctors and staff,
// an index number for students). Role-specific profile fields live outside
// the authentication core.
type Account struct {
	ID                 string
	Username           string
	Email              string
	SecondaryEmail     *string
	PasswordHash       string
	SecurityCodeHash   *string
	Role               Role
	Status             AccountStatus
	RegisteredAt       time.Time
	VerifiedAt         *time.Time
	LastLogin          *time.Time
	LastPasswordChange time.Time
}

// IsVerified reports whether the account completed email verification.
func (a Account) IsVerified() bool {
	return a.VerifiedAt != nil
}

// CanAuthenticate reports whether the account may hold a session.
func (a Account) CanAuthenticate() bool {
	return a.Status == AccountStatusActive
}
