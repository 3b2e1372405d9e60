package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medicore/auth-service/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountSummary describes the account view returned by the API. Secret
// hashes never appear here.
type AccountSummary struct {
	ID             string               `json:"id"`
	Username       string               `json:"username"`
	Email          string               `json:"email"`
	SecondaryEmail *string              `json:"secondary_email,omitempty"`
	Role           domain.Role          `json:"role"`
	Status         domain.AccountStatus `json:"status"`
	RegisteredAt   time.Time            `json:"registered_at"`
	VerifiedAt     *time.Time           `json:"verified_at,omitempty"`
	LastLogin      *time.Time           `json:"last_login,omitempty"`
}

func newAccountSummary(account domain.Account) AccountSummary {
	return AccountSummary{
		ID:             account.ID,
		Username:       account.Username,
		Email:          account.Email,
		SecondaryEmail: account.SecondaryEmail,
		Role:           account.Role,
		Status:         account.Status,
		RegisteredAt:   account.RegisteredAt,
		VerifiedAt:     account.VerifiedAt,
		LastLogin:      account.LastLogin,
	}
}

// RegisterRequest defines the payload for account registration.
type RegisterRequest struct {
	Username       string `json:"username" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	SecondaryEmail string `json:"secondary_email"`
	Password       string `json:"password" binding:"required"`
	SecurityCode   string `json:"security_code"`
	Role           string `json:"role" binding:"required"`
}

// RegisterResponse is returned after account creation.
type RegisterResponse struct {
	Message string         `json:"message"`
	Account AccountSummary `json:"account"`
}

// VerifyOTPRequest defines the payload for the email verification endpoint.
type VerifyOTPRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Code       string `json:"code" binding:"required"`
}

// ResendOTPRequest defines the payload for reissuing a verification code.
type ResendOTPRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Identifier   string `json:"identifier" binding:"required"`
	Password     string `json:"password" binding:"required"`
	SecurityCode string `json:"security_code"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int            `json:"expires_in"`
	Account      AccountSummary `json:"account"`
}

// RefreshRequest represents the payload to rotate an access token. The
// token may alternatively arrive in the refreshToken cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse carries the rotated access token.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ForgotPasswordRequest defines the payload to request a reset code.
type ForgotPasswordRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

// ResetPasswordRequest defines the payload to complete a password reset.
type ResetPasswordRequest struct {
	Identifier  string `json:"identifier" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// SessionSummary provides a compact view of a registry entry.
type SessionSummary struct {
	ID          string             `json:"id"`
	SessionType domain.SessionType `json:"session_type"`
	CreatedAt   time.Time          `json:"created_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
	RevokedAt   *time.Time         `json:"revoked_at,omitempty"`
	Reason      *string            `json:"reason,omitempty"`
}

// SessionListResponse wraps the account's session history.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}
