package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medicore/auth-service/internal/core/domain"
	"github.com/medicore/auth-service/internal/infra/security"
	"github.com/medicore/auth-service/internal/usecase"
)

// RegistrationHandler exposes account creation and email verification endpoints.
type RegistrationHandler struct {
	registration  *usecase.RegistrationService
	secureCookies bool
}

// RegistrationHandlerOption configures optional RegistrationHandler behaviour.
type RegistrationHandlerOption func(*RegistrationHandler)

// WithRegistrationSecureCookies toggles the Secure attribute on cookies set
// by the verification endpoint.
func WithRegistrationSecureCookies(secure bool) RegistrationHandlerOption {
	return func(h *RegistrationHandler) {
		h.secureCookies = secure
	}
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registration *usecase.RegistrationService, opts ...RegistrationHandlerOption) *RegistrationHandler {
	handler := &RegistrationHandler{registration: registration}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler
}

// RegisterRoutes binds registration routes onto the group.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.register)
	r.POST("/verify-otp", h.verifyOTP)
	r.POST("/resend-otp", h.resendOTP)
}

// Register godoc
// @Summary Register a new account
// @Description Creates a pending account and emails a verification code. Doctors must supply a security code.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request payload"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *RegistrationHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	account, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Username:       strings.TrimSpace(req.Username),
		Email:          req.Email,
		SecondaryEmail: req.SecondaryEmail,
		Password:       req.Password,
		SecurityCode:   req.SecurityCode,
		Role:           domain.Role(req.Role),
	})
	if err != nil {
		// Mail delivery failures keep the account; the client can
		// request a new code through resend-otp.
		if account != nil {
			c.JSON(http.StatusCreated, RegisterResponse{
				Message: "account created, verification email could not be sent; request a new code",
				Account: newAccountSummary(*account),
			})
			return
		}
		var policyErr *security.PasswordValidationError
		if errors.As(err, &policyErr) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Error()))
			return
		}
		RespondWithMappedError(c, err, http.StatusInternalServerError, "failed to register account",
			ErrorCase{Err: usecase.ErrAccountExists, Status: http.StatusConflict, Message: "username or email already registered"},
			ErrorCase{Err: usecase.ErrInvalidRole, Status: http.StatusBadRequest, Message: "unknown role"},
			ErrorCase{Err: usecase.ErrSecurityCodeRequired, Status: http.StatusBadRequest, Message: "security code is required for doctor accounts"},
		)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Message: "account created, check your email for the verification code",
		Account: newAccountSummary(*account),
	})
}

// VerifyOTP godoc
// @Summary Verify an email address
// @Description Consumes the emailed verification code, activates the account and establishes its first session.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "Verification payload"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/verify-otp [post]
func (h *RegistrationHandler) verifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	pair, account, err := h.registration.VerifyAccount(c.Request.Context(), strings.TrimSpace(req.Identifier), strings.TrimSpace(req.Code))
	if err != nil {
		RespondWithMappedError(c, err, http.StatusInternalServerError, "failed to verify account",
			ErrorCase{Err: usecase.ErrOTPMismatch, Status: http.StatusBadRequest, Message: "invalid verification code"},
			ErrorCase{Err: usecase.ErrOTPNotFound, Status: http.StatusBadRequest, Message: "invalid verification code"},
			ErrorCase{Err: usecase.ErrOTPExpired, Status: http.StatusGone, Message: "verification code expired, request a new one"},
			ErrorCase{Err: usecase.ErrOTPAttemptsExceeded, Status: http.StatusTooManyRequests, Message: "too many attempts, request a new code"},
			ErrorCase{Err: usecase.ErrAccountAlreadyVerified, Status: http.StatusConflict, Message: "account already verified"},
		)
		return
	}

	setAuthCookies(c, pair, h.secureCookies)

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(pair.AccessExpiresAt).Seconds()),
		Account:      newAccountSummary(*account),
	})
}

// ResendOTP godoc
// @Summary Reissue a verification code
// @Description Sends a fresh verification code. Responds identically whether or not the identifier exists.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body ResendOTPRequest true "Resend payload"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/resend-otp [post]
func (h *RegistrationHandler) resendOTP(c *gin.Context) {
	var req ResendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid resend payload"))
		return
	}

	err := h.registration.RequestVerification(c.Request.Context(), strings.TrimSpace(req.Identifier))
	if err != nil {
		RespondWithMappedError(c, err, http.StatusInternalServerError, "failed to send verification code",
			ErrorCase{Err: usecase.ErrOTPThrottled, Status: http.StatusTooManyRequests, Message: "a code was sent recently, wait before requesting another"},
			ErrorCase{Err: usecase.ErrAccountAlreadyVerified, Status: http.StatusConflict, Message: "account already verified"},
			ErrorCase{Err: usecase.ErrMailDelivery, Status: http.StatusServiceUnavailable, Message: "could not deliver verification email"},
		)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "if the account exists, a verification code has been sent"})
}
