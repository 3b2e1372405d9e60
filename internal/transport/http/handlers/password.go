package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medicore/auth-service/internal/infra/security"
	"github.com/medicore/auth-service/internal/usecase"
)

// PasswordHandler exposes the password reset flow.
type PasswordHandler struct {
	reset *usecase.PasswordResetService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(reset *usecase.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{reset: reset}
}

// RegisterRoutes binds password reset routes onto the group.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/forgot-password", h.forgotPassword)
	r.POST("/reset-password", h.resetPassword)
}

// ForgotPassword godoc
// @Summary Request a password reset code
// @Description Emails a reset code. Responds identically whether or not the identifier exists.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Reset request payload"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/forgot-password [post]
func (h *PasswordHandler) forgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset request payload"))
		return
	}

	err := h.reset.RequestReset(c.Request.Context(), strings.TrimSpace(req.Identifier))
	if err != nil {
		setRetryAfter(c, err)
		RespondWithMappedError(c, err, http.StatusInternalServerError, "failed to request password reset",
			ErrorCase{Err: usecase.ErrTooManyAttempts, Status: http.StatusTooManyRequests, Message: "too many reset requests, try again later"},
		)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "if the account exists, a reset code has been sent"})
}

// ResetPassword godoc
// @Summary Complete a password reset
// @Description Consumes the emailed reset code, replaces the password and revokes every session of the account.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset payload"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/reset-password [post]
func (h *PasswordHandler) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	err := h.reset.Reset(c.Request.Context(), strings.TrimSpace(req.Identifier), strings.TrimSpace(req.Code), req.NewPassword)
	if err != nil {
		var policyErr *security.PasswordValidationError
		if errors.As(err, &policyErr) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Error()))
			return
		}
		RespondWithMappedError(c, err, http.StatusInternalServerError, "failed to reset password",
			ErrorCase{Err: usecase.ErrOTPMismatch, Status: http.StatusBadRequest, Message: "invalid reset code"},
			ErrorCase{Err: usecase.ErrOTPNotFound, Status: http.StatusBadRequest, Message: "invalid reset code"},
			ErrorCase{Err: usecase.ErrOTPExpired, Status: http.StatusGone, Message: "reset code expired, request a new one"},
			ErrorCase{Err: usecase.ErrOTPAttemptsExceeded, Status: http.StatusTooManyRequests, Message: "too many attempts, request a new code"},
		)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated, sign in with your new password"})
}
