package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medicore/auth-service/internal/transport/http/middleware"
	"github.com/medicore/auth-service/internal/usecase"
)

// AuthHandler exposes login, token rotation and logout endpoints.
type AuthHandler struct {
	auth          *usecase.AuthService
	sessions      *usecase.SessionService
	secureCookies bool
}

// AuthHandlerOption configures optional AuthHandler behaviour.
type AuthHandlerOption func(*AuthHandler)

// WithSecureCookies toggles the Secure attribute on issued auth cookies.
func WithSecureCookies(secure bool) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.secureCookies = secure
	}
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, sessions *usecase.SessionService, opts ...AuthHandlerOption) *AuthHandler {
	handler := &AuthHandler{
		auth:     auth,
		sessions: sessions,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}

	return handler
}

// RegisterRoutes binds authentication routes onto the group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.login)
	r.POST("/refresh", h.refresh)
	r.POST("/logout", middleware.RequireAuth(h.sessions), h.logout)
}

// Login godoc
// @Summary Authenticate an account
// @Description Verifies credentials and establishes the account's single active session.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request payload"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "identifier is required"))
		return
	}

	pair, account, err := h.auth.Login(c.Request.Context(), req.Identifier, req.Password, req.SecurityCode)
	if err != nil {
		setRetryAfter(c, err)
		RespondWithMappedError(c, err, http.StatusInternalServerError, "failed to authenticate",
			ErrorCase{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
			ErrorCase{Err: usecase.ErrInvalidSecurityCode, Status: http.StatusUnauthorized, Message: "invalid credentials"},
			ErrorCase{Err: usecase.ErrAccountPending, Status: http.StatusForbidden, Message: "account pending email verification"},
			ErrorCase{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "account is not active"},
			ErrorCase{Err: usecase.ErrTooManyAttempts, Status: http.StatusTooManyRequests, Message: "too many login attempts, try again later"},
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

// Refresh godoc
// @Summary Rotate the access token
// @Description Issues a replacement access token for the session bound to the refresh token. The prior access token stops working immediately.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RefreshRequest false "Refresh request payload"
// @Success 200 {object} RefreshResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) refresh(c *gin.Context) {
	// Body is optional when the refresh token travels in the cookie.
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid refresh payload"))
		return
	}

	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		if cookie, err := c.Cookie(RefreshTokenCookie); err == nil {
			token = cookie
		}
	}
	if token == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh token is required"))
		return
	}

	pair, err := h.sessions.Refresh(c.Request.Context(), token)
	if err != nil {
		RespondWithMappedError(c, err, http.StatusInternalServerError, "failed to refresh token",
			ErrorCase{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
			ErrorCase{Err: usecase.ErrExpiredRefreshToken, Status: http.StatusUnauthorized, Message: "refresh token expired"},
			ErrorCase{Err: usecase.ErrSessionRevoked, Status: http.StatusUnauthorized, Message: "session is no longer active"},
			ErrorCase{Err: usecase.ErrSessionExpired, Status: http.StatusUnauthorized, Message: "session is no longer active"},
			ErrorCase{Err: usecase.ErrSessionConflict, Status: http.StatusConflict, Message: "token already rotated"},
		)
		return
	}

	setAuthCookies(c, pair, h.secureCookies)

	c.JSON(http.StatusOK, RefreshResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(pair.AccessExpiresAt).Seconds()),
	})
}

// Logout godoc
// @Summary Terminate the current session
// @Description Revokes the caller's session. Both tokens of the pair stop working.
// @Tags Authentication
// @Produce json
// @Success 204 {string} string ""
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) logout(c *gin.Context) {
	token := middleware.GetAccessToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), token); err != nil {
		RespondWithMappedError(c, err, http.StatusInternalServerError, "failed to logout",
			ErrorCase{Err: usecase.ErrSessionRevoked, Status: http.StatusUnauthorized, Message: "session is no longer active"},
			ErrorCase{Err: usecase.ErrSessionNotFound, Status: http.StatusUnauthorized, Message: "session is no longer active"},
		)
		return
	}

	clearAuthCookies(c, h.secureCookies)
	c.Status(http.StatusNoContent)
}
