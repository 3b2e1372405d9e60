package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medicore/auth-service/internal/core/domain"
	"github.com/medicore/auth-service/internal/usecase"
)

// AccessTokenCookie is the cookie fallback for browser clients that do not
// send an Authorization header.
const AccessTokenCookie = "accessToken"

// ErrorResponse matches the handlers.ErrorResponse structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth validates the presented access token against the session
// registry and binds the session to the request context. A token that
// verifies cryptographically but no longer owns an active session is
// rejected the same as a revoked one.
func RequireAuth(sessions *usecase.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, errMsg := extractAccessToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, errMsg))
			return
		}

		session, claims, err := sessions.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrExpiredAccessToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "access token expired"))
			case errors.Is(err, usecase.ErrInvalidAccessToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid access token"))
			case errors.Is(err, usecase.ErrSessionNotFound),
				errors.Is(err, usecase.ErrSessionRevoked),
				errors.Is(err, usecase.ErrSessionExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "session is no longer active"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authentication failed"))
			}
			return
		}

		c.Set(AccountIDKey, claims.AccountID)
		c.Set(SessionKey, session)
		c.Set(RoleKey, string(session.Role))
		c.Set(AccessTokenKey, token)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.AccountID = claims.AccountID
		}

		c.Next()
	}
}

// RequireRole restricts a route to the listed roles. Must run after
// RequireAuth.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get(RoleKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		current, _ := roleVal.(string)
		for _, role := range roles {
			if string(role) == current {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden,
			newErrorResponse(c, "insufficient permissions"))
	}
}

// extractAccessToken reads the token from the Authorization header first,
// then falls back to the accessToken cookie.
func extractAccessToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", "invalid authorization format: expected 'Bearer <token>'"
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			return "", "missing access token"
		}
		return token, ""
	}

	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie, ""
	}

	return "", "missing authorization header"
}

// GetAccessToken retrieves the raw access token bound by RequireAuth.
func GetAccessToken(c *gin.Context) string {
	val, exists := c.Get(AccessTokenKey)
	if !exists {
		return ""
	}
	token, _ := val.(string)
	return token
}

// GetAuthenticatedAccountID retrieves the account ID from context.
func GetAuthenticatedAccountID(c *gin.Context) (string, bool) {
	accountID, exists := c.Get(AccountIDKey)
	if !exists {
		return "", false
	}
	if id, ok := accountID.(string); ok {
		return id, true
	}
	return "", false
}

// GetAuthenticatedSession retrieves the session bound by RequireAuth.
func GetAuthenticatedSession(c *gin.Context) (*domain.Session, bool) {
	val, exists := c.Get(SessionKey)
	if !exists {
		return nil, false
	}
	session, ok := val.(*domain.Session)
	return session, ok
}
