package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medicore/auth-service/internal/transport/http/middleware"
	"github.com/medicore/auth-service/internal/usecase"
)

// SessionHandler exposes the session registry to authenticated callers.
type SessionHandler struct {
	sessions *usecase.SessionService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions *usecase.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes binds session routes onto the group. The group must carry
// RequireAuth.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.list)
	r.DELETE("", h.revokeAll)
}

// List godoc
// @Summary List the caller's sessions
// @Description Returns the caller's session history, newest first. Token hashes are never included.
// @Tags Sessions
// @Produce json
// @Success 200 {object} SessionListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions [get]
func (h *SessionHandler) list(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessions, err := h.sessions.List(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list sessions"))
		return
	}

	resp := SessionListResponse{Sessions: make([]SessionSummary, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, SessionSummary{
			ID:          s.ID,
			SessionType: s.SessionType,
			CreatedAt:   s.CreatedAt,
			ExpiresAt:   s.ExpiresAt,
			RevokedAt:   s.RevokedAt,
			Reason:      s.RevokeReason,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// RevokeAll godoc
// @Summary Revoke every session of the caller
// @Description Terminates all sessions of the account, including the current one.
// @Tags Sessions
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions [delete]
func (h *SessionHandler) revokeAll(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if _, err := h.sessions.InvalidateAll(c.Request.Context(), accountID, "revoked_by_owner"); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke sessions"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "all sessions revoked"})
}
