package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medicore/auth-service/internal/transport/http/middleware"
	"github.com/medicore/auth-service/internal/usecase"
)

// RefreshTokenCookie names the cookie carrying the refresh token for
// browser clients. API clients use the JSON payload instead.
const RefreshTokenCookie = "refreshToken"

func setAuthCookies(c *gin.Context, pair usecase.TokenPair, secure bool) {
	now := time.Now()

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, pair.AccessToken,
		int(pair.AccessExpiresAt.Sub(now).Seconds()), "/", "", secure, true)

	if pair.RefreshToken != "" {
		c.SetCookie(RefreshTokenCookie, pair.RefreshToken,
			int(pair.RefreshExpiresAt.Sub(now).Seconds()), "/", "", secure, true)
	}
}

func clearAuthCookies(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", secure, true)
}
