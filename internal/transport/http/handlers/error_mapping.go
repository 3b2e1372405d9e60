package handlers

import (
	"errors"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medicore/auth-service/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against the known cases
// or falls back to a generic response. The first matching case wins.
func RespondWithMappedError(c *gin.Context, err error, fallbackStatus int, fallbackMessage string, cases ...ErrorCase) {
	status, message := fallbackStatus, fallbackMessage
	for _, cs := range cases {
		if cs.Err == nil || !errors.Is(err, cs.Err) {
			continue
		}
		status, message = cs.Status, cs.Message
		break
	}

	c.JSON(status, NewErrorResponse(c, message))
}

// setRetryAfter advertises the throttle window on rate-limited responses.
func setRetryAfter(c *gin.Context, err error) {
	var throttled *usecase.ThrottledError
	if errors.As(err, &throttled) && throttled.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(throttled.RetryAfter.Seconds()))))
	}
}
