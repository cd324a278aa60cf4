package middleware

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	"clinica-medicos/utils"
)

// ErrorHandler reports errors attached to server-side failures. Client errors
// (4xx) are expected outcomes and are not reported.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Status() < http.StatusInternalServerError {
			return
		}

		extra := map[string]interface{}{
			"endpoint": routeOf(c),
			"method":   c.Request.Method,
			"status":   c.Writer.Status(),
		}
		hub := sentry.GetHubFromContext(c.Request.Context())
		for _, ginErr := range c.Errors {
			utils.CaptureError(hub, ginErr.Err, extra)
		}
	}
}
