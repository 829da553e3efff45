package middleware

import (
	"event-planner-core/internal/transport/httpdto"
	"event-planner-core/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler is the catch-all guard: any error a handler attached without
// writing a response is logged and surfaced as an opaque 500 envelope.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.Errorf("request error: %s", err.Error())
		}
		c.JSON(c.Writer.Status(), httpdto.NewErrorResponse("internal error", httpdto.CodeInternalError))
	}
}
