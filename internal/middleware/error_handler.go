package middleware

import (
	"github.com/gin-gonic/gin"
	apperrors "relay/pkg/errors"
)

// ErrorHandler renders the last error attached with c.Error when nothing was
// written yet. Auth failures and internal errors get a fixed message.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last()
		statusCode := apperrors.HTTPStatusFromError(err.Err)

		message := err.Error()
		switch {
		case apperrors.IsAuthFailure(err.Err):
			message = "Invalid or expired session"
		case statusCode >= 500:
			message = apperrors.ErrInternalServer.Error()
		}
		c.JSON(statusCode, apperrors.NewAPIError(message, statusCode))
	}
}
