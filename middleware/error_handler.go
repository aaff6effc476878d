package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/lorequeue/common"
)

// ErrorHandler renders the last error attached with c.Error. Errors that are
// not APIErrors become a generic 500 so driver messages never reach clients.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		if apiErr, ok := common.AsAPIError(err); ok {
			if apiErr.Status >= http.StatusInternalServerError {
				logger.Error("request failed", "path", c.FullPath(), "status", apiErr.Status, "error", apiErr.Message)
			}
			response := gin.H{"error": apiErr.Message}
			if apiErr.Fields != nil {
				response["fields"] = apiErr.Fields
			}
			c.JSON(apiErr.Status, response)
			return
		}

		logger.Error("unhandled request error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
