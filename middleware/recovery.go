package middleware

import (
	"fmt"
	"net/http"

	"access-approval-api/config"
	"access-approval-api/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns panics into the structured internal-error response.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(config.LogWriter, func(c *gin.Context, recovered any) {
		config.Log(c.Request.Context()).Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
		)
		body := gin.H{
			"success":    false,
			"error_kind": services.KindInternal,
			"error":      "Internal server error",
		}
		if config.DebugErrors() {
			body["detail"] = fmt.Sprint(recovered)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	})
}
