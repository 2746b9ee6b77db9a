package controllers

import (
	"net/http"

	"access-approval-api/config"
	"access-approval-api/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errorStatusByKind = map[services.ErrorKind]int{
	services.KindValidation:        http.StatusUnprocessableEntity,
	services.KindAuthorization:     http.StatusForbidden,
	services.KindNotFound:          http.StatusNotFound,
	services.KindInvalidTransition: http.StatusUnprocessableEntity,
	services.KindInternal:          http.StatusInternalServerError,
}

// respondError writes {success:false, error_kind, error}. Internal failures are
// logged with full detail and answered generically unless APP_DEBUG is on.
func respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status, ok := errorStatusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
		kind = services.KindInternal
	}

	body := gin.H{
		"success":    false,
		"error_kind": kind,
		"error":      services.MessageOf(err),
	}

	if kind == services.KindInternal {
		config.Log(c.Request.Context()).Error("request failed",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		if config.DebugErrors() {
			body["detail"] = err.Error()
		}
	}

	_ = c.Error(err)
	c.JSON(status, body)
}
