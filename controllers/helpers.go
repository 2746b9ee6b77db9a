package controllers

import (
	"strconv"
	"strings"

	"access-approval-api/middleware"
	"access-approval-api/services"

	"github.com/gin-gonic/gin"
)

func currentActor(c *gin.Context) (*services.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		respondError(c, services.AuthorizationError("authentication required"))
		return nil, false
	}
	return actor, true
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, services.ValidationError("invalid %s", name))
		return 0, false
	}
	return id, true
}

func auditMeta(c *gin.Context) services.AuditMeta {
	return services.AuditMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}
