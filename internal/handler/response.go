package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"habittracker/internal/access"
	"habittracker/internal/service/auth"
	"habittracker/internal/service/habit"
	"habittracker/pkg/logger"
)

// ActorKey 认证中间件把 access.Actor 存在 gin.Context 的这个 key 下
const ActorKey = "actor"

// ActorFrom 取出当前请求的 Actor，没有时视为匿名
func ActorFrom(c *gin.Context) access.Actor {
	if v, ok := c.Get(ActorKey); ok {
		if actor, ok := v.(access.Actor); ok {
			return actor
		}
	}
	return access.Anonymous()
}

func parseID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return id, true
}

// writeError 把业务错误映射为 HTTP 响应
func writeError(c *gin.Context, log *zap.Logger, op string, err error) {
	if denied, ok := access.IsDenied(err); ok {
		status := http.StatusForbidden
		if denied.Reason == access.ReasonUnauthenticated {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": denied.Error()})
		return
	}

	var verr *habit.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
		return
	}
	var invalid *auth.InvalidRequestError
	if errors.As(err, &invalid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": gin.H{invalid.Field: invalid.Message}})
		return
	}

	switch {
	case errors.Is(err, habit.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, habit.ErrInvalidPage):
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid page"})
	case errors.Is(err, habit.ErrInvalidOrdering):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		logger.WithTrace(c.Request.Context(), log).Error(op+": internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
