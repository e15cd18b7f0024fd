package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskflow/internal/authz"
	"taskflow/internal/middleware"
	"taskflow/internal/models"
)

// tolerant of the numeric types a context value may carry
func getInt64FromCtx(c *gin.Context, key string) (int64, bool) {
	v, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func getUserAndRole(c *gin.Context) (userID int64, role string) {
	userID, _ = getInt64FromCtx(c, middleware.CtxUserID)
	role = c.GetString(middleware.CtxRole)
	return
}

func isAdmin(c *gin.Context) bool {
	_, role := getUserAndRole(c)
	return authz.IsAdmin(role)
}

// parseID reads a positive int64 path parameter, writing 400 on failure.
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	case models.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeError maps a typed error onto its HTTP status. Storage failures are
// logged and hidden from the client.
func writeError(c *gin.Context, log *zap.Logger, tag string, err error) {
	var typed *models.Error
	if !errors.As(err, &typed) || typed.Kind == models.KindStorage {
		log.Error(tag+"[err]", zap.Error(err), zap.String("request_id", c.GetString(middleware.CtxRequestID)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	body := gin.H{"error": typed.Message}
	if typed.Field != "" {
		body["field"] = typed.Field
	}
	log.Debug(tag+"[refused]", zap.String("kind", string(typed.Kind)), zap.String("error", typed.Message))
	c.JSON(statusFor(typed.Kind), body)
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
